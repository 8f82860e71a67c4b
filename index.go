package jpdata

// Indexes are the read-only lookups the Joiner resolves foreign keys against.
// They are never written after BuildIndexes returns, so any number of
// goroutines may read them concurrently.
type Indexes struct {
	Countries map[string]*Country
	Languages map[string]*Language
}

type indexConfig struct {
	allowDuplicates bool
	log             Logger
}

// IndexOption is a functional option for BuildIndexes.
type IndexOption func(c *indexConfig)

// OptIndexAllowDuplicates makes a repeated code replace the earlier record
// (last write wins) instead of failing with a DuplicateKeyError.
func OptIndexAllowDuplicates(allow bool) IndexOption {
	return func(c *indexConfig) {
		c.allowDuplicates = allow
	}
}

// OptIndexLogger sets the logger used to report replaced duplicates.
func OptIndexLogger(log Logger) IndexOption {
	return func(c *indexConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// BuildIndexes indexes countries by ROG3 and languages by ROL3.
func BuildIndexes(countries []*Country, languages []*Language, opts ...IndexOption) (*Indexes, error) {
	conf := &indexConfig{log: NopLogger{}}
	for _, opt := range opts {
		opt(conf)
	}
	cidx, err := buildCountryIndex(countries, conf)
	if err != nil {
		return nil, err
	}
	lidx, err := buildLanguageIndex(languages, conf)
	if err != nil {
		return nil, err
	}
	return &Indexes{Countries: cidx, Languages: lidx}, nil
}

// buildCountryIndex maps each country code to its record.
func buildCountryIndex(countries []*Country, conf *indexConfig) (map[string]*Country, error) {
	idx := make(map[string]*Country, len(countries))
	pos := make(map[string]int, len(countries))
	for i, c := range countries {
		if first, ok := pos[c.Code]; ok {
			if !conf.allowDuplicates {
				return nil, &DuplicateKeyError{Collection: CollectionCountries, Key: c.Code, First: first, Second: i}
			}
			conf.log.Printf("country %q at record %d replaces record %d", c.Code, i, first)
		}
		pos[c.Code] = i
		idx[c.Code] = c
	}
	return idx, nil
}

// buildLanguageIndex maps each language code to its record.
func buildLanguageIndex(languages []*Language, conf *indexConfig) (map[string]*Language, error) {
	idx := make(map[string]*Language, len(languages))
	pos := make(map[string]int, len(languages))
	for i, l := range languages {
		if first, ok := pos[l.Code]; ok {
			if !conf.allowDuplicates {
				return nil, &DuplicateKeyError{Collection: CollectionLanguages, Key: l.Code, First: first, Second: i}
			}
			conf.log.Printf("language %q at record %d replaces record %d", l.Code, i, first)
		}
		pos[l.Code] = i
		idx[l.Code] = l
	}
	return idx, nil
}
