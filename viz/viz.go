// Package viz reduces the enriched people groups to the compact document the
// browser visualizations load: short keys, only the fields they draw, and
// summary statistics.
package viz

import (
	"math"
	"strconv"
	"sync"
	"time"

	jpdata "github.com/lukeslp/joshua-project-data"
)

// File is the default name of the visualization document.
const File = "souls_enhanced_viz_data.json"

// Group is a people group in compact form.
type Group struct {
	Name          string    `json:"n"`
	Population    int64     `json:"p"`
	JPScale       int64     `json:"s"`
	Evangelical   float64   `json:"e"`
	Religion      string    `json:"r"`
	Language      string    `json:"l"`
	LanguageCode  string    `json:"lc"`
	Country       string    `json:"c"`
	CountryCode   string    `json:"cc"`
	Continent     string    `json:"cn"`
	Region        string    `json:"rg"`
	AffinityBloc  string    `json:"ab"`
	PeopleCluster string    `json:"pc"`
	BibleStatus   int64     `json:"bs"`
	JesusFilm     string    `json:"jf"`
	LeastReached  string    `json:"lr"`
	LatLon        []float64 `json:"ll,omitempty"`
}

// Bucket counts the groups sharing one value.
type Bucket struct {
	Count      int   `json:"count"`
	Population int64 `json:"population"`
}

// ReligionBucket also counts the population of least reached groups.
type ReligionBucket struct {
	Count      int   `json:"count"`
	Population int64 `json:"population"`
	Unreached  int64 `json:"unreached"`
}

// Stats summarizes the groups.
type Stats struct {
	TotalGroups         int                        `json:"total_groups"`
	TotalPopulation     int64                      `json:"total_population"`
	UnreachedCount      int                        `json:"unreached_count"`
	UnreachedPopulation int64                      `json:"unreached_population"`
	ByReligion          map[string]*ReligionBucket `json:"by_religion"`
	ByContinent         map[string]*Bucket         `json:"by_continent"`
	ByAffinityBloc      map[string]*Bucket         `json:"by_affinity_bloc"`
	ByJPScale           map[string]int             `json:"by_jp_scale"`
	ByBibleStatus       map[string]int             `json:"by_bible_status"`
}

// Document is the visualization file.
type Document struct {
	Groups    []Group `json:"groups"`
	Stats     *Stats  `json:"stats"`
	Generated string  `json:"generated"`
	Source    string  `json:"source"`
}

// Source field names only the visualization reads.
const (
	fieldAffinityBloc      = "AffinityBloc"
	fieldPeopleCluster     = "PeopleCluster"
	fieldPrimaryLanguage   = "PrimaryLanguageName"
	fieldLanguageLatitude  = "PrimaryLanguageLatitude"
	fieldLanguageLongitude = "PrimaryLanguageLongitude"
	fieldCountryLatitude   = "country_latitude"
	fieldCountryLongitude  = "country_longitude"
)

// Compact converts an exported people group, with country_data and
// language_data embedded in either mode, to a Group.
func Compact(f jpdata.Fields) Group {
	country := embedded(f, jpdata.KeyCountryData)
	language := embedded(f, jpdata.KeyLanguageData)
	g := Group{
		Name:          orUnknown(f.Str(jpdata.FieldPeopleName)),
		Population:    intOrZero(f, jpdata.FieldPopulation),
		JPScale:       intOrZero(f, jpdata.FieldJPScale),
		Religion:      orUnknown(f.Str(jpdata.FieldPrimaryReligion)),
		Language:      orUnknown(f.Str(fieldPrimaryLanguage)),
		LanguageCode:  f.Str(jpdata.FieldLanguageCode),
		CountryCode:   f.Str(jpdata.FieldCountryCode),
		Continent:     f.Str(jpdata.FieldContinent),
		Region:        f.Str(jpdata.FieldRegionName),
		AffinityBloc:  f.Str(fieldAffinityBloc),
		PeopleCluster: f.Str(fieldPeopleCluster),
		BibleStatus:   intOrZero(f, jpdata.FieldBibleStatus),
		JesusFilm:     "N",
		LeastReached:  "N",
	}
	if v := f.Float(jpdata.FieldPercentEvangelical); v != nil {
		g.Evangelical = math.Round(*v*10) / 10
	}
	g.Country = first(country.Str("name"), country.Str(jpdata.FieldCountryName), f.Str(jpdata.FieldCountryName), "Unknown")
	if jf := first(language.Str("has_jesus_film"), language.Str(jpdata.FieldHasJesusFilm)); jf != "" {
		g.JesusFilm = jf
	}
	if lr := f.Str(jpdata.FieldLeastReached); lr != "" {
		g.LeastReached = lr
	}
	g.LatLon = latLon(f,
		[2]string{jpdata.FieldLatitude, jpdata.FieldLongitude},
		[2]string{fieldLanguageLatitude, fieldLanguageLongitude},
		[2]string{fieldCountryLatitude, fieldCountryLongitude})
	return g
}

// latLon returns the first pair of fields which are both present and
// non-zero.
func latLon(f jpdata.Fields, pairs ...[2]string) []float64 {
	for _, p := range pairs {
		lat, lon := f.Float(p[0]), f.Float(p[1])
		if lat == nil || lon == nil || *lat == 0 || *lon == 0 {
			continue
		}
		return []float64{*lat, *lon}
	}
	return nil
}

func embedded(f jpdata.Fields, key string) jpdata.Fields {
	switch v := f[key].(type) {
	case map[string]interface{}:
		return jpdata.Fields(v)
	case jpdata.Fields:
		return v
	}
	return nil
}

func intOrZero(f jpdata.Fields, key string) int64 {
	if v := f.Int(key); v != nil {
		return *v
	}
	if v := f.Float(key); v != nil {
		return int64(*v)
	}
	return 0
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func first(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

func newStats() *Stats {
	s := &Stats{
		ByReligion:     make(map[string]*ReligionBucket),
		ByContinent:    make(map[string]*Bucket),
		ByAffinityBloc: make(map[string]*Bucket),
		ByJPScale:      make(map[string]int),
		ByBibleStatus:  make(map[string]int),
	}
	for i := 1; i <= 5; i++ {
		s.ByJPScale[strconv.Itoa(i)] = 0
	}
	for i := 0; i <= 5; i++ {
		s.ByBibleStatus[strconv.Itoa(i)] = 0
	}
	return s
}

func (s *Stats) add(g Group) {
	unreached := g.LeastReached == "Y"
	s.TotalGroups++
	s.TotalPopulation += g.Population
	if unreached {
		s.UnreachedCount++
		s.UnreachedPopulation += g.Population
	}

	r, ok := s.ByReligion[g.Religion]
	if !ok {
		r = &ReligionBucket{}
		s.ByReligion[g.Religion] = r
	}
	r.Count++
	r.Population += g.Population
	if unreached {
		r.Unreached += g.Population
	}
	addBucket(s.ByContinent, g.Continent, g.Population)
	addBucket(s.ByAffinityBloc, g.AffinityBloc, g.Population)
	if g.JPScale != 0 {
		s.ByJPScale[strconv.FormatInt(g.JPScale, 10)]++
	}
	s.ByBibleStatus[strconv.FormatInt(g.BibleStatus, 10)]++
}

func addBucket(m map[string]*Bucket, key string, pop int64) {
	if key == "" {
		return
	}
	b, ok := m[key]
	if !ok {
		b = &Bucket{}
		m[key] = b
	}
	b.Count++
	b.Population += pop
}

// Builder accumulates compact groups and their statistics. It is safe for
// concurrent use.
type Builder struct {
	mu     sync.Mutex
	groups []Group
	stats  *Stats
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{groups: make([]Group, 0), stats: newStats()}
}

// Add compacts f and counts it.
func (b *Builder) Add(f jpdata.Fields) {
	g := Compact(f)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups = append(b.groups, g)
	b.stats.add(g)
}

// Len returns the number of groups added.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups)
}

// Document returns everything added so far, dated at now.
func (b *Builder) Document(now time.Time) *Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Document{
		Groups:    b.groups,
		Stats:     b.stats,
		Generated: now.Format("2006-01-02"),
		Source:    "Joshua Project API via enriched dataset",
	}
}
