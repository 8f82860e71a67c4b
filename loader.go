package jpdata

import (
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Collection names used in errors, logs, and metadata.
const (
	CollectionPeopleGroups = "people_groups"
	CollectionCountries    = "countries"
	CollectionLanguages    = "languages"
	CollectionTotals       = "totals"
)

// Sources holds one Source per input collection. Totals is optional.
type Sources struct {
	PeopleGroups Source
	Countries    Source
	Languages    Source
	Totals       Source
}

// Collections holds the loaded input collections in source order.
type Collections struct {
	PeopleGroups []*PeopleGroup
	Countries    []*Country
	Languages    []*Language
	Totals       Totals
}

type peopleGroupIdentity struct {
	PeopleID    *int64 `field:"PeopleID3" validate:"required"`
	CountryCode string `field:"ROG3" validate:"required"`
}

type codeIdentity struct {
	Code string `validate:"required"`
}

type totalIdentity struct {
	ID string `field:"id" validate:"required"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := f.Tag.Get("field"); name != "" {
				return name
			}
			return f.Name
		})
	})
	return validate
}

// checkIdentity validates id and turns a failure into a reason naming the
// missing source fields.
func checkIdentity(id interface{}) string {
	err := getValidator().Struct(id)
	if err == nil {
		return ""
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return "missing identity field " + strings.Join(missing, ", ")
}

// Load reads all collections from srcs. It fails without returning anything
// if any collection is malformed.
func Load(srcs Sources) (*Collections, error) {
	var err error
	c := &Collections{}
	c.PeopleGroups, err = LoadPeopleGroups(srcs.PeopleGroups)
	if err != nil {
		return nil, errors.Wrap(err, "loading people groups")
	}
	c.Countries, err = LoadCountries(srcs.Countries)
	if err != nil {
		return nil, errors.Wrap(err, "loading countries")
	}
	c.Languages, err = LoadLanguages(srcs.Languages)
	if err != nil {
		return nil, errors.Wrap(err, "loading languages")
	}
	if srcs.Totals != nil {
		c.Totals, err = LoadTotals(srcs.Totals)
		if err != nil {
			return nil, errors.Wrap(err, "loading totals")
		}
	}
	return c, nil
}

// readAll drains src, handing each record to fn as Fields. Anything which is
// not an object is rejected.
func readAll(collection string, src Source, fn func(i int, f Fields) error) error {
	if src == nil {
		return &MalformedInputError{Collection: collection, Index: -1, Reason: "no source"}
	}
	for i := 0; ; i++ {
		rec, err := src.Record()
		if err == io.EOF {
			return nil
		} else if err != nil {
			idx := i
			if errors.Cause(err) == ErrNotSequence {
				idx = -1
			}
			return &MalformedInputError{Collection: collection, Index: idx, Reason: err.Error()}
		}
		var f Fields
		switch rt := rec.(type) {
		case map[string]interface{}:
			f = Fields(rt)
		case Fields:
			f = rt
		default:
			return &MalformedInputError{Collection: collection, Index: i, Reason: "record is not an object"}
		}
		if err := fn(i, f); err != nil {
			return err
		}
	}
}

// ReadFields reads every record of src, rejecting anything which is not an
// object the same way the collection loaders do.
func ReadFields(collection string, src Source) ([]Fields, error) {
	ret := make([]Fields, 0)
	err := readAll(collection, src, func(i int, f Fields) error {
		ret = append(ret, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadPeopleGroups reads the people group collection.
func LoadPeopleGroups(src Source) ([]*PeopleGroup, error) {
	var groups []*PeopleGroup
	err := readAll(CollectionPeopleGroups, src, func(i int, f Fields) error {
		p := newPeopleGroup(f)
		id := peopleGroupIdentity{CountryCode: p.CountryCode, PeopleID: f.Int(FieldPeopleID)}
		if reason := checkIdentity(id); reason != "" {
			return &MalformedInputError{Collection: CollectionPeopleGroups, Index: i, Reason: reason}
		}
		groups = append(groups, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// LoadCountries reads the country collection.
func LoadCountries(src Source) ([]*Country, error) {
	var countries []*Country
	err := readAll(CollectionCountries, src, func(i int, f Fields) error {
		c := newCountry(f)
		if checkIdentity(codeIdentity{Code: c.Code}) != "" {
			return &MalformedInputError{Collection: CollectionCountries, Index: i, Reason: "missing identity field " + FieldCountryCode}
		}
		countries = append(countries, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return countries, nil
}

// LoadLanguages reads the language collection.
func LoadLanguages(src Source) ([]*Language, error) {
	var languages []*Language
	err := readAll(CollectionLanguages, src, func(i int, f Fields) error {
		l := newLanguage(f)
		if checkIdentity(codeIdentity{Code: l.Code}) != "" {
			return &MalformedInputError{Collection: CollectionLanguages, Index: i, Reason: "missing identity field " + FieldLanguageCode}
		}
		languages = append(languages, l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return languages, nil
}

// LoadTotals reads the totals collection, a list of {"id": ..., "Value": ...}
// objects, into a map from id to value.
func LoadTotals(src Source) (Totals, error) {
	totals := make(Totals)
	err := readAll(CollectionTotals, src, func(i int, f Fields) error {
		id := totalIdentity{ID: f.Str(FieldTotalID)}
		if reason := checkIdentity(id); reason != "" {
			return &MalformedInputError{Collection: CollectionTotals, Index: i, Reason: reason}
		}
		totals[id.ID] = f[FieldTotalValue]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}
