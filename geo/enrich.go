package geo

import (
	"fmt"
	"sort"

	jpdata "github.com/lukeslp/joshua-project-data"
)

// Fields added to people groups and languages.
const (
	KeyCountryLatitude  = "country_latitude"
	KeyCountryLongitude = "country_longitude"
	KeyContinent        = "continent"
	KeyRegionUN         = "region_un"
	KeyCoordinateSource = "coordinate_source"

	KeyLatitude            = "latitude"
	KeyLongitude           = "longitude"
	KeyGlottocode          = "glottocode"
	KeyFamilyName          = "family_name"
	KeyFamilyID            = "family_id"
	KeyMacroarea           = "macroarea"
	KeyGlottologMatchCount = "glottolog_match_count"
)

// Values of coordinate_source.
const (
	SourceCentroid  = "Natural Earth (country centroid)"
	SourceGlottolog = "Glottolog"
)

// FamilyIsolate is the family name of a languoid which belongs to no family.
const FamilyIsolate = "Isolate"

// PeopleGroupFields and LanguageFields list the keys each enrichment adds.
var (
	PeopleGroupFields = []string{KeyCountryLatitude, KeyCountryLongitude, KeyContinent, KeyRegionUN, KeyCoordinateSource}
	LanguageFields    = []string{KeyLatitude, KeyLongitude, KeyGlottocode, KeyFamilyName, KeyFamilyID, KeyMacroarea, KeyCoordinateSource, KeyGlottologMatchCount}
)

// Coverage counts how many records of a collection got coordinates.
type Coverage struct {
	Total           int    `json:"total"`
	WithCoordinates int    `json:"with_coordinates"`
	Percent         string `json:"coverage"`

	matched   int
	unmatched map[string]struct{}
}

func newCoverage() *Coverage {
	return &Coverage{unmatched: make(map[string]struct{})}
}

func (c *Coverage) add(code string, matched, located bool) {
	c.Total++
	if matched {
		c.matched++
	} else if code != "" {
		c.unmatched[code] = struct{}{}
	}
	if located {
		c.WithCoordinates++
	}
	c.Percent = fmt.Sprintf("%.1f%%", percent(c.WithCoordinates, c.Total))
}

// Matched returns how many records were found in the reference data.
func (c *Coverage) Matched() int { return c.matched }

// Unmatched returns the codes which had no reference entry, sorted.
func (c *Coverage) Unmatched() []string {
	ret := make([]string, 0, len(c.unmatched))
	for code := range c.unmatched {
		ret = append(ret, code)
	}
	sort.Strings(ret)
	return ret
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}

// PeopleGroups returns a copy of each people group with the centroid of its
// ROG3 country added. A group whose country has no centroid gets nulls.
func (r *Reference) PeopleGroups(groups []jpdata.Fields) ([]jpdata.Fields, *Coverage) {
	cov := newCoverage()
	ret := make([]jpdata.Fields, len(groups))
	for i, g := range groups {
		out := g.Copy()
		code := g.Str(jpdata.FieldCountryCode)
		c, ok := r.centroids[code]
		if ok {
			out[KeyCountryLatitude] = c[FieldLatitude]
			out[KeyCountryLongitude] = c[FieldLongitude]
			out[KeyContinent] = orEmpty(c, FieldContinent)
			out[KeyRegionUN] = orEmpty(c, FieldRegionUN)
			out[KeyCoordinateSource] = SourceCentroid
		} else {
			for _, k := range PeopleGroupFields {
				out[k] = nil
			}
		}
		cov.add(code, ok, out[KeyCountryLatitude] != nil)
		ret[i] = out
	}
	return ret, cov
}

// Languages returns a copy of each language with the point and family of the
// first Glottolog languoid carrying its ROL3 code added. An unmatched
// language gets nulls and a match count of 0.
func (r *Reference) Languages(langs []jpdata.Fields) ([]jpdata.Fields, *Coverage) {
	cov := newCoverage()
	ret := make([]jpdata.Fields, len(langs))
	for i, l := range langs {
		out := l.Copy()
		code := l.Str(jpdata.FieldLanguageCode)
		entries := r.glottolog[code]
		if code != "" && len(entries) > 0 {
			g := entries[0]
			out[KeyLatitude] = g[FieldLatitude]
			out[KeyLongitude] = g[FieldLongitude]
			out[KeyGlottocode] = orEmpty(g, FieldGlottocode)
			out[KeyFamilyName], out[KeyFamilyID] = r.family(g.Str(FieldGlottocode))
			out[KeyMacroarea] = orEmpty(g, FieldMacroarea)
			out[KeyCoordinateSource] = SourceGlottolog
			out[KeyGlottologMatchCount] = len(entries)
		} else {
			for _, k := range LanguageFields {
				out[k] = nil
			}
			out[KeyGlottologMatchCount] = 0
		}
		cov.add(code, len(entries) > 0, out[KeyLatitude] != nil)
		ret[i] = out
	}
	return ret, cov
}

// family resolves a glottocode to its family name and id. A glottocode which
// is itself a family names itself, and one with no family is an isolate.
func (r *Reference) family(glottocode string) (name, id string) {
	if glottocode == "" {
		return "", ""
	}
	if fam, ok := r.familyOf[glottocode]; ok {
		return r.families[fam], fam
	}
	if name, ok := r.families[glottocode]; ok {
		return name, glottocode
	}
	return FamilyIsolate, ""
}

// orEmpty returns f[key], or "" if key is missing.
func orEmpty(f jpdata.Fields, key string) interface{} {
	v, ok := f[key]
	if !ok {
		return ""
	}
	return v
}
