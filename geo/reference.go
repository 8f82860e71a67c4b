// Package geo adds coordinates to the fetched collections: country centroids
// from Natural Earth for people groups, and Glottolog points and families for
// languages.
package geo

import (
	"encoding/csv"
	"io"
	"strings"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/pkg/errors"
)

// Reference field names.
const (
	FieldISOA2      = "iso_a2"
	FieldISOA3      = "iso_a3"
	FieldLatitude   = "latitude"
	FieldLongitude  = "longitude"
	FieldContinent  = "continent"
	FieldRegionUN   = "region_un"
	FieldISOCodes   = "isocodes"
	FieldGlottocode = "glottocode"
	FieldMacroarea  = "macroarea"
)

// Reference holds the lookup tables built from the geographic and linguistic
// reference files. The zero value is not usable; call NewReference.
type Reference struct {
	centroids map[string]jpdata.Fields
	glottolog map[string][]jpdata.Fields
	// families maps a family glottocode to its name.
	families map[string]string
	// familyOf maps a glottocode to the glottocode of its family.
	familyOf map[string]string
}

// NewReference returns an empty Reference.
func NewReference() *Reference {
	return &Reference{
		centroids: make(map[string]jpdata.Fields),
		glottolog: make(map[string][]jpdata.Fields),
		families:  make(map[string]string),
		familyOf:  make(map[string]string),
	}
}

// AddCentroids indexes country centroids under both their two and three
// letter ISO codes. A later centroid replaces an earlier one with the same
// code.
func (r *Reference) AddCentroids(centroids []jpdata.Fields) {
	for _, c := range centroids {
		if code := c.Str(FieldISOA2); code != "" {
			r.centroids[code] = c
		}
		if code := c.Str(FieldISOA3); code != "" {
			r.centroids[code] = c
		}
	}
}

// AddGlottolog indexes Glottolog languoids under every ISO 639-3 code in
// their comma separated isocodes field. Languoids sharing a code are kept in
// file order.
func (r *Reference) AddGlottolog(languoids []jpdata.Fields) {
	for _, l := range languoids {
		for _, code := range strings.Split(l.Str(FieldISOCodes), ",") {
			code = strings.TrimSpace(code)
			if code == "" || code == "nan" {
				continue
			}
			r.glottolog[code] = append(r.glottolog[code], l)
		}
	}
}

// ReadLanguoids reads the Glottolog languoid table, a CSV file with a header
// row naming at least the id, family_id, name, and level columns.
func (r *Reference) ReadLanguoids(rd io.Reader) error {
	reader := csv.NewReader(rd)
	reader.ReuseRecord = true
	header, err := reader.Read()
	if err != nil {
		return errors.Wrap(err, "reading languoid header")
	}
	cols := map[string]int{"id": -1, "family_id": -1, "name": -1, "level": -1}
	for i, name := range header {
		if _, ok := cols[strings.TrimSpace(name)]; ok {
			cols[strings.TrimSpace(name)] = i
		}
	}
	for name, i := range cols {
		if i < 0 {
			return errors.Errorf("languoid table has no %s column", name)
		}
	}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrapf(err, "reading languoid line %d", line)
		}
		id := row[cols["id"]]
		if row[cols["level"]] == "family" {
			r.families[id] = row[cols["name"]]
		}
		if fam := row[cols["family_id"]]; fam != "" {
			r.familyOf[id] = fam
		}
	}
}

// Len returns the number of country codes, ISO 639-3 codes, and families
// indexed.
func (r *Reference) Len() (countries, languages, families int) {
	return len(r.centroids), len(r.glottolog), len(r.families)
}
