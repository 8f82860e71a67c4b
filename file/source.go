package file

import (
	"io"
	"os"
	"path/filepath"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/pkg/errors"
)

// Default names of the normalized collection files.
const (
	PeopleGroupsFile = "joshua_project_full_dump.json"
	CountriesFile    = "joshua_project_countries.json"
	LanguagesFile    = "joshua_project_languages.json"
	TotalsFile       = "joshua_project_totals.json"

	// LanguagesGeoFile is the languages collection with Glottolog
	// coordinates and families added by the geo step.
	LanguagesGeoFile = "joshua_project_languages_enriched_geo.json"
)

// Inputs names the files holding each collection. Relative names are
// resolved against Dir. An empty Totals means there are no totals.
type Inputs struct {
	Dir          string
	PeopleGroups string
	Countries    string
	Languages    string
	Totals       string
}

// DefaultInputs returns the standard file layout under dir.
func DefaultInputs(dir string) Inputs {
	return Inputs{
		Dir:          dir,
		PeopleGroups: PeopleGroupsFile,
		Countries:    CountriesFile,
		Languages:    LanguagesFile,
		Totals:       TotalsFile,
	}
}

// Exists reports whether the named input is present.
func (in Inputs) Exists(name string) bool {
	_, err := os.Stat(in.path(name))
	return err == nil
}

func (in Inputs) path(name string) string {
	if filepath.IsAbs(name) || in.Dir == "" {
		return name
	}
	return filepath.Join(in.Dir, name)
}

// Decoder turns an open file into a record Source.
type Decoder func(r io.Reader) jpdata.Source

// Open opens every input and wraps it with decode. A missing collection file
// does not fail here: its Source reports the problem when the loader reads
// it, so the error names the collection. A missing totals file means no
// totals. The returned Closer closes every file which was opened.
func (in Inputs) Open(decode Decoder) (jpdata.Sources, io.Closer) {
	var srcs jpdata.Sources
	files := closers{}
	open := func(name string, required bool) jpdata.Source {
		p := in.path(name)
		f, err := os.Open(p)
		if err != nil {
			if !required && os.IsNotExist(err) {
				return nil
			}
			return jpdata.ErrSource{Err: errors.Wrapf(err, "opening %s", p)}
		}
		files = append(files, f)
		return decode(f)
	}
	srcs.PeopleGroups = open(in.PeopleGroups, true)
	srcs.Countries = open(in.Countries, true)
	srcs.Languages = open(in.Languages, true)
	if in.Totals != "" {
		srcs.Totals = open(in.Totals, false)
	}
	return srcs, files
}

type closers []io.Closer

func (cs closers) Close() error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
