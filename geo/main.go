package geo

import (
	"context"
	"os"
	"path/filepath"
	"time"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/file"
	"github.com/lukeslp/joshua-project-data/json"
	"github.com/pkg/errors"
)

// Output file names.
const (
	PeopleGroupsFile = "joshua_project_enriched_geo.json"
	MetadataFile     = "enrichment_metadata.json"
)

// Default reference file names.
const (
	CentroidsFile = "country_centroids.json"
	GlottologFile = "glottolog_coordinates.json"
	LanguoidFile  = "glottolog_languoid.csv"
)

// Metadata is written to MetadataFile.
type Metadata struct {
	EnrichmentDate string              `json:"enrichment_date"`
	SourceDatasets map[string]string   `json:"source_datasets"`
	PeopleGroups   *Coverage           `json:"people_groups"`
	Languages      *Coverage           `json:"languages"`
	NewFields      map[string][]string `json:"new_fields"`
	License        string              `json:"license"`
	Description    string              `json:"description"`
}

// Main holds the options for adding coordinates to the fetched people groups
// and languages.
type Main struct {
	InputDir         string `help:"Directory holding the fetched collections."`
	PeopleGroupsFile string `help:"People groups file, relative to the input directory."`
	LanguagesFile    string `help:"Languages file, relative to the input directory."`
	ReferenceDir     string `help:"Directory holding the Natural Earth and Glottolog reference files."`
	CentroidsFile    string `help:"Natural Earth country centroids json, relative to the reference directory."`
	GlottologFile    string `help:"Glottolog coordinates json, relative to the reference directory."`
	LanguoidFile     string `help:"Glottolog languoid CSV, relative to the reference directory."`
	OutputDir        string `help:"Directory the geo enriched collections are written to."`
	Compact          bool   `help:"Write json without indentation."`

	Log jpdata.Logger `flag:"-"`
	// Now is the clock used for the metadata timestamp.
	Now func() time.Time `flag:"-"`
	// Metadata describes the last successful run.
	Metadata *Metadata `flag:"-"`
}

// NewMain returns a Main with the default file layout.
func NewMain() *Main {
	return &Main{
		InputDir:         ".",
		PeopleGroupsFile: file.PeopleGroupsFile,
		LanguagesFile:    file.LanguagesFile,
		ReferenceDir:     ".",
		CentroidsFile:    CentroidsFile,
		GlottologFile:    GlottologFile,
		LanguoidFile:     LanguoidFile,
		OutputDir:        ".",
		Log:              jpdata.NopLogger{},
		Now:              time.Now,
	}
}

// Run adds coordinates with a background context.
func (m *Main) Run() error {
	return m.RunContext(context.Background())
}

// RunContext reads the collections and the reference files, and writes the
// geo enriched people groups, languages, and MetadataFile. Either all three
// are written or none is.
func (m *Main) RunContext(ctx context.Context) error {
	if m.Log == nil {
		m.Log = jpdata.NopLogger{}
	}
	if m.Now == nil {
		m.Now = time.Now
	}
	groups, err := readJSON(m.InputDir, m.PeopleGroupsFile, jpdata.CollectionPeopleGroups)
	if err != nil {
		return err
	}
	langs, err := readJSON(m.InputDir, m.LanguagesFile, jpdata.CollectionLanguages)
	if err != nil {
		return err
	}
	m.Log.Printf("loaded %d people groups, %d languages", len(groups), len(langs))

	ref, err := m.reference()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "canceled")
	}

	groups, pgCov := ref.PeopleGroups(groups)
	m.logCoverage("people groups", "country codes", pgCov)
	langs, langCov := ref.Languages(langs)
	m.logCoverage("languages", "ISO codes", langCov)

	indent := "  "
	if m.Compact {
		indent = ""
	}
	docs, err := json.NewExporter(m.OutputDir, json.OptExpIndent(indent), json.OptExpLogger(m.Log))
	if err != nil {
		return err
	}
	meta := &Metadata{
		EnrichmentDate: m.Now().UTC().Format(time.RFC3339),
		SourceDatasets: map[string]string{
			"joshua_project": "Joshua Project API v1",
			"natural_earth":  "Natural Earth 1:10m Admin 0 Label Points",
			"glottolog":      "Glottolog languages_and_dialects_geo.csv",
		},
		PeopleGroups: pgCov,
		Languages:    langCov,
		NewFields: map[string][]string{
			"people_groups": PeopleGroupFields,
			"languages":     LanguageFields,
		},
		License:     "Compiled dataset - see individual source licenses",
		Description: "Joshua Project data enriched with geographic coordinates from Natural Earth and Glottolog",
	}
	err = docs.WriteDocument(PeopleGroupsFile, groups)
	if err == nil {
		err = docs.WriteDocument(file.LanguagesGeoFile, langs)
	}
	if err == nil {
		err = docs.WriteDocument(MetadataFile, meta)
	}
	if err != nil {
		docs.Abort()
		return err
	}
	if err := docs.Commit(); err != nil {
		return errors.Wrap(err, "committing")
	}
	m.Metadata = meta
	return nil
}

func (m *Main) reference() (*Reference, error) {
	ref := NewReference()
	centroids, err := readJSON(m.ReferenceDir, m.CentroidsFile, "country centroids")
	if err != nil {
		return nil, err
	}
	ref.AddCentroids(centroids)
	glotto, err := readJSON(m.ReferenceDir, m.GlottologFile, "glottolog coordinates")
	if err != nil {
		return nil, err
	}
	ref.AddGlottolog(glotto)

	p := resolve(m.ReferenceDir, m.LanguoidFile)
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrap(err, "opening languoid table")
	}
	defer f.Close()
	if err := ref.ReadLanguoids(f); err != nil {
		return nil, errors.Wrapf(err, "reading %s", p)
	}
	countries, languages, families := ref.Len()
	m.Log.Printf("indexed %d country codes, %d ISO language codes, %d families", countries, languages, families)
	return ref, nil
}

func (m *Main) logCoverage(what, codes string, cov *Coverage) {
	m.Log.Printf("%s: matched %d / %d (%.1f%%)", what, cov.Matched(), cov.Total, percent(cov.Matched(), cov.Total))
	if un := cov.Unmatched(); len(un) > 0 {
		sample := un
		if len(sample) > 10 {
			sample = sample[:10]
		}
		m.Log.Printf("%s: %d unmatched %s, e.g. %v", what, len(un), codes, sample)
	}
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// readJSON reads a json array of objects from dir/name.
func readJSON(dir, name, collection string) ([]jpdata.Fields, error) {
	p := resolve(dir, name)
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", collection)
	}
	defer f.Close()
	recs, err := jpdata.ReadFields(collection, json.NewSource(f))
	return recs, errors.Wrapf(err, "reading %s", p)
}
