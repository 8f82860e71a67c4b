package viz

import (
	"context"
	"os"
	"path/filepath"
	"time"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/json"
	"github.com/pkg/errors"
)

// Main holds the options for building the visualization document from an
// enriched dataset on disk.
type Main struct {
	InputFile  string `help:"Enriched dataset to read. Defaults to <prefix>_enriched.json in the input directory."`
	InputDir   string `help:"Directory holding the enriched dataset."`
	Prefix     string `help:"Prefix of the enriched dataset file name."`
	OutputDir  string `help:"Directory the visualization document is written to."`
	OutputFile string `help:"Name of the visualization document."`

	Log jpdata.Logger `flag:"-"`
	// Now is the clock used for the generated date.
	Now func() time.Time `flag:"-"`
}

// NewMain returns a Main with the default file layout.
func NewMain() *Main {
	return &Main{
		InputDir:   ".",
		Prefix:     jpdata.DefaultPrefix,
		OutputDir:  ".",
		OutputFile: File,
		Log:        jpdata.NopLogger{},
		Now:        time.Now,
	}
}

// Run builds the document with a background context.
func (m *Main) Run() error {
	return m.RunContext(context.Background())
}

// RunContext reads the enriched dataset and writes the visualization
// document.
func (m *Main) RunContext(ctx context.Context) error {
	if m.Log == nil {
		m.Log = jpdata.NopLogger{}
	}
	if m.Now == nil {
		m.Now = time.Now
	}
	p := m.InputFile
	if p == "" {
		p = filepath.Join(m.InputDir, jpdata.DatasetFile(m.Prefix, jpdata.DatasetEnriched, "json"))
	}
	f, err := os.Open(p)
	if err != nil {
		return errors.Wrap(err, "opening enriched dataset")
	}
	defer f.Close()
	recs, err := jpdata.ReadFields(jpdata.DatasetEnriched, json.NewSource(f))
	if err != nil {
		return errors.Wrapf(err, "reading %s", p)
	}
	m.Log.Printf("loaded %d people groups from %s", len(recs), p)
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "canceled")
	}

	exp, err := NewExporter(m.OutputDir, OptExpFile(m.OutputFile), OptExpClock(m.Now), OptExpLogger(m.Log))
	if err != nil {
		return err
	}
	for _, rec := range recs {
		exp.Add(rec)
	}
	if err := exp.Stage(); err != nil {
		exp.Abort()
		return err
	}
	if err := exp.Commit(); err != nil {
		return err
	}
	if info, err := os.Stat(filepath.Join(m.OutputDir, m.OutputFile)); err == nil {
		m.Log.Printf("%s is %.2f MB", m.OutputFile, float64(info.Size())/(1<<20))
	}
	return nil
}
