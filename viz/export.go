package viz

import (
	"time"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/json"
	"github.com/pkg/errors"
)

// Exporter is a jpdata.Exporter which builds the visualization document from
// the enriched dataset and ignores every subset. The document is staged when
// the enriched writer is closed and appears on Commit.
type Exporter struct {
	docs *json.Exporter
	name string
	now  func() time.Time
	log  jpdata.Logger

	b *Builder
}

// ExpOption is a functional option for the viz Exporter.
type ExpOption func(e *Exporter)

// OptExpFile sets the document's file name. The default is File.
func OptExpFile(name string) ExpOption {
	return func(e *Exporter) {
		e.name = name
	}
}

// OptExpClock sets the clock used for the generated date.
func OptExpClock(now func() time.Time) ExpOption {
	return func(e *Exporter) {
		e.now = now
	}
}

// OptExpLogger sets the logger.
func OptExpLogger(log jpdata.Logger) ExpOption {
	return func(e *Exporter) {
		e.log = log
	}
}

// NewExporter returns an Exporter writing into dir.
func NewExporter(dir string, opts ...ExpOption) (*Exporter, error) {
	e := &Exporter{
		name: File,
		now:  time.Now,
		log:  jpdata.NopLogger{},
		b:    NewBuilder(),
	}
	for _, opt := range opts {
		opt(e)
	}
	docs, err := json.NewExporter(dir, json.OptExpIndent(""), json.OptExpLogger(e.log))
	if err != nil {
		return nil, err
	}
	e.docs = docs
	return e, nil
}

// Add compacts one exported people group.
func (e *Exporter) Add(f jpdata.Fields) { e.b.Add(f) }

// Writer implements jpdata.Exporter.
func (e *Exporter) Writer(dataset string) (jpdata.RecordWriter, error) {
	if dataset != jpdata.DatasetEnriched {
		return jpdata.DiscardWriter{}, nil
	}
	return &groupWriter{e: e}, nil
}

// Stage writes the document built so far.
func (e *Exporter) Stage() error {
	doc := e.b.Document(e.now().UTC())
	if err := e.docs.WriteDocument(e.name, doc); err != nil {
		return errors.Wrap(err, "staging visualization")
	}
	e.log.Printf("%s: %d groups, %d unreached", e.name, doc.Stats.TotalGroups, doc.Stats.UnreachedCount)
	return nil
}

// Commit implements jpdata.Exporter.
func (e *Exporter) Commit() error {
	return errors.Wrap(e.docs.Commit(), "committing visualization")
}

// Abort implements jpdata.Exporter.
func (e *Exporter) Abort() error {
	return e.docs.Abort()
}

type groupWriter struct {
	e *Exporter
}

func (w *groupWriter) Write(rec *jpdata.Enriched) error {
	w.e.Add(jpdata.Fields(rec.Map()))
	return nil
}

func (w *groupWriter) Close() error { return w.e.Stage() }
