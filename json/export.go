package json

import (
	"bufio"
	"os"

	json "github.com/goccy/go-json"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/file"
	"github.com/pkg/errors"
)

// Exporter writes each dataset as a json array of objects in an output
// directory. Files are staged and only appear under their final names on
// Commit.
type Exporter struct {
	stage  *file.Staging
	prefix string
	indent string
	log    jpdata.Logger
}

// ExpOption is a functional option for the json Exporter.
type ExpOption func(e *Exporter)

// OptExpPrefix sets the file name prefix. The default is "joshua_project".
func OptExpPrefix(prefix string) ExpOption {
	return func(e *Exporter) {
		e.prefix = prefix
	}
}

// OptExpIndent sets the indentation of each level. The empty string writes
// one record per line.
func OptExpIndent(indent string) ExpOption {
	return func(e *Exporter) {
		e.indent = indent
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
	stage, err := file.NewStaging(dir)
	if err != nil {
		return nil, err
	}
	e := &Exporter{
		stage:  stage,
		prefix: jpdata.DefaultPrefix,
		indent: "  ",
		log:    jpdata.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Writer implements jpdata.Exporter.
func (e *Exporter) Writer(dataset string) (jpdata.RecordWriter, error) {
	name := jpdata.DatasetFile(e.prefix, dataset, "json")
	f, err := e.stage.Create(name)
	if err != nil {
		return nil, errors.Wrap(err, "staging")
	}
	return &arrayWriter{name: name, f: f, w: bufio.NewWriter(f), indent: e.indent, log: e.log}, nil
}

// WriteDocument stages a single value as the file name.
func (e *Exporter) WriteDocument(name string, v interface{}) error {
	f, err := e.stage.Create(name)
	if err != nil {
		return errors.Wrap(err, "staging")
	}
	w := bufio.NewWriter(f)
	b, err := marshal(v, "", e.indent)
	if err == nil {
		_, err = w.Write(b)
	}
	if err == nil {
		err = w.WriteByte('\n')
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "writing %s", name)
}

// Commit implements jpdata.Exporter.
func (e *Exporter) Commit() error {
	if err := e.stage.Commit(); err != nil {
		return err
	}
	for _, name := range e.stage.Names() {
		e.log.Printf("wrote %s", name)
	}
	return nil
}

// Abort implements jpdata.Exporter.
func (e *Exporter) Abort() error {
	return e.stage.Abort()
}

func marshal(v interface{}, prefix, indent string) ([]byte, error) {
	if indent == "" {
		return json.MarshalWithOption(v, json.DisableHTMLEscape())
	}
	return json.MarshalIndentWithOption(v, prefix, indent, json.DisableHTMLEscape())
}

// arrayWriter writes records as the elements of one json array, formatted
// the way an indented encoder formats a whole array.
type arrayWriter struct {
	name   string
	f      *os.File
	w      *bufio.Writer
	indent string
	log    jpdata.Logger
	n      int
	closed bool
}

func (a *arrayWriter) Write(e *jpdata.Enriched) error {
	b, err := marshal(e.Map(), a.indent, a.indent)
	if err != nil {
		return errors.Wrapf(err, "marshaling %s", e.Key())
	}
	sep := ",\n"
	if a.n == 0 {
		sep = "[\n"
	}
	if _, err := a.w.WriteString(sep + a.indent); err != nil {
		return errors.Wrap(err, "writing")
	}
	if _, err := a.w.Write(b); err != nil {
		return errors.Wrap(err, "writing")
	}
	a.n++
	return nil
}

func (a *arrayWriter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	end := "\n]\n"
	if a.n == 0 {
		end = "[]\n"
	}
	_, err := a.w.WriteString(end)
	if err == nil {
		err = a.w.Flush()
	}
	if cerr := a.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "closing %s", a.name)
	}
	a.log.Debugf("staged %d records for %s", a.n, a.name)
	return nil
}
