// Package parquet writes datasets as Parquet files using an embedded DuckDB.
package parquet

import (
	"bufio"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver
	json "github.com/goccy/go-json"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/file"
	"github.com/pkg/errors"
)

// Exporter spools each dataset to newline delimited json and converts it to
// Parquet with DuckDB when its writer is closed. Files only appear under
// their final names on Commit. Empty datasets produce no file.
type Exporter struct {
	stage       *file.Staging
	prefix      string
	compression string
	log         jpdata.Logger

	mu      sync.Mutex
	db      *sql.DB
	spools  map[string]struct{}
	written []string
}

// ExpOption is a functional option for the parquet Exporter.
type ExpOption func(e *Exporter)

// OptExpPrefix sets the file name prefix. The default is "joshua_project".
func OptExpPrefix(prefix string) ExpOption {
	return func(e *Exporter) {
		e.prefix = prefix
	}
}

// OptExpCompression sets the Parquet codec. The default is SNAPPY.
func OptExpCompression(codec string) ExpOption {
	return func(e *Exporter) {
		e.compression = strings.ToUpper(codec)
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
		stage:       stage,
		prefix:      jpdata.DefaultPrefix,
		compression: "SNAPPY",
		log:         jpdata.NopLogger{},
		spools:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	switch e.compression {
	case "SNAPPY", "ZSTD", "GZIP", "UNCOMPRESSED":
	default:
		return nil, errors.Errorf("unsupported parquet compression %q", e.compression)
	}
	return e, nil
}

func (e *Exporter) conn() (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return e.db, nil
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(err, "opening duckdb")
	}
	e.db = db
	return db, nil
}

// Writer implements jpdata.Exporter.
func (e *Exporter) Writer(dataset string) (jpdata.RecordWriter, error) {
	name := jpdata.DatasetFile(e.prefix, dataset, "parquet")
	f, err := os.CreateTemp(e.stage.Dir(), "."+dataset+".*.ndjson")
	if err != nil {
		return nil, errors.Wrapf(err, "creating spool for %s", dataset)
	}
	e.mu.Lock()
	e.spools[f.Name()] = struct{}{}
	e.mu.Unlock()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &spoolWriter{exp: e, name: name, f: f, w: w, enc: enc}, nil
}

// Written returns the names of the Parquet files staged so far.
func (e *Exporter) Written() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.written...)
}

func (e *Exporter) dropSpool(path string) {
	e.mu.Lock()
	delete(e.spools, path)
	e.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.log.Printf("removing spool %s: %v", path, err)
	}
}

// convert writes the spool at src to a staged Parquet file called name.
func (e *Exporter) convert(src, name string) error {
	db, err := e.conn()
	if err != nil {
		return err
	}
	dst, err := e.stage.Reserve(name)
	if err != nil {
		return err
	}
	q := "COPY (SELECT * FROM read_json_auto(" + quote(src) +
		", format = 'newline_delimited', sample_size = -1)) TO " + quote(dst) +
		" (FORMAT PARQUET, COMPRESSION '" + e.compression + "')"
	if _, err := db.ExecContext(context.Background(), q); err != nil {
		return errors.Wrapf(err, "converting %s", name)
	}
	e.mu.Lock()
	e.written = append(e.written, name)
	e.mu.Unlock()
	return nil
}

func quote(path string) string {
	return "'" + strings.Replace(filepath.ToSlash(path), "'", "''", -1) + "'"
}

// Commit implements jpdata.Exporter.
func (e *Exporter) Commit() error {
	err := e.stage.Commit()
	if cerr := e.close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	for _, name := range e.Written() {
		e.log.Printf("wrote %s", name)
	}
	return nil
}

// Abort implements jpdata.Exporter.
func (e *Exporter) Abort() error {
	e.mu.Lock()
	spools := make([]string, 0, len(e.spools))
	for path := range e.spools {
		spools = append(spools, path)
	}
	e.mu.Unlock()
	for _, path := range spools {
		e.dropSpool(path)
	}
	err := e.stage.Abort()
	if cerr := e.close(); err == nil {
		err = cerr
	}
	return err
}

func (e *Exporter) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return errors.Wrap(err, "closing duckdb")
}

type spoolWriter struct {
	exp    *Exporter
	name   string
	f      *os.File
	w      *bufio.Writer
	enc    *json.Encoder
	n      int
	closed bool
}

func (s *spoolWriter) Write(e *jpdata.Enriched) error {
	if err := s.enc.Encode(e.Map()); err != nil {
		return errors.Wrapf(err, "spooling %s", e.Key())
	}
	s.n++
	return nil
}

// Close converts the spooled records. A dataset without records is skipped,
// since there is no schema to write.
func (s *spoolWriter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.exp.dropSpool(s.f.Name())
	err := s.w.Flush()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "closing spool for %s", s.name)
	}
	if s.n == 0 {
		s.exp.log.Printf("skipping %s: no records", s.name)
		return nil
	}
	if err := s.exp.convert(s.f.Name(), s.name); err != nil {
		return err
	}
	s.exp.log.Debugf("staged %d records for %s", s.n, s.name)
	return nil
}
