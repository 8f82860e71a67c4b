package jpdata

import "github.com/pkg/errors"

// RecordWriter receives the records of one dataset in order. Close flushes
// the dataset; nothing is visible to readers until the owning Exporter
// commits.
type RecordWriter interface {
	Write(e *Enriched) error
	Close() error
}

// Exporter is a sink for a run's datasets. Writer is called once per dataset
// before any record is written. After every writer is closed the caller
// either commits, making all datasets visible at once, or aborts, leaving no
// partial output behind.
type Exporter interface {
	Writer(dataset string) (RecordWriter, error)
	Commit() error
	Abort() error
}

// DatasetFile returns the file name used for a dataset, e.g.
// joshua_project_unreached.parquet.
func DatasetFile(prefix, dataset, ext string) string {
	return prefix + "_" + dataset + "." + ext
}

// DefaultPrefix is the file name prefix of every exported dataset.
const DefaultPrefix = "joshua_project"

// DiscardWriter drops every record.
type DiscardWriter struct{}

// Write implements RecordWriter.
func (DiscardWriter) Write(*Enriched) error { return nil }

// Close implements RecordWriter.
func (DiscardWriter) Close() error { return nil }

// MultiExporter fans every dataset out to several exporters.
type MultiExporter []Exporter

// Writer implements Exporter. If any exporter fails the writers already
// opened are closed and the error is returned.
func (m MultiExporter) Writer(dataset string) (RecordWriter, error) {
	ws := make(multiWriter, 0, len(m))
	for _, e := range m {
		w, err := e.Writer(dataset)
		if err != nil {
			_ = ws.Close()
			return nil, errors.Wrapf(err, "opening %s", dataset)
		}
		ws = append(ws, w)
	}
	return ws, nil
}

// Commit commits each exporter in order and aborts the remaining ones at the
// first failure. Exporters which cannot take back what they delivered, like
// Pilosa or Kafka, belong before the ones which stage their output, so a
// failed delivery leaves no staged files behind.
func (m MultiExporter) Commit() error {
	for i, e := range m {
		if err := e.Commit(); err != nil {
			for _, rest := range m[i+1:] {
				_ = rest.Abort()
			}
			return errors.Wrap(err, "committing")
		}
	}
	return nil
}

// Abort aborts every exporter and returns all of the failures.
func (m MultiExporter) Abort() error {
	var errs errorList
	for _, e := range m {
		if err := e.Abort(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.errOrNil()
}

type multiWriter []RecordWriter

func (ws multiWriter) Write(e *Enriched) error {
	for _, w := range ws {
		if err := w.Write(e); err != nil {
			return err
		}
	}
	return nil
}

func (ws multiWriter) Close() error {
	var errs errorList
	for _, w := range ws {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.errOrNil()
}
