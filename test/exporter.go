package test

import (
	"sync"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/pkg/errors"
)

// MemExporter keeps every dataset in memory. Records only become visible in
// Committed once Commit is called.
type MemExporter struct {
	mu        sync.Mutex
	pending   map[string][]*jpdata.Enriched
	Committed map[string][]*jpdata.Enriched
	Opened    []string
	Aborted   bool

	// FailWriter makes Writer fail for the named dataset.
	FailWriter string
	// FailCommit is returned by Commit when set, and nothing is committed.
	FailCommit error
}

// NewMemExporter returns an empty MemExporter.
func NewMemExporter() *MemExporter {
	return &MemExporter{pending: make(map[string][]*jpdata.Enriched)}
}

// Writer implements jpdata.Exporter.
func (m *MemExporter) Writer(dataset string) (jpdata.RecordWriter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dataset == m.FailWriter {
		return nil, errors.Errorf("writer for %s failed", dataset)
	}
	m.Opened = append(m.Opened, dataset)
	m.pending[dataset] = []*jpdata.Enriched{}
	return &memWriter{m: m, dataset: dataset}, nil
}

// Commit implements jpdata.Exporter.
func (m *MemExporter) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommit != nil {
		return m.FailCommit
	}
	m.Committed = m.pending
	m.pending = make(map[string][]*jpdata.Enriched)
	return nil
}

// Abort implements jpdata.Exporter.
func (m *MemExporter) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Aborted = true
	m.pending = make(map[string][]*jpdata.Enriched)
	return nil
}

type memWriter struct {
	m       *MemExporter
	dataset string
	closed  bool
}

func (w *memWriter) Write(e *jpdata.Enriched) error {
	if w.closed {
		return errors.New("write after close")
	}
	w.m.mu.Lock()
	w.m.pending[w.dataset] = append(w.m.pending[w.dataset], e)
	w.m.mu.Unlock()
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}
