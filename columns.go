package jpdata

import (
	"sync"

	"github.com/pkg/errors"
)

// ColumnMapper gives every people group a Pilosa column id. Ids are dense
// from 0, handed out in the order keys are first seen, and never reused.
// Implementations must be safe for concurrent use.
type ColumnMapper interface {
	ColumnID(k RecordKey) (uint64, error)
	Key(id uint64) (RecordKey, error)
}

// MapColumns keeps column ids in memory, so they only last for one run.
type MapColumns struct {
	mu   sync.RWMutex
	ids  map[RecordKey]uint64
	keys []RecordKey
}

// NewMapColumns returns an empty MapColumns.
func NewMapColumns() *MapColumns {
	return &MapColumns{ids: make(map[RecordKey]uint64)}
}

// ColumnID returns the column of k, allocating the next one if k is new.
func (m *MapColumns) ColumnID(k RecordKey) (uint64, error) {
	m.mu.RLock()
	id, ok := m.ids[k]
	m.mu.RUnlock()
	if ok {
		return id, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[k]; ok {
		return id, nil
	}
	id = uint64(len(m.keys))
	m.keys = append(m.keys, k)
	m.ids[k] = id
	return id, nil
}

// Key returns the people group stored in column id.
func (m *MapColumns) Key(id uint64) (RecordKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id >= uint64(len(m.keys)) {
		return RecordKey{}, errors.Errorf("unknown column %d", id)
	}
	return m.keys[id], nil
}
