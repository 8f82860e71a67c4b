package jpdata

import "io"

// Source is the interface for getting raw data one record at a time. Record
// returns io.EOF once the source is exhausted. Any other error means the
// source could not be read as a sequence of records.
type Source interface {
	Record() (interface{}, error)
}

// SliceSource is a Source over an in-memory slice of records.
type SliceSource struct {
	recs []interface{}
	pos  int
}

// NewSliceSource returns a Source which hands out recs in order.
func NewSliceSource(recs ...interface{}) *SliceSource {
	return &SliceSource{recs: recs}
}

// Record implements Source.
func (s *SliceSource) Record() (interface{}, error) {
	if s.pos >= len(s.recs) {
		return nil, io.EOF
	}
	rec := s.recs[s.pos]
	s.pos++
	return rec, nil
}

// ErrSource is a Source which fails immediately with Err. It is useful for
// representing a collection which could not be read at all.
type ErrSource struct {
	Err error
}

// Record implements Source.
func (e ErrSource) Record() (interface{}, error) { return nil, e.Err }
