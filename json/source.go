package json

import (
	"bufio"
	"io"
	"unicode"

	json "github.com/goccy/go-json"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/pkg/errors"
)

// Source is a jpdata.Source for reading json data. The input must be a
// single top level array of objects, which is what the Joshua Project API
// returns. With OptSrcNDJSON a stream of newline delimited objects is read
// as well. Numbers are kept in their literal form.
type Source struct {
	br  *bufio.Reader
	dec *json.Decoder

	ndjson  bool
	array   bool
	started bool
	done    bool
}

// SrcOption is a functional option for NewSource.
type SrcOption func(s *Source)

// OptSrcNDJSON accepts newline delimited objects in addition to an array.
// Without it a document starting with an object is not a collection.
func OptSrcNDJSON(ndjson bool) SrcOption {
	return func(s *Source) {
		s.ndjson = ndjson
	}
}

// NewSource gets a new json source which will decode from the given reader.
func NewSource(r io.Reader, opts ...SrcOption) *Source {
	s := &Source{br: bufio.NewReader(r)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// start detects the input shape from its first non-space byte.
func (s *Source) start() error {
	s.started = true
	b, err := s.peek()
	if err == io.EOF {
		return errors.Wrap(jpdata.ErrNotSequence, "empty input")
	} else if err != nil {
		return errors.Wrap(err, "reading")
	}
	switch b {
	case '[':
		s.array = true
	case '{':
		if !s.ndjson {
			return errors.Wrap(jpdata.ErrNotSequence, "input is a single object, not a list")
		}
	default:
		return errors.Wrapf(jpdata.ErrNotSequence, "input starts with %q", b)
	}
	s.dec = json.NewDecoder(s.br)
	s.dec.UseNumber()
	if s.array {
		if _, err := s.dec.Token(); err != nil {
			return errors.Wrap(err, "reading array start")
		}
	}
	return nil
}

// peek skips leading white space and returns the next byte without
// consuming it.
func (s *Source) peek() (byte, error) {
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !unicode.IsSpace(rune(b)) {
			return b, s.br.UnreadByte()
		}
	}
}

// Record implements jpdata.Source. It returns the next json value which can
// be decoded from the reader. Elements of the array which are not objects
// are returned as they are so the loader can reject them by position.
func (s *Source) Record() (rec interface{}, err error) {
	if s.done {
		return nil, io.EOF
	}
	if !s.started {
		if err := s.start(); err != nil {
			s.done = true
			return nil, err
		}
	}
	if s.array && !s.dec.More() {
		s.done = true
		if _, err := s.dec.Token(); err != nil {
			return nil, errors.Wrap(err, "reading array end")
		}
		return nil, io.EOF
	}
	var res interface{}
	err = s.dec.Decode(&res)
	if err == io.EOF && !s.array {
		s.done = true
		return nil, io.EOF
	} else if err != nil {
		s.done = true
		return nil, errors.Wrap(err, "decoding")
	}
	return res, nil
}

// ReadAll decodes every record of r.
func ReadAll(r io.Reader, opts ...SrcOption) ([]interface{}, error) {
	src := NewSource(r, opts...)
	recs := make([]interface{}, 0)
	for {
		rec, err := src.Record()
		if err == io.EOF {
			return recs, nil
		} else if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
}
