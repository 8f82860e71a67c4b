package file

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Staging collects output files under temporary names in a directory and
// moves them all to their final names on Commit. Until then readers of the
// directory never see a partially written file.
type Staging struct {
	dir string

	mu     sync.Mutex
	staged []staged
	done   bool
}

type staged struct {
	tmp, final string
}

// NewStaging creates dir if needed and returns a Staging for it.
func NewStaging(dir string) (*Staging, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "making output directory %s", dir)
	}
	return &Staging{dir: dir}, nil
}

// Dir returns the output directory.
func (s *Staging) Dir() string { return s.dir }

// Reserve returns a temporary path which Commit will rename to name. The
// file itself is not created.
func (s *Staging) Reserve(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return "", errors.New("staging already committed or aborted")
	}
	final := filepath.Join(s.dir, name)
	for _, st := range s.staged {
		if st.final == final {
			return "", errors.Errorf("%s staged twice", name)
		}
	}
	f, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", errors.Wrapf(err, "reserving %s", name)
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "closing %s", tmp)
	}
	if err := os.Remove(tmp); err != nil {
		return "", errors.Wrapf(err, "clearing %s", tmp)
	}
	s.staged = append(s.staged, staged{tmp: tmp, final: final})
	return tmp, nil
}

// Create reserves name and opens its temporary file for writing.
func (s *Staging) Create(name string) (*os.File, error) {
	tmp, err := s.Reserve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(tmp)
	return f, errors.Wrapf(err, "creating %s", tmp)
}

// Names returns the final names of the staged files in the order they were
// reserved.
func (s *Staging) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.staged))
	for i, st := range s.staged {
		names[i] = filepath.Base(st.final)
	}
	return names
}

// Commit renames every staged file to its final name. Reserved paths which
// were never written are skipped.
func (s *Staging) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.New("staging already committed or aborted")
	}
	s.done = true
	for i, st := range s.staged {
		if _, err := os.Stat(st.tmp); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(st.tmp, st.final); err != nil {
			s.remove(s.staged[i:])
			return errors.Wrapf(err, "renaming %s", st.tmp)
		}
	}
	return nil
}

// Abort removes every staged file.
func (s *Staging) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	return s.remove(s.staged)
}

func (s *Staging) remove(sts []staged) error {
	var first error
	for _, st := range sts {
		if err := os.Remove(st.tmp); err != nil && !os.IsNotExist(err) && first == nil {
			first = errors.Wrapf(err, "removing %s", st.tmp)
		}
	}
	return first
}
