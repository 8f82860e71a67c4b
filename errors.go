package jpdata

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error is a constant error type.
type Error string

func (e Error) Error() string { return string(e) }

// ErrNotSequence is the reason given when a collection is not a list of
// records.
const ErrNotSequence = Error("collection is not a sequence of records")

// MalformedInputError means an input collection is structurally invalid. It
// is fatal: nothing is exported once it has been returned.
type MalformedInputError struct {
	Collection string
	// Index of the offending record, or -1 when the collection as a whole is
	// unusable.
	Index  int
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed %s collection: %s", e.Collection, e.Reason)
	}
	return fmt.Sprintf("malformed %s collection: record %d: %s", e.Collection, e.Index, e.Reason)
}

// DuplicateKeyError means a lookup collection holds the same identity code
// more than once.
type DuplicateKeyError struct {
	Collection string
	Key        string
	// First and Second are the positions of the two records sharing Key.
	First, Second int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q in %s collection (records %d and %d)", e.Key, e.Collection, e.First, e.Second)
}

// IsMalformedInput reports whether the cause of err is a MalformedInputError.
func IsMalformedInput(err error) bool {
	_, ok := errors.Cause(err).(*MalformedInputError)
	return ok
}

// IsDuplicateKey reports whether the cause of err is a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	_, ok := errors.Cause(err).(*DuplicateKeyError)
	return ok
}

// errorList collects the errors from operations which should all be attempted
// even when some of them fail.
type errorList []error

func (errs errorList) Error() string {
	errstrings := make([]string, len(errs))
	for i, err := range errs {
		errstrings[i] = err.Error()
	}
	return strings.Join(errstrings, "; ")
}

func (errs errorList) errOrNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
