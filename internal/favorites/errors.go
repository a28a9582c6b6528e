package favorites

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingID is returned by Add for a book without an id
	ErrMissingID = errors.New("favorites: book id is empty")
	// ErrCorruptState marks a persisted favorites payload that could not be decoded
	ErrCorruptState = errors.New("favorites: persisted list is corrupt")
)

// PersistError reports a failed favorites write. The operation did not happen.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("favorites %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
