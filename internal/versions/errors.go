package versions

import (
	"errors"
	"fmt"
)

var (
	ErrConcurrentCommit = errors.New("concurrent commit")
	ErrNotFound         = errors.New("version not found")
	ErrIO               = errors.New("storage i/o error")
	ErrCorrupt          = errors.New("corrupt snapshot payload")
)

// CommitError is returned when a snapshot could not be persisted. The
// version it was allocated is burned and will not be handed out again.
type CommitError struct {
	Version uint64
	Err     error
}

func (e *CommitError) Error() string {
	if e.Version == 0 {
		return fmt.Sprintf("commit: allocate version: %v", e.Err)
	}
	return fmt.Sprintf("commit version %d: %v", e.Version, e.Err)
}

// Unwrap exposes both ErrIO and the backend cause to errors.Is.
func (e *CommitError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}
