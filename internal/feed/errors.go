package feed

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat is matched by every normalization failure.
var ErrInvalidFormat = errors.New("invalid format")

// FormatError reports why a raw entry was rejected.
type FormatError struct {
	Raw    string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid entry %q: %s", e.Raw, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return ErrInvalidFormat
}

func formatErr(raw, reason string, args ...any) error {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &FormatError{Raw: raw, Reason: reason}
}
