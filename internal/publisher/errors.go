package publisher

import (
	"errors"

	"grimm.is/ipfeed/internal/versions"
)

var (
	ErrNotPublished  = errors.New("feed has not been published")
	ErrAlreadyListed = errors.New("entry is already listed")
	ErrEntryNotFound = errors.New("entry is not listed")

	// ErrConcurrentCommit is returned when another submission is in flight
	// or the base version is stale.
	ErrConcurrentCommit = versions.ErrConcurrentCommit
)
