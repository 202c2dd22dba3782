package versions

import "context"

// Backend persists encoded snapshots keyed by version.
//
// Load and Delete return an error matching ErrNotFound for unknown versions.
// ListVersions returns versions in any order.
type Backend interface {
	Load(ctx context.Context, version uint64) ([]byte, error)
	Save(ctx context.Context, version uint64, data []byte) error
	ListVersions(ctx context.Context) ([]uint64, error)
	Delete(ctx context.Context, version uint64) error
}

// Sequencer is implemented by backends that can allocate versions durably,
// so numbers burned by failed saves stay burned across restarts.
type Sequencer interface {
	NextVersion(ctx context.Context) (uint64, error)
}
