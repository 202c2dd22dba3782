// Package storage provides the persistence backends for snapshot history.
//
// Every backend stores opaque encoded snapshots keyed by version and
// satisfies versions.Backend. The durable backends also implement
// versions.Sequencer so version numbers survive restarts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grimm.is/ipfeed/internal/clock"
	"grimm.is/ipfeed/internal/versions"
)

// Backend is a versions.Backend that owns resources.
type Backend interface {
	versions.Backend
	Close() error
}

// Kind names a backend implementation.
const (
	KindMemory   = "memory"
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// PoolOptions tunes the postgres connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Options selects and configures a backend.
type Options struct {
	Kind  string
	Path  string // file directory or sqlite database path
	DSN   string // postgres
	Pool  PoolOptions
	Clock clock.Clock
}

// Open creates the backend named by opts.Kind.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Kind {
	case "", KindMemory:
		return NewMemoryBackend(), nil
	case KindFile:
		return NewFileBackend(opts.Path)
	case KindSQLite:
		return NewSQLiteBackend(ctx, opts.Path, opts.Clock)
	case KindPostgres:
		return NewPostgresBackend(ctx, opts.DSN, opts.Pool)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Kind)
	}
}

func notFound(version uint64) error {
	return fmt.Errorf("%w: %d", versions.ErrNotFound, version)
}
