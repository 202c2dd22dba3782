// Package versions keeps the monotonic snapshot history of the feed.
//
// Readers never block: the current snapshot and the history map are
// published through atomic pointers and replaced copy-on-write. Writers
// are serialized by a fail-fast flag rather than a queue.
package versions

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"grimm.is/ipfeed/internal/clock"
	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/logging"
)

// Options configures a Store.
type Options struct {
	// KeepLast bounds retained history. Zero keeps everything.
	KeepLast int
	// OnPrune is called once per version removed by retention.
	OnPrune func(version uint64)
	Clock   clock.Clock
	Logger  *logging.Logger
}

// Store is the version history over a Backend.
type Store struct {
	backend Backend
	opts    Options
	clock   clock.Clock
	log     *logging.Logger

	writing atomic.Bool
	next    uint64 // guarded by writing

	current atomic.Pointer[Snapshot]
	history atomic.Pointer[map[uint64]*Snapshot]
	histMu  sync.Mutex // serializes history rewrites
}

// Open loads retained history from backend.
func Open(ctx context.Context, backend Backend, opts Options) (*Store, error) {
	s := &Store{
		backend: backend,
		opts:    opts,
		clock:   clock.OrReal(opts.Clock),
		log:     logging.OrDefault(opts.Logger).WithComponent("versions"),
		next:    1,
	}

	list, err := backend.ListVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list versions: %w", ErrIO, err)
	}

	hist := make(map[uint64]*Snapshot, len(list))
	var latest *Snapshot
	for _, v := range list {
		data, err := backend.Load(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("%w: load version %d: %w", ErrIO, v, err)
		}
		snap, err := Decode(data)
		if err != nil {
			return nil, err
		}
		if snap.Version() != v {
			return nil, fmt.Errorf("%w: version %d stored under key %d", ErrCorrupt, snap.Version(), v)
		}
		hist[v] = snap
		if latest == nil || v > latest.Version() {
			latest = snap
		}
	}

	s.history.Store(&hist)
	if latest != nil {
		s.current.Store(latest)
		s.next = latest.Version() + 1
	}

	s.log.Info("history loaded", "versions", len(hist), "next", s.next)
	return s, nil
}

// CommitOption adjusts a single Commit.
type CommitOption func(*commitOptions)

type commitOptions struct {
	base    uint64
	hasBase bool
}

// IfCurrent makes Commit fail with ErrConcurrentCommit unless the current
// version is still base. Zero means "no snapshot yet".
func IfCurrent(base uint64) CommitOption {
	return func(o *commitOptions) {
		o.base = base
		o.hasBase = true
	}
}

// Commit persists sets as a new snapshot and makes it current.
//
// Only one commit runs at a time; a second caller gets ErrConcurrentCommit
// immediately. The version is consumed even if the backend write fails.
func (s *Store) Commit(ctx context.Context, sets feed.Result, opts ...CommitOption) (*Snapshot, error) {
	if !s.writing.CompareAndSwap(false, true) {
		return nil, ErrConcurrentCommit
	}
	defer s.writing.Store(false)

	var co commitOptions
	for _, o := range opts {
		o(&co)
	}
	if co.hasBase {
		if cur := s.currentVersion(); cur != co.base {
			return nil, fmt.Errorf("%w: based on version %d, current is %d", ErrConcurrentCommit, co.base, cur)
		}
	}

	version, err := s.allocate(ctx)
	if err != nil {
		return nil, &CommitError{Err: err}
	}

	snap := newSnapshot(version, s.clock.Now(), sets)
	data, err := Encode(snap)
	if err != nil {
		return nil, &CommitError{Version: version, Err: err}
	}
	if err := s.backend.Save(ctx, version, data); err != nil {
		s.log.Error("snapshot save failed", "version", version, "error", err)
		return nil, &CommitError{Version: version, Err: err}
	}

	s.updateHistory(func(h map[uint64]*Snapshot) { h[version] = snap })
	s.current.Store(snap)

	s.log.Info("snapshot committed", "version", version, "entries", snap.Len(), "checksum", snap.Checksum())

	if _, err := s.Prune(ctx); err != nil {
		s.log.Warn("retention after commit failed", "version", version, "error", err)
	}
	return snap, nil
}

func (s *Store) allocate(ctx context.Context) (uint64, error) {
	v := s.next
	if seq, ok := s.backend.(Sequencer); ok {
		n, err := seq.NextVersion(ctx)
		if err != nil {
			return 0, err
		}
		v = max(v, n)
	}
	s.next = v + 1
	return v, nil
}

func (s *Store) currentVersion() uint64 {
	if cur := s.current.Load(); cur != nil {
		return cur.Version()
	}
	return 0
}

func (s *Store) updateHistory(fn func(map[uint64]*Snapshot)) {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	next := maps.Clone(*s.history.Load())
	fn(next)
	s.history.Store(&next)
}

// Current returns the latest snapshot, or nil before the first commit.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// At returns a retained snapshot.
func (s *Store) At(version uint64) (*Snapshot, error) {
	snap, ok := (*s.history.Load())[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, version)
	}
	return snap, nil
}

// Versions returns retained versions in ascending order.
func (s *Store) Versions() []uint64 {
	return slices.Sorted(maps.Keys(*s.history.Load()))
}

// Prune applies the retention policy and returns the removed versions.
// The current snapshot is never removed.
func (s *Store) Prune(ctx context.Context) ([]uint64, error) {
	keep := s.opts.KeepLast
	if keep <= 0 {
		return nil, nil
	}

	all := s.Versions()
	if len(all) <= keep {
		return nil, nil
	}
	cur := s.currentVersion()

	var (
		pruned []uint64
		errs   []error
	)
	for _, v := range all[:len(all)-keep] {
		if v == cur {
			continue
		}
		if err := s.backend.Delete(ctx, v); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%w: delete version %d: %w", ErrIO, v, err))
			continue
		}
		s.updateHistory(func(h map[uint64]*Snapshot) { delete(h, v) })
		pruned = append(pruned, v)
		if s.opts.OnPrune != nil {
			s.opts.OnPrune(v)
		}
	}

	if len(pruned) > 0 {
		s.log.Debug("pruned history", "versions", pruned)
	}
	return pruned, errors.Join(errs...)
}
