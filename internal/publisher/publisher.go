// Package publisher runs the edit pipeline and owns the published feed.
//
// A submission moves through validate, reduce, commit and render before the
// new document replaces the published one with a single atomic store.
// Readers of GetPublished never block and never see a partial document.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"grimm.is/ipfeed/internal/audit"
	"grimm.is/ipfeed/internal/clock"
	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/logging"
	"grimm.is/ipfeed/internal/metrics"
	"grimm.is/ipfeed/internal/notify"
	"grimm.is/ipfeed/internal/render"
	"grimm.is/ipfeed/internal/versions"
)

// Auditor records one row per publish.
type Auditor interface {
	Record(ctx context.Context, evt audit.Event) error
}

// Options configures a Publisher.
type Options struct {
	Reduce    feed.ReduceOptions
	Store     versions.Options
	Notifiers []notify.Notifier
	Auditor   Auditor
	Logger    *logging.Logger
	Metrics   *metrics.Registry
	Clock     clock.Clock
}

// Publisher is the single writer of one feed.
type Publisher struct {
	store   *versions.Store
	opts    Options
	log     *logging.Logger
	metrics *metrics.Registry
	clock   clock.Clock

	running   atomic.Bool
	state     atomic.Int32
	published atomic.Pointer[render.Document]

	cacheMu sync.Mutex
	cache   map[uint64]*render.Document
}

// Open loads history from backend and publishes the current snapshot, if any.
func Open(ctx context.Context, backend versions.Backend, opts Options) (*Publisher, error) {
	p := &Publisher{
		opts:    opts,
		log:     logging.OrDefault(opts.Logger).WithComponent("publisher"),
		metrics: opts.Metrics,
		clock:   clock.OrReal(opts.Clock),
		cache:   make(map[uint64]*render.Document),
	}
	if p.metrics == nil {
		p.metrics = metrics.Get()
	}

	sopts := opts.Store
	if sopts.Clock == nil {
		sopts.Clock = p.clock
	}
	if sopts.Logger == nil {
		sopts.Logger = opts.Logger
	}
	onPrune := sopts.OnPrune
	sopts.OnPrune = func(v uint64) {
		p.evict(v)
		p.metrics.PrunedVersions.Inc()
		if onPrune != nil {
			onPrune(v)
		}
	}

	store, err := versions.Open(ctx, backend, sopts)
	if err != nil {
		return nil, fmt.Errorf("open version store: %w", err)
	}
	p.store = store

	if cur := store.Current(); cur != nil {
		doc := p.documentFor(cur)
		p.published.Store(doc)
		p.state.Store(int32(StatePublished))
		p.metrics.RecordPublish(cur.Version(), cur.Count(feed.V4), cur.Count(feed.V6), doc.Lines, p.clock.Now())
		p.log.Info("published stored snapshot", "version", cur.Version(), "checksum", doc.Checksum)
	}
	return p, nil
}

// Store exposes the version history for read-only use.
func (p *Publisher) Store() *versions.Store { return p.store }

// State returns the stage of the latest submission.
func (p *Publisher) State() State { return State(p.state.Load()) }

func (p *Publisher) setState(s State) { p.state.Store(int32(s)) }

// GetPublished returns the live document.
func (p *Publisher) GetPublished() (*render.Document, error) {
	doc := p.published.Load()
	if doc == nil {
		return nil, ErrNotPublished
	}
	return doc, nil
}

// DocumentAt renders a retained historical version.
func (p *Publisher) DocumentAt(version uint64) (*render.Document, error) {
	p.cacheMu.Lock()
	doc, ok := p.cache[version]
	p.cacheMu.Unlock()
	if ok {
		return doc, nil
	}

	snap, err := p.store.At(version)
	if err != nil {
		return nil, err
	}
	return p.documentFor(snap), nil
}

func (p *Publisher) documentFor(snap *versions.Snapshot) *render.Document {
	doc := render.Render(snap)
	p.cacheMu.Lock()
	p.cache[snap.Version()] = doc
	p.cacheMu.Unlock()
	return doc
}

func (p *Publisher) evict(version uint64) {
	p.cacheMu.Lock()
	delete(p.cache, version)
	p.cacheMu.Unlock()
}

// SubmitOption adjusts a single submission.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	base    uint64
	hasBase bool
	batch   string
}

// WithBaseVersion rejects the submission with ErrConcurrentCommit unless
// the current version is still v. Zero means "nothing published yet".
func WithBaseVersion(v uint64) SubmitOption {
	return func(o *submitOptions) {
		o.base = v
		o.hasBase = true
	}
}

// WithBatchID sets the correlation id recorded in logs, audit and events.
func WithBatchID(id string) SubmitOption {
	return func(o *submitOptions) { o.batch = id }
}

// SubmitEdits replaces the list with raws. Any invalid entry rejects the
// whole batch and leaves the published feed untouched.
func (p *Publisher) SubmitEdits(ctx context.Context, raws []feed.RawEntry, opts ...SubmitOption) (*versions.Snapshot, error) {
	return p.run(ctx, "submit", opts, nil, func(*versions.Snapshot) ([]feed.Entry, error) {
		return feed.NormalizeAll(raws)
	})
}

// Add lists one more entry on top of the current snapshot.
func (p *Publisher) Add(ctx context.Context, raw feed.RawEntry, opts ...SubmitOption) (*versions.Snapshot, error) {
	details := map[string]any{"entry": raw.Text}
	return p.run(ctx, "add", opts, details, func(cur *versions.Snapshot) ([]feed.Entry, error) {
		e, err := feed.Normalize(raw.Text, raw.Family)
		if err != nil {
			return nil, err
		}
		e.Comment = raw.Comment

		existing := entriesOf(cur)
		if covered(existing, e) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyListed, e)
		}
		return append(existing, e), nil
	})
}

// Remove delists every address covered by raw. Entries that partly overlap
// are cut down to what remains.
func (p *Publisher) Remove(ctx context.Context, raw feed.RawEntry, opts ...SubmitOption) (*versions.Snapshot, error) {
	details := map[string]any{"entry": raw.Text}
	return p.run(ctx, "remove", opts, details, func(cur *versions.Snapshot) ([]feed.Entry, error) {
		e, err := feed.Normalize(raw.Text, raw.Family)
		if err != nil {
			return nil, err
		}

		kept, hit, err := subtract(entriesOf(cur), e)
		if err != nil {
			return nil, err
		}
		if !hit {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, e)
		}
		return kept, nil
	})
}

// Rollback publishes the entries of an older version as a new version.
func (p *Publisher) Rollback(ctx context.Context, version uint64, opts ...SubmitOption) (*versions.Snapshot, error) {
	details := map[string]any{"target": version}
	return p.run(ctx, "rollback", opts, details, func(*versions.Snapshot) ([]feed.Entry, error) {
		old, err := p.store.At(version)
		if err != nil {
			return nil, err
		}
		return old.Entries().All(), nil
	})
}

func entriesOf(snap *versions.Snapshot) []feed.Entry {
	if snap == nil {
		return nil
	}
	return snap.Entries().All()
}

// run is the shared pipeline. build turns the current snapshot into the
// full list of entries the next snapshot should hold.
func (p *Publisher) run(
	ctx context.Context,
	op string,
	opts []SubmitOption,
	details map[string]any,
	build func(cur *versions.Snapshot) ([]feed.Entry, error),
) (*versions.Snapshot, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.metrics.RecordSubmission(op, "conflict", 0)
		return nil, ErrConcurrentCommit
	}
	defer p.running.Store(false)

	so := submitOptions{}
	for _, o := range opts {
		o(&so)
	}
	if so.batch == "" {
		so.batch = uuid.NewString()
	}

	start := p.clock.Now()
	log := p.log.WithFields(map[string]any{"operation": op, "batch": so.batch})

	p.setState(StateValidating)
	cur := p.store.Current()
	var curVersion uint64
	if cur != nil {
		curVersion = cur.Version()
	}
	if so.hasBase && so.base != curVersion {
		err := fmt.Errorf("%w: based on version %d, current is %d", ErrConcurrentCommit, so.base, curVersion)
		p.fail(log, op, start, err)
		return nil, err
	}

	entries, err := build(cur)
	if err != nil {
		p.fail(log, op, start, err)
		return nil, err
	}

	p.setState(StateReducing)
	reduced := feed.Reduce(entries, p.opts.Reduce)

	p.setState(StateCommitting)
	snap, err := p.store.Commit(ctx, reduced, versions.IfCurrent(curVersion))
	if err != nil {
		p.fail(log, op, start, err)
		return nil, err
	}

	p.setState(StateRendering)
	doc := p.documentFor(snap)
	p.published.Store(doc)
	p.setState(StatePublished)

	now := p.clock.Now()
	p.metrics.RecordSubmission(op, "published", now.Sub(start))
	p.metrics.RecordPublish(snap.Version(), snap.Count(feed.V4), snap.Count(feed.V6), doc.Lines, now)
	log.Info("feed published", "version", snap.Version(), "entries", snap.Len(), "lines", doc.Lines, "checksum", doc.Checksum)

	p.afterPublish(context.WithoutCancel(ctx), log, op, so.batch, details, cur, snap, doc, now)
	return snap, nil
}

func (p *Publisher) fail(log *logging.Logger, op string, start time.Time, err error) {
	p.setState(StateFailed)

	result := "failed"
	switch {
	case errors.Is(err, feed.ErrInvalidFormat):
		result = "rejected"
	case errors.Is(err, ErrConcurrentCommit):
		result = "conflict"
	case errors.Is(err, ErrAlreadyListed), errors.Is(err, ErrEntryNotFound), errors.Is(err, versions.ErrNotFound):
		result = "noop"
	}
	p.metrics.RecordSubmission(op, result, p.clock.Since(start))
	log.Warn("submission failed", "result", result, "error", err)
}

// afterPublish runs best-effort side effects. Failures are logged and
// counted but never undo the publish.
func (p *Publisher) afterPublish(
	ctx context.Context,
	log *logging.Logger,
	op, batch string,
	details map[string]any,
	prev, snap *versions.Snapshot,
	doc *render.Document,
	at time.Time,
) {
	evt := notify.Event{
		Version:     snap.Version(),
		Checksum:    doc.Checksum,
		Operation:   op,
		Batch:       batch,
		V4Entries:   snap.Count(feed.V4),
		V6Entries:   snap.Count(feed.V6),
		Lines:       doc.Lines,
		PublishedAt: at,
	}
	for _, n := range p.opts.Notifiers {
		if err := n.Notify(ctx, evt); err != nil {
			p.metrics.RecordSideEffectFailure("notify")
			log.Error("publish notification failed", "version", snap.Version(), "error", err)
		}
	}

	rec := audit.Event{
		Timestamp: at,
		Operation: op,
		Batch:     batch,
		Version:   snap.Version(),
		Checksum:  doc.Checksum,
		Details:   details,
	}
	if prev != nil {
		d := versions.Compare(prev, snap)
		rec.Previous = prev.Version()
		rec.Added, rec.Removed = len(d.Added), len(d.Removed)
	} else {
		rec.Added = snap.Len()
	}

	log.Audit(op, "feed", map[string]any{
		"version": snap.Version(),
		"added":   rec.Added,
		"removed": rec.Removed,
	})

	if p.opts.Auditor != nil {
		if err := p.opts.Auditor.Record(ctx, rec); err != nil {
			p.metrics.RecordSideEffectFailure("audit")
			log.Error("audit record failed", "version", snap.Version(), "error", err)
		}
	}
}
