package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ipfeed/internal/clock"
)

func newTestStore(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	s, err := NewStore(":memory:", 30, clk)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMockClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	s := newTestStore(t, mock)

	require.NoError(t, s.Record(ctx, Event{Operation: "submit", Batch: "b1", Version: 1, Added: 3, Checksum: "c1"}))
	mock.Advance(time.Minute)
	require.NoError(t, s.Record(ctx, Event{
		Operation: "remove", Version: 2, Previous: 1, Removed: 1, Checksum: "c2",
		Details: map[string]any{"entry": "10.0.0.1"},
	}))
	mock.Advance(time.Minute)
	require.NoError(t, s.Record(ctx, Event{Operation: "submit", Version: 3, Previous: 2, Checksum: "c3"}))

	all, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(3), all[0].Version, "newest first")
	assert.Equal(t, "10.0.0.1", all[1].Details["entry"])
	assert.Equal(t, "b1", all[2].Batch)
	assert.Equal(t, time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC), all[2].Timestamp)

	submits, err := s.Query(ctx, Filter{Operation: "submit"})
	require.NoError(t, err)
	assert.Len(t, submits, 2)

	recent, err := s.Query(ctx, Filter{Since: time.Date(2026, 4, 1, 10, 1, 0, 0, time.UTC), Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, uint64(3), recent[0].Version)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := newTestStore(t, mock)

	require.NoError(t, s.Record(ctx, Event{Operation: "submit", Version: 1, Checksum: "a"}))
	mock.Advance(40 * 24 * time.Hour)
	require.NoError(t, s.Record(ctx, Event{Operation: "submit", Version: 2, Checksum: "b"}))

	removed, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	left, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, uint64(2), left[0].Version)
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/audit.db"
	s, err := NewStore(path, 0, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 90, s.retentionDays)
}
