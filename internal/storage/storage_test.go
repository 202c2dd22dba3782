package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ipfeed/internal/clock"
	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/logging"
	"grimm.is/ipfeed/internal/versions"
)

// backendContract exercises the behaviour every Backend must share.
func backendContract(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	list, err := b.ListVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = b.Load(ctx, 1)
	assert.ErrorIs(t, err, versions.ErrNotFound)

	require.NoError(t, b.Save(ctx, 2, []byte("two")))
	require.NoError(t, b.Save(ctx, 10, []byte("ten")))
	require.NoError(t, b.Save(ctx, 1, []byte("one")))

	got, err := b.Load(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("ten"), got)

	list, err = b.ListVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 10}, list)

	require.NoError(t, b.Save(ctx, 2, []byte("two again")))
	got, err = b.Load(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("two again"), got)

	require.NoError(t, b.Delete(ctx, 1))
	assert.ErrorIs(t, b.Delete(ctx, 1), versions.ErrNotFound)

	list, err = b.ListVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 10}, list)
}

// storeRoundTrip commits through a versions.Store and reopens it.
func storeRoundTrip(t *testing.T, open func() Backend) {
	t.Helper()
	ctx := context.Background()
	opts := versions.Options{
		Clock:  clock.NewMockClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
		Logger: logging.Discard(),
	}

	b := open()
	store, err := versions.Open(ctx, b, opts)
	require.NoError(t, err)

	for i := range 3 {
		e := feed.MustNormalize(fmt.Sprintf("10.0.%d.0/24", i))
		_, err := store.Commit(ctx, feed.Reduce([]feed.Entry{e}, feed.ReduceOptions{}))
		require.NoError(t, err)
	}
	want := store.Current()
	require.NoError(t, b.Close())

	b = open()
	defer b.Close()
	reopened, err := versions.Open(ctx, b, opts)
	require.NoError(t, err)
	require.NotNil(t, reopened.Current())
	assert.Equal(t, want.Version(), reopened.Current().Version())
	assert.Equal(t, want.Checksum(), reopened.Current().Checksum())

	snap, err := reopened.Commit(ctx, feed.Result{})
	require.NoError(t, err)
	assert.Greater(t, snap.Version(), want.Version())
}

func TestMemoryBackend(t *testing.T) {
	backendContract(t, NewMemoryBackend())
}

func TestMemoryBackend_CopiesData(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	data := []byte("abc")
	require.NoError(t, b.Save(ctx, 1, data))
	data[0] = 'x'

	got, err := b.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestFileBackend(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	backendContract(t, b)
}

func TestFileBackend_StoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storeRoundTrip(t, func() Backend {
		b, err := NewFileBackend(dir)
		require.NoError(t, err)
		return b
	})
}

func TestFileBackend_Sequence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	for want := uint64(1); want <= 3; want++ {
		got, err := b.NextVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	again, err := NewFileBackend(dir)
	require.NoError(t, err)
	got, err := again.NextVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got)
}

func TestSQLiteBackend(t *testing.T) {
	b, err := NewSQLiteBackend(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer b.Close()
	backendContract(t, b)
}

func TestSQLiteBackend_StoreRoundTrip(t *testing.T) {
	path := t.TempDir() + "/feed.db"
	storeRoundTrip(t, func() Backend {
		b, err := NewSQLiteBackend(context.Background(), path, nil)
		require.NoError(t, err)
		return b
	})
}

func TestSQLiteBackend_Sequence(t *testing.T) {
	ctx := context.Background()
	b, err := NewSQLiteBackend(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer b.Close()

	first, err := b.NextVersion(ctx)
	require.NoError(t, err)
	second, err := b.NextVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = Open(ctx, Options{Kind: KindFile, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	_, err = Open(ctx, Options{Kind: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(ctx, Options{Kind: KindPostgres})
	assert.Error(t, err)
}
