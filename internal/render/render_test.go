package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ipfeed/internal/clock"
	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/logging"
	"grimm.is/ipfeed/internal/versions"
)

type memBackend map[uint64][]byte

func (m memBackend) Load(_ context.Context, v uint64) ([]byte, error) {
	d, ok := m[v]
	if !ok {
		return nil, versions.ErrNotFound
	}
	return d, nil
}

func (m memBackend) Save(_ context.Context, v uint64, data []byte) error {
	m[v] = data
	return nil
}

func (m memBackend) ListVersions(context.Context) ([]uint64, error) {
	out := make([]uint64, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	return out, nil
}

func (m memBackend) Delete(_ context.Context, v uint64) error {
	delete(m, v)
	return nil
}

func commit(t *testing.T, b memBackend, mode feed.Mode, raws ...string) *versions.Snapshot {
	t.Helper()
	store, err := versions.Open(context.Background(), b, versions.Options{
		Clock:  clock.NewMockClock(time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))),
		Logger: logging.Discard(),
	})
	require.NoError(t, err)

	entries := make([]feed.Entry, 0, len(raws))
	for _, r := range raws {
		entries = append(entries, feed.MustNormalize(r))
	}
	snap, err := store.Commit(context.Background(), feed.Reduce(entries, feed.ReduceOptions{Mode: mode}))
	require.NoError(t, err)
	return snap
}

func TestRender_Format(t *testing.T) {
	snap := commit(t, memBackend{}, feed.Strict,
		"2001:DB8::/32", "10.0.0.1-10.0.0.6", "192.168.0.7/24", "10.1.0.1")

	doc := Render(snap)

	want := "# feed-version: 1\n" +
		"# generated-at: 2026-03-04T04:06:07Z\n" +
		"10.0.0.1\n" +
		"10.0.0.2/31\n" +
		"10.0.0.4/31\n" +
		"10.0.0.6\n" +
		"10.1.0.1\n" +
		"192.168.0.0/24\n" +
		"2001:db8::/32\n"
	assert.Equal(t, want, string(doc.Body))
	assert.Equal(t, uint64(1), doc.Version)
	assert.Equal(t, 7, doc.Lines)

	sum := sha256.Sum256([]byte(want))
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.Checksum)
	assert.Equal(t, `"`+doc.Checksum+`"`, doc.ETag())
}

func TestRender_Deterministic(t *testing.T) {
	raws := []string{"10.0.0.0/24", "10.0.1.0/24", "2001:db8::1", "172.16.0.1-172.16.0.9"}
	a := commit(t, memBackend{}, feed.Aggressive, raws...)
	b := commit(t, memBackend{}, feed.Aggressive, raws[3], raws[2], raws[1], raws[0])

	first, second := Render(a), Render(b)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.Equal(t, first.Checksum, Render(a).Checksum)
}

func TestRender_Empty(t *testing.T) {
	doc := Render(commit(t, memBackend{}, feed.Strict))
	assert.Equal(t, "# feed-version: 1\n# generated-at: 2026-03-04T04:06:07Z\n", string(doc.Body))
	assert.Zero(t, doc.Lines)
}

func TestDocument_MatchesETag(t *testing.T) {
	doc := &Document{Checksum: "abc"}

	assert.True(t, doc.MatchesETag(`"abc"`))
	assert.True(t, doc.MatchesETag(`W/"abc"`))
	assert.True(t, doc.MatchesETag(`"zzz", "abc"`))
	assert.True(t, doc.MatchesETag("*"))
	assert.False(t, doc.MatchesETag(`"abd"`))
	assert.False(t, doc.MatchesETag(""))
}
