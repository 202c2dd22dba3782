package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/render"
)

func TestHandleFeed_NotPublished(t *testing.T) {
	env := newTestEnv(t, feed.Strict)

	rr := env.do(http.MethodGet, "/feed", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleFeed(t *testing.T) {
	env := newTestEnv(t, feed.Aggressive)
	env.submit(t, "10.0.0.0/24", "10.0.1.0/24", "10.0.0.5", "2001:db8::1")

	rr := env.do(http.MethodGet, "/feed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, render.ContentType, rr.Header().Get("Content-Type"))
	assert.Equal(t, "1", rr.Header().Get("X-Feed-Version"))

	want := "# feed-version: 1\n" +
		"# generated-at: 2026-07-01T09:00:00Z\n" +
		"10.0.0.0/23\n" +
		"2001:db8::1\n"
	assert.Equal(t, want, rr.Body.String())

	doc, err := env.pub.GetPublished()
	require.NoError(t, err)
	assert.Equal(t, doc.ETag(), rr.Header().Get("ETag"))
}

func TestHandleFeed_ConditionalGet(t *testing.T) {
	env := newTestEnv(t, feed.Strict)
	env.submit(t, "192.0.2.1")

	first := env.do(http.MethodGet, "/feed", nil)
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"same etag", etag, http.StatusNotModified},
		{"weak etag", "W/" + etag, http.StatusNotModified},
		{"list", `"stale", ` + etag, http.StatusNotModified},
		{"wildcard", "*", http.StatusNotModified},
		{"stale", `"0000"`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodGet, "/feed", nil, "If-None-Match", tt.header)
			assert.Equal(t, tt.want, rr.Code)
			assert.Equal(t, etag, rr.Header().Get("ETag"))
			if tt.want == http.StatusNotModified {
				assert.Empty(t, rr.Body.String())
			}
		})
	}

	// A new version invalidates the old tag.
	env.submit(t, "192.0.2.2")
	rr := env.do(http.MethodGet, "/feed", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("X-Feed-Version"))
}

func TestHandleFeedVersion(t *testing.T) {
	env := newTestEnv(t, feed.Strict)
	env.submit(t, "192.0.2.1")
	env.submit(t, "192.0.2.2")

	rr := env.do(http.MethodGet, "/feed/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-Feed-Version"))
	assert.Contains(t, rr.Body.String(), "\n192.0.2.1\n")
	assert.NotContains(t, rr.Body.String(), "192.0.2.2")

	rr = env.do(http.MethodGet, "/feed/9", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(http.MethodGet, "/feed/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
