package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ipfeed/internal/api"
	"grimm.is/ipfeed/internal/audit"
	"grimm.is/ipfeed/internal/clock"
	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/logging"
	"grimm.is/ipfeed/internal/publisher"
	"grimm.is/ipfeed/internal/storage"
)

func startDaemon(t *testing.T) string {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))

	auditStore, err := audit.NewStore(":memory:", 30, clk)
	require.NoError(t, err)
	t.Cleanup(func() { auditStore.Close() })

	pub, err := publisher.Open(context.Background(), storage.NewMemoryBackend(), publisher.Options{
		Reduce:  feed.ReduceOptions{Mode: feed.Aggressive},
		Auditor: auditStore,
		Logger:  logging.Discard(),
		Clock:   clk,
	})
	require.NoError(t, err)

	srv := api.NewServer(api.ServerOptions{Publisher: pub, Audit: auditStore, Logger: logging.Discard(), Clock: clk})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, apiURL string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", apiURL}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFeedctl_Workflow(t *testing.T) {
	apiURL := startDaemon(t)

	list := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(list, []byte("10.0.0.0/24\n10.0.1.0/24\n10.0.0.5\n"), 0o644))

	out, err := run(t, apiURL, "submit", "--file", list)
	require.NoError(t, err)
	assert.Contains(t, out, "published version 1 (1 entries")

	out, err = run(t, apiURL, "add", "2001:db8::/48", "--comment", "lab")
	require.NoError(t, err)
	assert.Contains(t, out, "published version 2 (2 entries")

	_, err = run(t, apiURL, "add", "10.0.0.7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")

	out, err = run(t, apiURL, "remove", "10.0.1.0/24", "--base", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "published version 3")

	_, err = run(t, apiURL, "remove", "10.0.0.0/24", "--base", "2")
	require.Error(t, err, "stale base")

	out, err = run(t, apiURL, "show")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "10.0.0.0/24\n2001:db8::/48\n"), out)

	out, err = run(t, apiURL, "show", "--version", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "# feed-version: 1\n")
	assert.Contains(t, out, "\n10.0.0.0/23\n")

	out, err = run(t, apiURL, "versions")
	require.NoError(t, err)
	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "*")

	out, err = run(t, apiURL, "diff", "--from", "2", "--to", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "10.0.0.0/23")
	assert.Contains(t, out, "10.0.0.0/24")

	out, err = run(t, apiURL, "diff", "--from", "2", "--to", "3", "--unified")
	require.NoError(t, err)
	assert.Contains(t, out, "--- feed@2")
	assert.Contains(t, out, "-10.0.0.0/23\n")
	assert.Contains(t, out, "+10.0.0.0/24\n")

	out, err = run(t, apiURL, "rollback", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "published version 4 (1 entries")

	out, err = run(t, apiURL, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:   4")

	out, err = run(t, apiURL, "audit", "--operation", "add")
	require.NoError(t, err)
	assert.Contains(t, out, "add")
	assert.Contains(t, out, "+1/-0")
}

func TestFeedctl_ArgumentErrors(t *testing.T) {
	apiURL := startDaemon(t)

	_, err := run(t, apiURL, "submit")
	assert.Error(t, err, "--file is required")

	_, err = run(t, apiURL, "rollback", "zero")
	assert.Error(t, err)

	_, err = run(t, apiURL, "diff", "--from", "1")
	assert.Error(t, err)

	_, err = run(t, apiURL, "add")
	assert.Error(t, err)
}

func TestFeedctl_SubmitStdin(t *testing.T) {
	apiURL := startDaemon(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("192.0.2.1\n192.0.2.9\n"))
	root.SetArgs([]string{"--api", apiURL, "submit", "-f", "-"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "published version 1 (2 entries")
}
