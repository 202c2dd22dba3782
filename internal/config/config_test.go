package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHCL(t *testing.T) {
	t.Setenv("IPFEED_TEST_DSN", "postgres://feed@db/feed")

	src := `
schema_version = "1.0"

feed {
  name           = "blocklist"
  reduction      = "aggressive"
  merge_overlaps = true
}

storage {
  backend   = "postgres"
  dsn       = env("IPFEED_TEST_DSN")
  keep_last = 25

  pool {
    max_open_conns    = 4
    conn_max_lifetime = "1h"
  }
}

api {
  listen          = env("IPFEED_TEST_LISTEN", "127.0.0.1:9000")
  allowed_origins = ["https://admin.example.com"]
}

redis {
  address = "localhost:6379"
  db      = 2
}

logging {
  level = "debug"
  json  = true
}
`
	cfg, err := LoadHCL([]byte(src), "test.hcl")
	require.NoError(t, err)

	assert.Equal(t, "blocklist", cfg.Feed.Name)
	assert.Equal(t, "aggressive", cfg.Feed.Reduction)
	assert.True(t, cfg.Feed.MergeOverlaps)

	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "postgres://feed@db/feed", cfg.Storage.DSN)
	assert.Equal(t, 25, cfg.Storage.KeepLast)
	assert.Equal(t, 4, cfg.Storage.Pool.MaxOpenConns)
	assert.Equal(t, "1h", cfg.Storage.Pool.ConnMaxLifetime)

	assert.Equal(t, "127.0.0.1:9000", cfg.API.Listen)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.API.AllowedOrigins)
	assert.Equal(t, "15s", cfg.API.ReadTimeout)

	require.NotNil(t, cfg.Redis)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "ipfeed:published", cfg.Redis.Channel)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.True(t, cfg.Audit.IsEnabled())
}

func TestLoadHCL_Defaults(t *testing.T) {
	t.Setenv("IPFEED_STATE_DIR", "/tmp/ipfeed-state")

	cfg, err := LoadHCL([]byte(""), "empty.hcl")
	require.NoError(t, err)

	assert.Equal(t, CurrentSchemaVersion, cfg.SchemaVersion)
	assert.Equal(t, "strict", cfg.Feed.Reduction)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join("/tmp/ipfeed-state", "feed.db"), cfg.Storage.Path)
	assert.Equal(t, ":8080", cfg.API.Listen)
	assert.Nil(t, cfg.Redis)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadHCL_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `feed {`},
		{"unknown attribute", `feed { colour = "blue" }`},
		{"bad reduction", `feed { reduction = "loose" }`},
		{"bad backend", `storage { backend = "etcd" }`},
		{"postgres without dsn", `storage { backend = "postgres" }`},
		{"negative retention", `storage { keep_last = -1 }`},
		{"bad duration", `api { read_timeout = "soon" }`},
		{"negative write limit", `api { write_limit = -5 }`},
		{"redis without address", `redis { address = "" }`},
		{"bad level", `logging { level = "chatty" }`},
		{"unsupported schema", `schema_version = "2.0"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadHCL([]byte(tt.src), "bad.hcl")
			assert.Error(t, err)
		})
	}
}

func TestValidate_ReportsField(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "postgres"
	cfg.Logging.Level = "loud"

	errs := cfg.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, "storage.dsn", errs[0].Field)
	assert.Equal(t, "logging.level", errs[1].Field)
	assert.Contains(t, errs.Error(), "; ")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	hclPath := filepath.Join(dir, "ipfeed.hcl")
	require.NoError(t, os.WriteFile(hclPath, []byte(`storage { backend = "memory" }`), 0o600))
	cfg, err := LoadFile(hclPath)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)

	jsonPath := filepath.Join(dir, "ipfeed.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"storage":{"backend":"file","path":"/srv/feed"}}`), 0o600))
	cfg, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "/srv/feed", cfg.Storage.Path)

	_, err = LoadFile(filepath.Join(dir, "missing.hcl"))
	assert.Error(t, err)
}

func TestAuditConfig_IsEnabled(t *testing.T) {
	off := false
	assert.False(t, (&AuditConfig{Enabled: &off}).IsEnabled())
	assert.True(t, (&AuditConfig{}).IsEnabled())
	assert.False(t, (*AuditConfig)(nil).IsEnabled())
}

func TestDuration(t *testing.T) {
	d, err := Duration("", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	d, err = Duration("90s", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = Duration("later", time.Minute)
	assert.Error(t, err)
}
