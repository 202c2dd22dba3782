package config

import (
	"path/filepath"
	"time"

	"grimm.is/ipfeed/internal/brand"
)

// CurrentSchemaVersion is the schema written by this release.
const CurrentSchemaVersion = "1.0"

// Config is the root of an ipfeed configuration file.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version"`

	Feed    *FeedConfig    `hcl:"feed,block" json:"feed,omitempty"`
	Storage *StorageConfig `hcl:"storage,block" json:"storage,omitempty"`
	API     *APIConfig     `hcl:"api,block" json:"api,omitempty"`
	Redis   *RedisConfig   `hcl:"redis,block" json:"redis,omitempty"`
	Audit   *AuditConfig   `hcl:"audit,block" json:"audit,omitempty"`
	Logging *LoggingConfig `hcl:"logging,block" json:"logging,omitempty"`
}

// FeedConfig controls how submissions are reduced.
type FeedConfig struct {
	Name          string `hcl:"name,optional" json:"name"`
	Reduction     string `hcl:"reduction,optional" json:"reduction"` // strict | aggressive
	MergeOverlaps bool   `hcl:"merge_overlaps,optional" json:"merge_overlaps"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Backend       string      `hcl:"backend,optional" json:"backend"`
	Path          string      `hcl:"path,optional" json:"path,omitempty"`
	DSN           string      `hcl:"dsn,optional" json:"dsn,omitempty"`
	KeepLast      int         `hcl:"keep_last,optional" json:"keep_last"`
	PruneInterval string      `hcl:"prune_interval,optional" json:"prune_interval,omitempty"`
	Pool          *PoolConfig `hcl:"pool,block" json:"pool,omitempty"`
}

// PoolConfig tunes the database connection pool.
type PoolConfig struct {
	MaxOpenConns    int    `hcl:"max_open_conns,optional" json:"max_open_conns"`
	MaxIdleConns    int    `hcl:"max_idle_conns,optional" json:"max_idle_conns"`
	ConnMaxLifetime string `hcl:"conn_max_lifetime,optional" json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime string `hcl:"conn_max_idle_time,optional" json:"conn_max_idle_time,omitempty"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Listen          string   `hcl:"listen,optional" json:"listen"`
	ReadTimeout     string   `hcl:"read_timeout,optional" json:"read_timeout,omitempty"`
	ShutdownTimeout string   `hcl:"shutdown_timeout,optional" json:"shutdown_timeout,omitempty"`
	AllowedOrigins  []string `hcl:"allowed_origins,optional" json:"allowed_origins,omitempty"`

	// WriteLimit caps POST requests per client IP per minute; 0 disables it.
	WriteLimit int `hcl:"write_limit,optional" json:"write_limit"`
}

// RedisConfig enables publish notifications over Redis pub/sub.
type RedisConfig struct {
	Address  string `hcl:"address" json:"address"`
	Password string `hcl:"password,optional" json:"password,omitempty"`
	DB       int    `hcl:"db,optional" json:"db"`
	Channel  string `hcl:"channel,optional" json:"channel"`
}

// AuditConfig configures the audit log.
type AuditConfig struct {
	Enabled       *bool  `hcl:"enabled,optional" json:"enabled,omitempty"`
	Path          string `hcl:"path,optional" json:"path"`
	RetentionDays int    `hcl:"retention_days,optional" json:"retention_days"`
}

// IsEnabled reports whether the audit log should be opened.
func (a *AuditConfig) IsEnabled() bool {
	return a != nil && (a.Enabled == nil || *a.Enabled)
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `hcl:"level,optional" json:"level"`
	JSON  bool   `hcl:"json,optional" json:"json"`
}

// Default returns a configuration with every block filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in missing blocks and attributes.
func (c *Config) ApplyDefaults() {
	stateDir := brand.GetStateDir()

	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}

	if c.Feed == nil {
		c.Feed = &FeedConfig{}
	}
	if c.Feed.Name == "" {
		c.Feed.Name = "default"
	}
	if c.Feed.Reduction == "" {
		c.Feed.Reduction = "strict"
	}

	if c.Storage == nil {
		c.Storage = &StorageConfig{}
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case "sqlite":
			c.Storage.Path = filepath.Join(stateDir, "feed.db")
		case "file":
			c.Storage.Path = filepath.Join(stateDir, "snapshots")
		}
	}
	if c.Storage.PruneInterval == "" {
		c.Storage.PruneInterval = "10m"
	}
	if c.Storage.Pool == nil {
		c.Storage.Pool = &PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: "30m", ConnMaxIdleTime: "5m"}
	}

	if c.API == nil {
		c.API = &APIConfig{}
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if c.API.ReadTimeout == "" {
		c.API.ReadTimeout = "15s"
	}
	if c.API.ShutdownTimeout == "" {
		c.API.ShutdownTimeout = "10s"
	}

	if c.Redis != nil && c.Redis.Channel == "" {
		c.Redis.Channel = "ipfeed:published"
	}

	if c.Audit == nil {
		c.Audit = &AuditConfig{}
	}
	if c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(stateDir, "audit.db")
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 90
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Duration parses a duration attribute, falling back to def when empty.
func Duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
