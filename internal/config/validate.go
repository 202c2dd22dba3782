package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

func (e *ValidationErrors) add(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks a config after defaults have been applied.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Feed != nil {
		switch c.Feed.Reduction {
		case "strict", "aggressive":
		default:
			errs.add("feed.reduction", "must be strict or aggressive, got %q", c.Feed.Reduction)
		}
	}

	if s := c.Storage; s != nil {
		switch s.Backend {
		case "memory":
		case "file", "sqlite":
			if s.Path == "" {
				errs.add("storage.path", "required for %s backend", s.Backend)
			}
		case "postgres":
			if s.DSN == "" {
				errs.add("storage.dsn", "required for postgres backend")
			}
		default:
			errs.add("storage.backend", "unknown backend %q", s.Backend)
		}
		if s.KeepLast < 0 {
			errs.add("storage.keep_last", "must not be negative")
		}
		checkDuration(&errs, "storage.prune_interval", s.PruneInterval)
		if s.Pool != nil {
			checkDuration(&errs, "storage.pool.conn_max_lifetime", s.Pool.ConnMaxLifetime)
			checkDuration(&errs, "storage.pool.conn_max_idle_time", s.Pool.ConnMaxIdleTime)
		}
	}

	if a := c.API; a != nil {
		if a.Listen == "" {
			errs.add("api.listen", "must not be empty")
		}
		checkDuration(&errs, "api.read_timeout", a.ReadTimeout)
		checkDuration(&errs, "api.shutdown_timeout", a.ShutdownTimeout)
		if a.WriteLimit < 0 {
			errs.add("api.write_limit", "must not be negative")
		}
	}

	if r := c.Redis; r != nil && r.Address == "" {
		errs.add("redis.address", "must not be empty")
	}

	if l := c.Logging; l != nil {
		switch strings.ToLower(l.Level) {
		case "debug", "info", "warn", "warning", "error":
		default:
			errs.add("logging.level", "unknown level %q", l.Level)
		}
	}

	return errs
}

func checkDuration(errs *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	if d, err := time.ParseDuration(value); err != nil || d < 0 {
		errs.add(field, "invalid duration %q", value)
	}
}
