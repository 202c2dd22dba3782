// Package cmd implements the ipfeed daemon commands.
package cmd

import (
	"fmt"
	"os"
	"time"

	"grimm.is/ipfeed/internal/api"
	"grimm.is/ipfeed/internal/clock"
	"grimm.is/ipfeed/internal/config"
	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/logging"
	"grimm.is/ipfeed/internal/storage"
)

func newLogger(cfg *config.LoggingConfig) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if cfg == nil {
		return logging.New(lc), nil
	}
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	lc.Level = level
	lc.JSON = cfg.JSON
	lc.Output = os.Stderr
	return logging.New(lc), nil
}

func reduceOptions(cfg *config.FeedConfig) (feed.ReduceOptions, error) {
	mode, err := feed.ParseMode(cfg.Reduction)
	if err != nil {
		return feed.ReduceOptions{}, err
	}
	return feed.ReduceOptions{Mode: mode, MergeOverlaps: cfg.MergeOverlaps}, nil
}

func storageOptions(cfg *config.StorageConfig, clk clock.Clock) (storage.Options, error) {
	opts := storage.Options{
		Kind:  cfg.Backend,
		Path:  cfg.Path,
		DSN:   cfg.DSN,
		Clock: clk,
	}
	if p := cfg.Pool; p != nil {
		lifetime, err := config.Duration(p.ConnMaxLifetime, 0)
		if err != nil {
			return opts, fmt.Errorf("storage.pool.conn_max_lifetime: %w", err)
		}
		idle, err := config.Duration(p.ConnMaxIdleTime, 0)
		if err != nil {
			return opts, fmt.Errorf("storage.pool.conn_max_idle_time: %w", err)
		}
		opts.Pool = storage.PoolOptions{
			MaxOpenConns:    p.MaxOpenConns,
			MaxIdleConns:    p.MaxIdleConns,
			ConnMaxLifetime: lifetime,
			ConnMaxIdleTime: idle,
		}
	}
	return opts, nil
}

func serverConfig(cfg *config.APIConfig) (*api.ServerConfig, time.Duration, error) {
	sc := api.DefaultServerConfig()
	read, err := config.Duration(cfg.ReadTimeout, sc.ReadTimeout)
	if err != nil {
		return nil, 0, fmt.Errorf("api.read_timeout: %w", err)
	}
	sc.ReadTimeout = read

	grace, err := config.Duration(cfg.ShutdownTimeout, 10*time.Second)
	if err != nil {
		return nil, 0, fmt.Errorf("api.shutdown_timeout: %w", err)
	}
	return sc, grace, nil
}
