package metrics

import (
	"context"
	"sync"
	"time"

	"grimm.is/ipfeed/internal/clock"
	"grimm.is/ipfeed/internal/logging"
)

// HistorySource is the part of the version store the collector samples.
type HistorySource interface {
	Versions() []uint64
}

// Stats is the cached view served by the API.
type Stats struct {
	Uptime          int64     `json:"uptime_seconds"`
	HistoryVersions int       `json:"history_versions"`
	OldestVersion   uint64    `json:"oldest_version,omitempty"`
	NewestVersion   uint64    `json:"newest_version,omitempty"`
	LastUpdate      time.Time `json:"last_update"`
}

// Collector periodically samples history and process gauges.
type Collector struct {
	registry *Registry
	source   HistorySource
	logger   *logging.Logger
	clock    clock.Clock
	interval time.Duration
	started  time.Time

	mu    sync.RWMutex
	stats Stats
}

// NewCollector creates a new metrics collector.
func NewCollector(source HistorySource, logger *logging.Logger, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &Collector{
		registry: Get(),
		source:   source,
		logger:   logging.OrDefault(logger).WithComponent("metrics"),
		clock:    &clock.RealClock{},
		interval: interval,
	}
	c.started = c.clock.Now()
	return c
}

// Run samples until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Debug("collector started", "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Collect()
		}
	}
}

// Collect takes one sample.
func (c *Collector) Collect() {
	now := c.clock.Now()
	versions := c.source.Versions()

	s := Stats{
		Uptime:          int64(now.Sub(c.started).Seconds()),
		HistoryVersions: len(versions),
		LastUpdate:      now,
	}
	if n := len(versions); n > 0 {
		s.OldestVersion = versions[0]
		s.NewestVersion = versions[n-1]
	}

	c.registry.Uptime.Set(float64(s.Uptime))
	c.registry.HistoryVersions.Set(float64(s.HistoryVersions))

	c.mu.Lock()
	c.stats = s
	c.mu.Unlock()
}

// GetStats returns the last sample.
func (c *Collector) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
