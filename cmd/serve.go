package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"grimm.is/ipfeed/internal/api"
	"grimm.is/ipfeed/internal/audit"
	"grimm.is/ipfeed/internal/config"
	"grimm.is/ipfeed/internal/logging"
	"grimm.is/ipfeed/internal/metrics"
	"grimm.is/ipfeed/internal/notify"
	"grimm.is/ipfeed/internal/publisher"
	"grimm.is/ipfeed/internal/ratelimit"
	"grimm.is/ipfeed/internal/storage"
	"grimm.is/ipfeed/internal/versions"
)

const collectInterval = 30 * time.Second

// RunServe runs the feed daemon until ctx is cancelled.
func RunServe(ctx context.Context, configFile string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	log := logger.WithComponent("serve")

	sopts, err := storageOptions(cfg.Storage, nil)
	if err != nil {
		return err
	}
	backend, err := storage.Open(ctx, sopts)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	defer backend.Close()

	reduce, err := reduceOptions(cfg.Feed)
	if err != nil {
		return err
	}

	hub := notify.NewHub(64)
	notifiers := []notify.Notifier{hub}
	if r := cfg.Redis; r != nil {
		rn, err := notify.DialRedis(ctx, notify.RedisOptions{
			Address:  r.Address,
			Password: r.Password,
			DB:       r.DB,
			Channel:  r.Channel,
		})
		if err != nil {
			log.Warn("redis notifications disabled", "error", err)
		} else {
			defer rn.Close()
			notifiers = append(notifiers, rn)
			log.Info("publishing events to redis", "address", r.Address, "channel", rn.Channel())
		}
	}

	var (
		auditStore *audit.Store
		auditor    publisher.Auditor
		auditLog   api.AuditLog
	)
	if cfg.Audit.IsEnabled() {
		auditStore, err = audit.NewStore(cfg.Audit.Path, cfg.Audit.RetentionDays, nil)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer auditStore.Close()
		auditor, auditLog = auditStore, auditStore
	}

	pub, err := publisher.Open(ctx, backend, publisher.Options{
		Reduce:    reduce,
		Store:     versions.Options{KeepLast: cfg.Storage.KeepLast},
		Notifiers: notifiers,
		Auditor:   auditor,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(pub.Store(), logger, collectInterval)

	serverCfg, grace, err := serverConfig(cfg.API)
	if err != nil {
		return err
	}
	limiter := ratelimit.New(cfg.API.WriteLimit, time.Minute, nil)
	server := api.NewServer(api.ServerOptions{
		Publisher:      pub,
		Audit:          auditLog,
		Hub:            hub,
		Collector:      collector,
		Limiter:        limiter,
		Logger:         logger,
		Config:         serverCfg,
		AllowedOrigins: cfg.API.AllowedOrigins,
	})

	listener, err := net.Listen("tcp", cfg.API.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.API.Listen, err)
	}

	pruneEvery, err := config.Duration(cfg.Storage.PruneInterval, 10*time.Minute)
	if err != nil {
		return err
	}

	log.Info("ipfeed starting",
		"feed", cfg.Feed.Name,
		"backend", cfg.Storage.Backend,
		"reduction", cfg.Feed.Reduction,
		"listen", listener.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, listener, grace)
	})
	g.Go(func() error {
		return collector.Run(gctx)
	})
	g.Go(func() error {
		return runRetention(gctx, pruneEvery, pub.Store(), auditStore, limiter, log)
	})

	err = g.Wait()
	log.Info("ipfeed stopped")
	return err
}

// runRetention prunes snapshot history, the audit log and idle rate limit
// buckets on a timer.
func runRetention(ctx context.Context, every time.Duration, store *versions.Store, auditStore *audit.Store, limiter *ratelimit.Limiter, log *logging.Logger) error {
	if every <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pruned, err := store.Prune(ctx)
		if err != nil {
			log.Warn("snapshot retention failed", "error", err)
		} else if len(pruned) > 0 {
			log.Info("pruned snapshots", "versions", pruned)
		}
		if n := limiter.CleanupExpired(); n > 0 {
			log.Debug("dropped idle rate limit buckets", "count", n)
		}

		if auditStore == nil {
			continue
		}
		n, err := auditStore.Prune(ctx)
		if err != nil {
			log.Warn("audit retention failed", "error", err)
		} else if n > 0 {
			log.Info("pruned audit events", "count", n)
		}
	}
}
