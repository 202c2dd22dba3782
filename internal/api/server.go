package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/ipfeed/internal/audit"
	"grimm.is/ipfeed/internal/clock"
	"grimm.is/ipfeed/internal/logging"
	"grimm.is/ipfeed/internal/metrics"
	"grimm.is/ipfeed/internal/notify"
	"grimm.is/ipfeed/internal/publisher"
	"grimm.is/ipfeed/internal/ratelimit"
)

// ServerConfig holds HTTP server hardening settings.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration // Slowloris prevention
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64 // submitted lists can be large
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
		MaxBodyBytes:      32 << 20,
	}
}

// AuditLog is the read side of the audit store.
type AuditLog interface {
	Query(ctx context.Context, f audit.Filter) ([]audit.Event, error)
}

// Server serves the feed document and the admin API.
type Server struct {
	pub       *publisher.Publisher
	audit     AuditLog
	hub       *notify.Hub
	collector *metrics.Collector
	limiter   *ratelimit.Limiter
	logger    *logging.Logger
	metrics   *metrics.Registry
	clock     clock.Clock
	config    *ServerConfig
	origins   []string
	startTime time.Time

	mux *http.ServeMux
}

// ServerOptions holds dependencies for the API server.
type ServerOptions struct {
	Publisher *publisher.Publisher
	Audit     AuditLog           // Optional
	Hub       *notify.Hub        // Optional: enables /api/ws
	Collector *metrics.Collector // Optional
	Limiter   *ratelimit.Limiter // Optional: throttles POST requests per client IP
	Logger    *logging.Logger
	Config    *ServerConfig
	Clock     clock.Clock

	// AllowedOrigins are accepted for websocket upgrades in addition to
	// same-origin and localhost.
	AllowedOrigins []string
}

// NewServer creates a new API server with the provided options.
func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	s := &Server{
		pub:       opts.Publisher,
		audit:     opts.Audit,
		hub:       opts.Hub,
		collector: opts.Collector,
		limiter:   opts.Limiter,
		logger:    logging.OrDefault(opts.Logger).WithComponent("api"),
		metrics:   metrics.Get(),
		clock:     clock.OrReal(opts.Clock),
		config:    cfg,
		origins:   opts.AllowedOrigins,
		mux:       http.NewServeMux(),
	}
	s.startTime = s.clock.Now()
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	// Feed document
	s.mux.HandleFunc("GET /feed", s.handleFeed)
	s.mux.HandleFunc("GET /feed/{version}", s.handleFeedVersion)

	// Entries
	s.mux.HandleFunc("GET /api/entries", s.handleGetEntries)
	s.mux.HandleFunc("POST /api/entries", s.handleSubmitEntries)
	s.mux.HandleFunc("POST /api/entries/add", s.handleAddEntry)
	s.mux.HandleFunc("POST /api/entries/remove", s.handleRemoveEntry)
	s.mux.HandleFunc("POST /api/rollback", s.handleRollback)

	// History
	s.mux.HandleFunc("GET /api/versions", s.handleVersions)
	s.mux.HandleFunc("GET /api/versions/{version}", s.handleVersion)
	s.mux.HandleFunc("GET /api/diff", s.handleDiff)
	s.mux.HandleFunc("GET /api/audit", s.handleAudit)

	// Status
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/ws", s.handleWebsocket)

	// Ops
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.accessLog(s.rateLimitMiddleware(s.maxBodyMiddleware(s.config.MaxBodyBytes)(s.mux)))
}

// HTTPServer builds an *http.Server for addr with the configured timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
	}
}

// Serve runs the API on listener until ctx is cancelled, then shuts down
// gracefully within grace.
func (s *Server) Serve(ctx context.Context, listener net.Listener, grace time.Duration) error {
	srv := s.HTTPServer(listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// maxBodyMiddleware limits the size of request bodies.
func (s *Server) maxBodyMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes <= 0 || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				WriteError(w, http.StatusRequestEntityTooLarge, "request entity too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware rejects writes from clients over their budget.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if !s.limiter.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		key := clientIP(r)
		if !s.limiter.Allow(key) {
			retry := s.limiter.RetryAfter(key)
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second)/time.Second)))
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.pub.GetPublished(); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unpublished"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
