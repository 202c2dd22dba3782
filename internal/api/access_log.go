package api

import (
	"bufio"
	"net"
	"net/http"
	"strings"
)

// accessLogWriter wraps http.ResponseWriter to capture the status code.
type accessLogWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *accessLogWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *accessLogWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *accessLogWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// accessLog logs each request and records request metrics.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		rw := &accessLogWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := s.clock.Since(start)

		route := routeLabel(r)
		s.metrics.RecordAPIRequest(r.Method, route, rw.status, duration.Seconds())
		if strings.HasPrefix(r.URL.Path, "/feed") {
			s.metrics.RecordFeedRequest(rw.status)
		}

		if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
			return
		}
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", rw.status,
			"size", rw.size,
			"duration", duration,
		}
		switch {
		case rw.status >= 500:
			s.logger.Error("request", args...)
		case rw.status >= 400:
			s.logger.Warn("request", args...)
		default:
			s.logger.Debug("request", args...)
		}
	})
}

// routeLabel keeps metric cardinality bounded by using the matched pattern.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		if i := strings.IndexByte(r.Pattern, ' '); i >= 0 {
			return r.Pattern[i+1:]
		}
		return r.Pattern
	}
	return "unmatched"
}
