package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/publisher"
	"grimm.is/ipfeed/internal/versions"
)

// ErrorResponse represents a standard API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// Entry is the offending raw text when a submission was rejected.
	Entry string `json:"entry,omitempty"`
}

// WriteError sends a JSON error response.
func WriteError(w http.ResponseWriter, code int, message string, details ...string) {
	resp := ErrorResponse{Error: message}
	if len(details) > 0 {
		resp.Details = details[0]
	}
	WriteJSON(w, code, resp)
}

// WriteJSON sends a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, feed.ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.Is(err, versions.ErrConcurrentCommit), errors.Is(err, publisher.ErrAlreadyListed):
		return http.StatusConflict
	case errors.Is(err, versions.ErrNotFound), errors.Is(err, publisher.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, publisher.ErrNotPublished):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeErr sends err with the status statusFor picks. Internal errors are
// logged and reported without their cause.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	resp := ErrorResponse{Error: http.StatusText(code), Details: err.Error()}

	var fe *feed.FormatError
	if errors.As(err, &fe) {
		resp.Error = "invalid entry"
		resp.Entry = fe.Raw
		resp.Details = fe.Reason
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Details = ""
	}
	WriteJSON(w, code, resp)
}

// pathVersion parses the {version} path value.
func pathVersion(r *http.Request) (uint64, bool) {
	return parseVersion(r.PathValue("version"))
}

func parseVersion(s string) (uint64, bool) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}
