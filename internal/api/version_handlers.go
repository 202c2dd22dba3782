package api

import (
	"net/http"
	"strconv"
	"time"

	"grimm.is/ipfeed/internal/audit"
	"grimm.is/ipfeed/internal/metrics"
)

const defaultAuditLimit = 100

// handleVersions lists retained versions, oldest first.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	store := s.pub.Store()
	resp := VersionsResponse{Versions: []VersionInfo{}}
	if cur := store.Current(); cur != nil {
		resp.Current = cur.Version()
	}

	for _, v := range store.Versions() {
		snap, err := store.At(v)
		if err != nil {
			// pruned between Versions and At
			continue
		}
		resp.Versions = append(resp.Versions, VersionInfo{
			Version:   v,
			CreatedAt: snap.CreatedAt(),
			Checksum:  snap.Checksum(),
			Count:     snap.Len(),
			Current:   v == resp.Current,
		})
	}
	WriteJSON(w, http.StatusOK, resp)
}

// handleVersion returns one retained snapshot.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	version, ok := pathVersion(r)
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid version")
		return
	}
	snap, err := s.pub.Store().At(version)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, snapshotResponse(snap))
}

// handleDiff compares two versions. format=unified returns a text diff of
// the rendered documents instead of the structured entry diff.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := parseVersion(q.Get("from"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid from version")
		return
	}
	to, ok := parseVersion(q.Get("to"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid to version")
		return
	}

	if q.Get("format") == "unified" {
		s.writeUnifiedDiff(w, r, from, to)
		return
	}

	d, err := s.pub.Store().Diff(from, to)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, DiffResponse{
		From:    d.From,
		To:      d.To,
		Added:   entryResponses(d.Added),
		Removed: entryResponses(d.Removed),
	})
}

func (s *Server) writeUnifiedDiff(w http.ResponseWriter, r *http.Request, from, to uint64) {
	a, err := s.pub.DocumentAt(from)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	b, err := s.pub.DocumentAt(to)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	text, err := audit.UnifiedDiff(a, b)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/x-diff; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

// handleAudit queries the audit log.
// Query params: since, until (RFC3339), operation, limit.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		WriteError(w, http.StatusServiceUnavailable, "audit log disabled")
		return
	}

	q := r.URL.Query()
	f := audit.Filter{Operation: q.Get("operation"), Limit: defaultAuditLimit}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid "+p.name, err.Error())
			return
		}
		*p.dst = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	events, err := s.audit.Query(r.Context(), f)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleStatus reports the pipeline state and the published document.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		State:  s.pub.State().String(),
		Uptime: s.clock.Since(s.startTime).Truncate(time.Second).String(),
	}
	if doc, err := s.pub.GetPublished(); err == nil {
		resp.Version = doc.Version
		resp.Checksum = doc.Checksum
		resp.Lines = doc.Lines
		resp.GeneratedAt = doc.GeneratedAt
	}
	if s.hub != nil {
		resp.Subscribers = s.hub.Subscribers()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// handleStats returns the collector's last sample, or a live one when no
// collector is running.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.collector != nil {
		WriteJSON(w, http.StatusOK, s.collector.GetStats())
		return
	}

	versions := s.pub.Store().Versions()
	stats := metrics.Stats{
		Uptime:          int64(s.clock.Since(s.startTime).Seconds()),
		HistoryVersions: len(versions),
		LastUpdate:      s.clock.Now(),
	}
	if n := len(versions); n > 0 {
		stats.OldestVersion = versions[0]
		stats.NewestVersion = versions[n-1]
	}
	WriteJSON(w, http.StatusOK, stats)
}
