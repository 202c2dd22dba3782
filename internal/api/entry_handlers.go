package api

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"

	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/publisher"
	"grimm.is/ipfeed/internal/versions"
)

// handleGetEntries returns the current snapshot as structured entries.
func (s *Server) handleGetEntries(w http.ResponseWriter, r *http.Request) {
	snap := s.pub.Store().Current()
	if snap == nil {
		s.writeErr(w, r, publisher.ErrNotPublished)
		return
	}
	WriteJSON(w, http.StatusOK, snapshotResponse(snap))
}

// handleSubmitEntries replaces the list. It accepts a JSON SubmitRequest or
// a text/plain list with one entry per line; for text the base version and
// batch come from the query string.
func (s *Server) handleSubmitEntries(w http.ResponseWriter, r *http.Request) {
	var (
		raws []feed.RawEntry
		opts []publisher.SubmitOption
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		parsed, err := feed.ParseList(r.Body)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid list", err.Error())
			return
		}
		raws = parsed

		q := r.URL.Query()
		if b := q.Get("base_version"); b != "" {
			base, ok := parseVersion(b)
			if !ok {
				WriteError(w, http.StatusBadRequest, "invalid base_version")
				return
			}
			opts = append(opts, publisher.WithBaseVersion(base))
		}
		if id := q.Get("batch_id"); id != "" {
			opts = append(opts, publisher.WithBatchID(id))
		}
	} else {
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		raws = make([]feed.RawEntry, 0, len(req.Entries))
		for _, e := range req.Entries {
			raw, err := e.Raw()
			if err != nil {
				WriteError(w, http.StatusBadRequest, "invalid family", err.Error())
				return
			}
			raws = append(raws, raw)
		}
		opts = submitOptions(req.BaseVersion, req.BatchID)
	}

	snap, err := s.pub.SubmitEdits(r.Context(), raws, opts...)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, publishResponse(snap))
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	s.handleEdit(w, r, s.pub.Add)
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	s.handleEdit(w, r, s.pub.Remove)
}

type editFunc func(ctx context.Context, raw feed.RawEntry, opts ...publisher.SubmitOption) (*versions.Snapshot, error)

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, edit editFunc) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	raw, err := req.Raw()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid family", err.Error())
		return
	}

	snap, err := edit(r.Context(), raw, submitOptions(req.BaseVersion, req.BatchID)...)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, publishResponse(snap))
}

// handleRollback republishes the entries of a retained version.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Version == 0 {
		WriteError(w, http.StatusBadRequest, "version is required")
		return
	}

	snap, err := s.pub.Rollback(r.Context(), req.Version, submitOptions(req.BaseVersion, req.BatchID)...)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, publishResponse(snap))
}

func submitOptions(base *uint64, batch string) []publisher.SubmitOption {
	var opts []publisher.SubmitOption
	if base != nil {
		opts = append(opts, publisher.WithBaseVersion(*base))
	}
	if batch != "" {
		opts = append(opts, publisher.WithBatchID(batch))
	}
	return opts
}
