package api

import (
	"net/http"
	"strconv"

	"grimm.is/ipfeed/internal/render"
)

// handleFeed serves the currently published document.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	doc, err := s.pub.GetPublished()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	serveDocument(w, r, doc)
}

// handleFeedVersion serves a retained historical document.
func (s *Server) handleFeedVersion(w http.ResponseWriter, r *http.Request) {
	version, ok := pathVersion(r)
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid version")
		return
	}
	doc, err := s.pub.DocumentAt(version)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	serveDocument(w, r, doc)
}

func serveDocument(w http.ResponseWriter, r *http.Request, doc *render.Document) {
	h := w.Header()
	h.Set("ETag", doc.ETag())
	h.Set("X-Feed-Version", strconv.FormatUint(doc.Version, 10))
	h.Set("Last-Modified", doc.GeneratedAt.UTC().Format(http.TimeFormat))
	h.Set("Cache-Control", "no-cache")

	if doc.MatchesETag(r.Header.Get("If-None-Match")) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", render.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(doc.Body)
	}
}
