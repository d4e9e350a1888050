package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/HaHongDo/vbpl-web-crawl/internal/export"
	"github.com/HaHongDo/vbpl-web-crawl/internal/store"
)

// handleGetDocument returns a stored document with its sections, appendix
// and related documents.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	view, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	format, ok := export.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		jsonError(w, "format must be md or html", http.StatusBadRequest)
		return
	}
	view, ok := s.loadDocument(w, r)
	if !ok {
		return
	}

	body, err := s.renderer.Render(view, format)
	if err != nil {
		s.log.Error("render preview failed", "document_id", view.Document.ID, "error", err)
		jsonError(w, "failed to render preview", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Write(body)
}

func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) (*store.DocumentView, bool) {
	id, ok := documentID(w, r)
	if !ok {
		return nil, false
	}
	view, err := s.docs.Document(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.log.Error("load document failed", "document_id", id, "error", err)
		jsonError(w, "failed to load document", http.StatusInternalServerError)
		return nil, false
	}
	return view, true
}

func documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "document id must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
