package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/pipeline"
)

const maxRequestBytes = 1 << 20

type crawlRequest struct {
	Kind     string `json:"kind"`
	FromPage int    `json:"from_page"`
	ToPage   int    `json:"to_page"`
}

// handleCrawl queues a listing crawl. A zero to_page crawls to the last page.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	kind, ok := doctree.ParseKind(req.Kind)
	if !ok {
		jsonError(w, fmt.Sprintf("unknown kind %q", req.Kind), http.StatusBadRequest)
		return
	}
	if req.FromPage < 0 || req.ToPage < 0 {
		jsonError(w, "pages must not be negative", http.StatusBadRequest)
		return
	}
	if req.ToPage != 0 && req.ToPage < max(req.FromPage, 1) {
		jsonError(w, "to_page is before from_page", http.StatusBadRequest)
		return
	}

	s.submit(w, pipeline.NewPageJob(kind, req.FromPage, req.ToPage))
}

// handleCrawlDocument queues a crawl of one document and its links.
func (s *Server) handleCrawlDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	kind, ok := doctree.ParseKind(r.URL.Query().Get("kind"))
	if !ok {
		jsonError(w, fmt.Sprintf("unknown kind %q", r.URL.Query().Get("kind")), http.StatusBadRequest)
		return
	}

	s.submit(w, pipeline.NewDocumentJob(kind, id))
}

func (s *Server) submit(w http.ResponseWriter, job *pipeline.Job) {
	if err := s.jobs.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   job.Snapshot().Status,
		"poll_url": fmt.Sprintf("/api/crawl/%s/status", job.ID),
	})
}

func (s *Server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.jobs.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
