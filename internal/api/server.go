package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HaHongDo/vbpl-web-crawl/internal/config"
	"github.com/HaHongDo/vbpl-web-crawl/internal/export"
	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
	"github.com/HaHongDo/vbpl-web-crawl/internal/pipeline"
	"github.com/HaHongDo/vbpl-web-crawl/internal/store"
)

// Jobs is the crawl queue as the API sees it.
type Jobs interface {
	Submit(job *pipeline.Job) error
	GetJob(id string) *pipeline.Job
	QueueDepth() int
}

// Documents loads stored documents.
type Documents interface {
	Document(ctx context.Context, id int64) (*store.DocumentView, error)
}

// Server is the HTTP API of the crawler.
type Server struct {
	router   chi.Router
	jobs     Jobs
	docs     Documents
	renderer *export.Renderer
	stats    *fetch.Stats
	gatherer prometheus.Gatherer
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server. stats and gatherer may
// be nil, in which case their endpoints report 503.
func NewServer(jobs Jobs, docs Documents, stats *fetch.Stats, gatherer prometheus.Gatherer, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		jobs:     jobs,
		docs:     docs,
		renderer: export.NewRenderer(),
		stats:    stats,
		gatherer: gatherer,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/crawl", s.handleCrawl)
		r.Get("/api/crawl/{jobID}/status", s.handleCrawlStatus)
		r.Get("/api/stats/fetch", s.handleFetchStats)

		r.Post("/api/documents/{id}/crawl", s.handleCrawlDocument)
		r.Get("/api/documents/{id}", s.handleGetDocument)
		r.Get("/api/documents/{id}/preview", s.handlePreview)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.jobs.QueueDepth(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.gatherer == nil {
		jsonError(w, "metrics unavailable", http.StatusServiceUnavailable)
		return
	}
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
