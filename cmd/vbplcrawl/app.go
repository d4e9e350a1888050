package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/HaHongDo/vbpl-web-crawl/internal/archive"
	"github.com/HaHongDo/vbpl-web-crawl/internal/config"
	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
	"github.com/HaHongDo/vbpl-web-crawl/internal/metrics"
	"github.com/HaHongDo/vbpl-web-crawl/internal/pipeline"
	"github.com/HaHongDo/vbpl-web-crawl/internal/reconcile"
	"github.com/HaHongDo/vbpl-web-crawl/internal/store"
	"github.com/HaHongDo/vbpl-web-crawl/internal/vbpl"
)

const statsWindow = time.Hour

// app holds everything a command needs, wired from the configuration.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	stats    *fetch.Stats
	cache    *fetch.RedisCache
	store    store.Store
	coord    *store.Coordinator
	orch     *pipeline.Orchestrator
}

// newApp connects the store and the optional cache and builds the pipeline.
// Without DATABASE_URL results are kept in memory for the life of the
// process.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
		stats:    fetch.NewStats(statsWindow),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)

	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		a.store = pg
	} else {
		log.Warn("DATABASE_URL not set, results are kept in memory")
		a.store = store.NewMemory()
	}

	cache, err := fetch.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		a.store.Close()
		return nil, err
	}
	a.cache = cache

	common := []fetch.Option{
		fetch.WithStats(a.stats),
		fetch.WithObserver(m.ObserveFetch),
		fetch.WithLogger(log),
	}
	registry := common
	if cache != nil {
		registry = append(registry[:len(registry):len(registry)], fetch.WithCache(cache, cfg.CacheTTL))
	}

	portal := fetch.NewClient(cfg.VBPLBaseURL, cfg.FetchTimeout, append(common, fetch.WithDelay(cfg.PageDelay))...)
	files := archive.New(fetch.NewClient(cfg.VBPLPDFBaseURL, cfg.FetchTimeout, common...), cfg.ArchiveDir, log)

	a.coord = store.NewCoordinator(a.store, log)
	engine := reconcile.New(reconcile.Config{
		Concetti: registryClient(cfg.ConcettiBaseURL, cfg.FetchTimeout, registry),
		TVPL:     registryClient(cfg.TVPLBaseURL, cfg.FetchTimeout, registry),
		LuatVN:   registryClient(cfg.LuatVNBaseURL, cfg.FetchTimeout, registry),
		Archiver: files.Sub("concetti"),
		Sectors:  a.coord,
		Log:      log,
	})
	crawler := vbpl.New(vbpl.Config{
		Portal:      portal,
		PDFBaseURL:  cfg.VBPLPDFBaseURL,
		Archiver:    files.Sub("vbpl"),
		RowsPerPage: cfg.RowsPerPage,
		Log:         log,
	})

	worker := pipeline.NewWorker(crawler, engine, a.coord, m, log)
	a.orch = pipeline.NewOrchestrator(cfg, worker, crawler, portal, log)
	return a, nil
}

// registryClient returns nil for an unset base URL, which disables the
// registry in the engine.
func registryClient(baseURL string, timeout time.Duration, opts []fetch.Option) reconcile.Fetcher {
	if baseURL == "" {
		return nil
	}
	return fetch.NewClient(baseURL, timeout, opts...)
}

func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", "error", err)
	}
}

// summary prints a finished job as one log line.
func (a *app) summary(job *pipeline.Job) error {
	snap := job.Snapshot()
	a.log.Info("crawl finished",
		"job_id", snap.ID,
		"status", snap.Status,
		"pages", snap.Progress.PagesDone,
		"stored", snap.Progress.DocumentsStored,
		"failed", snap.Progress.DocumentsFailed,
		"sections", snap.Progress.Sections,
		"links", snap.Progress.Links,
	)
	if snap.Status == pipeline.StatusFailed {
		return fmt.Errorf("crawl failed: %d errors", len(snap.Progress.Errors))
	}
	return nil
}
