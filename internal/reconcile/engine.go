// Package reconcile fills gaps in a crawled document from alternate
// registries: the Concetti document registry for dates, state and the
// original PDF, the TVPL search for a full-text fallback, and LuatVietnam
// for the sector classification.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
)

const (
	// Threshold is the minimum Ratio for a registry candidate to be accepted.
	Threshold = 0.8

	searchPageSize = 5
	maxSearchPages = 2
	registryDate   = "2006-01-02"
)

// Fetcher issues requests against one registry.
type Fetcher interface {
	Do(ctx context.Context, req fetch.Request) (*fetch.Response, error)
	Resolve(path string) string
}

// Archiver keeps a local copy of a remote file.
type Archiver interface {
	ArchiveAs(ctx context.Context, rawURL, name string) (string, error)
}

// SectorLookup returns the sector persisted for a document, or nil.
type SectorLookup interface {
	Sector(ctx context.Context, documentID int64) (*string, error)
}

// Engine holds the registry clients. It keeps no per-document state and is
// safe for concurrent use.
type Engine struct {
	concetti Fetcher
	tvpl     Fetcher
	luatvn   Fetcher
	archiver Archiver
	sectors  SectorLookup
	now      func() time.Time
	log      *slog.Logger
}

// Config wires an Engine. Nil registries disable the matching step.
type Config struct {
	Concetti Fetcher
	TVPL     Fetcher
	LuatVN   Fetcher
	Archiver Archiver
	Sectors  SectorLookup
	Now      func() time.Time
	Log      *slog.Logger
}

func New(cfg Config) *Engine {
	e := &Engine{
		concetti: cfg.Concetti,
		tvpl:     cfg.TVPL,
		luatvn:   cfg.LuatVN,
		archiver: cfg.Archiver,
		sectors:  cfg.Sectors,
		now:      cfg.Now,
		log:      cfg.Log,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// searchKeys returns the non-blank title, sub-title and serial in that order.
func searchKeys(doc *doctree.Document) []string {
	var keys []string
	for _, p := range []*string{doc.Title, doc.SubTitle, doc.SerialNumber} {
		if !doctree.Blank(p) {
			keys = append(keys, *p)
		}
	}
	return keys
}

// similar reports whether any candidate field reaches Threshold against key.
func similar(key string, fields ...string) bool {
	for _, f := range fields {
		if f != "" && Ratio(key, f) >= Threshold {
			return true
		}
	}
	return false
}
