package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/parser"
	"github.com/HaHongDo/vbpl-web-crawl/internal/store"
	"github.com/HaHongDo/vbpl-web-crawl/internal/vbpl"
)

// Portal is the portal crawler as the pipeline drives it.
type Portal interface {
	ListPage(ctx context.Context, kind doctree.Kind, page int) ([]vbpl.Listing, error)
	TotalDocuments(ctx context.Context, kind doctree.Kind) (int, error)
	Pages(total int) int
	Info(ctx context.Context, doc *doctree.Document) error
	Files(ctx context.Context, doc *doctree.Document) error
	FullText(ctx context.Context, doc *doctree.Document) (*parser.Result, error)
	Related(ctx context.Context, id int64) ([]doctree.RelatedDocument, error)
	DocMaps(ctx context.Context, id int64, kind doctree.Kind) ([]doctree.DocMap, error)
}

// Reconciler completes documents from the alternate registries.
type Reconciler interface {
	Reconcile(ctx context.Context, doc *doctree.Document) (*doctree.Document, bool, error)
	FullTextFallback(ctx context.Context, doc *doctree.Document) (*parser.Result, error)
	EnrichSector(ctx context.Context, doc *doctree.Document) error
}

// Sink persists crawl results.
type Sink interface {
	UpsertDocument(ctx context.Context, doc *doctree.Document, sections []doctree.Section, subParts []doctree.AppendixSubPart) (store.UpsertStats, error)
	UpsertRelated(ctx context.Context, links []doctree.RelatedDocument) error
	UpsertDocMap(ctx context.Context, maps []doctree.DocMap) error
}

// Pacer applies the politeness delay between page-level calls.
type Pacer interface {
	Pause(ctx context.Context) error
}

// Recorder receives pipeline metrics.
type Recorder interface {
	DocumentDone(kind string, failed bool, sections, subParts int, d time.Duration)
	Matched(source string)
	SetQueueDepth(n int)
}

// Body sources, in the order they are tried.
const (
	SourcePortal  = "portal"
	SourceTVPL    = "tvpl"
	SourceArchive = "archive"
)

// Outcome summarizes one processed document.
type Outcome struct {
	Source   string
	Sections int
	SubParts int
	Matched  bool
	Stored   store.UpsertStats
}

// Worker runs the per-document pipeline. Each document is processed
// sequentially; a Worker is safe to use from several goroutines.
type Worker struct {
	portal     Portal
	reconciler Reconciler
	sink       Sink
	metrics    Recorder
	log        *slog.Logger
}

func NewWorker(portal Portal, reconciler Reconciler, sink Sink, metrics Recorder, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		portal:     portal,
		reconciler: reconciler,
		sink:       sink,
		metrics:    metrics,
		log:        log,
	}
}

// CrawlDocument runs info, files, full text, reconciliation, sector
// enrichment and persistence for doc. Any transport failure aborts the
// document and is returned.
func (w *Worker) CrawlDocument(ctx context.Context, doc *doctree.Document) (Outcome, error) {
	start := time.Now()
	out, err := w.crawlDocument(ctx, doc)
	if w.metrics != nil {
		w.metrics.DocumentDone(string(doc.Kind), err != nil, out.Sections, out.SubParts, time.Since(start))
	}
	return out, err
}

func (w *Worker) crawlDocument(ctx context.Context, doc *doctree.Document) (Outcome, error) {
	log := w.log.With("document_id", doc.ID, "kind", string(doc.Kind))
	var out Outcome

	// Phase 1: portal pages
	if err := w.portal.Info(ctx, doc); err != nil {
		return out, err
	}
	if err := w.portal.Files(ctx, doc); err != nil {
		return out, err
	}

	// Phase 2: body, from the first source that segments into something.
	// A body without sections or appendix counts as no body; the portal's
	// HTML snapshot is kept either way.
	res, err := w.portal.FullText(ctx, doc)
	if err != nil {
		return out, err
	}
	out.Source = SourcePortal
	if res.Empty() {
		res, err = w.reconciler.FullTextFallback(ctx, doc)
		if err != nil {
			return out, fmt.Errorf("full text fallback for document %d: %w", doc.ID, err)
		}
		out.Source = SourceTVPL
	}
	if res.Empty() {
		res = w.archivedText(doc, log)
		out.Source = SourceArchive
	}
	if res.Empty() {
		out.Source = ""
		res = &parser.Result{}
		log.Info("no full text available")
	} else if out.Source != SourcePortal {
		w.matched(out.Source)
	}

	// Phase 3: registries
	reconciled, matched, err := w.reconciler.Reconcile(ctx, doc)
	if err != nil {
		return out, fmt.Errorf("reconcile document %d: %w", doc.ID, err)
	}
	if matched {
		doc = reconciled
		out.Matched = true
		w.matched("concetti")
	}
	if err := w.reconciler.EnrichSector(ctx, doc); err != nil {
		return out, fmt.Errorf("enrich sector of document %d: %w", doc.ID, err)
	}

	// Phase 4: persist
	stored, err := w.sink.UpsertDocument(ctx, doc, res.Sections, res.SubParts)
	if err != nil {
		return out, err
	}
	out.Sections = len(res.Sections)
	out.SubParts = len(res.SubParts)
	out.Stored = stored

	log.Info("document crawled",
		"source", out.Source,
		"sections", out.Sections,
		"sub_parts", out.SubParts,
		"matched", out.Matched,
		"inserted", stored.Inserted,
		"updated", stored.Updated,
	)
	return out, nil
}

// archivedText segments the first readable archived attachment. Unreadable
// files only mean this source has nothing to offer.
func (w *Worker) archivedText(doc *doctree.Document, log *slog.Logger) *parser.Result {
	if doctree.Blank(doc.FileLink) {
		return nil
	}
	lines, path, err := parser.FileLines(strings.Fields(*doc.FileLink))
	if err != nil {
		log.Warn("archived file unreadable", "error", err)
	}
	if len(lines) == 0 {
		return nil
	}
	log.Debug("using archived file text", "path", path, "lines", len(lines))
	res := parser.Extract(doc.ID, lines)
	return &res
}

// CrawlLinks persists the related documents and the document map of id. It
// returns the number of edges written.
func (w *Worker) CrawlLinks(ctx context.Context, id int64, kind doctree.Kind) (int, error) {
	related, err := w.portal.Related(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := w.sink.UpsertRelated(ctx, related); err != nil {
		return 0, err
	}

	maps, err := w.portal.DocMaps(ctx, id, kind)
	if err != nil {
		return len(related), err
	}
	if err := w.sink.UpsertDocMap(ctx, maps); err != nil {
		return len(related), err
	}
	return len(related) + len(maps), nil
}

func (w *Worker) matched(source string) {
	if w.metrics != nil {
		w.metrics.Matched(source)
	}
}
