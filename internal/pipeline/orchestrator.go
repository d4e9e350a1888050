package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HaHongDo/vbpl-web-crawl/internal/config"
	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/vbpl"
)

// Orchestrator manages the crawl pipeline: a fixed set of goroutines takes
// jobs off the queue, and each job fans its documents out over a bounded
// group.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	worker  *Worker
	portal  Portal
	pacer   Pacer
	log     *slog.Logger
	cfg     config.Config
	backoff func(int) time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch the workers.
func NewOrchestrator(cfg config.Config, worker *Worker, portal Portal, pacer Pacer, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		worker:  worker,
		portal:  portal,
		pacer:   pacer,
		log:     log,
		cfg:     cfg,
		backoff: Backoff,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.setQueueDepth()
					o.Run(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.setQueueDepth()
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Run processes job on the calling goroutine. The CLI uses it directly;
// the queue workers call it for submitted jobs.
func (o *Orchestrator) Run(ctx context.Context, job *Job) {
	o.jobs.Put(job)
	if job.DocumentID != 0 {
		o.runDocument(ctx, job)
		return
	}
	o.runPages(ctx, job)
}

func (o *Orchestrator) runDocument(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID, "document_id", job.DocumentID)
	job.SetStatus(StatusCrawling, "document")

	doc := &doctree.Document{ID: job.DocumentID, Kind: job.Kind}
	out, err := o.worker.CrawlDocument(ctx, doc)
	if err != nil {
		log.Error("document failed", "error", err)
		job.AddError(err.Error())
		job.DocumentDone(true, 0)
		job.Finish()
		return
	}
	job.DocumentDone(false, out.Sections)

	job.SetStatus(StatusLinking, "related documents and doc map")
	o.crawlLinks(ctx, job, []int64{job.DocumentID})
	job.Finish()
}

func (o *Orchestrator) runPages(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID, "kind", string(job.Kind))

	from, to := job.Range()
	if to == 0 {
		job.SetStatus(StatusListing, "counting documents")
		var total int
		err := retry(ctx, o.backoff, func() error {
			var err error
			total, err = o.portal.TotalDocuments(ctx, job.Kind)
			return err
		})
		if err != nil {
			log.Error("count documents failed", "error", err)
			job.AddError(err.Error())
			job.SetStatus(StatusFailed, "listing")
			return
		}
		to = o.portal.Pages(total)
		log.Info("document count", "total", total, "pages", to)
	}
	job.SetLastPage(to)

	var ids []int64
	for page := from; page <= to && ctx.Err() == nil; page++ {
		job.SetStatus(StatusListing, fmt.Sprintf("page %d", page))
		var rows []vbpl.Listing
		err := retry(ctx, o.backoff, func() error {
			var err error
			rows, err = o.portal.ListPage(ctx, job.Kind, page)
			return err
		})
		if err != nil {
			log.Error("list page failed", "page", page, "error", err)
			job.AddError(fmt.Sprintf("page %d: %s", page, err))
			continue
		}

		job.SetStatus(StatusCrawling, fmt.Sprintf("page %d", page))
		o.crawlPage(ctx, job, rows)
		job.PageDone(len(rows))
		log.Info("page done", "page", page, "documents", len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}

		if err := o.pacer.Pause(ctx); err != nil {
			break
		}
	}

	if ctx.Err() == nil {
		job.SetStatus(StatusLinking, "related documents and doc map")
		o.crawlLinks(ctx, job, ids)
	}
	if err := ctx.Err(); err != nil {
		job.AddError(err.Error())
	}
	job.Finish()
}

// crawlPage runs the document pipeline for every row of a page, at most
// DocWorkers at a time. Failures are recorded on the job and never stop
// sibling documents.
func (o *Orchestrator) crawlPage(ctx context.Context, job *Job, rows []vbpl.Listing) {
	var g errgroup.Group
	g.SetLimit(max(o.cfg.DocWorkers, 1))
	for _, row := range rows {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out, err := o.worker.CrawlDocument(ctx, row.Document(job.Kind))
			if err != nil {
				o.log.Error("document failed", "job_id", job.ID, "document_id", row.ID, "error", err)
				job.AddError(fmt.Sprintf("document %d: %s", row.ID, err))
				job.DocumentDone(true, 0)
				return nil
			}
			job.DocumentDone(false, out.Sections)
			return nil
		})
	}
	g.Wait()
}

// crawlLinks persists the related documents and document map of every id.
func (o *Orchestrator) crawlLinks(ctx context.Context, job *Job, ids []int64) {
	var g errgroup.Group
	g.SetLimit(max(o.cfg.DocWorkers, 1))
	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			n, err := o.worker.CrawlLinks(ctx, id, job.Kind)
			job.AddLinks(n)
			if err != nil {
				o.log.Error("links failed", "job_id", job.ID, "document_id", id, "error", err)
				job.AddError(fmt.Sprintf("links of %d: %s", id, err))
			}
			o.pacer.Pause(ctx)
			return nil
		})
	}
	g.Wait()
}

func (o *Orchestrator) setQueueDepth() {
	if o.worker.metrics != nil {
		o.worker.metrics.SetQueueDepth(len(o.queue))
	}
}
