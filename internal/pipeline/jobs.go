package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

// JobStatus represents the state of a crawl job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusListing   JobStatus = "listing"
	StatusCrawling  JobStatus = "crawling"
	StatusLinking   JobStatus = "linking"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// maxJobErrors caps the error list kept on a job.
const maxJobErrors = 200

// Job tracks one crawl: either a page range of the listing, or a single
// document when DocumentID is set.
type Job struct {
	mu sync.Mutex

	ID         string       `json:"job_id"`
	Kind       doctree.Kind `json:"kind"`
	FromPage   int          `json:"from_page,omitempty"`
	ToPage     int          `json:"to_page,omitempty"`
	DocumentID int64        `json:"document_id,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	PagesTotal      int      `json:"pages_total"`
	PagesDone       int      `json:"pages_done"`
	DocumentsSeen   int      `json:"documents_seen"`
	DocumentsStored int      `json:"documents_stored"`
	DocumentsFailed int      `json:"documents_failed"`
	Sections        int      `json:"sections"`
	Links           int      `json:"links"`
	Errors          []string `json:"errors"`
}

// NewPageJob returns a queued job over listing pages [from, to]. A zero to
// means "up to the last page".
func NewPageJob(kind doctree.Kind, from, to int) *Job {
	if from < 1 {
		from = 1
	}
	return newJob(&Job{Kind: kind, FromPage: from, ToPage: to})
}

// NewDocumentJob returns a queued job for one document.
func NewDocumentJob(kind doctree.Kind, id int64) *Job {
	return newJob(&Job{Kind: kind, DocumentID: id})
}

func newJob(j *Job) *Job {
	now := time.Now()
	j.ID = uuid.NewString()
	j.Status = StatusQueued
	j.Phase = "queued"
	j.CreatedAt = now
	j.UpdatedAt = now
	return j
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs idle for longer than the TTL. Running jobs
// are kept regardless of age.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.finishedLocked() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.errors) < maxJobErrors {
		j.errors = append(j.errors, err)
		j.Progress.Errors = j.errors
	}
	j.UpdatedAt = time.Now()
}

// SetLastPage fixes the end of the page range and the page total.
func (j *Job) SetLastPage(to int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ToPage = to
	j.Progress.PagesTotal = max(to-j.FromPage+1, 0)
	j.UpdatedAt = time.Now()
}

// Range returns the page range.
func (j *Job) Range() (from, to int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.FromPage, j.ToPage
}

// PageDone counts a listing page and the documents it listed.
func (j *Job) PageDone(documents int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PagesDone++
	j.Progress.DocumentsSeen += documents
	j.UpdatedAt = time.Now()
}

// DocumentDone counts one processed document.
func (j *Job) DocumentDone(failed bool, sections int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if failed {
		j.Progress.DocumentsFailed++
	} else {
		j.Progress.DocumentsStored++
		j.Progress.Sections += sections
	}
	j.UpdatedAt = time.Now()
}

// AddLinks counts persisted related-document and doc-map edges.
func (j *Job) AddLinks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Links += n
	j.UpdatedAt = time.Now()
}

// Finish sets the terminal status from the recorded counts.
func (j *Job) Finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	switch {
	case p.DocumentsFailed == 0 && len(j.errors) == 0:
		j.Status = StatusCompleted
	case p.DocumentsStored > 0:
		j.Status = StatusPartial
	default:
		j.Status = StatusFailed
	}
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

func (j *Job) finishedLocked() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string       `json:"job_id"`
	Kind       doctree.Kind `json:"kind"`
	FromPage   int          `json:"from_page,omitempty"`
	ToPage     int          `json:"to_page,omitempty"`
	DocumentID int64        `json:"document_id,omitempty"`
	Status     JobStatus    `json:"status"`
	Phase      string       `json:"phase"`
	Progress   Progress     `json:"progress"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.errors...)
	return JobSnapshot{
		ID:         j.ID,
		Kind:       j.Kind,
		FromPage:   j.FromPage,
		ToPage:     j.ToPage,
		DocumentID: j.DocumentID,
		Status:     j.Status,
		Phase:      j.Phase,
		Progress:   p,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}
