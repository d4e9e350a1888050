package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

func TestNewPageJob(t *testing.T) {
	job := NewPageJob(doctree.KindHopNhat, 0, 5)
	if job.ID == "" {
		t.Fatal("expected a job id")
	}
	if job.FromPage != 1 {
		t.Errorf("expected from page clamped to 1, got %d", job.FromPage)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if other := NewPageJob(doctree.KindHopNhat, 1, 5); other.ID == job.ID {
		t.Error("expected distinct job ids")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewDocumentJob(doctree.KindPhapQuy, 42)

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusListing, "page 1"},
		{StatusCrawling, "page 1"},
		{StatusLinking, "related documents and doc map"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_Finish(t *testing.T) {
	cases := []struct {
		name           string
		stored, failed int
		errs           int
		want           JobStatus
	}{
		{"clean", 3, 0, 0, StatusCompleted},
		{"some failed", 3, 1, 1, StatusPartial},
		{"page error only", 3, 0, 1, StatusPartial},
		{"all failed", 0, 2, 2, StatusFailed},
		{"nothing listed", 0, 0, 0, StatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := NewPageJob(doctree.KindPhapQuy, 1, 1)
			for range tc.stored {
				job.DocumentDone(false, 2)
			}
			for range tc.failed {
				job.DocumentDone(true, 0)
			}
			for i := range tc.errs {
				job.AddError(fmt.Sprintf("error %d", i))
			}
			job.Finish()
			if job.Status != tc.want {
				t.Errorf("expected status %q, got %q", tc.want, job.Status)
			}
		})
	}
}

func TestJob_AddErrorCapped(t *testing.T) {
	job := NewPageJob(doctree.KindPhapQuy, 1, 1)
	for i := range maxJobErrors + 10 {
		job.AddError(fmt.Sprintf("document %d failed", i))
	}

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != maxJobErrors {
		t.Fatalf("expected %d errors, got %d", maxJobErrors, len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "document 0 failed" {
		t.Errorf("expected first error %q, got %q", "document 0 failed", snap.Progress.Errors[0])
	}
}

func TestJob_Progress(t *testing.T) {
	job := NewPageJob(doctree.KindPhapQuy, 3, 0)
	job.SetLastPage(7)
	job.PageDone(130)
	job.PageDone(12)
	job.DocumentDone(false, 40)
	job.DocumentDone(true, 0)
	job.AddLinks(9)

	snap := job.Snapshot()
	if snap.ToPage != 7 || snap.Progress.PagesTotal != 5 {
		t.Errorf("expected pages 3..7 (5 total), got to=%d total=%d", snap.ToPage, snap.Progress.PagesTotal)
	}
	if snap.Progress.PagesDone != 2 || snap.Progress.DocumentsSeen != 142 {
		t.Errorf("expected 2 pages and 142 documents seen, got %d and %d", snap.Progress.PagesDone, snap.Progress.DocumentsSeen)
	}
	if snap.Progress.DocumentsStored != 1 || snap.Progress.DocumentsFailed != 1 || snap.Progress.Sections != 40 {
		t.Errorf("unexpected document counts: %+v", snap.Progress)
	}
	if snap.Progress.Links != 9 {
		t.Errorf("expected 9 links, got %d", snap.Progress.Links)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := NewDocumentJob(doctree.KindPhapQuy, 1)
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := NewDocumentJob(doctree.KindPhapQuy, 1)
	store.Put(job)

	got := store.Get(job.ID)
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != job.ID {
		t.Errorf("expected ID %q, got %q", job.ID, got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := NewDocumentJob(doctree.KindPhapQuy, 1)
	expired.Finish()
	running := NewDocumentJob(doctree.KindPhapQuy, 2)
	running.SetStatus(StatusCrawling, "document")
	store.Put(expired)
	store.Put(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := NewDocumentJob(doctree.KindPhapQuy, 3)
	fresh.Finish()
	store.Put(fresh)

	store.Cleanup()

	if store.Get(expired.ID) != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get(running.ID) == nil {
		t.Error("expected running job to survive cleanup")
	}
	if store.Get(fresh.ID) == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
