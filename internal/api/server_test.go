package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaHongDo/vbpl-web-crawl/internal/config"
	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
	"github.com/HaHongDo/vbpl-web-crawl/internal/metrics"
	"github.com/HaHongDo/vbpl-web-crawl/internal/pipeline"
	"github.com/HaHongDo/vbpl-web-crawl/internal/store"
)

const testKey = "secret"

type fakeJobs struct {
	mu        sync.Mutex
	submitted []*pipeline.Job
	full      bool
}

func (f *fakeJobs) Submit(job *pipeline.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errors.New("job queue is full (1)")
	}
	f.submitted = append(f.submitted, job)
	return nil
}

func (f *fakeJobs) GetJob(id string) *pipeline.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.submitted {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (f *fakeJobs) QueueDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type apiFixture struct {
	jobs  *fakeJobs
	coord *store.Coordinator
	srv   *Server
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Matched("concetti")

	stats := fetch.NewStats(time.Hour)
	stats.Record("vbpl.vn", 120*time.Millisecond, false, false)

	f := &apiFixture{jobs: &fakeJobs{}, coord: store.NewCoordinator(store.NewMemory(), nil)}
	f.srv = NewServer(f.jobs, f.coord, stats, reg, nil, config.Config{APIKey: testKey})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthIsPublic(t *testing.T) {
	f := newAPI(t)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPI(t)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `source="concetti"`)
}

func TestAuthRequired(t *testing.T) {
	f := newAPI(t)

	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/crawl", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/crawl", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.jobs.submitted)
}

func TestSubmitCrawl(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodPost, "/api/crawl", `{"kind":"hopnhat","from_page":2,"to_page":4}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	require.Len(t, f.jobs.submitted, 1)
	job := f.jobs.submitted[0]
	assert.Equal(t, job.ID, body["job_id"])
	assert.Equal(t, "/api/crawl/"+job.ID+"/status", body["poll_url"])
	assert.Equal(t, doctree.KindHopNhat, job.Kind)
	from, to := job.Range()
	assert.Equal(t, 2, from)
	assert.Equal(t, 4, to)

	rec = f.do(t, http.MethodGet, "/api/crawl/"+job.ID+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)
	assert.Equal(t, string(pipeline.StatusQueued), status["status"])
	assert.Equal(t, "hopnhat", status["kind"])
}

func TestSubmitCrawlRejectsBadInput(t *testing.T) {
	f := newAPI(t)
	for name, body := range map[string]string{
		"malformed":     `{"kind":`,
		"unknown kind":  `{"kind":"luat"}`,
		"negative page": `{"from_page":-1}`,
		"reversed":      `{"from_page":5,"to_page":2}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/crawl", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.jobs.submitted)
}

func TestSubmitCrawlQueueFull(t *testing.T) {
	f := newAPI(t)
	f.jobs.full = true
	rec := f.do(t, http.MethodPost, "/api/crawl", `{"kind":"phapquy","from_page":1,"to_page":1}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "queue is full")
}

func TestCrawlStatusUnknownJob(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodGet, "/api/crawl/nope/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCrawlDocument(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodPost, "/api/documents/160001/crawl?kind=phapquy", "")

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.jobs.submitted, 1)
	assert.Equal(t, int64(160001), f.jobs.submitted[0].DocumentID)

	rec = f.do(t, http.MethodPost, "/api/documents/abc/crawl", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDocument(t *testing.T) {
	f := newAPI(t)
	ctx := context.Background()
	_, err := f.coord.UpsertDocument(ctx,
		&doctree.Document{ID: 5, Kind: doctree.KindPhapQuy, Title: doctree.Str("Nghị định 5")},
		[]doctree.Section{{DocumentID: 5, Number: 1, Name: doctree.Str("Phạm vi"), Content: "Nội dung."}},
		nil,
	)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/documents/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view store.DocumentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "Nghị định 5", doctree.Value(view.Document.Title))
	assert.Len(t, view.Sections, 1)

	rec = f.do(t, http.MethodGet, "/api/documents/6", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreview(t *testing.T) {
	f := newAPI(t)
	_, err := f.coord.UpsertDocument(context.Background(),
		&doctree.Document{ID: 5, Title: doctree.Str("Nghị định 5")},
		[]doctree.Section{{DocumentID: 5, Number: 1, Name: doctree.Str("Phạm vi"), Content: "Nội dung."}},
		nil,
	)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/documents/5/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "###### Điều 1. Phạm vi")

	rec = f.do(t, http.MethodGet, "/api/documents/5/preview?format=html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Nghị định 5</h1>")

	rec = f.do(t, http.MethodGet, "/api/documents/5/preview?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetchStats(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodGet, "/api/stats/fetch", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	hosts := body["fetch"].(map[string]any)["hosts"].(map[string]any)
	assert.Contains(t, hosts, "vbpl.vn")
}
