package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetWithQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/TW/Pages/vbpq-thuoctinh.aspx", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("ItemID"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	stats := NewStats(time.Hour)
	c := NewClient(srv.URL+"/", time.Second, WithStats(stats))
	resp, err := c.Get(context.Background(), "TW/Pages/vbpq-thuoctinh.aspx", url.Values{"ItemID": {"42"}})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, 1, stats.Snapshot().Total.Count)
}

func TestClientPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Luật Đất đai", body["keyword"])
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    "/search",
		JSON:   map[string]string{"keyword": "Luật Đất đai"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.False(t, resp.OK())
}

func TestClientNonOKIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	stats := NewStats(time.Hour)
	c := NewClient(srv.URL, time.Second, WithStats(stats))
	resp, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, 1, stats.Snapshot().Total.Failures)
}

func TestClientTransportErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(base, time.Second)
	_, err := c.Get(context.Background(), "/gone", nil)
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "get", fe.Op)
	assert.Equal(t, base+"/gone", fe.URL)
}

func TestClientTimeoutCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond)
	_, err := c.Get(context.Background(), "/slow", nil)
	var fe *Error
	require.ErrorAs(t, err, &fe)
}

func TestClientCachesSuccessfulGets(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	stats := NewStats(time.Hour)
	c := NewClient(srv.URL, time.Second, WithCache(NewMemoryCache(), time.Minute), WithStats(stats))
	ctx := context.Background()

	for range 3 {
		resp, err := c.Get(ctx, "/doc", url.Values{"id": {"1"}})
		require.NoError(t, err)
		assert.Equal(t, "body", string(resp.Body))
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 2, stats.Snapshot().Total.CacheHits)

	for range 2 {
		_, err := c.Get(ctx, "/missing", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load(), "non-200 responses are not cached")
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Now()
	m := NewMemoryCache()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Second))
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestClientPause(t *testing.T) {
	c := NewClient("http://example.invalid", time.Second, WithDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Pause(ctx), context.Canceled)

	fast := NewClient("http://example.invalid", time.Second, WithDelay(time.Millisecond))
	assert.NoError(t, fast.Pause(context.Background()))
}

func TestClientObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var gotStatus int
	var gotHost string
	c := NewClient(srv.URL, time.Second, WithObserver(func(host string, status int, _ time.Duration) {
		gotHost, gotStatus = host, status
	}))
	_, err := c.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, gotStatus)
	assert.Equal(t, hostOf(srv.URL), gotHost)
}

func TestResolve(t *testing.T) {
	c := NewClient("https://vbpl.vn/", time.Second)
	assert.Equal(t, "https://vbpl.vn/a", c.Resolve("a"))
	assert.Equal(t, "https://vbpl.vn/a", c.Resolve("/a"))
	assert.Equal(t, "https://other.vn/b", c.Resolve("https://other.vn/b"))
}
