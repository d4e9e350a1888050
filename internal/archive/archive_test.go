package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("%PDF-" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestArchiveAddsSuffixInsteadOfOverwriting(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	a := New(fetch.NewClient(srv.URL, time.Second), dir, nil)
	ctx := context.Background()

	first, err := a.Archive(ctx, srv.URL+"/files/Luat%20dat%20dai.pdf")
	require.NoError(t, err)
	second, err := a.Archive(ctx, srv.URL+"/files/Luat%20dat%20dai.pdf")
	require.NoError(t, err)
	third, err := a.Archive(ctx, srv.URL+"/files/Luat%20dat%20dai.pdf")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Luat_dat_dai.pdf"), first)
	assert.Equal(t, filepath.Join(dir, "Luat_dat_dai-1.pdf"), second)
	assert.Equal(t, filepath.Join(dir, "Luat_dat_dai-2.pdf"), third)

	body, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-/files/Luat dat dai.pdf", string(body))
}

func TestArchiveNon200ReturnsEmpty(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	a := New(fetch.NewClient(srv.URL, time.Second), dir, nil)

	got, err := a.Archive(context.Background(), srv.URL+"/missing.pdf")
	require.NoError(t, err)
	assert.Empty(t, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchiveAsAndSub(t *testing.T) {
	srv := newServer(t)
	a := New(fetch.NewClient(srv.URL, time.Second), t.TempDir(), nil).Sub("concetti")

	got, err := a.ArchiveAs(context.Background(), srv.URL+"/files/17/fetch", "../luat-dat-dai.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Dir(), "luat-dat-dai.pdf"), got)
	assert.FileExists(t, got)
}

func TestArchiveTransportError(t *testing.T) {
	srv := newServer(t)
	base := srv.URL
	srv.Close()

	a := New(fetch.NewClient(base, time.Second), t.TempDir(), nil)
	_, err := a.Archive(context.Background(), base+"/a.pdf")
	var fe *fetch.Error
	require.ErrorAs(t, err, &fe)
}
