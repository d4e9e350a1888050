// Package archive keeps local copies of the files attached to documents.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
)

// maxSuffix bounds the "(n)" search for a free file name.
const maxSuffix = 10000

// Doer is the subset of fetch.Client the archiver needs.
type Doer interface {
	Do(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

// Archiver downloads remote files into a directory. Existing files are never
// overwritten; a second copy of "a.pdf" is stored as "a-1.pdf". Stored names
// contain no whitespace, so several paths can be joined with spaces.
type Archiver struct {
	client Doer
	dir    string
	log    *slog.Logger
}

func New(client Doer, dir string, log *slog.Logger) *Archiver {
	if log == nil {
		log = slog.Default()
	}
	return &Archiver{client: client, dir: dir, log: log}
}

// Sub returns an archiver writing into a subdirectory of a's directory.
func (a *Archiver) Sub(name string) *Archiver {
	return &Archiver{client: a.client, dir: filepath.Join(a.dir, name), log: a.log}
}

// Dir returns the target directory.
func (a *Archiver) Dir() string { return a.dir }

// Archive stores rawURL under its own base name.
func (a *Archiver) Archive(ctx context.Context, rawURL string) (string, error) {
	return a.ArchiveAs(ctx, rawURL, "")
}

// ArchiveAs stores rawURL as name, or under the URL's base name when name is
// empty. It returns the local path, or "" when the remote answered non-200.
func (a *Archiver) ArchiveAs(ctx context.Context, rawURL, name string) (string, error) {
	if name == "" {
		name = baseName(rawURL)
	}
	name = strings.Join(strings.Fields(filepath.Base(filepath.Clean("/"+name))), "_")
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("archive %s: no file name", rawURL)
	}

	resp, err := a.client.Do(ctx, fetch.Request{URL: rawURL})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", rawURL, err)
	}
	if !resp.OK() {
		a.log.Warn("archive download failed", "url", rawURL, "status", resp.Status)
		return "", nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	f, target, err := createUnique(a.dir, name)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(resp.Body); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", target, err)
	}
	return target, nil
}

// createUnique opens dir/name exclusively, falling back to "base-n.ext".
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for i := 1; i <= maxSuffix; i++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
	}
	return nil, "", fmt.Errorf("create %s: too many copies", name)
}

func baseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	p, err := url.PathUnescape(u.Path)
	if err != nil {
		p = u.Path
	}
	return path.Base(p)
}
