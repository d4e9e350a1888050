// Package fetch is the outbound HTTP client shared by the portal crawler and
// the registry lookups.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodyBytes caps a single response; archived PDFs are the largest bodies.
const maxBodyBytes = 64 << 20

// Request describes one call. URL may be absolute or a path relative to the
// client's base URL.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	JSON   any
	Form   url.Values
}

// Response carries the status and the fully read body. A non-2xx status is
// not an error; callers decide what it means.
type Response struct {
	Status int
	Body   []byte
	URL    string
}

// OK reports a 200 response.
func (r *Response) OK() bool { return r != nil && r.Status == http.StatusOK }

// Error is a transport failure: the request never produced a status.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Observer is notified after every request; used for metrics.
type Observer func(host string, status int, d time.Duration)

// Client issues requests against one base URL with a fixed timeout ceiling
// and a fixed politeness delay.
type Client struct {
	baseURL    string
	httpClient *http.Client
	delay      time.Duration
	cache      Cache
	cacheTTL   time.Duration
	stats      *Stats
	observe    Observer
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDelay sets the pause applied by Pause.
func WithDelay(d time.Duration) Option { return func(c *Client) { c.delay = d } }

// WithCache caches successful GET bodies for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) { c.cache, c.cacheTTL = cache, ttl }
}

// WithStats records every request into s.
func WithStats(s *Stats) Option { return func(c *Client) { c.stats = s } }

// WithObserver registers a metrics hook.
func WithObserver(o Observer) Option { return func(c *Client) { c.observe = o } }

// WithLogger sets the logger used for cache failures.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Resolve turns a relative path into an absolute URL.
func (c *Client) Resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Pause sleeps for the politeness delay or until ctx is done.
func (c *Client) Pause(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get is Do for a GET with query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: path, Query: query})
}

// Do performs req. Transport failures are returned as *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.Resolve(req.URL)
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}
	host := hostOf(target)

	cacheable := c.cache != nil && method == http.MethodGet
	if cacheable {
		start := time.Now()
		body, ok, err := c.cache.Get(ctx, target)
		if err != nil {
			c.log.Warn("fetch cache read failed", "url", target, "error", err)
		}
		if ok {
			c.record(host, http.StatusOK, time.Since(start), true)
			return &Response{Status: http.StatusOK, Body: body, URL: target}, nil
		}
	}

	var payload io.Reader
	contentType := ""
	switch {
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, &Error{Op: "marshal body", URL: target, Err: err}
		}
		payload, contentType = bytes.NewReader(b), "application/json"
	case req.Form != nil:
		payload, contentType = strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, &Error{Op: "create request", URL: target, Err: err}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(host, 0, time.Since(start), false)
		return nil, &Error{Op: strings.ToLower(method), URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.record(host, resp.StatusCode, time.Since(start), false)
	if err != nil {
		return nil, &Error{Op: "read body", URL: target, Err: err}
	}

	if cacheable && resp.StatusCode == http.StatusOK {
		if err := c.cache.Set(ctx, target, body, c.cacheTTL); err != nil {
			c.log.Warn("fetch cache write failed", "url", target, "error", err)
		}
	}
	return &Response{Status: resp.StatusCode, Body: body, URL: target}, nil
}

func (c *Client) record(host string, status int, d time.Duration, cached bool) {
	if c.stats != nil {
		c.stats.Record(host, d, status < 200 || status > 299, cached)
	}
	if c.observe != nil {
		c.observe(host, status, d)
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
