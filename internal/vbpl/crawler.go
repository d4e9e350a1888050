// Package vbpl scrapes the national legal-document portal: the search
// listing, the attribute tab, attached files, full text, related documents
// and the document map.
package vbpl

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
	"github.com/HaHongDo/vbpl-web-crawl/internal/parser"
)

// DefaultRowsPerPage is the listing page size the portal accepts.
const DefaultRowsPerPage = 130

// Tab is a document page on the portal, addressed as /TW/Pages/vbpq-<tab>.aspx.
type Tab string

const (
	TabFullText  Tab = "toanvan"
	TabAttribute Tab = "thuoctinh"
	TabRelated   Tab = "vanbanlienquan"
	TabDocMap    Tab = "luocdo"

	TabFullTextHopNhat  Tab = "toanvanhopnhat"
	TabOriginalHopNhat  Tab = "vanbangochopnhat"
	TabAttributeHopNhat Tab = "thuoctinhhopnhat"
	TabDocMapHopNhat    Tab = "luocdohopnhat"
)

func (t Tab) path() string { return "/TW/Pages/vbpq-" + string(t) + ".aspx" }

var itemIDPattern = regexp.MustCompile(`ItemID=(\d+)`)

// Fetcher issues requests against the portal.
type Fetcher interface {
	Do(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

// Archiver keeps a local copy of a remote file and returns its path.
type Archiver interface {
	Archive(ctx context.Context, rawURL string) (string, error)
}

// CrawlError reports a failed portal step for one document.
type CrawlError struct {
	Op         string
	DocumentID int64
	Err        error
}

func (e *CrawlError) Error() string {
	if e.DocumentID == 0 {
		return fmt.Sprintf("vbpl %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("vbpl %s %d: %v", e.Op, e.DocumentID, e.Err)
}

func (e *CrawlError) Unwrap() error { return e.Err }

// Config wires a Crawler.
type Config struct {
	Portal      Fetcher
	PDFBaseURL  string
	Archiver    Archiver
	RowsPerPage int
	Log         *slog.Logger
}

// Crawler runs the portal steps. It holds no per-document state and is safe
// for concurrent use.
type Crawler struct {
	portal      Fetcher
	pdfBase     string
	archiver    Archiver
	rowsPerPage int
	log         *slog.Logger
}

func New(cfg Config) *Crawler {
	c := &Crawler{
		portal:      cfg.Portal,
		pdfBase:     strings.TrimRight(cfg.PDFBaseURL, "/"),
		archiver:    cfg.Archiver,
		rowsPerPage: cfg.RowsPerPage,
		log:         cfg.Log,
	}
	if c.rowsPerPage <= 0 {
		c.rowsPerPage = DefaultRowsPerPage
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Listing is one search result row.
type Listing struct {
	ID       int64
	Title    string
	SubTitle string
}

// Document returns a fresh document seeded with the listing's titles.
func (l Listing) Document(kind doctree.Kind) *doctree.Document {
	return &doctree.Document{
		ID:       l.ID,
		Kind:     kind,
		Title:    doctree.NonEmpty(l.Title),
		SubTitle: doctree.NonEmpty(l.SubTitle),
	}
}

// ListPage returns the documents on one page of the search listing. A
// non-200 answer yields no rows.
func (c *Crawler) ListPage(ctx context.Context, kind doctree.Kind, page int) ([]Listing, error) {
	body, ok, err := c.search(ctx, kind, page, "")
	if err != nil {
		return nil, &CrawlError{Op: "list page " + strconv.Itoa(page), Err: err}
	}
	if !ok {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &CrawlError{Op: "list page " + strconv.Itoa(page), Err: err}
	}

	subTitles := doc.Find("div.des")
	var rows []Listing
	doc.Find("p.title").Each(func(i int, title *goquery.Selection) {
		link := title.Find("a").First()
		id, ok := itemID(link)
		if !ok {
			return
		}
		row := Listing{ID: id, Title: nodeText(link)}
		if i < subTitles.Length() {
			row.SubTitle = parser.NodeText(subTitles.Get(i))
		}
		rows = append(rows, row)
	})
	return rows, nil
}

// TotalDocuments reads the result count the listing prints for kind.
func (c *Crawler) TotalDocuments(ctx context.Context, kind doctree.Kind) (int, error) {
	// Page 1 is served without the summary block.
	body, ok, err := c.search(ctx, kind, 2, "")
	if err != nil {
		return 0, &CrawlError{Op: "total documents", Err: err}
	}
	if !ok {
		return 0, &CrawlError{Op: "total documents", Err: fmt.Errorf("listing unavailable")}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, &CrawlError{Op: "total documents", Err: err}
	}
	text := nodeText(doc.Find("div.message strong"))
	n, err := strconv.Atoi(strings.ReplaceAll(strings.ReplaceAll(text, ".", ""), ",", ""))
	if err != nil {
		return 0, &CrawlError{Op: "total documents", Err: fmt.Errorf("parse count %q: %w", text, err)}
	}
	return n, nil
}

// Pages returns how many listing pages cover total documents.
func (c *Crawler) Pages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + c.rowsPerPage - 1) / c.rowsPerPage
}

func (c *Crawler) search(ctx context.Context, kind doctree.Kind, page int, keyword string) ([]byte, bool, error) {
	q := url.Values{
		"RowPerPage": {strconv.Itoa(c.rowsPerPage)},
		"Page":       {strconv.Itoa(page)},
	}
	if keyword != "" {
		q.Set("Keyword", keyword)
	}
	resp, err := c.portal.Do(ctx, fetch.Request{
		URL:   "/VBQPPL_UserControls/Publishing_22/TimKiem/p_" + string(kind) + ".aspx?IsVietNamese=True",
		Query: q,
	})
	if err != nil {
		return nil, false, err
	}
	return resp.Body, resp.OK(), nil
}

// tab fetches a document tab and parses it. A nil document means the portal
// answered non-200.
func (c *Crawler) tab(ctx context.Context, t Tab, id int64) (*goquery.Document, error) {
	body, ok, err := c.tabBody(ctx, t, id)
	if err != nil || !ok {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func (c *Crawler) tabBody(ctx context.Context, t Tab, id int64) ([]byte, bool, error) {
	resp, err := c.portal.Do(ctx, fetch.Request{
		URL:   t.path(),
		Query: url.Values{"ItemID": {strconv.FormatInt(id, 10)}},
	})
	if err != nil {
		return nil, false, err
	}
	if !resp.OK() {
		c.log.Debug("portal tab unavailable", "tab", string(t), "document_id", id, "status", resp.Status)
		return nil, false, nil
	}
	return resp.Body, true, nil
}

// nodeText is parser.NodeText for the first node of s, "" when s is empty.
func nodeText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return parser.NodeText(s.Get(0))
}

func itemID(link *goquery.Selection) (int64, bool) {
	href, ok := link.Attr("href")
	if !ok {
		return 0, false
	}
	m := itemIDPattern.FindStringSubmatch(href)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil
}
