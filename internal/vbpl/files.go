package vbpl

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

var (
	attachmentName = regexp.MustCompile(`(?i).+\.(pdf|docx?)`)
	downloadCall   = regexp.MustCompile(`^javascript:downloadfile\(\s*'[^']*'\s*,\s*'([^']+)'`)
)

// fileTabs lists, per kind, the tabs that may carry the attachment list. Any
// of them can come back empty, so they are tried in order.
var fileTabs = map[doctree.Kind][]Tab{
	doctree.KindPhapQuy: {TabFullText, TabAttribute, TabRelated, TabDocMap},
	doctree.KindHopNhat: {TabFullTextHopNhat, TabOriginalHopNhat, TabAttributeHopNhat, TabDocMapHopNhat},
}

// Files records the document's attachments. The first tab with an
// attachment list decides; its PDF and Word links are archived. OrgPDFLink
// gets the space-joined remote URLs and FileLink the space-joined local
// paths.
func (c *Crawler) Files(ctx context.Context, doc *doctree.Document) error {
	for _, t := range fileTabs[doc.Kind] {
		page, err := c.tab(ctx, t, doc.ID)
		if err != nil {
			return &CrawlError{Op: "files", DocumentID: doc.ID, Err: err}
		}
		if page == nil {
			continue
		}
		list := page.Find("ul.fileAttack").First()
		if list.Length() == 0 {
			continue
		}

		urls := c.attachmentURLs(list)
		if len(urls) == 0 {
			return nil
		}
		local, err := c.archiveAll(ctx, urls)
		if err != nil {
			return &CrawlError{Op: "files", DocumentID: doc.ID, Err: err}
		}
		if len(local) > 0 {
			doc.FileLink = doctree.Str(strings.Join(local, " "))
		}
		doc.OrgPDFLink = doctree.Str(strings.Join(urls, " "))
		return nil
	}
	return nil
}

func (c *Crawler) attachmentURLs(list *goquery.Selection) []string {
	var urls []string
	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		link := li.Find("a").First()
		if !attachmentName.MatchString(nodeText(link)) {
			return
		}
		href, _ := link.Attr("href")
		m := downloadCall.FindStringSubmatch(href)
		if m == nil {
			return
		}
		urls = append(urls, c.pdfURL(m[1]))
	})
	return urls
}

// pdfURL joins a portal file path onto the file host, escaping the path.
func (c *Crawler) pdfURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.pdfBase + (&url.URL{Path: path}).EscapedPath()
}

func (c *Crawler) archiveAll(ctx context.Context, urls []string) ([]string, error) {
	if c.archiver == nil {
		return nil, nil
	}
	var local []string
	for _, u := range urls {
		p, err := c.archiver.Archive(ctx, u)
		if err != nil {
			return nil, err
		}
		if p != "" {
			local = append(local, p)
		}
	}
	return local, nil
}
