package vbpl

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/parser"
)

const fullTextContainer = "toanvancontent"

var embeddedPDF = regexp.MustCompile(`^.+\.pdf`)

// FullText segments the document body published on the portal. A nil result
// means the portal has no usable body and the caller should fall back to
// another source.
//
// Consolidated documents are never published as markup; for them the
// embedded PDF viewer is recorded and archived instead, and the result is
// always nil.
func (c *Crawler) FullText(ctx context.Context, doc *doctree.Document) (*parser.Result, error) {
	if doc.Kind == doctree.KindHopNhat {
		if err := c.consolidatedPDF(ctx, doc); err != nil {
			return nil, &CrawlError{Op: "full text", DocumentID: doc.ID, Err: err}
		}
		return nil, nil
	}

	body, ok, err := c.tabBody(ctx, TabFullText, doc.ID)
	if err != nil {
		return nil, &CrawlError{Op: "full text", DocumentID: doc.ID, Err: err}
	}
	if !ok {
		return nil, nil
	}
	ft, ok, err := parser.ParseFullText(bytes.NewReader(body), fullTextContainer)
	if err != nil {
		return nil, &CrawlError{Op: "full text", DocumentID: doc.ID, Err: err}
	}
	if ft == nil {
		return nil, nil
	}
	doc.HTML = &ft.HTML
	if !ok {
		return nil, nil
	}
	res := parser.Extract(doc.ID, ft.Lines)
	return &res, nil
}

// consolidatedPDF looks for the PDF viewer on the consolidated full-text
// tab, then on the original-document tab. A document that already has an
// original link is left alone.
func (c *Crawler) consolidatedPDF(ctx context.Context, doc *doctree.Document) error {
	if !doctree.Blank(doc.OrgPDFLink) {
		return nil
	}
	for _, t := range []Tab{TabFullTextHopNhat, TabOriginalHopNhat} {
		page, err := c.tab(ctx, t, doc.ID)
		if err != nil {
			return err
		}
		if page == nil {
			continue
		}
		data, _ := page.Find("div.vbProperties object").First().Attr("data")
		link := embeddedPDF.FindString(data)
		if link == "" {
			continue
		}

		remote := link
		if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
			remote = c.pdfURL(link)
		}
		doc.OrgPDFLink = doctree.Str(remote)
		local, err := c.archiveAll(ctx, []string{remote})
		if err != nil {
			return err
		}
		if len(local) > 0 {
			doc.FileLink = doctree.Str(local[0])
		}
		return nil
	}
	return nil
}
