package vbpl

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/extract"
)

// Info fills doc from its attribute tab. Titles already set on doc are kept;
// every property the table carries overwrites the document's value. A page
// without a properties block leaves doc untouched.
func (c *Crawler) Info(ctx context.Context, doc *doctree.Document) error {
	t := TabAttribute
	if doc.Kind == doctree.KindHopNhat {
		t = TabAttributeHopNhat
	}

	page, err := c.tab(ctx, t, doc.ID)
	if err != nil {
		return &CrawlError{Op: "info", DocumentID: doc.ID, Err: err}
	}
	if page == nil {
		return nil
	}
	properties := page.Find("div.vbProperties").First()
	if properties.Length() == 0 {
		return nil
	}

	if doc.Title == nil {
		doc.Title = doctree.NonEmpty(breadcrumbTitle(page))
	}
	if doc.SubTitle == nil {
		doc.SubTitle = doctree.NonEmpty(nodeText(page.Find("td.title").First()))
	}

	n := extract.Properties(properties, extract.RulesFor(doc.Kind), doc)
	if doc.Kind == doctree.KindPhapQuy {
		n += extract.InfoList(page.Find("div.vbInfo").First(), extract.InfoRules, doc)
	}
	c.log.Debug("document info", "document_id", doc.ID, "fields", n)
	return nil
}

// breadcrumbTitle is the last breadcrumb entry, the only one without a link
// target.
func breadcrumbTitle(page *goquery.Document) string {
	return nodeText(page.Find(`div.box-map a[href=""]`).First())
}
