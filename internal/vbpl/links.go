package vbpl

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

const (
	emptyRelatedMessage = "Nội dung đang cập nhật"
	// ConsolidatedMapType labels the document-map edges of a consolidated
	// document.
	ConsolidatedMapType = "Văn bản được hợp nhất"
)

// Related returns the documents listed on the related-documents tab, each
// labelled with the relation it is grouped under.
func (c *Crawler) Related(ctx context.Context, id int64) ([]doctree.RelatedDocument, error) {
	page, err := c.tab(ctx, TabRelated, id)
	if err != nil {
		return nil, &CrawlError{Op: "related documents", DocumentID: id, Err: err}
	}
	if page == nil {
		return nil, nil
	}
	block := page.Find("div.vbLienQuan").First()
	if block.Length() == 0 || strings.Contains(nodeText(block), emptyRelatedMessage) {
		return nil, nil
	}

	var out []doctree.RelatedDocument
	block.Find("td.label").Each(func(_ int, label *goquery.Selection) {
		relation := nodeText(label)
		list := label.NextAllFiltered("td").First().Find("ul.listVB")
		list.Find("p.title").Each(func(_ int, title *goquery.Selection) {
			related, ok := itemID(title.Find("a").First())
			if !ok {
				return
			}
			out = append(out, doctree.RelatedDocument{SourceID: id, RelatedID: related, RelationType: relation})
		})
	})
	return out, nil
}

// DocMaps returns the edges of the document map. For regulatory documents
// an entry whose link carries no id is resolved through the search listing;
// entries that cannot be resolved are skipped. For consolidated documents
// the last map node is the document itself and is dropped.
func (c *Crawler) DocMaps(ctx context.Context, id int64, kind doctree.Kind) ([]doctree.DocMap, error) {
	t := TabDocMap
	if kind == doctree.KindHopNhat {
		t = TabDocMapHopNhat
	}
	page, err := c.tab(ctx, t, id)
	if err != nil {
		return nil, &CrawlError{Op: "doc map", DocumentID: id, Err: err}
	}
	if page == nil {
		return nil, nil
	}

	if kind == doctree.KindHopNhat {
		return consolidatedMap(page, id), nil
	}

	var out []doctree.DocMap
	var resolveErr error
	page.Find(`div[class*="title"]`).EachWithBreak(func(_ int, title *goquery.Selection) bool {
		mapType := nodeText(title)
		title.NextAllFiltered("div").First().Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
			link := li.Find("a").First()
			mapped, ok := itemID(link)
			if !ok {
				mapped, ok, resolveErr = c.lookup(ctx, kind, nodeText(link))
				if resolveErr != nil {
					return false
				}
			}
			if !ok {
				c.log.Debug("doc map entry unresolved", "document_id", id, "title", nodeText(link))
				return true
			}
			out = append(out, doctree.DocMap{SourceID: id, MappedID: mapped, MapType: mapType})
			return true
		})
		return resolveErr == nil
	})
	if resolveErr != nil {
		return nil, &CrawlError{Op: "doc map", DocumentID: id, Err: resolveErr}
	}
	return out, nil
}

func consolidatedMap(page *goquery.Document, id int64) []doctree.DocMap {
	nodes := page.Find("div.w")
	if nodes.Length() <= 1 {
		return nil
	}
	var out []doctree.DocMap
	nodes.Slice(0, nodes.Length()-1).Each(func(_ int, node *goquery.Selection) {
		mapped, ok := itemID(node.Find("a").First())
		if !ok {
			return
		}
		out = append(out, doctree.DocMap{SourceID: id, MappedID: mapped, MapType: ConsolidatedMapType})
	})
	return out
}

// lookup searches the listing for title and returns the first hit's id.
func (c *Crawler) lookup(ctx context.Context, kind doctree.Kind, title string) (int64, bool, error) {
	if title == "" {
		return 0, false, nil
	}
	body, ok, err := c.search(ctx, kind, 1, title)
	if err != nil || !ok {
		return 0, false, err
	}
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	id, found := itemID(page.Find("p.title a").First())
	return id, found, nil
}
