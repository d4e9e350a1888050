package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
	"github.com/HaHongDo/vbpl-web-crawl/internal/parser"
)

// tvplContainer holds the body of a TVPL document page.
const tvplContainer = "cldivContentDocVn"

// FullTextFallback looks the document up on TVPL when the portal has no
// usable full text. The first search hit whose title reaches Threshold
// against a key is fetched and segmented, and its container markup is stored
// in doc.HTML. A nil result means nothing usable was found.
func (e *Engine) FullTextFallback(ctx context.Context, doc *doctree.Document) (*parser.Result, error) {
	if e.tvpl == nil {
		return nil, nil
	}

	for _, key := range searchKeys(doc) {
		resp, err := e.tvpl.Do(ctx, fetch.Request{
			URL:   "/page/tim-van-ban.aspx",
			Query: url.Values{"keyword": {key}, "sort": {"1"}},
		})
		if err != nil {
			return nil, fmt.Errorf("search tvpl: %w", err)
		}
		if !resp.OK() {
			continue
		}

		href, ok, err := bestTVPLHit(resp.Body, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		// The first accepted hit decides; a bad page does not fall through
		// to the next key.
		return e.tvplFullText(ctx, doc, href)
	}
	return nil, nil
}

func bestTVPLHit(body []byte, key string) (string, bool, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("parse tvpl search: %w", err)
	}
	var href string
	page.Find("p.nqTitle").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if Ratio(parser.NodeText(s.Get(0)), key) < Threshold {
			return true
		}
		href, _ = s.Find("a").First().Attr("href")
		return false
	})
	return href, href != "", nil
}

func (e *Engine) tvplFullText(ctx context.Context, doc *doctree.Document, href string) (*parser.Result, error) {
	resp, err := e.tvpl.Do(ctx, fetch.Request{URL: href})
	if err != nil {
		return nil, fmt.Errorf("get tvpl html %s: %w", href, err)
	}
	if !resp.OK() {
		return nil, nil
	}
	ft, ok, err := parser.ParseFullText(bytes.NewReader(resp.Body), tvplContainer)
	if err != nil {
		return nil, fmt.Errorf("get tvpl html %s: %w", href, err)
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
