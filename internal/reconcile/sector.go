package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
	"github.com/HaHongDo/vbpl-web-crawl/internal/parser"
)

const (
	sectorLabel     = "Lĩnh vực:"
	sectorSeparator = " - "

	searchBySubTitle = "1"
	searchBySerial   = "3"
)

// EnrichSector sets doc.Sector from LuatVietnam. When no sector can be
// scraped, a more specific sector already persisted for the document is kept;
// otherwise the sector falls back to doctree.OtherSector.
func (e *Engine) EnrichSector(ctx context.Context, doc *doctree.Document) error {
	sector, err := e.scrapeSector(ctx, doc)
	if err != nil {
		return err
	}
	if sector != "" {
		doc.Sector = &sector
		return nil
	}

	if e.sectors != nil {
		prior, err := e.sectors.Sector(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("lookup persisted sector: %w", err)
		}
		if !doctree.Blank(prior) && *prior != doctree.OtherSector {
			doc.Sector = prior
			return nil
		}
	}
	doc.Sector = doctree.Str(doctree.OtherSector)
	return nil
}

func (e *Engine) scrapeSector(ctx context.Context, doc *doctree.Document) (string, error) {
	if e.luatvn == nil {
		return "", nil
	}

	serial, subTitle := doctree.Value(doc.SerialNumber), doctree.Value(doc.SubTitle)
	query := url.Values{"SearchExact": {"1"}}
	switch {
	case serial != "" && serial != doctree.NoSerialNumber:
		query.Set("Keywords", serial)
		query.Set("SearchOptions", searchBySerial)
	case subTitle != "":
		query.Set("Keywords", subTitle)
		query.Set("SearchOptions", searchBySubTitle)
	default:
		return "", nil
	}

	resp, err := e.luatvn.Do(ctx, fetch.Request{URL: "tim-van-ban.html", Query: query})
	if err != nil {
		return "", fmt.Errorf("search luatvietnam: %w", err)
	}
	if !resp.OK() {
		return "", nil
	}

	href, err := matchingResult(resp.Body, serial, subTitle)
	if err != nil || href == "" {
		return "", err
	}

	detail, err := e.luatvn.Do(ctx, fetch.Request{URL: href})
	if err != nil {
		return "", fmt.Errorf("get luatvietnam document %s: %w", href, err)
	}
	if !detail.OK() {
		return "", nil
	}
	return sectorsFromSummary(detail.Body)
}

// matchingResult returns the link of the first result whose title literally
// contains the serial number or the sub-title.
func matchingResult(body []byte, serial, subTitle string) (string, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse luatvietnam search: %w", err)
	}
	var href string
	page.Find("h2.doc-title a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		title, _ := a.Attr("title")
		if (serial != "" && strings.Contains(title, serial)) ||
			(subTitle != "" && strings.Contains(title, subTitle)) {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	return href, nil
}

func sectorsFromSummary(body []byte) (string, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse luatvietnam document: %w", err)
	}

	var sectors []string
	page.Find("#tomtat tr").Each(func(_ int, row *goquery.Selection) {
		labelled := row.Find("td").FilterFunction(func(_ int, td *goquery.Selection) bool {
			return parser.NodeText(td.Get(0)) == sectorLabel
		})
		if labelled.Length() == 0 {
			return
		}
		row.Find("a").Each(func(_ int, a *goquery.Selection) {
			title, _ := a.Attr("title")
			if _, after, ok := strings.Cut(title, ":"); ok {
				if s := strings.TrimSpace(after); s != "" {
					sectors = append(sectors, s)
				}
			}
		})
	})
	return strings.Join(sectors, sectorSeparator), nil
}
