package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
)

const concettiSelect = "active,slug,key,name,number,type{},branches{},issuingAgency{}," +
	"issueDate,effectiveDate,expiryDate,gazetteNumber,gazetteDate,createdAt"

type concettiItem struct {
	Slug          string  `json:"slug"`
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	Number        string  `json:"number"`
	EffectiveDate *string `json:"effectiveDate"`
	ExpiryDate    *string `json:"expiryDate"`
}

type concettiSearch struct {
	Items []concettiItem `json:"items"`
}

type concettiDocument struct {
	PDFFile *string `json:"pdfFile"`
}

// Reconcile searches the document registry by title, then sub-title, then
// serial number and merges the first acceptable candidate into a copy of
// doc. matched is false when no candidate reached Threshold; the copy is then
// identical to doc. Non-200 registry answers count as no match.
func (e *Engine) Reconcile(ctx context.Context, doc *doctree.Document) (out *doctree.Document, matched bool, err error) {
	cp := *doc
	out = &cp
	if e.concetti == nil {
		return out, false, nil
	}

	base := url.Values{
		"target": {"document"},
		"sort":   {"keyword"},
		"limit":  {strconv.Itoa(searchPageSize)},
		"select": {concettiSelect},
	}
	if doc.IssuanceDate != nil {
		base.Set("issueDateFrom", doc.IssuanceDate.Format(registryDate))
	}
	if doc.EffectiveDate != nil {
		base.Set("effectiveDateFrom", doc.EffectiveDate.Format(registryDate))
	}
	if doc.ExpirationDate != nil {
		base.Set("expiryDateFrom", doc.ExpirationDate.Format(registryDate))
	}

	for _, key := range searchKeys(doc) {
		for page := 1; page <= maxSearchPages; page++ {
			item, err := e.searchConcetti(ctx, base, key, page)
			if err != nil {
				return nil, false, err
			}
			if item == nil {
				continue
			}
			if err := e.merge(ctx, out, item); err != nil {
				return nil, false, err
			}
			e.log.Debug("registry match", "document_id", doc.ID, "key", key, "slug", item.Slug)
			return out, true, nil
		}
	}
	return out, false, nil
}

func (e *Engine) searchConcetti(ctx context.Context, base url.Values, key string, page int) (*concettiItem, error) {
	q := make(url.Values, len(base)+2)
	for k, v := range base {
		q[k] = v
	}
	q.Set("key", key)
	q.Set("page", strconv.Itoa(page))

	resp, err := e.concetti.Do(ctx, fetch.Request{Method: http.MethodGet, URL: "/documents/search", Query: q})
	if err != nil {
		return nil, fmt.Errorf("search registry: %w", err)
	}
	if !resp.OK() {
		return nil, nil
	}

	var result concettiSearch
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		e.log.Warn("registry search returned invalid json", "key", key, "error", err)
		return nil, nil
	}
	for i := range result.Items {
		item := &result.Items[i]
		if similar(key, item.Name, item.Number, item.Key) {
			return item, nil
		}
	}
	return nil, nil
}

// merge applies an accepted candidate: dates and state first, then the PDF
// when the document has none.
func (e *Engine) merge(ctx context.Context, doc *doctree.Document, item *concettiItem) error {
	effective := parseRegistryDate(item.EffectiveDate)
	expiry := parseRegistryDate(item.ExpiryDate)
	if effective != nil {
		doc.EffectiveDate = effective
		if expiry != nil {
			doc.ExpirationDate = expiry
		}
		state := string(doctree.DeriveState(effective, expiry, e.now()))
		doc.State = &state
	}

	if !doctree.Blank(doc.OrgPDFLink) || item.Slug == "" {
		return nil
	}
	resp, err := e.concetti.Do(ctx, fetch.Request{URL: "/documents/slug/" + url.PathEscape(item.Slug)})
	if err != nil {
		return fmt.Errorf("get registry document %s: %w", item.Slug, err)
	}
	if !resp.OK() {
		return nil
	}
	var detail concettiDocument
	if err := json.Unmarshal(resp.Body, &detail); err != nil || doctree.Blank(detail.PDFFile) {
		return nil
	}

	pdfURL := e.concetti.Resolve("/files/" + url.PathEscape(*detail.PDFFile) + "/fetch")
	doc.OrgPDFLink = &pdfURL
	if e.archiver == nil {
		return nil
	}
	local, err := e.archiver.ArchiveAs(ctx, pdfURL, *detail.PDFFile+".pdf")
	if err != nil {
		return fmt.Errorf("archive registry pdf: %w", err)
	}
	doc.FileLink = doctree.NonEmpty(local)
	return nil
}

func parseRegistryDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := *s
	if len(v) > len(registryDate) {
		v = v[:len(registryDate)]
	}
	t, err := time.Parse(registryDate, v)
	if err != nil {
		return nil
	}
	return &t
}
