package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/parser"
)

// Properties walks every td under table. A cell whose text matches a rule's
// label has its following td converted and applied to doc. Returns the number
// of fields assigned.
func Properties(table *goquery.Selection, rules []Rule, doc *doctree.Document) int {
	n := 0
	table.Find("td").Each(func(_ int, cell *goquery.Selection) {
		label := parser.NodeText(cell.Get(0))
		for _, r := range rules {
			if !r.Label.MatchString(label) {
				continue
			}
			value := cell.NextAllFiltered("td").First()
			if value.Length() == 0 {
				continue
			}
			if Apply(doc, r.Field, r.Extract(parser.NodeText(value.Get(0)))) {
				n++
			}
		}
	})
	return n
}

// InfoList applies prefix rules to each li under list; the text after the
// matched label is the value.
func InfoList(list *goquery.Selection, rules []Rule, doc *doctree.Document) int {
	n := 0
	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := parser.NodeText(li.Get(0))
		for _, r := range rules {
			loc := r.Label.FindStringIndex(text)
			if loc == nil {
				continue
			}
			if Apply(doc, r.Field, r.Extract(strings.TrimSpace(text[loc[1]:]))) {
				n++
			}
			break
		}
	})
	return n
}
