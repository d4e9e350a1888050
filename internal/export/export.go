// Package export renders stored documents for preview.
package export

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/parser"
	"github.com/HaHongDo/vbpl-web-crawl/internal/store"
)

// Format is a preview output format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat maps a query value to a Format, defaulting to Markdown.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, true
	case "html":
		return FormatHTML, true
	}
	return "", false
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

const dateLayout = "02/01/2006"

var excessiveLines = regexp.MustCompile(`\n{3,}`)

// Renderer turns a stored document into Markdown or HTML. It is safe for
// concurrent use.
type Renderer struct {
	converter *md.Converter
	markdown  goldmark.Markdown
}

func NewRenderer() *Renderer {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Renderer{
		converter: converter,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Render renders view in format f.
func (r *Renderer) Render(view *store.DocumentView, f Format) ([]byte, error) {
	text, err := r.Markdown(view)
	if err != nil {
		return nil, err
	}
	if f != FormatHTML {
		return []byte(text), nil
	}
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(text), &buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// Markdown builds the preview: a property list, the body grouped under its
// hierarchy headings, the appendix and both link graphs. A document without
// segmented sections falls back to its full-text HTML snapshot.
func (r *Renderer) Markdown(view *store.DocumentView) (string, error) {
	if view == nil || view.Document == nil {
		return "", fmt.Errorf("render markdown: no document")
	}
	doc := view.Document

	var b strings.Builder
	title := doctree.Value(doc.Title)
	if title == "" {
		title = "Văn bản " + strconv.FormatInt(doc.ID, 10)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	writeProperties(&b, doc)

	switch {
	case len(view.Sections) > 0:
		writeSections(&b, view.Sections)
	case !doctree.Blank(doc.HTML):
		body, err := r.converter.ConvertString(*doc.HTML)
		if err != nil {
			return "", fmt.Errorf("convert full text of document %d: %w", doc.ID, err)
		}
		b.WriteString("## Toàn văn\n\n")
		b.WriteString(strings.TrimSpace(body))
		b.WriteString("\n\n")
	}

	writeAppendix(&b, view.SubParts)
	writeLinks(&b, "Văn bản liên quan", view.Related)
	writeLinks(&b, "Lược đồ", view.DocMaps)

	return excessiveLines.ReplaceAllString(strings.TrimSpace(b.String()), "\n\n") + "\n", nil
}

func writeProperties(b *strings.Builder, doc *doctree.Document) {
	props := []struct {
		label, value string
	}{
		{"ID văn bản", strconv.FormatInt(doc.ID, 10)},
		{"Tiêu đề phụ", doctree.Value(doc.SubTitle)},
		{"Loại văn bản", doctree.Value(doc.DocType)},
		{"Số ký hiệu", doctree.Value(doc.SerialNumber)},
		{"Ngày ban hành", date(doc.IssuanceDate)},
		{"Ngày có hiệu lực", date(doc.EffectiveDate)},
		{"Ngày hết hiệu lực", date(doc.ExpirationDate)},
		{"Ngày đăng công báo", date(doc.GazetteDate)},
		{"Trạng thái", doctree.Value(doc.State)},
		{"Cơ quan ban hành/ Chức danh / Người ký", doctree.Value(doc.IssuingAuthority)},
		{"Thông tin áp dụng", doctree.Value(doc.ApplicableInfo)},
		{"Lĩnh vực", doctree.Value(doc.Sector)},
		{"Đường dẫn đến văn bản gốc", doctree.Value(doc.OrgPDFLink)},
		{"Đường dẫn lưu file", doctree.Value(doc.FileLink)},
	}
	b.WriteString("| Thuộc tính | Giá trị |\n| --- | --- |\n")
	for _, p := range props {
		if strings.TrimSpace(p.value) == "" {
			continue
		}
		fmt.Fprintf(b, "| %s | %s |\n", p.label, cell(p.value))
	}
	b.WriteString("\n")
}

// heading levels below the document title
var levels = []struct {
	depth  int
	prefix string
	number func(doctree.Cursor) *string
	name   func(doctree.Cursor) *string
}{
	{2, "Phần thứ", func(c doctree.Cursor) *string { return c.BigPartNumber }, func(c doctree.Cursor) *string { return c.BigPartName }},
	{3, "Chương", func(c doctree.Cursor) *string { return c.ChapterNumber }, func(c doctree.Cursor) *string { return c.ChapterName }},
	{4, "Mục", func(c doctree.Cursor) *string { return c.PartNumber }, func(c doctree.Cursor) *string { return c.PartName }},
	{5, "Tiểu mục", func(c doctree.Cursor) *string { return c.MiniPartNumber }, func(c doctree.Cursor) *string { return c.MiniPartName }},
}

// writeSections emits a hierarchy heading whenever a level changes between
// consecutive sections. A change at one level reopens every level below it.
func writeSections(b *strings.Builder, sections []doctree.Section) {
	var prev *doctree.Cursor
	for _, s := range sections {
		cur := s.Hierarchy
		changed := prev == nil
		for _, l := range levels {
			if !changed {
				changed = doctree.Value(l.number(cur)) != doctree.Value(l.number(*prev)) ||
					doctree.Value(l.name(cur)) != doctree.Value(l.name(*prev))
			}
			if !changed || l.number(cur) == nil {
				continue
			}
			fmt.Fprintf(b, "%s %s %s", strings.Repeat("#", l.depth), l.prefix, *l.number(cur))
			if name := doctree.Value(l.name(cur)); name != "" {
				fmt.Fprintf(b, ". %s", name)
			}
			b.WriteString("\n\n")
		}
		prev = &cur

		fmt.Fprintf(b, "###### Điều %d", s.Number)
		if name := doctree.Value(s.Name); name != "" {
			fmt.Fprintf(b, ". %s", name)
		}
		b.WriteString("\n\n")
		for _, line := range strings.Split(s.Content, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				b.WriteString(line)
				b.WriteString("\n\n")
			}
		}
	}
}

func writeAppendix(b *strings.Builder, parts []doctree.AppendixSubPart) {
	if len(parts) == 0 {
		return
	}
	b.WriteString("## Phụ lục")
	if t := parts[0].AppendixTitle; t != "" {
		fmt.Fprintf(b, ": %s", t)
	}
	b.WriteString("\n\n")
	for _, p := range parts {
		if p.Number == parser.NoSubPart {
			continue
		}
		fmt.Fprintf(b, "- Phụ lục %s", p.Number)
		if t := doctree.Value(p.Title); t != "" {
			fmt.Fprintf(b, ": %s", t)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeLinks(b *strings.Builder, heading string, links []doctree.LinkedDocument) {
	if len(links) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, l := range links {
		fmt.Fprintf(b, "- %s: %d", l.Label, l.ID)
		if t := doctree.Value(l.Title); t != "" {
			fmt.Fprintf(b, " %s", t)
		}
		if st := doctree.Value(l.SubTitle); st != "" {
			fmt.Fprintf(b, " (%s)", st)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
