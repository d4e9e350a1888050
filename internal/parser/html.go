package parser

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// Line is one paragraph of a document body, reduced to its normalized text.
// The segmenter only ever looks at a line's text and at the line after it.
type Line struct {
	Text string
}

// Lines builds a line slice from plain strings; handy for fixtures.
func Lines(texts ...string) []Line {
	out := make([]Line, len(texts))
	for i, t := range texts {
		out[i] = Line{Text: Normalize(t)}
	}
	return out
}

// FullText is the body container of a full-text page.
type FullText struct {
	HTML  string
	Lines []Line
}

// ParseFullText reads an HTML page and returns the lines of the first
// div carrying containerClass. ok is false when the container is missing or
// holds no lines, which callers treat as "not available from this source".
func ParseFullText(r io.Reader, containerClass string) (ft *FullText, ok bool, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, false, fmt.Errorf("parse html: %w", err)
	}

	container := doc.Find("div." + containerClass).First()
	if container.Length() == 0 {
		return nil, false, nil
	}

	raw, err := goquery.OuterHtml(container)
	if err != nil {
		return nil, false, fmt.Errorf("render container: %w", err)
	}

	lines := HTMLLines(container)
	ft = &FullText{HTML: raw, Lines: lines}
	return ft, len(lines) > 0, nil
}

// HTMLLines returns every <p> under container, or every <div> when the
// markup has no paragraphs at all.
func HTMLLines(container *goquery.Selection) []Line {
	nodes := container.Find("p")
	if nodes.Length() == 0 {
		nodes = container.Find("div")
	}

	lines := make([]Line, 0, nodes.Length())
	nodes.Each(func(_ int, s *goquery.Selection) {
		lines = append(lines, Line{Text: NodeText(s.Get(0))})
	})
	return lines
}

// ParseBody is ParseFullText for pages without a known container: the lines
// are taken from <body>.
func ParseBody(r io.Reader) (ft *FullText, ok bool, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, false, fmt.Errorf("parse html: %w", err)
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, false, nil
	}
	lines := HTMLLines(body)
	return &FullText{Lines: lines}, len(lines) > 0, nil
}
