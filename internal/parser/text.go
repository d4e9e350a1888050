package parser

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Normalize collapses every run of whitespace (NBSP included) into a single
// space and trims the result.
func Normalize(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == ' ' {
			space = true
			continue
		}
		if space && buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		space = false
		buf.WriteRune(r)
	}
	return buf.String()
}

// NodeText returns the normalized text of n and its descendants. A nil node
// yields "".
func NodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return Normalize(buf.String())
}

// TextLines splits plain text into lines, dropping blank ones.
func TextLines(r io.Reader) ([]Line, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []Line
	for scanner.Scan() {
		t := Normalize(scanner.Text())
		if t == "" {
			continue
		}
		lines = append(lines, Line{Text: t})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
