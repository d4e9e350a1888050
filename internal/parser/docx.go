package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXSource reads archived .docx files. Every body paragraph is a line;
// tables (the issuing-authority header and the signature block of most
// documents) contribute one line per non-empty cell paragraph.
type DOCXSource struct{}

func (DOCXSource) Lines(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat docx: %w", err)
	}
	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx %s: %w", info.Name(), err)
	}

	var lines []Line
	add := func(para *docx.Paragraph) {
		if t := paragraphText(para); t != "" {
			lines = append(lines, Line{Text: t})
		}
	}
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			add(it)
		case *docx.Table:
			for _, row := range it.TableRows {
				for _, cell := range row.TableCells {
					for _, para := range cell.Paragraphs {
						add(para)
					}
				}
			}
		}
	}
	return lines, nil
}

// paragraphText joins the text runs of a paragraph, including those nested
// in hyperlinks.
func paragraphText(para *docx.Paragraph) string {
	var b strings.Builder
	writeRun := func(run *docx.Run) {
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				b.WriteString(t.Text)
			}
		}
	}
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRun(c)
		case *docx.Hyperlink:
			writeRun(&c.Run)
		}
	}
	return Normalize(b.String())
}
