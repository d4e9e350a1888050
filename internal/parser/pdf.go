package parser

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// Running page furniture of gazette scans: a bare page number or the
// "Công báo" banner repeated at the top of every page.
var (
	pageNumberLine   = regexp.MustCompile(`^(-\s*)?\d{1,4}(\s*-)?$`)
	gazetteBannerRow = regexp.MustCompile(`^CÔNG BÁO/Số \d+`)
)

// PDFSource reads archived PDFs with ledongthuc/pdf. Scanned files carry no
// text layer; when UsePdftotext is set, poppler's pdftotext gets a second
// try before the file is given up on.
type PDFSource struct {
	UsePdftotext bool
}

func (p *PDFSource) Lines(path string) ([]Line, error) {
	rows, err := pdfRows(path)
	if (err != nil || len(rows) == 0) && p.UsePdftotext {
		var text string
		if text, err = pdftotext(path); err == nil {
			rows = strings.Split(text, "\n")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var lines []Line
	for _, row := range rows {
		t := Normalize(row)
		if t == "" || pageNumberLine.MatchString(t) || gazetteBannerRow.MatchString(t) {
			continue
		}
		lines = append(lines, Line{Text: t})
	}
	return lines, nil
}

// pdfRows returns the text rows of every page in reading order. Words of a
// row are joined with a space unless the fragment already carries one.
func pdfRows(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageRows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range pageRows {
			var b strings.Builder
			for _, word := range row.Content {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(word.S, " ") {
					b.WriteByte(' ')
				}
				b.WriteString(word.S)
			}
			rows = append(rows, b.String())
		}
	}
	return rows, nil
}

func pdftotext(path string) (string, error) {
	out, err := exec.Command("pdftotext", "-layout", "-enc", "UTF-8", path, "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
