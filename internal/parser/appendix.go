package parser

import (
	"regexp"
	"strings"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

// NoSubPart is the sub-part number recorded when an appendix has no
// distinguishable sub-parts.
const NoSubPart = "0"

var (
	// The token is validated separately so "Phụ lục Ivan" is not read as
	// sub-part "I".
	subPartPattern = regexp.MustCompile(`^Phụ\s*lục\s+([\p{L}\p{N}]+)`)
	romanPattern  = regexp.MustCompile(`^[IVX]+$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

// SegmentAppendix splits an appendix block into its sub-parts. lines[0] is
// the "PHỤ LỤC" marker and lines[1] the appendix title. The result is never
// empty.
func SegmentAppendix(documentID int64, lines []Line) []doctree.AppendixSubPart {
	var title string
	if len(lines) > 1 {
		title = lines[1].Text
	}

	var parts []doctree.AppendixSubPart
	for i := 2; i < len(lines); i++ {
		number, partTitle, ok := subPartHeader(lines[i].Text)
		if !ok {
			continue
		}

		part := doctree.AppendixSubPart{
			DocumentID:    documentID,
			Number:        number,
			AppendixTitle: title,
		}
		if partTitle != "" {
			part.Title = doctree.Str(partTitle)
		} else if i+1 < len(lines) {
			// Title sits on its own line below the marker.
			part.Title = doctree.Str(lines[i+1].Text)
			i++
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		parts = append(parts, doctree.AppendixSubPart{
			DocumentID:    documentID,
			Number:        NoSubPart,
			AppendixTitle: title,
		})
	}
	return parts
}

func subPartHeader(text string) (number, title string, ok bool) {
	m := subPartPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return "", "", false
	}
	number = text[m[2]:m[3]]
	if !romanPattern.MatchString(number) && !digitsPattern.MatchString(number) {
		return "", "", false
	}
	return number, strings.TrimSpace(text[m[3]:]), true
}
