package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

var (
	sectionPattern       = regexp.MustCompile(`^((Điều)|(Điều thứ)) \d+`)
	sectionNumberPattern = regexp.MustCompile(`\d+`)
	footerPattern        = regexp.MustCompile(`_{2,}`)
	appendixStartPattern = regexp.MustCompile(`^PHỤ LỤC$`)
)

// Result is the output of one segmentation pass.
type Result struct {
	Sections []doctree.Section
	// SubParts is nil when the body has no appendix.
	SubParts []doctree.AppendixSubPart
}

// Empty reports whether r is nil or found neither sections nor an appendix.
func (r *Result) Empty() bool {
	return r == nil || (len(r.Sections) == 0 && r.SubParts == nil)
}

// IsSectionStart reports whether a normalized line opens a numbered section.
func IsSectionStart(text string) bool {
	return sectionPattern.MatchString(text)
}

// Extract segments a document body into numbered sections. When an appendix
// start marker is met, the rest of the body is handed to SegmentAppendix and
// nothing after the marker is treated as a section.
//
// Extract holds no state between calls and may run concurrently for
// different documents.
func Extract(documentID int64, lines []Line) Result {
	var tracker Tracker

	// Hierarchy declared before the first section (e.g. a leading "Chương I").
	for i := range lines {
		if IsSectionStart(lines[i].Text) {
			break
		}
		tracker.Observe(lines, i)
	}

	var res Result
	for i, line := range lines {
		if appendixStartPattern.MatchString(line.Text) {
			res.SubParts = SegmentAppendix(documentID, lines[i:])
			return res
		}
		// Headings between a footer and the next section are not tracked.
		if !IsSectionStart(line.Text) {
			continue
		}
		res.Sections = append(res.Sections, readSection(documentID, lines, i, &tracker))
	}
	return res
}

// readSection builds the section opened at lines[start]. Hierarchy headings
// met while reading update tracker for the sections that follow.
func readSection(documentID int64, lines []Line, start int, tracker *Tracker) doctree.Section {
	number, name := sectionHeader(lines[start].Text)
	sec := doctree.Section{
		DocumentID: documentID,
		Number:     number,
		Hierarchy:  tracker.Cursor(),
	}

	var content []string
	if name != "" {
		if utf8.RuneCountInString(name) >= doctree.MaxSectionNameLen {
			content = append(content, name)
		} else {
			sec.Name = doctree.Str(name)
		}
	}

	for j := start + 1; j < len(lines); j++ {
		if tracker.Observe(lines, j) {
			j++ // the heading's title line
			continue
		}
		// The final line of the body closes the section without joining it;
		// it is usually the signature or recipient block.
		if endsSection(lines[j].Text) || j == len(lines)-1 {
			break
		}
		content = append(content, lines[j].Text)
	}

	sec.Content = strings.Join(content, "\n")
	return sec
}

func endsSection(text string) bool {
	return IsSectionStart(text) ||
		footerPattern.MatchString(text) ||
		appendixStartPattern.MatchString(text)
}

// sectionHeader splits "Điều 12. Tên điều" into 12 and "Tên điều".
func sectionHeader(text string) (int, string) {
	loc := sectionNumberPattern.FindStringIndex(text)
	if loc == nil {
		return 0, ""
	}
	number, _ := strconv.Atoi(text[loc[0]:loc[1]])

	rest := text[loc[1]:]
	idx := strings.IndexFunc(rest, isWordRune)
	if idx < 0 {
		return number, ""
	}
	return number, strings.TrimSpace(rest[idx:])
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
