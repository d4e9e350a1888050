package parser

import (
	"regexp"
	"strings"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

// Structural markers. All of them are anchored at the start of the line so a
// reference such as "theo quy định tại Chương II" inside prose never matches.
var (
	bigPartPattern  = regexp.MustCompile(`^((Phần)|(Phần thứ)) (nhất|hai|ba|bốn|năm|sáu|bảy|tám|chín|mười)$`)
	chapterPattern  = regexp.MustCompile(`^Chương ([IVX]+.*)$`)
	partPattern     = regexp.MustCompile(`^Mục ([IVX]+.*)$`)
	partPattern2    = regexp.MustCompile(`^Mu.c ([IVX]+.*)$`) // mis-encoded "Mục"
	miniPartPattern = regexp.MustCompile(`^Tiểu mục ([IVX]+.*)$`)
)

// Level is one of the four structural levels above a section.
type Level int

const (
	LevelNone Level = iota
	LevelBigPart
	LevelChapter
	LevelPart
	LevelMiniPart
)

func (l Level) String() string {
	switch l {
	case LevelBigPart:
		return "big_part"
	case LevelChapter:
		return "chapter"
	case LevelPart:
		return "part"
	case LevelMiniPart:
		return "mini_part"
	}
	return "none"
}

// Marker is a recognized structural heading.
type Marker struct {
	Level  Level
	Number string
}

// Recognize classifies a normalized line. The zero Marker means the line is
// not a structural heading.
func Recognize(text string) Marker {
	switch {
	case bigPartPattern.MatchString(text):
		return Marker{Level: LevelBigPart, Number: bigPartNumber(text)}
	case chapterPattern.MatchString(text):
		return Marker{Level: LevelChapter, Number: chapterPattern.FindStringSubmatch(text)[1]}
	case partPattern.MatchString(text):
		return Marker{Level: LevelPart, Number: partPattern.FindStringSubmatch(text)[1]}
	case partPattern2.MatchString(text):
		return Marker{Level: LevelPart, Number: partPattern2.FindStringSubmatch(text)[1]}
	case miniPartPattern.MatchString(text):
		return Marker{Level: LevelMiniPart, Number: miniPartPattern.FindStringSubmatch(text)[1]}
	}
	return Marker{}
}

func bigPartNumber(text string) string {
	if rest, ok := strings.CutPrefix(text, "Phần thứ "); ok {
		return rest
	}
	return strings.TrimPrefix(text, "Phần ")
}

// Tracker carries the hierarchy context of one segmentation pass. It is not
// safe for concurrent use; each pass owns its own Tracker.
type Tracker struct {
	cur doctree.Cursor
}

// Cursor returns a deep copy of the current context.
func (t *Tracker) Cursor() doctree.Cursor {
	return t.cur.Clone()
}

// Observe feeds lines[i] to the tracker. It returns true when the line is a
// structural heading, in which case the caller must not treat it as content.
// The heading's title is taken from lines[i+1].
func (t *Tracker) Observe(lines []Line, i int) bool {
	m := Recognize(lines[i].Text)
	if m.Level == LevelNone {
		return false
	}

	number := doctree.Str(m.Number)
	var name *string
	if i+1 < len(lines) {
		name = doctree.Str(lines[i+1].Text)
	}

	switch m.Level {
	case LevelBigPart:
		t.cur.BigPartNumber, t.cur.BigPartName = number, name
		t.cur.ChapterNumber, t.cur.ChapterName = nil, nil
		t.resetParts()
	case LevelChapter:
		t.cur.ChapterNumber, t.cur.ChapterName = number, name
		t.resetParts()
	case LevelPart:
		t.cur.PartNumber, t.cur.PartName = number, name
	case LevelMiniPart:
		t.cur.MiniPartNumber, t.cur.MiniPartName = number, name
	}
	return true
}

func (t *Tracker) resetParts() {
	t.cur.PartNumber, t.cur.PartName = nil, nil
	t.cur.MiniPartNumber, t.cur.MiniPartName = nil, nil
}
