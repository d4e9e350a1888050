package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognize(t *testing.T) {
	cases := []struct {
		text   string
		level  Level
		number string
	}{
		{"Phần thứ nhất", LevelBigPart, "nhất"},
		{"Phần hai", LevelBigPart, "hai"},
		{"Chương IV", LevelChapter, "IV"},
		{"Mục II", LevelPart, "II"},
		{"Mục III", LevelPart, "III"},
		{"Tiểu mục I", LevelMiniPart, "I"},
		{"Phần thứ nhất của luật", LevelNone, ""},
		{"theo Chương II của Luật này", LevelNone, ""},
		{"Chương trình hành động", LevelNone, ""},
		{"Điều 1. Phạm vi", LevelNone, ""},
	}
	for _, c := range cases {
		m := Recognize(c.text)
		assert.Equal(t, c.level, m.Level, "level for %q", c.text)
		assert.Equal(t, c.number, m.Number, "number for %q", c.text)
	}
}

func TestTracker_ChapterResetsPartsOnly(t *testing.T) {
	lines := Lines(
		"Phần thứ nhất", "Quy định chung",
		"Chương I", "Phạm vi",
		"Mục I", "Mục một",
		"Tiểu mục I", "Tiểu mục một",
		"Chương II", "Đối tượng",
	)
	var tr Tracker
	for i := 0; i < len(lines); i += 2 {
		require.True(t, tr.Observe(lines, i), "line %d", i)
	}

	cur := tr.Cursor()
	require.NotNil(t, cur.BigPartNumber)
	assert.Equal(t, "nhất", *cur.BigPartNumber)
	assert.Equal(t, "Quy định chung", *cur.BigPartName)
	assert.Equal(t, "II", *cur.ChapterNumber)
	assert.Equal(t, "Đối tượng", *cur.ChapterName)
	assert.Nil(t, cur.PartNumber)
	assert.Nil(t, cur.PartName)
	assert.Nil(t, cur.MiniPartNumber)
	assert.Nil(t, cur.MiniPartName)
}

func TestTracker_BigPartResetsEverythingBelow(t *testing.T) {
	lines := Lines("Chương I", "A", "Mục I", "B", "Phần thứ hai", "C")
	var tr Tracker
	tr.Observe(lines, 0)
	tr.Observe(lines, 2)
	tr.Observe(lines, 4)

	cur := tr.Cursor()
	assert.Equal(t, "hai", *cur.BigPartNumber)
	assert.Nil(t, cur.ChapterNumber)
	assert.Nil(t, cur.ChapterName)
	assert.Nil(t, cur.PartNumber)
}

func TestTracker_HeadingOnLastLineHasNoTitle(t *testing.T) {
	lines := Lines("Chương III")
	var tr Tracker
	require.True(t, tr.Observe(lines, 0))
	cur := tr.Cursor()
	assert.Equal(t, "III", *cur.ChapterNumber)
	assert.Nil(t, cur.ChapterName)
}

func TestTracker_CursorIsDeepCopy(t *testing.T) {
	lines := Lines("Chương I", "Một", "Chương II", "Hai")
	var tr Tracker
	tr.Observe(lines, 0)
	snap := tr.Cursor()
	tr.Observe(lines, 2)

	assert.Equal(t, "I", *snap.ChapterNumber)
	assert.Equal(t, "Một", *snap.ChapterName)
}
