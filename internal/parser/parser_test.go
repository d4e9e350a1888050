package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fumiama/go-docx"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFileLinesSkipsUnsupportedAndEmpty(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "vb.doc", "binary")
	empty := writeFile(t, dir, "trong.txt", "  \n\n")
	page := writeFile(t, dir, "vb.html", `<html><body><p>Điều 1. Phạm vi</p><p>Nội&nbsp;dung.</p></body></html>`)

	lines, used, err := FileLines([]string{doc, empty, page})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != page {
		t.Errorf("expected %s to be used, got %s", page, used)
	}
	if len(lines) != 2 || lines[1].Text != "Nội dung." {
		t.Errorf("expected two normalized lines, got %+v", lines)
	}
}

func TestFileLinesReportsUnreadable(t *testing.T) {
	lines, _, err := FileLines([]string{filepath.Join(t.TempDir(), "missing.txt")})
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if lines != nil {
		t.Errorf("expected no lines, got %+v", lines)
	}
}

func TestDOCXSource(t *testing.T) {
	w := docx.New().WithDefaultTheme()
	w.AddParagraph().AddText("Điều 1.   Phạm vi điều chỉnh")
	w.AddParagraph()
	w.AddParagraph().AddText("Nội dung")

	p := filepath.Join(t.TempDir(), "vb.docx")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteTo(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	lines, err := DOCXSource{}.Lines(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %+v", len(lines), lines)
	}
	if lines[0].Text != "Điều 1. Phạm vi điều chỉnh" {
		t.Errorf("expected normalized first line, got %q", lines[0].Text)
	}
}

func TestPageFurniture(t *testing.T) {
	for text, want := range map[string]bool{
		"12":                         true,
		"- 3 -":                      true,
		"CÔNG BÁO/Số 45 + 46/Ngày":   true,
		"Điều 12. Hiệu lực thi hành": false,
		"Khoản 2":                    false,
	} {
		got := pageNumberLine.MatchString(text) || gazetteBannerRow.MatchString(text)
		if got != want {
			t.Errorf("%q: expected furniture=%v, got %v", text, want, got)
		}
	}
}
