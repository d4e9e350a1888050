package parser

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	got := Normalize("  Điều 1.\n\t Phạm vi  điều chỉnh  ")
	want := "Điều 1. Phạm vi điều chỉnh"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	if got := Normalize(" \n\t "); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestNodeText_NilNode(t *testing.T) {
	if got := NodeText(nil); got != "" {
		t.Errorf("expected empty string for nil node, got %q", got)
	}
}

func TestNodeText_NestedMarkup(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<p><b>Chương</b>  <span>I</span><br>tail</p>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var p *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			p = n
			return
		}
		for c := n.FirstChild; c != nil && p == nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if p == nil {
		t.Fatal("expected a <p> node")
	}
	if got := NodeText(p); got != "Chương I tail" {
		t.Errorf("expected %q, got %q", "Chương I tail", got)
	}
}

func TestTextLines_DropsBlankLines(t *testing.T) {
	input := "Điều 1. Phạm vi\n\n   \nNội dung.\n"
	lines, err := TextLines(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[1].Text != "Nội dung." {
		t.Errorf("expected %q, got %q", "Nội dung.", lines[1].Text)
	}
}
