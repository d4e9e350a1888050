package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource turns an archived file into body lines for the segmenter.
type FileSource interface {
	Lines(path string) ([]Line, error)
}

// SupportedExtensions lists archived file types that can stand in for a
// missing HTML full text.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the appropriate source for a filename.
func ForFile(filename string) (FileSource, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return textSource{}, nil
	case ".html", ".htm":
		return htmlSource{}, nil
	case ".pdf":
		return &PDFSource{UsePdftotext: true}, nil
	case ".docx":
		return DOCXSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// FileLines reads the first supported file among paths. It returns nil lines
// when none of them yields any text.
func FileLines(paths []string) ([]Line, string, error) {
	var lastErr error
	for _, p := range paths {
		if !IsSupportedExtension(p) {
			continue
		}
		src, err := ForFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		lines, err := src.Lines(p)
		if err != nil {
			lastErr = fmt.Errorf("read %s: %w", filepath.Base(p), err)
			continue
		}
		if len(lines) > 0 {
			return lines, p, nil
		}
	}
	return nil, "", lastErr
}

type textSource struct{}

func (textSource) Lines(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return TextLines(f)
}

type htmlSource struct{}

func (htmlSource) Lines(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ft, ok, err := ParseBody(f)
	if err != nil || !ok {
		return nil, err
	}
	return ft.Lines, nil
}
