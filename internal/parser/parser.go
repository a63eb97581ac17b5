package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is a parsed filing: a title plus per-page text. Formats
// without a page concept produce a single synthetic page.
type Document struct {
	Title string
	Pages []Page
}

// Page is the text of one source page.
type Page struct {
	Number int
	Text   string
}

// Text concatenates all page text, separated by blank lines.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, p := range d.Pages {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Parser converts raw filing bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists the file extensions ingestion can handle.
// Table detection only applies to PDFs; the rest are text-only.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".html": true,
	".htm":  true,
	".md":   true,
	".txt":  true,
	".csv":  true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
