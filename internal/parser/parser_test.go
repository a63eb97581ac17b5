package parser

import (
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"filing.pdf", false},
		{"filing.PDF", false},
		{"exhibit.docx", false},
		{"report.html", false},
		{"notes.md", false},
		{"dump.txt", false},
		{"table.csv", false},
		{"image.png", true},
		{"archive.zip", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			_, err := ForFile(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Errorf("ForFile(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
		})
	}
}

func TestTextParser_Paragraphs(t *testing.T) {
	input := "First paragraph line one.\nline two.\n\n\nSecond paragraph.\n"
	doc, err := (&TextParser{}).Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Title != "notes" {
		t.Errorf("expected title 'notes', got %q", doc.Title)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	if !strings.Contains(doc.Pages[0].Text, "First paragraph line one.\nline two.") {
		t.Errorf("paragraph not preserved: %q", doc.Pages[0].Text)
	}
	if !strings.Contains(doc.Pages[0].Text, "Second paragraph.") {
		t.Errorf("second paragraph missing: %q", doc.Pages[0].Text)
	}
}

func TestCSVParser_RowsFlattened(t *testing.T) {
	input := "Year,Net Sales\n2024,391.04B\n"
	doc, err := (&CSVParser{}).Parse(strings.NewReader(input), "sales.csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	want := "Year | Net Sales\n2024 | 391.04B"
	if doc.Pages[0].Text != want {
		t.Errorf("expected %q, got %q", want, doc.Pages[0].Text)
	}
}

func TestHTMLParser_SkipsScriptAndExtractsBody(t *testing.T) {
	input := `<html><head><title>Annual Report</title><script>alert(1)</script></head>
<body><h1>Results</h1><p>Net sales grew in 2024.</p><script>x()</script></body></html>`
	doc, err := (&HTMLParser{}).Parse(strings.NewReader(input), "report.html")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Title != "Annual Report" {
		t.Errorf("expected title from <title>, got %q", doc.Title)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	text := doc.Pages[0].Text
	if !strings.Contains(text, "Net sales grew in 2024.") {
		t.Errorf("body text missing: %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "x()") {
		t.Errorf("script content leaked into text: %q", text)
	}
}

func TestMarkdownParser(t *testing.T) {
	input := "# Revenue\n\nNet sales were strong.\n\n- item one\n"
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "notes.md")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	text := doc.Pages[0].Text
	if !strings.Contains(text, "Revenue") || !strings.Contains(text, "Net sales were strong.") {
		t.Errorf("markdown content missing: %q", text)
	}
}

func TestDocumentText(t *testing.T) {
	doc := &Document{Pages: []Page{{Number: 1, Text: "a"}, {Number: 2, Text: "b"}}}
	if got := doc.Text(); got != "a\n\nb" {
		t.Errorf("Text() = %q", got)
	}
}
