package chunker

import (
	"strings"
	"testing"

	"finrag/internal/parser"
)

func TestChunkDocument_SmallPageFitsOneChunk(t *testing.T) {
	doc := &parser.Document{
		Title: "Small",
		Pages: []parser.Page{
			{Number: 3, Text: strings.Repeat("word ", 200)},
		},
	}

	cfg := Config{ChunkSize: 1024, ChunkOverlap: 200, MinChunk: 20}
	chunks := ChunkDocument(doc, cfg)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 {
		t.Errorf("expected index 0, got %d", chunks[0].Index)
	}
	if chunks[0].Page != 3 {
		t.Errorf("expected page 3, got %d", chunks[0].Page)
	}
}

func TestChunkDocument_LargePageRequiresSplitting(t *testing.T) {
	// ~3000 words, well above a 500-token target.
	largeText := strings.Repeat("The quick brown fox jumps over the lazy dog.\n\n", 300)

	doc := &parser.Document{
		Title: "Large",
		Pages: []parser.Page{{Number: 1, Text: largeText}},
	}

	cfg := Config{ChunkSize: 500, ChunkOverlap: 50, MinChunk: 10}
	chunks := ChunkDocument(doc, cfg)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks for large text, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
		}
		if c.Page != 1 {
			t.Errorf("chunk %d: expected page 1, got %d", i, c.Page)
		}
		// Paragraph boundaries allow slight overflow; 2x is a generous ceiling.
		if tokens := EstimateTokens(c.Text); tokens > cfg.ChunkSize*2 {
			t.Errorf("chunk %d: %d tokens exceeds 2x target %d", i, tokens, cfg.ChunkSize)
		}
	}
}

func TestChunkDocument_ChunksNeverSpanPages(t *testing.T) {
	doc := &parser.Document{
		Title: "Multi",
		Pages: []parser.Page{
			{Number: 1, Text: strings.Repeat("alpha ", 100)},
			{Number: 2, Text: strings.Repeat("beta ", 100)},
		},
	}

	chunks := ChunkDocument(doc, DefaultConfig())
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if strings.Contains(chunks[0].Text, "beta") || strings.Contains(chunks[1].Text, "alpha") {
		t.Error("chunk content crossed a page boundary")
	}
}

func TestChunkDocument_SkipsEmptyAndTinyContent(t *testing.T) {
	doc := &parser.Document{
		Title: "Sparse",
		Pages: []parser.Page{
			{Number: 1, Text: "   "},
			{Number: 2, Text: ""},
		},
	}
	chunks := ChunkDocument(doc, DefaultConfig())
	if len(chunks) != 0 {
		t.Errorf("expected no chunks from blank pages, got %d", len(chunks))
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"word", 1},
		{"one two three four five six seven eight", 10},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
