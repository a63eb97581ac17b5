package chunker

import (
	"strings"

	"finrag/internal/parser"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap between consecutive chunks in tokens.
	MinChunk     int // Minimum chunk size to emit.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1024,
		ChunkOverlap: 200,
		MinChunk:     20,
	}
}

// Chunk is a sized text segment with the page it came from.
type Chunk struct {
	Text  string
	Index int // Sequence number within the document.
	Page  int // Source page (1-based).
}

// ChunkDocument splits each page of a parsed filing into chunks.
// Chunks never span pages so that provenance stays exact.
func ChunkDocument(doc *parser.Document, cfg Config) []Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.MinChunk <= 0 {
		cfg.MinChunk = 20
	}

	var chunks []Chunk
	index := 0
	for _, page := range doc.Pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		if EstimateTokens(text) <= cfg.ChunkSize {
			chunks = append(chunks, Chunk{Text: text, Index: index, Page: page.Number})
			index++
			continue
		}
		for _, part := range splitText(text, cfg.ChunkSize, cfg.ChunkOverlap) {
			if EstimateTokens(part) < cfg.MinChunk {
				continue
			}
			chunks = append(chunks, Chunk{Text: part, Index: index, Page: page.Number})
			index++
		}
	}
	return chunks
}

// splitText breaks text into chunks of approximately targetTokens, with overlap.
func splitText(text string, targetTokens, overlapTokens int) []string {
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if currentTokens > 0 {
			result = append(result, current.String())
			current.Reset()
			currentTokens = 0
		}
	}

	appendPart := func(part string, tokens int) {
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(part)
		currentTokens += tokens
	}

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		// A single oversized paragraph gets split on sentence boundaries.
		if paraTokens > targetTokens {
			flush()
			for _, sent := range splitBySentences(para, targetTokens) {
				result = append(result, sent)
			}
			continue
		}

		if currentTokens+paraTokens > targetTokens {
			prev := current.String()
			flush()
			// Seed the next chunk with the tail of the previous one.
			if overlapTokens > 0 {
				tail := tailTokens(prev, overlapTokens)
				if tail != "" {
					appendPart(tail, EstimateTokens(tail))
				}
			}
		}
		appendPart(para, paraTokens)
	}
	flush()

	return result
}

func splitByParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitBySentences greedily packs sentences up to targetTokens each.
func splitBySentences(text string, targetTokens int) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, s := range sentences {
		tokens := EstimateTokens(s)
		if currentTokens+tokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			current.Reset()
			currentTokens = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
		currentTokens += tokens
	}
	if currentTokens > 0 {
		result = append(result, current.String())
	}
	return result
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// tailTokens returns roughly the last n tokens' worth of words.
func tailTokens(text string, n int) string {
	words := strings.Fields(text)
	// ~1.33 tokens per word, so n tokens span about n/1.33 words.
	count := int(float64(n) / 1.33)
	if count <= 0 || len(words) == 0 {
		return ""
	}
	if count > len(words) {
		count = len(words)
	}
	return strings.Join(words[len(words)-count:], " ")
}
