package summarize

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"finrag/internal/llm"
)

// TablePrompt asks the vision model for a retrieval-friendly description
// of a financial table image.
const TablePrompt = "Analyze this image of a financial table. " +
	"Output a comprehensive text summary of the data it contains, " +
	"including column headers and key row values, so that it can be retrieved via search. " +
	"Do not include Markdown formatting like ```json or ```text, just the clean summary."

// TableSummarizer describes cropped table images through the hosted
// vision model. Each call is a single attempt; the ingestion pipeline
// owns the retry policy.
type TableSummarizer struct {
	client llm.Client
	model  string
}

func NewTableSummarizer(client llm.Client, model string) *TableSummarizer {
	return &TableSummarizer{client: client, model: model}
}

// Summarize sends the table image at path to the vision model and
// returns its textual description.
func (s *TableSummarizer) Summarize(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read table image: %w", err)
	}

	req := llm.Request{
		Model: s.model,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Parts: []llm.Part{
				{Text: TablePrompt},
				{ImageB64: base64.StdEncoding.EncodeToString(data), ImageMIME: "image/png"},
			},
		}},
	}

	summary, err := s.client.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", filepath.Base(imagePath), err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("summarize %s: empty summary", filepath.Base(imagePath))
	}
	return summary, nil
}

// Placeholder is the summary indexed when the vision model keeps
// failing for a table. The table stays retrievable by filename and the
// crop image remains viewable.
func Placeholder(imagePath string) string {
	return fmt.Sprintf("Table extracted from %s (summary unavailable)", filepath.Base(imagePath))
}
