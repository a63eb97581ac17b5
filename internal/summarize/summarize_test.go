package summarize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finrag/internal/llm"
)

type fakeLLM struct {
	got    llm.Request
	answer string
	err    error
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.Request) (string, error) {
	f.got = req
	return f.answer, f.err
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "p1_table_0.png")
	if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTableSummarizer_Summarize(t *testing.T) {
	fake := &fakeLLM{answer: "Columns: Year, Net Sales. 2024: 391.04B."}
	s := NewTableSummarizer(fake, "openai/gpt-4o-mini")

	summary, err := s.Summarize(context.Background(), writeImage(t))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "Columns: Year, Net Sales. 2024: 391.04B." {
		t.Errorf("unexpected summary: %q", summary)
	}

	if fake.got.Model != "openai/gpt-4o-mini" {
		t.Errorf("model not forwarded: %q", fake.got.Model)
	}
	if len(fake.got.Messages) != 1 || len(fake.got.Messages[0].Parts) != 2 {
		t.Fatalf("expected one message with text+image parts, got %+v", fake.got.Messages)
	}
	if !strings.Contains(fake.got.Messages[0].Parts[0].Text, "financial table") {
		t.Error("vision prompt missing")
	}
	if fake.got.Messages[0].Parts[1].ImageB64 == "" {
		t.Error("image part missing")
	}
}

func TestTableSummarizer_ErrorsPropagate(t *testing.T) {
	wantErr := &llm.APIError{StatusCode: 500, Provider: "openrouter", Message: "boom"}
	s := NewTableSummarizer(&fakeLLM{err: wantErr}, "m")

	_, err := s.Summarize(context.Background(), writeImage(t))
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped *APIError, got %v", err)
	}
	if !apiErr.Retryable() {
		t.Error("500 should be retryable for the pipeline")
	}
}

func TestTableSummarizer_MissingImage(t *testing.T) {
	s := NewTableSummarizer(&fakeLLM{answer: "x"}, "m")
	if _, err := s.Summarize(context.Background(), "/nonexistent/p9_table_9.png"); err == nil {
		t.Error("expected error for missing image file")
	}
}

func TestPlaceholder(t *testing.T) {
	got := Placeholder("/data/processed_tables/p2_table_1.png")
	if got != "Table extracted from p2_table_1.png (summary unavailable)" {
		t.Errorf("unexpected placeholder: %q", got)
	}
}
