package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finrag/internal/llm"
	"finrag/internal/node"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i], _ = f.Embed(ctx, texts[i])
	}
	return out, nil
}

type fakeSearchStore struct {
	results []node.Scored
	count   int
}

func (f *fakeSearchStore) Init(ctx context.Context, dim int) error { return nil }
func (f *fakeSearchStore) Add(ctx context.Context, nodes []node.Node, vectors [][]float64) error {
	return nil
}
func (f *fakeSearchStore) Search(ctx context.Context, vector []float64, topK int) ([]node.Scored, error) {
	return f.results, nil
}
func (f *fakeSearchStore) Count(ctx context.Context) (int, error) { return f.count, nil }
func (f *fakeSearchStore) Clear(ctx context.Context) error        { return nil }

type fakeLLM struct {
	lastReq llm.Request
	answer  string
	err     error
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.Request) (string, error) {
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) Stats() llm.StatsSnapshot { return llm.StatsSnapshot{} }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAskAssemblesContextAndProvenance(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "p12_table_3.png")
	if err := os.WriteFile(imgPath, []byte("png"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	missingPath := filepath.Join(dir, "p40_table_9.png")

	store := &fakeSearchStore{
		count: 4,
		results: []node.Scored{
			{Node: node.Node{Kind: node.KindTableSummary, Page: 12, FileName: "p12_table_3.png",
				ImagePath: imgPath, Text: "Net sales were 391.04B in 2024."}, Score: 0.92},
			{Node: node.Node{Kind: node.KindText, Page: 22, FileName: "report.pdf",
				Text: "Management discussion of net sales."}, Score: 0.87},
			// Same artifact retrieved twice must appear once.
			{Node: node.Node{Kind: node.KindTableSummary, Page: 12, FileName: "p12_table_3.png",
				ImagePath: imgPath, Text: "Net sales were 391.04B in 2024."}, Score: 0.81},
			// Artifact deleted from disk must be dropped, not fail the query.
			{Node: node.Node{Kind: node.KindTableSummary, Page: 40, FileName: "p40_table_9.png",
				ImagePath: missingPath, Text: "Segment revenue table."}, Score: 0.70},
		},
	}
	client := &fakeLLM{answer: "Total net sales in 2024 were $391.04B (p12_table_3.png)."}

	engine := New(fakeEmbedder{}, store, client, "openai/gpt-4o-mini", 15, testLogger())
	answer, err := engine.Ask(context.Background(), "What was total net sales in 2024?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if !strings.Contains(answer.Text, "391.04") {
		t.Errorf("answer text = %q", answer.Text)
	}
	if len(answer.Images) != 1 || answer.Images[0] != imgPath {
		t.Errorf("images = %v, want exactly [%s]", answer.Images, imgPath)
	}
	if len(answer.Sources) != 4 {
		t.Errorf("sources = %d, want 4", len(answer.Sources))
	}
	if !strings.Contains(answer.Context, "--- Source: Table Image (p12_table_3.png) ---") {
		t.Error("context missing table source header")
	}
	if !strings.Contains(answer.Context, "--- Source: Text (Page 22) ---") {
		t.Error("context missing text source header")
	}

	if len(client.lastReq.Messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(client.lastReq.Messages))
	}
	if client.lastReq.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", client.lastReq.Messages[0].Role)
	}
	userText := client.lastReq.Messages[1].Parts[0].Text
	if !strings.Contains(userText, "User Question: What was total net sales in 2024?") {
		t.Error("user prompt missing the question")
	}
	if !strings.Contains(userText, "Net sales were 391.04B") {
		t.Error("user prompt missing retrieved context")
	}
}

func TestAskEmptyIndex(t *testing.T) {
	engine := New(fakeEmbedder{}, &fakeSearchStore{count: 0}, &fakeLLM{}, "m", 15, testLogger())
	_, err := engine.Ask(context.Background(), "anything")
	if err == nil || !strings.Contains(err.Error(), "ingest") {
		t.Errorf("err = %v, want empty-index guidance", err)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	engine := New(fakeEmbedder{}, &fakeSearchStore{count: 3}, &fakeLLM{}, "m", 15, testLogger())
	if _, err := engine.Ask(context.Background(), "   "); err == nil {
		t.Error("expected error for blank question")
	}
}

func TestAskSurfacesRateLimit(t *testing.T) {
	store := &fakeSearchStore{count: 1, results: []node.Scored{
		{Node: node.Node{Kind: node.KindText, Page: 1, Text: "context"}, Score: 0.5},
	}}
	client := &fakeLLM{err: &llm.APIError{StatusCode: 429, Provider: "openrouter", Message: "rate limited"}}

	engine := New(fakeEmbedder{}, store, client, "m", 15, testLogger())
	_, err := engine.Ask(context.Background(), "question")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) || !apiErr.RateLimited() {
		t.Errorf("err = %v, want wrapped rate-limit APIError", err)
	}
}
