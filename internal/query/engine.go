package query

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"finrag/internal/embedding"
	"finrag/internal/llm"
	"finrag/internal/node"
	"finrag/internal/vectorstore"
)

const systemPrompt = "You are a financial analyst assistant. " +
	"Answer the user's question based ONLY on the context provided below. " +
	"The context includes text from the report and summaries of data tables. " +
	"Crucially, cite the Page Number (e.g., 'Page 22') or Table filename for every fact you state."

// Source is one retrieved node, exposed for provenance display.
type Source struct {
	Kind      node.Kind `json:"kind"`
	Page      int       `json:"page"`
	FileName  string    `json:"file_name"`
	ImagePath string    `json:"image_path,omitempty"`
	Score     float64   `json:"score"`
}

// Answer is a synthesized response plus the table images that grounded
// it. Images are deduplicated and verified to exist on disk.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
	Images  []string `json:"images"`
	Context string   `json:"-"`
}

// Engine answers questions over the indexed filings.
type Engine struct {
	embedder embedding.Embedder
	store    vectorstore.Store
	client   llm.Client
	model    string
	topK     int
	log      *slog.Logger
}

func New(embedder embedding.Embedder, store vectorstore.Store, client llm.Client, model string, topK int, log *slog.Logger) *Engine {
	if topK <= 0 {
		topK = 15
	}
	return &Engine{
		embedder: embedder,
		store:    store,
		client:   client,
		model:    model,
		topK:     topK,
		log:      log,
	}
}

// Ask retrieves the topK most similar nodes and synthesizes an answer
// from them. Retrieval-only failures (missing artifact files) degrade
// with a warning; embedding, search, and LLM failures are returned.
func (e *Engine) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	count, err := e.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("index is empty: ingest a document first")
	}

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	scored, err := e.store.Search(ctx, vector, e.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	answer := &Answer{}
	var ctxBuilder strings.Builder
	seen := make(map[string]bool)
	for _, s := range scored {
		answer.Sources = append(answer.Sources, Source{
			Kind:      s.Node.Kind,
			Page:      s.Node.Page,
			FileName:  s.Node.FileName,
			ImagePath: s.Node.ImagePath,
			Score:     s.Score,
		})
		if s.Node.IsTable() {
			fmt.Fprintf(&ctxBuilder, "\n--- Source: Table Image (%s) ---\n%s\n", s.Node.FileName, s.Node.Text)
		} else {
			fmt.Fprintf(&ctxBuilder, "\n--- Source: Text (Page %d) ---\n%s\n", s.Node.Page, s.Node.Text)
		}
		if s.Node.ImagePath == "" || seen[s.Node.ImagePath] {
			continue
		}
		seen[s.Node.ImagePath] = true
		if _, err := os.Stat(s.Node.ImagePath); err != nil {
			e.log.Warn("source image missing on disk, dropping from answer", "path", s.Node.ImagePath)
			continue
		}
		answer.Images = append(answer.Images, s.Node.ImagePath)
	}
	answer.Context = ctxBuilder.String()

	prompt := fmt.Sprintf("Context:\n%s\n\nUser Question: %s\nAnswer:", answer.Context, question)
	text, err := e.client.Chat(ctx, llm.Request{
		Model: e.model,
		Messages: []llm.Message{
			llm.TextMessage(llm.RoleSystem, systemPrompt),
			llm.TextMessage(llm.RoleUser, prompt),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}
	answer.Text = strings.TrimSpace(text)

	e.log.Info("answered query",
		"sources", len(answer.Sources),
		"images", len(answer.Images),
	)
	return answer, nil
}
