package embedding

import "context"

// Embedder converts free text into a numeric vector representation.
// The question at query time must be embedded with the same model used
// at ingestion time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}
