package vectorstore

import (
	"context"

	"finrag/internal/node"
)

// Store persists embedded nodes and answers nearest-neighbor queries.
// It exclusively owns node state after ingestion hands nodes off.
type Store interface {
	// Init prepares the store for vectors of the given dimension.
	Init(ctx context.Context, dimension int) error
	// Add commits nodes with their vectors as one logical batch.
	Add(ctx context.Context, nodes []node.Node, vectors [][]float64) error
	// Search returns the topK most similar nodes, best first.
	Search(ctx context.Context, vector []float64, topK int) ([]node.Scored, error)
	// Count reports how many nodes are indexed.
	Count(ctx context.Context) (int, error)
	// Clear removes all indexed nodes.
	Clear(ctx context.Context) error
}
