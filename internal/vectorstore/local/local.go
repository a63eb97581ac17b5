package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"finrag/internal/node"
)

const indexFile = "index.json"

// Store is a brute-force cosine-similarity store persisted as JSON
// under the storage directory. Fine for single-filing corpora; larger
// deployments use the qdrant backend.
type Store struct {
	mu        sync.RWMutex
	dir       string
	dimension int
	nodes     []node.Node
	vectors   [][]float64
}

// Open loads any previously persisted index from dir.
func Open(dir string) (*Store, error) {
	s := &Store{dir: dir}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

type persisted struct {
	Dimension int         `json:"dimension"`
	Nodes     []node.Node `json:"nodes"`
	Vectors   [][]float64 `json:"vectors"`
}

func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read index: %w", err)
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}
	s.dimension = p.Dimension
	s.nodes = p.Nodes
	s.vectors = p.Vectors
	return nil
}

// persistLocked writes the index atomically via a temp file rename.
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	data, err := json.Marshal(persisted{
		Dimension: s.dimension,
		Nodes:     s.nodes,
		Vectors:   s.vectors,
	})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp := filepath.Join(s.dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, indexFile)); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("dimension mismatch: index has %d, got %d", s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Store) Add(ctx context.Context, nodes []node.Node, vectors [][]float64) error {
	if len(nodes) != len(vectors) {
		return errors.New("nodes and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: want %d, got %d", s.dimension, len(v))
		}
	}
	s.nodes = append(s.nodes, nodes...)
	s.vectors = append(s.vectors, vectors...)
	return s.persistLocked()
}

func (s *Store) Search(ctx context.Context, vector []float64, topK int) ([]node.Scored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}

	scored := make([]node.Scored, len(s.vectors))
	for i := range s.vectors {
		scored[i] = node.Scored{Node: s.nodes[i], Score: cosine(s.vectors[i], vector)}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nil
	s.vectors = nil
	return s.persistLocked()
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
