package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const manifestFile = "manifest.json"

// ManifestEntry records one ingested document.
type ManifestEntry struct {
	Path       string    `json:"path"`
	Nodes      int       `json:"nodes"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Manifest maps document content fingerprints to their ingestion
// record. It is how repeated ingestion of an unchanged filing gets
// skipped instead of duplicating nodes.
type Manifest struct {
	dir       string
	Documents map[string]ManifestEntry `json:"documents"`
}

// LoadManifest reads the manifest from the storage dir, returning an
// empty one if none exists yet.
func LoadManifest(dir string) (*Manifest, error) {
	m := &Manifest{dir: dir, Documents: make(map[string]ManifestEntry)}
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Documents == nil {
		m.Documents = make(map[string]ManifestEntry)
	}
	return m, nil
}

// Has reports whether the fingerprint was already ingested.
func (m *Manifest) Has(fingerprint string) bool {
	_, ok := m.Documents[fingerprint]
	return ok
}

// Put records an ingestion and persists the manifest.
func (m *Manifest) Put(fingerprint string, entry ManifestEntry) error {
	m.Documents[fingerprint] = entry
	return m.save()
}

// Reset drops all records and persists the empty manifest.
func (m *Manifest) Reset() error {
	m.Documents = make(map[string]ManifestEntry)
	return m.save()
}

func (m *Manifest) save() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := filepath.Join(m.dir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return os.Rename(tmp, filepath.Join(m.dir, manifestFile))
}

// Fingerprint computes the content fingerprint of a file.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
