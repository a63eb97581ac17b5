package artifact

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"finrag/internal/detect"
)

// Store persists cropped table images under the processed-tables
// directory with deterministic names, so re-running ingestion on the
// same document produces the same artifact paths.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the processed-tables directory.
func (s *Store) Dir() string { return s.dir }

// Name returns the deterministic artifact filename for a table:
// p{page}_table_{index}.png, with index counted across the document.
func Name(page, tableIndex int) string {
	return fmt.Sprintf("p%d_table_%d.png", page, tableIndex)
}

// SaveCrop crops the region out of the page image and writes it. An
// artifact that already exists is left untouched unless overwrite is
// set, keeping repeated runs idempotent.
func (s *Store) SaveCrop(pageImage []byte, region detect.Region, page, tableIndex int, overwrite bool) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create tables dir: %w", err)
	}

	path := filepath.Join(s.dir, Name(page, tableIndex))
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	img, _, err := image.Decode(bytes.NewReader(pageImage))
	if err != nil {
		return "", fmt.Errorf("decode page image: %w", err)
	}

	crop, err := cropImage(img, region)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return "", fmt.Errorf("encode crop: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// Clean removes every artifact from prior runs. Used by force re-ingest.
func (s *Store) Clean() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("clean tables dir: %w", err)
	}
	return os.MkdirAll(s.dir, 0o755)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func cropImage(img image.Image, region detect.Region) (image.Image, error) {
	bounds := img.Bounds()
	rect := image.Rect(int(region.X1), int(region.Y1), int(region.X2), int(region.Y2)).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("region %v outside page bounds %v", region, bounds)
	}
	si, ok := img.(subImager)
	if !ok {
		// Decoded PNGs always support SubImage; fall back to a copy for
		// exotic image types.
		out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		for y := 0; y < rect.Dy(); y++ {
			for x := 0; x < rect.Dx(); x++ {
				out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
			}
		}
		return out, nil
	}
	return si.SubImage(rect), nil
}
