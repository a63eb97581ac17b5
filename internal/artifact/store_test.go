package artifact

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"finrag/internal/detect"
)

func pageImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode page image: %v", err)
	}
	return buf.Bytes()
}

func TestName(t *testing.T) {
	if got := Name(3, 7); got != "p3_table_7.png" {
		t.Errorf("Name(3,7) = %q", got)
	}
}

func TestStore_SaveCrop(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	region := detect.Region{X1: 10, Y1: 20, X2: 110, Y2: 80, Score: 0.9, Label: "table"}
	path, err := s.SaveCrop(pageImage(t, 400, 300), region, 1, 0, false)
	if err != nil {
		t.Fatalf("SaveCrop: %v", err)
	}
	if filepath.Base(path) != "p1_table_0.png" {
		t.Errorf("unexpected artifact name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("artifact is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 60 {
		t.Errorf("crop dimensions = %dx%d, want 100x60", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestStore_SaveCropTruncatesFractionalCoordinates(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	region := detect.Region{X1: 10.7, Y1: 20.2, X2: 110.9, Y2: 80.5, Score: 0.9, Label: "table"}
	path, err := s.SaveCrop(pageImage(t, 400, 300), region, 2, 1, false)
	if err != nil {
		t.Fatalf("SaveCrop: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("artifact is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 60 {
		t.Errorf("crop dimensions = %dx%d, want 100x60", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestStore_NoOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	region := detect.Region{X1: 0, Y1: 0, X2: 50, Y2: 50}

	path, err := s.SaveCrop(pageImage(t, 100, 100), region, 2, 1, false)
	if err != nil {
		t.Fatalf("SaveCrop: %v", err)
	}
	// Replace the artifact with sentinel content.
	if err := os.WriteFile(path, []byte("sentinel"), 0o644); err != nil {
		t.Fatal(err)
	}

	again, err := s.SaveCrop(pageImage(t, 100, 100), region, 2, 1, false)
	if err != nil {
		t.Fatalf("second SaveCrop: %v", err)
	}
	if again != path {
		t.Errorf("path changed across runs: %s vs %s", path, again)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "sentinel" {
		t.Error("existing artifact was overwritten without force")
	}

	// With overwrite the crop is rewritten.
	if _, err := s.SaveCrop(pageImage(t, 100, 100), region, 2, 1, true); err != nil {
		t.Fatalf("forced SaveCrop: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) == "sentinel" {
		t.Error("forced save did not overwrite artifact")
	}
}

func TestStore_Clean(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tables")
	s := NewStore(dir)
	region := detect.Region{X1: 0, Y1: 0, X2: 10, Y2: 10}
	if _, err := s.SaveCrop(pageImage(t, 20, 20), region, 1, 0, false); err != nil {
		t.Fatal(err)
	}

	if err := s.Clean(); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("tables dir should be recreated: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty dir after Clean, found %d entries", len(entries))
	}
}

func TestStore_RegionOutsideBounds(t *testing.T) {
	s := NewStore(t.TempDir())
	region := detect.Region{X1: 500, Y1: 500, X2: 600, Y2: 600}
	if _, err := s.SaveCrop(pageImage(t, 100, 100), region, 1, 0, false); err == nil {
		t.Error("expected error for region outside page bounds")
	}
}
