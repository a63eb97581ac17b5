package artifact

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Renderer rasterizes single PDF pages to PNG images.
type Renderer interface {
	RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// PdftoppmRenderer shells out to pdftoppm (poppler-utils), the same
// external-tool arrangement used for the pdftotext text fallback.
type PdftoppmRenderer struct {
	DPI int
}

func NewPdftoppmRenderer(dpi int) *PdftoppmRenderer {
	if dpi <= 0 {
		dpi = 150
	}
	return &PdftoppmRenderer{DPI: dpi}
}

// RenderPage renders one page (1-based) to PNG bytes.
func (r *PdftoppmRenderer) RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "finrag-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(r.DPI),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-singlefile",
		pdfPath, prefix,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, out)
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	return data, nil
}
