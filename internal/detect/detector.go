package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Region is a detected table location on a page image, in pixel
// coordinates of the rendered page. Detection models emit fractional
// pixels; truncation to the pixel grid happens at crop time.
type Region struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// Detector finds table regions on a page image. Implementations must be
// best-effort: detection failure skips tables for the page, never the
// page's text.
type Detector interface {
	DetectTables(ctx context.Context, pageImage []byte) ([]Region, error)
}

// HTTPDetector calls an external object-detection inference service.
// The pretrained weights run out of process; this client only ships the
// image and filters the returned boxes.
type HTTPDetector struct {
	url        string
	confidence float64
	httpClient *http.Client
	log        *slog.Logger
}

func NewHTTPDetector(url string, confidence float64, log *slog.Logger) *HTTPDetector {
	return &HTTPDetector{
		url:        url,
		confidence: confidence,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

type detectRequest struct {
	ImageB64 string `json:"image_b64"`
	MIME     string `json:"mime"`
}

type detectResponse struct {
	Boxes []Region `json:"boxes"`
}

// DetectTables returns the regions classified as "table" at or above the
// confidence threshold. Any transport or decoding failure is logged and
// reported as an empty set; the caller degrades to text-only indexing.
func (d *HTTPDetector) DetectTables(ctx context.Context, pageImage []byte) ([]Region, error) {
	body, err := json.Marshal(detectRequest{
		ImageB64: base64.StdEncoding.EncodeToString(pageImage),
		MIME:     "image/png",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.log.Warn("table detector unavailable", "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.log.Warn("table detector returned error", "status", resp.StatusCode)
		return nil, nil
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		d.log.Warn("table detector response unreadable", "error", err)
		return nil, nil
	}

	var out detectResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		d.log.Warn("table detector response malformed", "error", err)
		return nil, nil
	}

	return Filter(out.Boxes, d.confidence), nil
}

// Filter drops regions below the confidence threshold or not labelled
// as tables.
func Filter(regions []Region, confidence float64) []Region {
	var kept []Region
	for _, r := range regions {
		if r.Label != "table" {
			continue
		}
		if r.Score < confidence {
			continue
		}
		if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
