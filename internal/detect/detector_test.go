package detect

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFilter_ThresholdAndLabel(t *testing.T) {
	regions := []Region{
		{X1: 0, Y1: 0, X2: 100, Y2: 50, Score: 0.9, Label: "table"},
		{X1: 0, Y1: 0, X2: 100, Y2: 50, Score: 0.2, Label: "table"},  // below threshold
		{X1: 0, Y1: 0, X2: 100, Y2: 50, Score: 0.95, Label: "chart"}, // wrong class
		{X1: 50, Y1: 50, X2: 50, Y2: 90, Score: 0.9, Label: "table"}, // degenerate box
		{X1: 10, Y1: 10, X2: 90, Y2: 40, Score: 0.25, Label: "table"},
	}

	kept := Filter(regions, 0.25)
	if len(kept) != 2 {
		t.Fatalf("expected 2 regions kept, got %d", len(kept))
	}
	for _, r := range kept {
		if r.Score < 0.25 {
			t.Errorf("region with score %v below threshold survived", r.Score)
		}
		if r.Label != "table" {
			t.Errorf("non-table region survived: %q", r.Label)
		}
	}
}

func TestHTTPDetector_DetectTables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["image_b64"] == "" {
			t.Error("expected base64 image in request")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"boxes": []Region{
				{X1: 10, Y1: 20, X2: 200, Y2: 120, Score: 0.88, Label: "table"},
				{X1: 0, Y1: 0, X2: 50, Y2: 50, Score: 0.1, Label: "table"},
			},
		})
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, 0.25, discardLogger())
	regions, err := d.DetectTables(context.Background(), []byte("fake-png"))
	if err != nil {
		t.Fatalf("DetectTables: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	if regions[0].Score != 0.88 {
		t.Errorf("unexpected region: %+v", regions[0])
	}
}

func TestHTTPDetector_FractionalCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Detection models report sub-pixel box coordinates.
		w.Write([]byte(`{"boxes":[{"x1":10.5,"y1":20.25,"x2":200.9,"y2":120.1,"score":0.88,"label":"table"}]}`))
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, 0.25, discardLogger())
	regions, err := d.DetectTables(context.Background(), []byte("fake-png"))
	if err != nil {
		t.Fatalf("DetectTables: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	if regions[0].X1 != 10.5 || regions[0].Y2 != 120.1 {
		t.Errorf("fractional coordinates not preserved: %+v", regions[0])
	}
}

func TestHTTPDetector_UnavailableIsRecoverable(t *testing.T) {
	d := NewHTTPDetector("http://127.0.0.1:1", 0.25, discardLogger())
	regions, err := d.DetectTables(context.Background(), []byte("fake-png"))
	if err != nil {
		t.Fatalf("unavailable detector must not error, got %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("expected empty set, got %d regions", len(regions))
	}
}

func TestHTTPDetector_ServerErrorIsRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, 0.25, discardLogger())
	regions, err := d.DetectTables(context.Background(), []byte("fake-png"))
	if err != nil {
		t.Fatalf("server error must not fail ingestion, got %v", err)
	}
	if regions != nil {
		t.Errorf("expected nil regions, got %v", regions)
	}
}
