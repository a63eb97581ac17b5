package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"finrag/internal/llm"
	"finrag/internal/query"
)

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer     string         `json:"answer"`
	AnswerHTML string         `json:"answer_html"`
	Images     []string       `json:"images"`
	Sources    []query.Source `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	answer, err := s.engine.Ask(r.Context(), req.Question)
	if err != nil {
		var apiErr *llm.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.RateLimited():
			jsonError(w, "model provider rate limit: "+err.Error(), http.StatusTooManyRequests)
		case strings.Contains(err.Error(), "index is empty"):
			jsonError(w, err.Error(), http.StatusConflict)
		default:
			jsonError(w, "query failed: "+err.Error(), http.StatusBadGateway)
		}
		return
	}

	resp := queryResponse{
		Answer:     answer.Text,
		AnswerHTML: renderMarkdown(answer.Text),
		Images:     make([]string, 0, len(answer.Images)),
		Sources:    answer.Sources,
	}
	for _, img := range answer.Images {
		resp.Images = append(resp.Images, "/artifacts/"+filepath.Base(img))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleIndexInfo(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		jsonError(w, "index unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"nodes": count})
}

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"model": s.model,
		"stats": s.stats.Snapshot(),
	})
}

// renderMarkdown converts a model answer to HTML, falling back to an
// escaped <pre> block if conversion fails.
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "<pre>" + template.HTMLEscapeString(md) + "</pre>"
	}
	return buf.String()
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
