package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Role values for chat messages.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Part is one piece of a message: text or an inline image.
type Part struct {
	Text      string
	ImageB64  string // base64-encoded image bytes, no data: prefix
	ImageMIME string // e.g. "image/png"
}

// Message is a role-tagged chat message.
type Message struct {
	Role  string
	Parts []Part
}

// Request is a provider-neutral chat completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client is the hosted-LLM adapter. Implementations translate Request
// into the provider's wire format and map failures to *APIError. Retry
// policy belongs to callers, never here.
type Client interface {
	Chat(ctx context.Context, req Request) (string, error)
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// APIError is the single error kind surfaced for provider failures:
// auth errors, rate limits, server errors, malformed responses. The
// provider's own message rides along for diagnostics.
type APIError struct {
	StatusCode int
	Provider   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, truncate(e.Message, 200))
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 || e.StatusCode == 0
}

// RateLimited reports whether the provider throttled the call.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
