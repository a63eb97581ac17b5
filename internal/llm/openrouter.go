package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenRouterClient calls an OpenAI-compatible chat completions endpoint.
type OpenRouterClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	stats      *Stats
}

// NewOpenRouterClient returns a client against baseURL (e.g.
// https://openrouter.ai/api/v1).
func NewOpenRouterClient(baseURL, apiKey string, timeout time.Duration, stats *Stats) *OpenRouterClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenRouterClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		stats:      stats,
	}
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat sends one completion request and returns the answer text.
func (c *OpenRouterClient) Chat(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(encodeChatRequest(req))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &APIError{Provider: "openrouter", Message: err.Error()}
	}
	defer resp.Body.Close()
	if c.stats != nil {
		c.stats.Record(time.Since(start).Milliseconds())
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Provider:   "openrouter",
			Message:    string(respBody),
		}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Provider:   "openrouter",
			Message:    fmt.Sprintf("decode response: %s", err),
		}
	}
	if apiResp.Error != nil {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Provider:   "openrouter",
			Message:    fmt.Sprintf("%s: %s", apiResp.Error.Type, apiResp.Error.Message),
		}
	}
	if len(apiResp.Choices) == 0 {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Provider:   "openrouter",
			Message:    "empty choices in response",
		}
	}
	return apiResp.Choices[0].Message.Content, nil
}

func encodeChatRequest(req Request) chatRequest {
	out := chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		// Plain text messages use the string content form; multimodal
		// messages use the content-part array form.
		if len(m.Parts) == 1 && m.Parts[0].ImageB64 == "" {
			out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: m.Parts[0].Text})
			continue
		}
		parts := make([]chatContentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.ImageB64 != "" {
				mime := p.ImageMIME
				if mime == "" {
					mime = "image/png"
				}
				parts = append(parts, chatContentPart{
					Type: "image_url",
					ImageURL: &chatImageURL{
						URL:    fmt.Sprintf("data:%s;base64,%s", mime, p.ImageB64),
						Detail: "high",
					},
				})
			} else {
				parts = append(parts, chatContentPart{Type: "text", Text: p.Text})
			}
		}
		out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: parts})
	}
	return out
}

// Close releases idle connections.
func (c *OpenRouterClient) Close() {
	c.httpClient.CloseIdleConnections()
}
