package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiClient adapts the Gemini API to the Client interface. Images are
// sent as inline blobs.
type GeminiClient struct {
	client *genai.Client
	stats  *Stats
}

func NewGeminiClient(ctx context.Context, apiKey string, stats *Stats) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, stats: stats}, nil
}

// Chat sends one completion request and returns the answer text.
func (c *GeminiClient) Chat(ctx context.Context, req Request) (string, error) {
	contents, err := encodeGeminiContents(req.Messages)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, nil)
	if c.stats != nil {
		c.stats.Record(time.Since(start).Milliseconds())
	}
	if err != nil {
		return "", &APIError{Provider: "gemini", Message: err.Error()}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &APIError{Provider: "gemini", Message: "empty response"}
	}
	return text, nil
}

func encodeGeminiContents(messages []Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	for _, m := range messages {
		// Gemini has no separate system role in v1; fold system text
		// into the user turn.
		role := "user"
		var parts []*genai.Part
		for _, p := range m.Parts {
			if p.ImageB64 != "" {
				data, err := base64.StdEncoding.DecodeString(p.ImageB64)
				if err != nil {
					return nil, fmt.Errorf("decode image: %w", err)
				}
				mime := p.ImageMIME
				if mime == "" {
					mime = "image/png"
				}
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: mime, Data: data},
				})
			} else if p.Text != "" {
				parts = append(parts, &genai.Part{Text: p.Text})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents, nil
}
