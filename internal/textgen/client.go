// ABOUTME: Resty client for an OpenAI-compatible chat completion endpoint
// ABOUTME: Maps 429 and 503 responses to typed errors for caller backoff

package textgen

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/sjoekim64/dxchart/internal/config"
)

// Client calls a chat-completion style HTTP endpoint.
type Client struct {
	client *resty.Client
	model  string
	logger *slog.Logger
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates a generator backed by the configured endpoint.
func NewClient(cfg config.TextGenConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &Client{
		client: client,
		model:  cfg.Model,
		logger: slog.Default().With("component", "textgen"),
	}
}

// Generate sends the prompt and returns the first completion.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}
	if opts.JSON {
		req.ResponseFormat = &formatSpec{Type: "json_object"}
	}

	var result chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&result).
		Post("/v1/chat/completions")

	if err != nil {
		return "", fmt.Errorf("calling generation backend: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusTooManyRequests:
		return "", ErrRateLimited
	case http.StatusServiceUnavailable:
		return "", ErrOverloaded
	}

	if resp.IsError() {
		msg := "unknown error"
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("generation backend returned %d: %s", resp.StatusCode(), msg)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("generation backend returned no choices")
	}

	c.logger.Debug("generation completed", "model", c.model, "prompt_len", len(prompt))
	return result.Choices[0].Message.Content, nil
}

var _ Generator = (*Client)(nil)
