// ABOUTME: Tests for the text generation client against a stub server
// ABOUTME: Covers completions, JSON mode, and rate-limit/overload mapping

package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjoekim64/dxchart/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.TextGenConfig{
		Enabled: true,
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
}

func completionServer(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
}

func TestClient_Generate(t *testing.T) {
	var got chatRequest
	srv := completionServer(t, "generated narrative", &got)
	defer srv.Close()

	c := newTestClient(srv.URL)
	out, err := c.Generate(context.Background(), "summarize this chart", Options{})
	require.NoError(t, err)
	assert.Equal(t, "generated narrative", out)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "summarize this chart", got.Messages[0].Content)
	assert.Nil(t, got.ResponseFormat)
}

func TestClient_Generate_JSONMode(t *testing.T) {
	var got chatRequest
	srv := completionServer(t, `{"ok":true}`, &got)
	defer srv.Close()

	c := newTestClient(srv.URL)
	out, err := c.Generate(context.Background(), "extract fields", Options{JSON: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)

	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestClient_Generate_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Generate(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_Generate_Overloaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Generate(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, ErrOverloaded)
}

func TestClient_Generate_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "bad model"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Generate(context.Background(), "prompt", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")
}

func TestClient_Generate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Generate(context.Background(), "prompt", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Generate(context.Background(), "prompt", Options{})
	assert.Error(t, err)
}
