package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/internal/common/config"
	"sales-insight-workers/internal/common/logger"
)

type stubProvider struct {
	text    string
	err     error
	prompts []string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.text, s.err
}

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
		want     string
	}{
		{"success", &stubProvider{text: "Total revenue is 42"}, "Total revenue is 42"},
		{"provider error", &stubProvider{err: errors.New("quota exceeded")}, "Error generating response: quota exceeded"},
		{"empty output", &stubProvider{text: "  \n"}, EmptyResponseText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.provider, time.Second, logger.NewTestLogger(t))
			got := client.Generate(context.Background(), "prompt")
			assert.Equal(t, tt.want, got)
			assert.Len(t, tt.provider.prompts, 1, "no retry on failure")
		})
	}
}

func TestIsFailureText(t *testing.T) {
	assert.True(t, IsFailureText("Error generating response: boom"))
	assert.True(t, IsFailureText(EmptyResponseText))
	assert.False(t, IsFailureText("Revenue grew 12%"))
}

func TestGeminiProvider_Complete(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello from gemini"}]}}]}`))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(context.Background(), "test-key", server.URL, server.Client(), Settings{
		Model:       "gemini-2.5-flash",
		Temperature: 0.3,
		MaxTokens:   8000,
	})
	require.NoError(t, err)

	text, err := provider.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", text)
	assert.True(t, strings.HasSuffix(gotPath, "gemini-2.5-flash:generateContent"), gotPath)
	assert.Contains(t, gotBody, "contents")
}

func TestGeminiProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(context.Background(), "test-key", server.URL, server.Client(), Settings{Model: "gemini-2.5-flash"})
	require.NoError(t, err)

	client := NewClient(provider, 5*time.Second, logger.NewTestLogger(t))
	got := client.Generate(context.Background(), "hi")
	assert.True(t, strings.HasPrefix(got, ErrorPrefix), got)
}

func TestAnthropicProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "hello "}, {"type": "text", "text": "from claude"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 4}
		}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider("test-key", server.URL, server.Client(), Settings{Model: "claude-sonnet-4-5", MaxTokens: 100})
	require.NoError(t, err)

	text, err := provider.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", text)
}

func TestNewGateway_Providers(t *testing.T) {
	log := logger.NewNoOpLogger()

	_, err := NewGateway(context.Background(), config.APIsConfig{
		GenAI: config.GenAIConfig{Provider: "openai"},
	}, nil, log)
	assert.ErrorIs(t, err, ErrProviderNotSupported)

	_, err = NewGateway(context.Background(), config.APIsConfig{
		GenAI: config.GenAIConfig{Provider: "gemini"},
	}, nil, log)
	assert.Error(t, err, "missing api key")

	gw, err := NewGateway(context.Background(), config.APIsConfig{
		GenAI:     config.GenAIConfig{Provider: "anthropic", Timeout: 1000},
		Anthropic: config.AnthropicConfig{APIKey: "k", Model: "claude-sonnet-4-5"},
	}, nil, log)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", gw.provider.Name())
	assert.Equal(t, time.Second, gw.timeout)
}
