package llm

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiProvider calls generateContent through the Google GenAI SDK.
type GeminiProvider struct {
	client   *genai.Client
	settings Settings
}

func NewGeminiProvider(ctx context.Context, apiKey, baseURL string, httpClient *http.Client, settings Settings) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if settings.Model == "" {
		settings.Model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiProvider{client: client, settings: settings}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(p.settings.Temperature)),
	}
	if p.settings.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.settings.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.settings.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	return resp.Text(), nil
}
