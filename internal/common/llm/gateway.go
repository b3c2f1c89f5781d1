// Package llm is the single point through which the pipeline talks to a
// hosted language model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sales-insight-workers/internal/common/config"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/metrics"
)

// EmptyResponseText is returned in place of a blank completion.
const EmptyResponseText = "Error: LLM returned empty response. The prompt may be too long or complex."

// ErrorPrefix starts every text produced for a failed provider call.
const ErrorPrefix = "Error generating response: "

var ErrProviderNotSupported = errors.New("LLM_PROVIDER_NOT_SUPPORTED")

// Gateway turns a prompt into text. It never fails: provider errors come back
// as descriptive text.
type Gateway interface {
	Generate(ctx context.Context, prompt string) string
}

// Provider is one hosted model API.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Settings are the generation parameters shared by all providers.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client is the Gateway implementation over a Provider.
type Client struct {
	provider Provider
	timeout  time.Duration
	log      logger.Logger
}

// NewClient wraps an already constructed provider.
func NewClient(provider Provider, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		provider: provider,
		timeout:  timeout,
		log:      log.With(map[string]interface{}{"llmProvider": provider.Name()}),
	}
}

// NewGateway builds the provider named in cfg.GenAI.Provider.
func NewGateway(ctx context.Context, cfg config.APIsConfig, httpClient *http.Client, log logger.Logger) (*Client, error) {
	settings := Settings{
		Model:       cfg.GenAI.Model,
		Temperature: cfg.GenAI.Temperature,
		MaxTokens:   cfg.GenAI.MaxTokens,
		Timeout:     config.GetDuration(cfg.GenAI.Timeout),
	}

	var (
		provider Provider
		err      error
	)
	switch strings.ToLower(cfg.GenAI.Provider) {
	case "", "gemini":
		provider, err = NewGeminiProvider(ctx, cfg.GenAI.APIKey, cfg.GenAI.BaseURL, httpClient, settings)
	case "anthropic":
		settings.Model = cfg.Anthropic.Model
		provider, err = NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, httpClient, settings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrProviderNotSupported, cfg.GenAI.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewClient(provider, settings.Timeout, log), nil
}

// Generate sends one prompt with no retry.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.provider.Complete(ctx, prompt)
	metrics.LLMRequestDuration.WithLabelValues(c.provider.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMRequests.WithLabelValues(c.provider.Name(), "error").Inc()
		c.log.Error("LLM request failed", map[string]interface{}{
			"error":     err.Error(),
			"promptLen": len(prompt),
		})
		return ErrorPrefix + err.Error()
	}

	if strings.TrimSpace(text) == "" {
		metrics.LLMRequests.WithLabelValues(c.provider.Name(), "empty").Inc()
		c.log.Warn("LLM returned empty response", map[string]interface{}{
			"promptLen": len(prompt),
		})
		return EmptyResponseText
	}

	metrics.LLMRequests.WithLabelValues(c.provider.Name(), "ok").Inc()
	c.log.Debug("LLM request completed", map[string]interface{}{
		"promptLen":   len(prompt),
		"responseLen": len(text),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return text
}

// IsFailureText reports whether text was produced by the gateway in place of
// a model answer.
func IsFailureText(text string) bool {
	return strings.HasPrefix(text, ErrorPrefix) || text == EmptyResponseText
}
