// Package llm wraps an OpenAI-compatible chat completion API as the
// language engine used for intent analysis and answer synthesis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-assistant/internal/common"
)

// ErrUnavailable is returned when the engine cannot be reached or refuses the call.
var ErrUnavailable = errors.New("language engine unavailable")

// Prompt is a single-turn request to the engine.
type Prompt struct {
	System string
	User   string
	// Model overrides the client's default model when set.
	Model string
}

// Config represents engine client configuration.
type Config struct {
	Provider    string // openrouter, openai, deepseek, ollama, or any OpenAI-compatible name
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration // per call, default 60s
	Referer     string        // sent as HTTP-Referer (OpenRouter attribution)
	Title       string        // sent as X-Title (OpenRouter attribution)
}

// Client is a language engine backed by go-openai.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker
}

// NewClient creates an engine client for the configured provider.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Provider {
		case "openrouter", "":
			baseURL = "https://openrouter.ai/api/v1"
		case "deepseek":
			baseURL = "https://api.deepseek.com"
		case "ollama":
			baseURL = "http://localhost:11434/v1"
		case "openai":
			// go-openai default
		default:
			slog.Info("llm: using generic OpenAI-compatible provider", "provider", cfg.Provider)
		}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": cfg.Referer,
				"X-Title":      cfg.Title,
			},
		},
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm",
			MaxRequests: 2,
			Interval:    1 * time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}, nil
}

// Complete sends one chat completion and returns the raw text of the first choice.
func (c *Client) Complete(ctx context.Context, p Prompt) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, p)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: circuit breaker open: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *Client) complete(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.model
	if p.Model != "" {
		model = p.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		slog.Error("llm: chat request failed", "model", model, "error", err)
		if classified := common.ClassifyTimeout(err); errors.Is(classified, common.ErrTransportTimeout) {
			return "", classified
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	slog.Debug("llm: chat response received",
		"model", model,
		"content_length", len(resp.Choices[0].Message.Content),
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.Choices[0].Message.Content, nil
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
