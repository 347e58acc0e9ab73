package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matheuskafuri/intelfeed/internal/config"
)

// Quality selects between the fast default model and a slower, stronger one.
type Quality string

const (
	QualityFast Quality = "fast"
	QualityDeep Quality = "deep"
)

// Request is a single text-generation call.
type Request struct {
	Prompt  string
	System  string
	Timeout time.Duration
	Quality Quality
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

var (
	// ErrDisabled is returned by New when no provider is configured.
	ErrDisabled = errors.New("AI not configured")
	// ErrRateLimited is returned when a provider answers 429.
	ErrRateLimited = errors.New("AI provider rate limited")
)

const (
	defaultOllamaURL = "http://localhost:11434"
	defaultClaudeURL = "https://api.anthropic.com"
	defaultOpenAIURL = "https://api.openai.com"
)

// New creates a Generator from the given AI config.
func New(cfg config.AIConfig) (Generator, error) {
	client := &http.Client{Timeout: 5 * time.Minute}

	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return &ollamaProvider{
			baseURL: orDefault(cfg.BaseURL, defaultOllamaURL),
			models:  models{fast: orDefault(cfg.Model, "qwen2.5:7b"), deep: orDefault(cfg.DeepModel, "gpt-oss:20b")},
			client:  client,
		}, nil
	case "claude":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude: %w: api key missing", ErrDisabled)
		}
		return &claudeProvider{
			apiKey:  cfg.APIKey,
			baseURL: orDefault(cfg.BaseURL, defaultClaudeURL),
			models:  models{fast: orDefault(cfg.Model, "claude-haiku-4-5-20251001"), deep: orDefault(cfg.DeepModel, "claude-sonnet-4-5")},
			client:  client,
		}, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: %w: api key missing", ErrDisabled)
		}
		return &openaiProvider{
			apiKey:  cfg.APIKey,
			baseURL: orDefault(cfg.BaseURL, defaultOpenAIURL),
			models:  models{fast: orDefault(cfg.Model, "gpt-4o-mini"), deep: orDefault(cfg.DeepModel, "gpt-4o")},
			client:  client,
		}, nil
	case "", "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (valid: ollama, claude, openai, none)", cfg.Provider)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type models struct {
	fast string
	deep string
}

func (m models) pick(q Quality) string {
	if q == QualityDeep {
		return m.deep
	}
	return m.fast
}

// post sends body as JSON, bounded by the request timeout, and decodes a 200
// response into out.
func post(ctx context.Context, client *http.Client, timeout time.Duration, url string, headers map[string]string, body, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// --- Ollama provider ---

type ollamaProvider struct {
	baseURL string
	models  models
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (o *ollamaProvider) Generate(ctx context.Context, r Request) (string, error) {
	var out ollamaResponse
	err := post(ctx, o.client, r.Timeout, strings.TrimRight(o.baseURL, "/")+"/api/generate", nil, ollamaRequest{
		Model:  o.models.pick(r.Quality),
		Prompt: r.Prompt,
		System: r.System,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	return out.Response, nil
}

// --- Claude provider ---

type claudeProvider struct {
	apiKey  string
	baseURL string
	models  models
	client  *http.Client
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *claudeProvider) Generate(ctx context.Context, r Request) (string, error) {
	var out claudeResponse
	err := post(ctx, c.client, r.Timeout, strings.TrimRight(c.baseURL, "/")+"/v1/messages", map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}, claudeRequest{
		Model:     c.models.pick(r.Quality),
		MaxTokens: 256,
		System:    r.System,
		Messages:  []claudeMessage{{Role: "user", Content: r.Prompt}},
	}, &out)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("empty claude response")
	}
	return out.Content[0].Text, nil
}

// --- OpenAI provider ---

type openaiProvider struct {
	apiKey  string
	baseURL string
	models  models
	client  *http.Client
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *openaiProvider) Generate(ctx context.Context, r Request) (string, error) {
	msgs := make([]openaiMessage, 0, 2)
	if r.System != "" {
		msgs = append(msgs, openaiMessage{Role: "system", Content: r.System})
	}
	msgs = append(msgs, openaiMessage{Role: "user", Content: r.Prompt})

	var out openaiResponse
	err := post(ctx, o.client, r.Timeout, strings.TrimRight(o.baseURL, "/")+"/v1/chat/completions", map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}, openaiRequest{Model: o.models.pick(r.Quality), Messages: msgs}, &out)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty openai response")
	}
	return out.Choices[0].Message.Content, nil
}
