package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ossensor/internal/interfaces"
	"ossensor/internal/logging"
)

const (
	anthropicEndpoint     = "https://api.anthropic.com/v1/messages"
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-3-5-sonnet-20241022"
	anthropicMaxTokens    = 4096
)

// AnthropicTransport calls the Messages API and returns the first text block.
type AnthropicTransport struct {
	client   *http.Client
	logger   logging.Logger
	endpoint string
	apiKey   string
	model    string
}

func NewAnthropicTransport(cfg Config, logger interfaces.Logger) *AnthropicTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	model := cfg.Model
	if model == "" {
		model = anthropicDefaultModel
	}
	return &AnthropicTransport{
		client:   &http.Client{Timeout: timeout},
		logger:   componentLogger(logger, "anthropic"),
		endpoint: anthropicEndpoint,
		apiKey:   cfg.APIKey,
		model:    model,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (t *AnthropicTransport) Complete(ctx context.Context, system, user string) (string, error) {
	payload := anthropicRequest{
		Model:     t.model,
		MaxTokens: anthropicMaxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion request failed: status %d", resp.StatusCode)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, b := range parsed.Content {
		if b.Type == "text" && b.Text != "" {
			t.logger.Debug("completion finished",
				logging.Field{Key: "model", Value: t.model},
				logging.Field{Key: "elapsed", Value: time.Since(start).String()})
			return b.Text, nil
		}
	}
	return "", fmt.Errorf("empty completion")
}

var _ interfaces.Transport = (*AnthropicTransport)(nil)
var _ interfaces.Transport = (*OpenAITransport)(nil)
