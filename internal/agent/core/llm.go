package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mohammad-safakhou/sourcerer/config"
)

// NewLLMProvider builds the completion backend from configuration. An
// empty provider name returns (nil, nil): AI-assisted routing and
// summarization are simply disabled.
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai", "local_openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.Provider == "openai" && apiKey == "" {
			return nil, fmt.Errorf("llm: api key is required for provider %q", cfg.Provider)
		}
		baseURL := strings.TrimRight(cfg.BaseURL, "/")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		return &OpenAIProvider{
			apiKey:  apiKey,
			baseURL: baseURL,
			model:   cfg.Model,
			retries: cfg.MaxRetries,
			client:  &http.Client{Timeout: timeout},
		}, nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}

// OpenAIProvider talks to an OpenAI-compatible chat completions API.
// local_openai points the same wire format at a self-hosted endpoint.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	retries int
	client  *http.Client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
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
	} `json:"error,omitempty"`
}

// Complete sends the conversation and returns the first choice's text.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("llm: %s: %s", resp.Status, strings.TrimSpace(string(body)))
			// client errors won't heal on retry
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return "", lastErr
			}
			continue
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("llm: decode response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("llm: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("llm: empty choices in response")
		}
		return parsed.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("llm: completion failed after %d attempts: %w", p.retries+1, lastErr)
}
