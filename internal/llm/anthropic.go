package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-haiku-20241022"
	anthropicVersion        = "2023-06-01"
)

// anthropicProvider calls the Anthropic messages API.
type anthropicProvider struct {
	transport
	model   string
	apiKey  string
	baseURL string
}

func newAnthropic(cfg Config) (*anthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrAPIKeyRequired)
	}
	p := &anthropicProvider{
		transport: newTransport(cfg.Timeout),
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
	}
	if p.model == "" {
		p.model = defaultAnthropicModel
	}
	if p.baseURL == "" {
		p.baseURL = defaultAnthropicBaseURL
	}
	return p, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one user message and returns the first text block.
func (a *anthropicProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := anthropicRequest{
		Model:     a.model,
		MaxTokens: defaultMaxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: ScrubSecrets(prompt)}},
	}

	var resp anthropicResponse
	err := a.post(ctx, a.baseURL+"/v1/messages",
		map[string]string{"X-API-Key": a.apiKey, "Anthropic-Version": anthropicVersion},
		req, &resp, func(body []byte) string {
			var e anthropicError
			if json.Unmarshal(body, &e) == nil {
				return e.Error.Message
			}
			return ""
		})
	if err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}

func (a *anthropicProvider) Available() bool { return a.apiKey != "" }
func (a *anthropicProvider) Name() string    { return ProviderAnthropic }

var _ Completer = (*anthropicProvider)(nil)
