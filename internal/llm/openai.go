package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// openAIProvider calls the OpenAI chat completions API.
type openAIProvider struct {
	transport
	model   string
	apiKey  string
	baseURL string
}

func newOpenAI(cfg Config) (*openAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrAPIKeyRequired)
	}
	p := &openAIProvider{
		transport: newTransport(cfg.Timeout),
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
	}
	if p.model == "" {
		p.model = defaultOpenAIModel
	}
	if p.baseURL == "" {
		p.baseURL = defaultOpenAIBaseURL
	}
	return p, nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a chat completion asking for a JSON object.
func (o *openAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := openAIRequest{
		Model:       o.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: ScrubSecrets(prompt)},
		},
	}
	req.ResponseFormat = &struct {
		Type string `json:"type"`
	}{Type: "json_object"}

	var resp openAIResponse
	err := o.post(ctx, o.baseURL+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + o.apiKey},
		req, &resp, func(body []byte) string {
			var e openAIError
			if json.Unmarshal(body, &e) == nil {
				return e.Error.Message
			}
			return ""
		})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *openAIProvider) Available() bool { return o.apiKey != "" }
func (o *openAIProvider) Name() string    { return ProviderOpenAI }

var _ Completer = (*openAIProvider)(nil)
