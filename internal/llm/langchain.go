package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// langchainProvider drives any OpenAI-compatible endpoint (vLLM, Ollama,
// LM Studio) through langchaingo.
type langchainProvider struct {
	llm *openai.LLM
}

func newLangchain(cfg Config) (*langchainProvider, error) {
	token := cfg.APIKey
	if token == "" {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("langchain: %w", ErrAPIKeyRequired)
		}
		// Local OpenAI-compatible servers ignore the token but the client requires one.
		token = "unused"
	}

	opts := []openai.Option{openai.WithToken(token)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	} else {
		opts = append(opts, openai.WithModel(defaultOpenAIModel))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating langchain client: %w", err)
	}
	return &langchainProvider{llm: client}, nil
}

// Complete sends a system and a human message.
func (l *langchainProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, ScrubSecrets(prompt)),
	}
	resp, err := l.llm.GenerateContent(ctx, messages, llms.WithTemperature(0), llms.WithMaxTokens(defaultMaxTokens))
	if err != nil {
		return "", fmt.Errorf("langchain generation failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func (l *langchainProvider) Available() bool { return l.llm != nil }
func (l *langchainProvider) Name() string    { return ProviderLangchain }

var _ Completer = (*langchainProvider)(nil)
