// Package llm provides optional completion providers used to sharpen
// deterministic decisions. Every caller must treat a provider as an
// accelerator: errors, timeouts, and malformed output fall back to rules.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names accepted by New.
const (
	ProviderDisabled  = "disabled"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderLangchain = "langchain"
)

var (
	// ErrDisabled is returned by the disabled provider.
	ErrDisabled = errors.New("llm provider disabled")

	// ErrAPIKeyRequired is returned when a hosted provider has no key.
	ErrAPIKeyRequired = errors.New("api key required")

	// ErrUnknownProvider is returned by New for unrecognized provider names.
	ErrUnknownProvider = errors.New("unknown llm provider")

	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("empty response from API")
)

// Completer produces a single completion for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	// Available reports whether calls can succeed at all.
	Available() bool
	Name() string
}

// Config configures a provider.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string `json:"-"`
	Timeout  time.Duration
}

// New creates the provider named by cfg.Provider. An empty name or
// "disabled" yields Disabled.
func New(ctx context.Context, cfg Config) (Completer, error) {
	var (
		c   Completer
		err error
	)
	switch cfg.Provider {
	case "", ProviderDisabled:
		return Disabled{}, nil
	case ProviderOpenAI:
		c, err = asCompleter(newOpenAI(cfg))
	case ProviderAnthropic:
		c, err = asCompleter(newAnthropic(cfg))
	case ProviderGemini:
		c, err = asCompleter(newGemini(ctx, cfg))
	case ProviderLangchain:
		c, err = asCompleter(newLangchain(cfg))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// asCompleter keeps a failed constructor's typed nil out of the interface.
func asCompleter[T Completer](p T, err error) (Completer, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Disabled is the zero-network provider.
type Disabled struct{}

// Complete always fails with ErrDisabled.
func (Disabled) Complete(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Available() bool { return false }
func (Disabled) Name() string    { return ProviderDisabled }

var _ Completer = Disabled{}
