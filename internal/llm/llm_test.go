package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{"default is disabled", Config{}, ProviderDisabled, nil},
		{"disabled", Config{Provider: "disabled"}, ProviderDisabled, nil},
		{"openai", Config{Provider: "openai", APIKey: "sk-test"}, ProviderOpenAI, nil},
		{"openai without key", Config{Provider: "openai"}, "", ErrAPIKeyRequired},
		{"anthropic", Config{Provider: "anthropic", APIKey: "sk-ant-test"}, ProviderAnthropic, nil},
		{"anthropic without key", Config{Provider: "anthropic"}, "", ErrAPIKeyRequired},
		{"gemini", Config{Provider: "gemini", APIKey: "test-key"}, ProviderGemini, nil},
		{"gemini without key", Config{Provider: "gemini"}, "", ErrAPIKeyRequired},
		{"langchain local server", Config{Provider: "langchain", BaseURL: "http://localhost:11434/v1"}, ProviderLangchain, nil},
		{"langchain without key or url", Config{Provider: "langchain"}, "", ErrAPIKeyRequired},
		{"unknown", Config{Provider: "watson"}, "", ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(context.Background(), tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, c.Name())
		})
	}
}

func TestDisabled(t *testing.T) {
	var d Disabled
	assert.False(t, d.Available())
	_, err := d.Complete(context.Background(), "system", "prompt")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"intent\":\"pnl\"}"}}]}`))
	}))
	defer srv.Close()

	p, err := newOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), "classify", "my key is sk-abcdefghijklmnopqrstuvwxyz123456")
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"pnl"}`, out)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, defaultOpenAIModel, got.Model)
	assert.NotContains(t, got.Messages[1].Content, "sk-abcdefghijklmnopqrstuvwxyz123456")
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestAnthropicProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-API-Key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("Anthropic-Version"))
		var req anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "classify", req.System)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"intent\":\"asset_details\"}"}]}`))
	}))
	defer srv.Close()

	p, err := newAnthropic(Config{APIKey: "sk-ant-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), "classify", "tell me about building 180")
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"asset_details"}`, out)
}

func TestTransport_Retries(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
		}))
		defer srv.Close()

		p, err := newOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL})
		require.NoError(t, err)
		p.backoff = time.Millisecond

		out, err := p.Complete(context.Background(), "", "hi")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
		}))
		defer srv.Close()

		p, err := newOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL})
		require.NoError(t, err)
		p.backoff = time.Millisecond

		_, err = p.Complete(context.Background(), "", "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API error (400): bad model")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		p, err := newAnthropic(Config{APIKey: "sk-ant-test", BaseURL: srv.URL})
		require.NoError(t, err)
		p.backoff = time.Millisecond

		_, err = p.Complete(context.Background(), "", "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max retries exceeded")
		assert.True(t, isRetryableError(err))
	})

	t.Run("empty answer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		p, err := newOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = p.Complete(context.Background(), "", "hi")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("context deadline stops the call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		p, err := newOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = p.Complete(ctx, "", "hi")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestScrubSecrets(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		contains string
		removed  string
	}{
		{"openai key", "key sk-abcdefghijklmnopqrstuvwxyz", "[REDACTED:OPENAI_KEY]", "sk-abcdefghijklmnopqrstuvwxyz"},
		{"anthropic key", "sk-ant-REDACTED", "[REDACTED:ANTHROPIC_KEY]", "abcdefghijklmnopqrstuv"},
		{"env assignment", "OPENAI_API_KEY=secretvalue", "OPENAI_API_KEY=[REDACTED:ENV_SECRET]", "secretvalue"},
		{"password", "password: hunter22", "[REDACTED:PASSWORD]", "hunter22"},
		{"plain question", "What is the P&L for Building 180?", "What is the P&L for Building 180?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ScrubSecrets(tt.in)
			assert.Contains(t, out, tt.contains)
			if tt.removed != "" {
				assert.NotContains(t, out, tt.removed)
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("  ```\n{\"a\":1}```  "))
	assert.Equal(t, "plain", StripFences("plain"))
	assert.True(t, strings.HasPrefix(StripFences("{\"x\": 2}"), "{"))
}
