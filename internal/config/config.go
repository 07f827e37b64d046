// Package config provides configuration loading for portfoliod.
//
// Configuration is read from an optional YAML file and then overridden by
// environment variables. See Load for the precedence rules.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete portfoliod configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Dataset    DatasetConfig    `koanf:"dataset"`
	Resolver   ResolverConfig   `koanf:"resolver"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Journal    JournalConfig    `koanf:"journal"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatasetConfig locates the ledger and its alias file.
type DatasetConfig struct {
	Path         string `koanf:"path"`
	AliasFile    string `koanf:"alias_file"`
	WatchAliases bool   `koanf:"watch_aliases"`
}

// ResolverConfig tunes property matching.
type ResolverConfig struct {
	FuzzyThreshold  float64        `koanf:"fuzzy_threshold"`
	SuggestionFloor float64        `koanf:"suggestion_floor"`
	MaxSuggestions  int            `koanf:"max_suggestions"`
	Semantic        SemanticConfig `koanf:"semantic"`
}

// SemanticConfig enables embedding-backed suggestions.
type SemanticConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Provider string   `koanf:"provider"` // fastembed, tei, or openai
	Model    string   `koanf:"model"`
	BaseURL  string   `koanf:"base_url"`
	CacheDir string   `koanf:"cache_dir"`
	APIKey   Secret   `koanf:"api_key"`
	Timeout  Duration `koanf:"timeout"`
}

// ClassifierConfig selects the optional model behind intent classification.
// Provider "disabled" keeps classification rule-based.
type ClassifierConfig struct {
	Provider string   `koanf:"provider"`
	Model    string   `koanf:"model"`
	BaseURL  string   `koanf:"base_url"`
	APIKey   Secret   `koanf:"api_key"`
	Timeout  Duration `koanf:"timeout"`
}

// JournalConfig controls publishing of request traces to NATS.
type JournalConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc or http/protobuf
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	classifierProviders = []string{"disabled", "openai", "anthropic", "gemini", "langchain"}
	embeddingProviders  = []string{"fastembed", "tei", "openai"}
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Dataset.Path == "" {
		return errors.New("dataset.path is required")
	}

	r := c.Resolver
	if r.FuzzyThreshold <= 0 || r.FuzzyThreshold > 1 {
		return fmt.Errorf("resolver.fuzzy_threshold must be in (0, 1], got %v", r.FuzzyThreshold)
	}
	if r.SuggestionFloor <= 0 || r.SuggestionFloor > r.FuzzyThreshold {
		return fmt.Errorf("resolver.suggestion_floor must be in (0, fuzzy_threshold], got %v", r.SuggestionFloor)
	}
	if r.MaxSuggestions < 1 {
		return fmt.Errorf("resolver.max_suggestions must be positive, got %d", r.MaxSuggestions)
	}
	if r.Semantic.Enabled {
		if !oneOf(r.Semantic.Provider, embeddingProviders) {
			return fmt.Errorf("resolver.semantic.provider must be one of %s, got %q",
				strings.Join(embeddingProviders, ", "), r.Semantic.Provider)
		}
		if r.Semantic.Provider == "tei" && r.Semantic.BaseURL == "" {
			return errors.New("resolver.semantic.base_url is required for the tei provider")
		}
		if r.Semantic.Provider == "openai" && !r.Semantic.APIKey.IsSet() {
			return errors.New("resolver.semantic.api_key is required for the openai provider")
		}
	}

	if !oneOf(c.Classifier.Provider, classifierProviders) {
		return fmt.Errorf("classifier.provider must be one of %s, got %q",
			strings.Join(classifierProviders, ", "), c.Classifier.Provider)
	}
	if c.Classifier.Provider != "disabled" && c.Classifier.Timeout.Duration() <= 0 {
		return errors.New("classifier.timeout must be positive")
	}

	if c.Journal.Enabled && c.Journal.URL == "" {
		return errors.New("journal.url is required when the journal is enabled")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("telemetry.protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
		}
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Dataset.Path == "" {
		cfg.Dataset.Path = "data/portfolio.csv"
	}

	if cfg.Resolver.FuzzyThreshold == 0 {
		cfg.Resolver.FuzzyThreshold = 0.6
	}
	if cfg.Resolver.SuggestionFloor == 0 {
		cfg.Resolver.SuggestionFloor = 0.15
	}
	if cfg.Resolver.MaxSuggestions == 0 {
		cfg.Resolver.MaxSuggestions = 3
	}
	if cfg.Resolver.Semantic.Provider == "" {
		cfg.Resolver.Semantic.Provider = "fastembed"
	}
	if cfg.Resolver.Semantic.Timeout == 0 {
		cfg.Resolver.Semantic.Timeout = Duration(2 * time.Second)
	}

	if cfg.Classifier.Provider == "" {
		cfg.Classifier.Provider = "disabled"
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = Duration(5 * time.Second)
	}

	if cfg.Journal.URL == "" && cfg.Journal.Enabled {
		cfg.Journal.URL = "nats://localhost:4222"
	}
	if cfg.Journal.SubjectPrefix == "" {
		cfg.Journal.SubjectPrefix = "portfoliod.requests"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "portfoliod"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
