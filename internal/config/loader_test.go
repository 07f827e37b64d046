package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 8088
  shutdown_timeout: 3s
dataset:
  path: /srv/portfolio.csv
  alias_file: /srv/aliases.yaml
  watch_aliases: true
resolver:
  fuzzy_threshold: 0.7
  semantic:
    enabled: true
    provider: tei
    base_url: http://tei:8080
    timeout: 500ms
classifier:
  provider: openai
  model: gpt-4o-mini
  api_key: sk-test
journal:
  enabled: true
  url: nats://nats:4222
logging:
  format: console
`, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8088", cfg.Server.Addr())
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "/srv/portfolio.csv", cfg.Dataset.Path)
	assert.Equal(t, "/srv/aliases.yaml", cfg.Dataset.AliasFile)
	assert.True(t, cfg.Dataset.WatchAliases)
	assert.InDelta(t, 0.7, cfg.Resolver.FuzzyThreshold, 1e-9)
	assert.InDelta(t, 0.15, cfg.Resolver.SuggestionFloor, 1e-9)
	assert.True(t, cfg.Resolver.Semantic.Enabled)
	assert.Equal(t, "tei", cfg.Resolver.Semantic.Provider)
	assert.Equal(t, 500*time.Millisecond, cfg.Resolver.Semantic.Timeout.Duration())
	assert.Equal(t, "openai", cfg.Classifier.Provider)
	assert.Equal(t, "sk-test", cfg.Classifier.APIKey.Value())
	assert.Equal(t, "nats://nats:4222", cfg.Journal.URL)
	assert.Equal(t, "portfoliod.requests", cfg.Journal.SubjectPrefix)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8088
dataset:
  path: /srv/portfolio.csv
`, 0600)

	t.Setenv("SERVER_PORT", "7777")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "20s")
	t.Setenv("DATASET_ALIAS_FILE", "/etc/aliases.json")
	t.Setenv("RESOLVER_MAX_SUGGESTIONS", "5")
	t.Setenv("RESOLVER_SEMANTIC_ENABLED", "true")
	t.Setenv("RESOLVER_SEMANTIC_CACHE_DIR", "/var/cache/fastembed")
	t.Setenv("CLASSIFIER_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "/srv/portfolio.csv", cfg.Dataset.Path)
	assert.Equal(t, "/etc/aliases.json", cfg.Dataset.AliasFile)
	assert.Equal(t, 5, cfg.Resolver.MaxSuggestions)
	assert.True(t, cfg.Resolver.Semantic.Enabled)
	assert.Equal(t, "fastembed", cfg.Resolver.Semantic.Provider)
	assert.Equal(t, "/var/cache/fastembed", cfg.Resolver.Semantic.CacheDir)
	assert.Equal(t, "from-env", cfg.Classifier.APIKey.Value())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9191", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "data/portfolio.csv", cfg.Dataset.Path)
	assert.Equal(t, "disabled", cfg.Classifier.Provider)
	assert.False(t, cfg.Journal.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		perm    os.FileMode
		want    string
	}{
		{
			name:    "invalid yaml",
			content: "server:\n  port: [unclosed\n",
			perm:    0600,
			want:    "failed to load config file",
		},
		{
			name:    "validation failure",
			content: "server:\n  port: 70000\n",
			perm:    0600,
			want:    "invalid server port",
		},
		{
			name:    "unknown classifier",
			content: "classifier:\n  provider: mystery\n",
			perm:    0600,
			want:    "classifier.provider",
		},
		{
			name:    "bad duration",
			content: "server:\n  shutdown_timeout: soon\n",
			perm:    0600,
			want:    "failed to unmarshal config",
		},
		{
			name:    "too large",
			content: "# " + strings.Repeat("x", maxConfigFileSize) + "\n",
			perm:    0600,
			want:    "too large",
		},
	}
	if runtime.GOOS != "windows" {
		tests = append(tests, struct {
			name    string
			content string
			perm    os.FileMode
			want    string
		}{
			name:    "world readable",
			content: "server:\n  port: 8088\n",
			perm:    0644,
			want:    "insecure config file permissions",
		})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content, tt.perm)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_AcceptsReadOnlyFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	path := writeConfig(t, "server:\n  port: 8088\n", 0400)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestLoad_RejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"SERVER_SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{"DATASET_WATCH_ALIASES", "dataset.watch_aliases"},
		{"RESOLVER_FUZZY_THRESHOLD", "resolver.fuzzy_threshold"},
		{"RESOLVER_SEMANTIC_BASE_URL", "resolver.semantic.base_url"},
		{"RESOLVER_SEMANTIC", "resolver.semantic"},
		{"TELEMETRY_SERVICE_NAME", "telemetry.service_name"},
		{"PATH", ""},
		{"HOME", ""},
		{"GOPATH_EXTRA", ""},
		{"SERVER_", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			assert.Equal(t, tt.want, envKey(tt.env))
		})
	}
}
