package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/portfoliod/internal/config"
)

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "otel.internal:4318",
		Protocol:    ProtocolHTTP,
		ServiceName: "portfoliod-eu",
		SampleRate:  0.25,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "otel.internal:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "portfoliod-eu", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.False(t, cfg.Insecure)
	assert.InDelta(t, 0.25, cfg.Sampling.Rate, 1e-9)
	require.NoError(t, cfg.Validate())

	local := FromSettings(config.TelemetryConfig{Enabled: true}, "")
	assert.True(t, local.Insecure)
	assert.Equal(t, "dev", local.ServiceVersion)
	assert.InDelta(t, 1.0, local.Sampling.Rate, 1e-9)
	require.NoError(t, local.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "disabled skips checks", mutate: func(c *Config) { c.Enabled = false; c.Endpoint = "" }},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: "endpoint is required"},
		{name: "bad protocol", mutate: func(c *Config) { c.Protocol = "udp" }, wantErr: "protocol"},
		{name: "missing service", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: "service_name"},
		{name: "missing version", mutate: func(c *Config) { c.ServiceVersion = "" }, wantErr: "service_version"},
		{name: "insecure remote", mutate: func(c *Config) { c.Endpoint = "collector.example.com:4317" }, wantErr: "insecure"},
		{name: "tls remote", mutate: func(c *Config) { c.Endpoint = "collector.example.com:4317"; c.Insecure = false }},
		{name: "rate above one", mutate: func(c *Config) { c.Sampling.Rate = 1.5 }, wantErr: "sampling.rate"},
		{name: "zero export interval", mutate: func(c *Config) { c.Metrics.ExportInterval = 0 }, wantErr: "export_interval"},
		{name: "zero shutdown", mutate: func(c *Config) { c.Shutdown.Timeout = 0 }, wantErr: "shutdown.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsLocal(t *testing.T) {
	tests := map[string]bool{
		"localhost:4317":        true,
		"127.0.0.1:4317":        true,
		"http://localhost:4318": true,
		"[::1]:4317":            true,
		"::1":                   true,
		"otel:4317":             false,
		"10.0.0.5:4317":         false,
		"https://otel.io":       false,
	}
	for endpoint, want := range tests {
		t.Run(endpoint, func(t *testing.T) {
			assert.Equal(t, want, isLocal(endpoint))
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_EnabledWithUnreachableCollector(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}()

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "127.0.0.1:1"
	cfg.Shutdown.Timeout = config.Duration(200 * time.Millisecond)

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = tel.Shutdown(ctx)
}

func TestNew_LogExport(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "127.0.0.1:1"
	cfg.Metrics.Enabled = false
	cfg.Shutdown.Timeout = config.Duration(200 * time.Millisecond)

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, tel.LoggerProvider(), "log export is opt-in")
	_ = tel.Shutdown(context.Background())

	cfg.Logs.Enabled = true
	tel, err = New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, tel.LoggerProvider())
	assert.Contains(t, tel.providers(), "log")
	assert.False(t, tel.Health().Degraded)
	_ = tel.Shutdown(context.Background())
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	tel.SetLoggerProvider(nil)
}

func TestTelemetry_SetDegraded(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	tel.setDegraded("tracer provider failed: %v", "boom")
	h := tel.Health()
	assert.True(t, h.Degraded)
	assert.Equal(t, []string{"tracer provider failed: boom"}, h.Problems)
}

func TestTestTelemetry_Install(t *testing.T) {
	tt := NewTestTelemetry()
	restore := tt.Install()

	_, span := otel.Tracer("portfoliod.pnl").Start(context.Background(), "pnl.Aggregate")
	span.SetAttributes(
		attribute.String("pnl.period", "2025"),
		attribute.Int("pnl.rows", 27),
		attribute.Bool("pnl.no_data", false),
	)
	span.End()
	restore()

	tt.AssertSpanExists(t, "pnl.Aggregate")
	tt.AssertSpanAttribute(t, "pnl.Aggregate", "pnl.period", "2025")
	tt.AssertSpanAttribute(t, "pnl.Aggregate", "pnl.rows", int64(27))
	tt.AssertSpanAttribute(t, "pnl.Aggregate", "pnl.no_data", false)
	assert.Nil(t, tt.SpanByName("Supervisor.HandleRequest"))

	tt.Reset()
	assert.Empty(t, tt.Spans())
}

func TestTestTelemetry_Metrics(t *testing.T) {
	tt := NewTestTelemetry()
	counter, err := tt.Meter("portfoliod.http").Int64Counter("http.server.requests")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	require.NoError(t, tt.MetricReader.ForceFlush(context.Background()))
	metrics := tt.MetricReader.Metrics()
	require.Len(t, metrics, 1)
	require.NotEmpty(t, metrics[0].ScopeMetrics)
	assert.Equal(t, "http.server.requests", metrics[0].ScopeMetrics[0].Metrics[0].Name)

	names, err := tt.MetricReader.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"http.server.requests"}, names)
	tt.AssertMetricExists(t, "http.server.requests")
}

func TestExporterHelpers(t *testing.T) {
	assert.Equal(t, "otel:4318", stripScheme("https://otel:4318"))
	assert.Equal(t, "localhost:4318", stripScheme("http://localhost:4318"))
	assert.Equal(t, "otel:4317", stripScheme("otel:4317"))

	assert.Nil(t, skipVerify(&Config{Insecure: true, TLSSkipVerify: true}))
	assert.Nil(t, skipVerify(&Config{}))
	require.NotNil(t, skipVerify(&Config{TLSSkipVerify: true}))
	assert.True(t, skipVerify(&Config{TLSSkipVerify: true}).InsecureSkipVerify)

	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
