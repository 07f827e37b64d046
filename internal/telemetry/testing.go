package telemetry

import (
	"context"
	"sort"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory. Pass Meter(...) to
// components that accept a meter, or call Install for code that uses the
// global providers.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	MetricReader *MetricReader

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// NewTestTelemetry creates an enabled Telemetry backed by in-memory exporters.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	reader := &MetricReader{manual: sdkmetric.NewManualReader()}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader.manual))

	return &TestTelemetry{
		Telemetry:    &Telemetry{config: cfg, tracerProvider: tp, meterProvider: mp},
		SpanRecorder: rec,
		MetricReader: reader,
		tp:           tp,
		mp:           mp,
	}
}

// Install makes the in-memory providers global and returns a func that
// restores the previous ones. Package-level tracers bind to the first
// provider installed, so call it once per test binary and never in
// parallel tests.
func (t *TestTelemetry) Install() func() {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	otel.SetTracerProvider(t.tp)
	otel.SetMeterProvider(t.mp)
	return func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}
}

// Reset drops recorded spans.
func (t *TestTelemetry) Reset() {
	fresh := tracetest.NewSpanRecorder()
	t.tp.RegisterSpanProcessor(fresh)
	t.tp.UnregisterSpanProcessor(t.SpanRecorder)
	t.SpanRecorder = fresh
}

// Spans returns the ended spans.
func (t *TestTelemetry) Spans() []sdktrace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) sdktrace.ReadOnlySpan {
	for _, s := range t.Spans() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// AssertSpanExists fails tb unless a span called name has ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) != nil {
		return
	}
	names := make([]string, 0, len(t.Spans()))
	for _, s := range t.Spans() {
		names = append(names, s.Name())
	}
	tb.Errorf("span %q not recorded; have %v", name, names)
}

// AssertSpanAttribute fails tb unless span carries key with value want.
// Integers compare as int64.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, span, key string, want any) {
	tb.Helper()
	s := t.SpanByName(span)
	if s == nil {
		tb.Fatalf("span %q not recorded", span)
	}
	for _, kv := range s.Attributes() {
		if string(kv.Key) != key {
			continue
		}
		if got := attrValue(kv.Value); got != want {
			tb.Errorf("span %q attribute %q = %v, want %v", span, key, got, want)
		}
		return
	}
	tb.Errorf("span %q has no attribute %q", span, key)
}

// AssertMetricExists collects once and fails tb unless an instrument
// called name reported data.
func (t *TestTelemetry) AssertMetricExists(tb testing.TB, name string) {
	tb.Helper()
	names, err := t.MetricReader.Names(context.Background())
	if err != nil {
		tb.Fatalf("collecting metrics: %v", err)
	}
	for _, n := range names {
		if n == name {
			return
		}
	}
	tb.Errorf("metric %q not recorded; have %v", name, names)
}

func attrValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}

// MetricReader collects from a ManualReader on demand and keeps every
// collection.
type MetricReader struct {
	manual *sdkmetric.ManualReader

	mu      sync.Mutex
	history []metricdata.ResourceMetrics
}

// ForceFlush collects the current metrics.
func (r *MetricReader) ForceFlush(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := r.manual.Collect(ctx, &rm); err != nil {
		return err
	}
	r.mu.Lock()
	r.history = append(r.history, rm)
	r.mu.Unlock()
	return nil
}

// Metrics returns every collection so far.
func (r *MetricReader) Metrics() []metricdata.ResourceMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history
}

// Names collects and returns the sorted instrument names seen so far.
func (r *MetricReader) Names(ctx context.Context) ([]string, error) {
	if err := r.ForceFlush(ctx); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, rm := range r.Metrics() {
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				seen[m.Name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Shutdown stops the reader.
func (r *MetricReader) Shutdown(ctx context.Context) error {
	return r.manual.Shutdown(ctx)
}
