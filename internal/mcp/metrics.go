package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

const instrumentationName = "github.com/fyrsmithlabs/portfoliod/internal/mcp"

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics instruments tool calls. Instruments that fail to register are
// left nil and skipped.
type Metrics struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	errors      metric.Int64Counter
	active      metric.Int64UpDownCounter
}

// NewMetrics registers the tool instruments on meter, or on the global
// meter provider when meter is nil.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("mcp instrument not registered", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &Metrics{}
	var err error
	m.invocations, err = meter.Int64Counter("portfoliod.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool calls by tool name."), metric.WithUnit("{invocation}"))
	warn("invocations_total", err)
	m.duration, err = meter.Float64Histogram("portfoliod.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call latency."), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	warn("duration_seconds", err)
	m.errors, err = meter.Int64Counter("portfoliod.mcp.tool.errors_total",
		metric.WithDescription("Failed MCP tool calls by tool and reason."), metric.WithUnit("{error}"))
	warn("errors_total", err)
	m.active, err = meter.Int64UpDownCounter("portfoliod.mcp.tool.active_requests",
		metric.WithDescription("MCP tool calls in flight."), metric.WithUnit("{request}"))
	warn("active_requests", err)
	return m
}

// Begin marks a call to tool as in flight. The returned func ends it and
// records the invocation, its latency and, for a non-nil err, its reason.
func (m *Metrics) Begin(ctx context.Context, tool string) func(err error) {
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	if m.active != nil {
		m.active.Add(ctx, 1, attrs)
	}
	return func(err error) {
		if m.active != nil {
			m.active.Add(ctx, -1, attrs)
		}
		if m.invocations != nil {
			m.invocations.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		if err != nil && m.errors != nil {
			m.errors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("reason", categorizeError(err)),
			))
		}
	}
}

// categorizeError maps err to the reason label on errors_total.
func categorizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, supervisor.ErrNoDataset):
		return "no_dataset"
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(msg, "timeout"):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return "validation_error"
	}
	return "internal_error"
}
