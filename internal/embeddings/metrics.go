package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const embeddingsInstrumentationName = "github.com/fyrsmithlabs/portfoliod/internal/embeddings"

// Metrics records how long the resolver's semantic stage waits on the
// embedder, and how often it fails.
type Metrics struct {
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics registers the embedding instruments on the global meter
// provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(embeddingsInstrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{}
	var errs []error
	var err error

	m.duration, err = meter.Float64Histogram("portfoliod.embedding.generation_duration_seconds",
		metric.WithDescription("Embedding latency by model and operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10))
	errs = append(errs, err)
	m.batchSize, err = meter.Int64Histogram("portfoliod.embedding.batch_size",
		metric.WithDescription("Texts per embedding call."),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250, 500))
	errs = append(errs, err)
	m.errors, err = meter.Int64Counter("portfoliod.embedding.errors_total",
		metric.WithDescription("Failed embedding calls by model and operation."),
		metric.WithUnit("{error}"))
	errs = append(errs, err)

	for _, err := range errs {
		if err != nil {
			logger.Warn("embedding instrument not registered", zap.Error(err))
		}
	}
	return m
}

// RecordGeneration records one embedding call. A zero batchSize is not
// recorded.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, took time.Duration, batchSize int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.duration != nil {
		m.duration.Record(ctx, took.Seconds(), attrs)
	}
	if m.batchSize != nil && batchSize > 0 {
		m.batchSize.Record(ctx, int64(batchSize), attrs)
	}
	if m.errors != nil && err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}
