package mcp

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

const outcomeInstrumentationName = "github.com/fyrsmithlabs/portfoliod/outcomes"

// OutcomeMetrics counts how conversational turns end: answered or sent
// back for clarification, and which error kind caused the clarification.
type OutcomeMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	answered      metric.Int64Counter
	clarification metric.Int64Counter
	notices       metric.Int64Counter
}

// NewOutcomeMetrics creates outcome counters on meter, or on the global
// meter provider when meter is nil.
func NewOutcomeMetrics(meter metric.Meter, logger *zap.Logger) *OutcomeMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.Meter(outcomeInstrumentationName)
	}
	m := &OutcomeMetrics{meter: meter, logger: logger}
	m.init()
	return m
}

func (m *OutcomeMetrics) init() {
	var err error

	m.answered, err = m.meter.Int64Counter(
		"portfoliod.turns.answered_total",
		metric.WithDescription("Turns routed to a specialist, by intent."),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		m.logger.Warn("failed to create answered counter", zap.Error(err))
	}

	m.clarification, err = m.meter.Int64Counter(
		"portfoliod.turns.clarification_total",
		metric.WithDescription("Turns that ended awaiting clarification, by intent and error type."),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		m.logger.Warn("failed to create clarification counter", zap.Error(err))
	}

	m.notices, err = m.meter.Int64Counter(
		"portfoliod.turns.notices_total",
		metric.WithDescription("Answered turns that carried a notice, by notice type."),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		m.logger.Warn("failed to create notices counter", zap.Error(err))
	}
}

// Record counts one supervisor response.
func (m *OutcomeMetrics) Record(ctx context.Context, resp *supervisor.Response) {
	if m == nil || resp == nil {
		return
	}
	intentAttr := attribute.String("intent", string(resp.Intent))

	switch resp.State {
	case supervisor.StateRouted:
		if m.answered != nil {
			m.answered.Add(ctx, 1, metric.WithAttributes(intentAttr))
		}
		if resp.Notice != nil && m.notices != nil {
			m.notices.Add(ctx, 1, metric.WithAttributes(
				attribute.String("type", string(resp.Notice.Type)),
			))
		}
	case supervisor.StateAwaitingClarification:
		reason := "none"
		if resp.Error != nil {
			reason = string(resp.Error.Type)
		}
		if m.clarification != nil {
			m.clarification.Add(ctx, 1, metric.WithAttributes(
				intentAttr,
				attribute.String("error_type", reason),
			))
		}
	}
}
