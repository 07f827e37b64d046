package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("handling request: %w", supervisor.ErrNoDataset), "no_dataset"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("message is required"), "validation_error"},
		{errors.New(`invalid reference_date "x"`), "validation_error"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err))
	}
}

func TestOutcomeMetrics_NilSafe(t *testing.T) {
	var m *OutcomeMetrics
	m.Record(context.Background(), &supervisor.Response{})
	NewOutcomeMetrics(nil, nil).Record(context.Background(), nil)
}

func TestMetrics_BeginWithoutInstruments(t *testing.T) {
	done := (&Metrics{}).Begin(context.Background(), "ask")
	assert.NotPanics(t, func() { done(errors.New("boom")) })
}
