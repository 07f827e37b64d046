package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/llm"
)

// DefaultModelTimeout bounds a single classification call.
const DefaultModelTimeout = 5 * time.Second

// ErrInvalidModelOutput is returned by ParseModelOutput for answers that do
// not name a catalog intent.
var ErrInvalidModelOutput = errors.New("invalid model output")

const systemPrompt = `You classify requests sent to a real-estate portfolio assistant.
The assistant can only read a ledger of revenue and expense rows per property, tenant, and period.

Choose exactly one intent:
- "pnl": numeric profit and loss, NOI, revenue, or expense questions.
- "price_comparison": price, value, or worth of properties, or comparing properties.
- "asset_details": descriptive information about a specific property.
- "general_knowledge": definitions and questions about metrics, ledger codes, or the dataset.
- "clarification": the request is too vague to act on.

Respond ONLY with a JSON object: {"intent": "<one of the values above>"}`

// ModelAssisted asks an LLM first and falls back to Rules whenever the call
// fails, times out, or returns anything outside the catalog.
type ModelAssisted struct {
	Rules     Strategy
	Completer llm.Completer
	Timeout   time.Duration
	Logger    *zap.Logger
}

// NewModelAssisted wraps rules with completer. A nil or unavailable
// completer makes it behave exactly like rules.
func NewModelAssisted(rules Strategy, completer llm.Completer, timeout time.Duration, logger *zap.Logger) *ModelAssisted {
	if rules == nil {
		rules = NewRuleBased()
	}
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelAssisted{Rules: rules, Completer: completer, Timeout: timeout, Logger: logger}
}

// Classify implements Strategy.
func (m *ModelAssisted) Classify(ctx context.Context, text string, sig Signals) Decision {
	base := m.Rules.Classify(ctx, text, sig)
	if m.Completer == nil || !m.Completer.Available() {
		return base
	}

	callCtx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	raw, err := m.Completer.Complete(callCtx, systemPrompt, userPrompt(text, sig))
	if err != nil {
		reason := "model_error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = "model_timeout"
		}
		return m.fallback(base, reason, err)
	}

	i, err := ParseModelOutput(raw)
	if err != nil {
		return m.fallback(base, "invalid_model_output", err)
	}

	modelDecisions.WithLabelValues(m.Completer.Name(), "accepted").Inc()
	return Decision{Intent: i, Source: SourceModel, Markers: base.Markers, Rule: base.Rule}
}

func (m *ModelAssisted) fallback(base Decision, reason string, err error) Decision {
	modelDecisions.WithLabelValues(m.Completer.Name(), reason).Inc()
	m.Logger.Warn("intent model discarded, using rules",
		zap.String("provider", m.Completer.Name()),
		zap.String("reason", reason),
		zap.String("intent", string(base.Intent)),
		zap.Error(err))
	base.FallbackReason = reason
	return base
}

func userPrompt(text string, sig Signals) string {
	return fmt.Sprintf("Request: %s\nResolved properties: %t\nTenants mentioned: %t\nPeriod mentioned: %t",
		text, sig.HasProperties, sig.HasTenants, sig.HasPeriod)
}

type modelAnswer struct {
	Intent      string `json:"intent"`
	RequestType string `json:"request_type"`
}

// ParseModelOutput repairs and validates a model answer. Only an intent
// from the catalog (or one of its aliases) is accepted.
func ParseModelOutput(raw string) (Intent, error) {
	content := llm.StripFences(raw)
	if content == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidModelOutput)
	}

	repaired, err := jsonrepair.RepairJSON(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}

	var ans modelAnswer
	if err := json.Unmarshal([]byte(repaired), &ans); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}

	label := strings.TrimSpace(ans.Intent)
	if label == "" {
		label = strings.TrimSpace(ans.RequestType)
	}
	i, ok := Normalize(label)
	if !ok {
		return "", fmt.Errorf("%w: unknown intent %q", ErrInvalidModelOutput, label)
	}
	return i, nil
}

var _ Strategy = (*ModelAssisted)(nil)
