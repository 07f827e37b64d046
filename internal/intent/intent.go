// Package intent classifies portfolio requests into one of five intents.
//
// RuleBased is deterministic and always available. ModelAssisted wraps it
// with an optional LLM call whose answer is repaired, validated against the
// catalog, and discarded on any failure.
package intent

import "context"

// Intent is the request type.
type Intent string

const (
	PriceComparison  Intent = "price_comparison"
	PnL              Intent = "pnl"
	AssetDetails     Intent = "asset_details"
	GeneralKnowledge Intent = "general_knowledge"
	Clarification    Intent = "clarification"
)

// All lists every intent in routing priority order.
func All() []Intent {
	return []Intent{PriceComparison, PnL, AssetDetails, GeneralKnowledge, Clarification}
}

// Valid reports whether i is one of the five intents.
func (i Intent) Valid() bool {
	switch i {
	case PriceComparison, PnL, AssetDetails, GeneralKnowledge, Clarification:
		return true
	}
	return false
}

func (i Intent) String() string { return string(i) }

// Signals is the slot context available when classifying.
type Signals struct {
	HasProperties bool
	HasTenants    bool
	HasPeriod     bool
	// Periods counts the distinct periods mentioned.
	Periods int
}

func (s Signals) any() bool {
	return s.HasProperties || s.HasTenants || s.HasPeriod
}

// Source says which layer produced a decision.
type Source string

const (
	SourceRules Source = "rules"
	SourceModel Source = "model"
)

// Decision is a classification with its evidence.
type Decision struct {
	Intent  Intent   `json:"intent"`
	Source  Source   `json:"source"`
	Markers []string `json:"markers,omitempty"`
	// Rule names the deterministic rule that fired.
	Rule string `json:"rule,omitempty"`
	// FallbackReason is set when a model was consulted but not trusted.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Strategy classifies text.
type Strategy interface {
	Classify(ctx context.Context, text string, sig Signals) Decision
}
