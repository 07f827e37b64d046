// Package specialist holds the handlers the supervisor routes to once a
// request's slots are complete: price comparison, asset details, general
// knowledge, P&L reporting, and clarification prompts.
//
// Handlers are pure functions over the loaded table. None of them keeps
// state between calls.
package specialist

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
)

// Capability gap reasons and attributes.
const (
	ReasonNoPriceData     = "no_price_data"
	ReasonPricingExcluded = "pricing_not_supported"
	AttributeValuation    = "valuation"
)

// valuationColumns are the header names that would carry a property value.
var valuationColumns = []string{"valuation", "price", "market_value", "appraised_value"}

// CapabilityGap reports a well-formed request the dataset cannot answer.
// It is a result, not an error.
type CapabilityGap struct {
	Supported   bool     `json:"supported"`
	Reason      string   `json:"reason"`
	Attribute   string   `json:"attribute"`
	Properties  []string `json:"properties"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

// PriceComparison answers a price or valuation comparison. It inspects the
// loaded header for a valuation column. Without one the answer is a gap
// naming the missing attribute; with one it is still a gap, since prices
// are reported but never compared. Either way the gap lists questions the
// dataset can answer.
func PriceComparison(table *ledger.Table, propertyIDs []string) CapabilityGap {
	names := displayNames(table, propertyIDs)
	gap := CapabilityGap{
		Supported:  false,
		Reason:     ReasonNoPriceData,
		Attribute:  AttributeValuation,
		Properties: names,
	}

	subject := "these properties"
	if len(names) > 0 {
		subject = joinNames(names)
	}
	if col, ok := valuationColumn(table); ok {
		gap.Reason = ReasonPricingExcluded
		gap.Attribute = col
		gap.Message = fmt.Sprintf(
			"The dataset has a %s column, but comparing %s by value is not something I can do. "+
				"I can report revenue, expense and NOI instead.", col, subject)
	} else {
		gap.Message = fmt.Sprintf(
			"Price and valuation data is not available in this dataset, so I can't compare %s by value. "+
				"The ledger only records revenue and expense transactions.", subject)
	}

	year := ""
	if table != nil {
		if _, last := table.PeriodRange(); !last.IsNone() {
			year = fmt.Sprintf(" for %d", last.Year)
		}
	}
	for _, name := range names {
		gap.Suggestions = append(gap.Suggestions,
			fmt.Sprintf("Show me the P&L for %s%s.", name, year),
			fmt.Sprintf("Tell me about %s.", name))
	}
	if len(gap.Suggestions) == 0 {
		gap.Suggestions = []string{fmt.Sprintf("What is the total P&L%s?", year)}
	}
	return gap
}

func valuationColumn(table *ledger.Table) (string, bool) {
	if table == nil {
		return "", false
	}
	for _, col := range valuationColumns {
		if table.HasColumn(col) {
			return col, true
		}
	}
	return "", false
}

// Answer renders the gap for the user.
func (g CapabilityGap) Answer() string {
	var b strings.Builder
	b.WriteString(g.Message)
	if len(g.Suggestions) > 0 {
		b.WriteString(" You could ask instead: ")
		quoted := make([]string, len(g.Suggestions))
		for i, s := range g.Suggestions {
			quoted[i] = "\"" + s + "\""
		}
		b.WriteString(strings.Join(quoted, ", "))
	}
	return b.String()
}

func displayNames(table *ledger.Table, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name := id
		if table != nil {
			if p, ok := table.Property(id); ok {
				name = p.DisplayName
			}
		}
		names = append(names, name)
	}
	return names
}

// joinNames renders "A", "A and B", or "A, B and C".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
