package specialist

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
)

// ErrUnhandled is returned by GeneralKnowledge for questions outside its
// lookup.
var ErrUnhandled = errors.New("question not covered by general knowledge")

// Topic identifies a general knowledge answer.
type Topic string

const (
	TopicNOI             Topic = "noi"
	TopicPnL             Topic = "pnl_overview"
	TopicRevenueExpense  Topic = "revenue_vs_expense"
	TopicLedgerHierarchy Topic = "ledger_hierarchy"
	TopicLedgerCode      Topic = "ledger_code"
	TopicPeriods         Topic = "period_filtering"
	TopicDatasetOverview Topic = "dataset_overview"
	TopicCapabilities    Topic = "capabilities_overview"
)

// Answer is a fixed-form explanation.
type Answer struct {
	Topic   Topic          `json:"topic"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

var (
	reCodeWord     = regexp.MustCompile(`(?i)\b(?:ledger\s+)?codes?\b`)
	reCodeNumber   = regexp.MustCompile(`\b(\d{3,5})\b`)
	reNOI          = regexp.MustCompile(`(?i)\b(?:noi|net\s+operating\s+income)\b`)
	rePnL          = regexp.MustCompile(`(?i)(?:\bp\s*&\s*l\b|\bpnl\b|\bprofit\s+(?:and|&)\s+loss\b)`)
	reRevenue      = regexp.MustCompile(`(?i)\b(?:revenue|income)\b`)
	reExpense      = regexp.MustCompile(`(?i)\b(?:expenses?|costs?)\b`)
	reLedger       = regexp.MustCompile(`(?i)\b(?:ledgers?|hierarchy|ledger\s+(?:group|subtype|type|category))\b`)
	rePeriod       = regexp.MustCompile(`(?i)\b(?:periods?|timeframes?|quarters?|months?|years?|quarterly|monthly|yearly)\b`)
	reDataset      = regexp.MustCompile(`(?i)\b(?:dataset|data|portfolio|properties|tenants|assets|columns?)\b`)
	reCapabilities = regexp.MustCompile(`(?i)\b(?:what\s+can\s+(?:you|i)\s+(?:do|ask)|help|capabilit(?:y|ies)|how\s+do\s+i\s+use)\b`)
)

// GeneralKnowledge answers explanatory questions from a static lookup,
// pulling ledger code descriptions and dataset counts from table. Anything
// outside the lookup fails with ErrUnhandled.
func GeneralKnowledge(table *ledger.Table, text string) (Answer, error) {
	switch {
	case reCodeWord.MatchString(text) || (reLedger.MatchString(text) && reCodeNumber.MatchString(text)):
		if ans, ok := explainCode(table, text); ok {
			return ans, nil
		}
		return explainHierarchy(), nil
	case reNOI.MatchString(text):
		return Answer{
			Topic: TopicNOI,
			Message: "Net operating income (NOI) is total revenue minus total expense over the selected rows. " +
				"Expenses are counted as positive amounts and subtracted, whatever sign the ledger stores them with.",
		}, nil
	case rePnL.MatchString(text):
		return Answer{
			Topic: TopicPnL,
			Message: "A Profit & Loss (P&L) statement sums revenue and expense ledger rows for a scope and period. " +
				"I report total revenue, total expense, and net operating income, with a breakdown by property " +
				"sorted by the size of each property's NOI.",
		}, nil
	case reRevenue.MatchString(text) && reExpense.MatchString(text):
		return Answer{
			Topic: TopicRevenueExpense,
			Message: "Revenue rows record money coming in, such as base rent, parking, and expense recoveries. " +
				"Expense rows record money going out, such as management fees, repairs, and insurance. " +
				"NOI is revenue minus expense.",
		}, nil
	case reLedger.MatchString(text):
		return explainHierarchy(), nil
	case rePeriod.MatchString(text):
		return explainPeriods(table), nil
	case reDataset.MatchString(text):
		return overview(table), nil
	case reCapabilities.MatchString(text):
		return capabilities(), nil
	}
	return Answer{}, ErrUnhandled
}

func explainCode(table *ledger.Table, text string) (Answer, bool) {
	m := reCodeNumber.FindStringSubmatch(text)
	if m == nil {
		return Answer{}, false
	}
	code := m[1]
	if table == nil {
		return Answer{}, false
	}
	info, ok := table.Code(code)
	if !ok {
		return Answer{
			Topic:   TopicLedgerCode,
			Message: fmt.Sprintf("Ledger code %s does not appear in the dataset.", code),
			Details: map[string]any{"ledger_code": code, "known": false},
		}, true
	}
	path := []string{string(info.Type)}
	for _, part := range []string{info.Group, info.Subtype} {
		if part != "" {
			path = append(path, part)
		}
	}
	desc := info.Description
	if desc == "" {
		desc = "no description"
	}
	return Answer{
		Topic: TopicLedgerCode,
		Message: fmt.Sprintf("Ledger code %s is %q, classified as %s.",
			code, desc, strings.Join(path, " > ")),
		Details: map[string]any{
			"ledger_code":        info.Code,
			"ledger_type":        string(info.Type),
			"ledger_group":       info.Group,
			"ledger_subtype":     info.Subtype,
			"ledger_description": info.Description,
			"known":              true,
		},
	}, true
}

func explainHierarchy() Answer {
	return Answer{
		Topic: TopicLedgerHierarchy,
		Message: "Ledger rows form a hierarchy: ledger type (revenue or expense) > ledger group > ledger subtype > ledger code. " +
			"Ask about a specific code, for example \"what is ledger code 4000\", to see its description.",
	}
}

func explainPeriods(table *ledger.Table) Answer {
	ans := Answer{
		Topic: TopicPeriods,
		Message: "Periods are years (2025), quarters (2025-Q1), or months (2025-03). " +
			"A year includes every quarter and month inside it, and a quarter includes its three months. " +
			"Relative terms such as \"last quarter\" are resolved against today's date.",
	}
	if table != nil {
		if first, last := table.PeriodRange(); !first.IsNone() {
			ans.Message += fmt.Sprintf(" The dataset covers %s to %s.", first, last)
			ans.Details = map[string]any{"first_period": first.String(), "last_period": last.String()}
		}
	}
	return ans
}

func overview(table *ledger.Table) Answer {
	if table == nil {
		return Answer{
			Topic:   TopicDatasetOverview,
			Message: "The dataset is a ledger of revenue and expense rows by entity, property, tenant, and period.",
		}
	}
	props := table.Properties()
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.DisplayName
	}
	first, last := table.PeriodRange()
	msg := fmt.Sprintf("The dataset is a ledger of %d rows covering %d properties (%s) and %d tenants",
		table.Len(), len(props), strings.Join(names, ", "), len(table.Tenants()))
	if !first.IsNone() {
		msg += fmt.Sprintf(", from %s to %s", first, last)
	}
	msg += ". Each row carries an entity, property, optional tenant, ledger hierarchy, period, and signed amount."
	return Answer{
		Topic:   TopicDatasetOverview,
		Message: msg,
		Details: map[string]any{
			"rows":       table.Len(),
			"properties": len(props),
			"tenants":    len(table.Tenants()),
		},
	}
}

func capabilities() Answer {
	return Answer{
		Topic: TopicCapabilities,
		Message: "I can compute P&L and NOI for the portfolio, a property, or a tenant over a year, quarter, or month, " +
			"show the latest ledger snapshot for a property, and explain ledger codes and periods. " +
			"The dataset has no price or valuation data.",
	}
}
