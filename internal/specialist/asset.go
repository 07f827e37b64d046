package specialist

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
	"github.com/fyrsmithlabs/portfoliod/internal/pnl"
	"github.com/fyrsmithlabs/portfoliod/internal/resolver"
)

// ErrNoProperty is returned by AssetDetails when no property was resolved.
var ErrNoProperty = errors.New("no property resolved")

// Line is one ledger row of a snapshot.
type Line struct {
	TenantID    string          `json:"tenant_id,omitempty"`
	Type        ledger.Type     `json:"ledger_type"`
	Group       string          `json:"ledger_group,omitempty"`
	Subtype     string          `json:"ledger_subtype,omitempty"`
	Code        string          `json:"ledger_code,omitempty"`
	Description string          `json:"ledger_description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// Snapshot is the most recent ledger period recorded for a property. Empty
// is set for a known property without history.
type Snapshot struct {
	Property ledger.PropertyRecord `json:"property"`
	Aliases  []string              `json:"aliases,omitempty"`
	Period   string                `json:"period,omitempty"`
	Revenue  decimal.Decimal       `json:"revenue"`
	Expense  decimal.Decimal       `json:"expense"`
	NOI      decimal.Decimal       `json:"noi"`
	Tenants  []string              `json:"tenants,omitempty"`
	Lines    []Line                `json:"lines"`
	Empty    bool                  `json:"empty"`
}

// AssetDetails returns the latest snapshot of each property, in order. idx
// contributes aliases and may be nil. An empty id list fails with
// ErrNoProperty; an id missing from the table fails with a
// *resolver.NotFoundError.
func AssetDetails(table *ledger.Table, idx *resolver.Index, propertyIDs []string) ([]Snapshot, error) {
	if len(propertyIDs) == 0 {
		return nil, ErrNoProperty
	}
	if table == nil {
		return nil, fmt.Errorf("asset details: %w", ErrNoProperty)
	}

	out := make([]Snapshot, 0, len(propertyIDs))
	for _, id := range propertyIDs {
		rec, ok := table.Property(id)
		if !ok {
			return nil, &resolver.NotFoundError{Mention: id}
		}
		snap := Snapshot{Property: rec, Lines: []Line{}}
		if idx != nil {
			snap.Aliases = idx.Aliases(id)
		}

		key, rows := table.Latest(id)
		if len(rows) == 0 {
			snap.Empty = true
			out = append(out, snap)
			continue
		}
		snap.Period = key.String()

		tenants := make(map[string]struct{})
		for _, row := range rows {
			switch row.Type {
			case ledger.Revenue:
				snap.Revenue = snap.Revenue.Add(row.Amount)
			case ledger.Expense:
				snap.Expense = snap.Expense.Add(table.ExpenseCost(row))
			}
			if t := ledger.NormalizeTenant(row.TenantID); t != "" {
				tenants[t] = struct{}{}
			}
			snap.Lines = append(snap.Lines, Line{
				TenantID:    row.TenantID,
				Type:        row.Type,
				Group:       row.Group,
				Subtype:     row.Subtype,
				Code:        row.Code,
				Description: row.Description,
				Amount:      row.Amount,
			})
		}
		snap.NOI = snap.Revenue.Sub(snap.Expense)
		for t := range tenants {
			snap.Tenants = append(snap.Tenants, t)
		}
		sort.Strings(snap.Tenants)
		out = append(out, snap)
	}
	return out, nil
}

// Summary renders a snapshot in one paragraph.
func (s Snapshot) Summary() string {
	var b strings.Builder
	b.WriteString(s.Property.DisplayName)
	if s.Property.Address != "" {
		fmt.Fprintf(&b, " (%s)", s.Property.Address)
	}
	if s.Property.EntityID != "" {
		fmt.Fprintf(&b, " belongs to entity %s.", s.Property.EntityID)
	} else {
		b.WriteString(".")
	}
	if s.Empty {
		b.WriteString(" It has no ledger history in the dataset.")
		return b.String()
	}
	fmt.Fprintf(&b, " Latest period %s: revenue %s, expense %s, NOI %s across %d ledger rows",
		s.Period, pnl.FormatCurrency(s.Revenue), pnl.FormatCurrency(s.Expense), pnl.FormatCurrency(s.NOI), len(s.Lines))
	if len(s.Tenants) > 0 {
		fmt.Fprintf(&b, " from tenants %s", strings.Join(s.Tenants, ", "))
	}
	b.WriteString(".")
	return b.String()
}
