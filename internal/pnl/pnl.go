// Package pnl aggregates ledger rows into revenue, expense, and net
// operating income totals with a per-property breakdown.
//
// Expense rows are summed with their sign under the table's booking
// convention, so refunds and reversals reduce total expense, and the total
// is subtracted from revenue.
package pnl

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
)

var tracer = otel.Tracer("portfoliod.pnl")

// PropertyTotals is one breakdown line.
type PropertyTotals struct {
	PropertyID  string          `json:"property_id"`
	DisplayName string          `json:"display_name"`
	Revenue     decimal.Decimal `json:"revenue"`
	Expense     decimal.Decimal `json:"expense"`
	NOI         decimal.Decimal `json:"noi"`
	RowCount    int             `json:"row_count"`
}

// Result is the outcome of one aggregation. An empty row set is a valid
// result with zero totals, no breakdown, and NoData set.
type Result struct {
	Period             string           `json:"period,omitempty"`
	TotalRevenue       decimal.Decimal  `json:"total_revenue"`
	TotalExpense       decimal.Decimal  `json:"total_expense"`
	NetOperatingIncome decimal.Decimal  `json:"net_operating_income"`
	Breakdown          []PropertyTotals `json:"breakdown"`
	NoData             bool             `json:"no_data"`
	RowCount           int              `json:"row_count"`
}

// Aggregate filters table by q and sums the matching rows. The breakdown is
// sorted by absolute NOI, largest first, ties by property id.
func Aggregate(ctx context.Context, table *ledger.Table, q ledger.Query) Result {
	_, span := tracer.Start(ctx, "pnl.Aggregate")
	defer span.End()

	res := Result{
		Period:    q.Period.String(),
		Breakdown: []PropertyTotals{},
	}
	if table == nil {
		res.NoData = true
		return res
	}

	rows := table.Filter(q)
	groups := make(map[string]*PropertyTotals)
	for _, row := range rows {
		g, ok := groups[row.PropertyID]
		if !ok {
			g = &PropertyTotals{PropertyID: row.PropertyID, DisplayName: row.PropertyID}
			if p, found := table.Property(row.PropertyID); found {
				g.DisplayName = p.DisplayName
			}
			groups[row.PropertyID] = g
		}
		g.RowCount++
		switch row.Type {
		case ledger.Revenue:
			g.Revenue = g.Revenue.Add(row.Amount)
		case ledger.Expense:
			g.Expense = g.Expense.Add(table.ExpenseCost(row))
		}
	}

	for _, g := range groups {
		g.NOI = g.Revenue.Sub(g.Expense)
		res.TotalRevenue = res.TotalRevenue.Add(g.Revenue)
		res.TotalExpense = res.TotalExpense.Add(g.Expense)
		res.Breakdown = append(res.Breakdown, *g)
	}
	res.NetOperatingIncome = res.TotalRevenue.Sub(res.TotalExpense)
	res.RowCount = len(rows)
	res.NoData = len(rows) == 0

	sort.Slice(res.Breakdown, func(i, j int) bool {
		a, b := res.Breakdown[i].NOI.Abs(), res.Breakdown[j].NOI.Abs()
		if c := a.Cmp(b); c != 0 {
			return c > 0
		}
		return res.Breakdown[i].PropertyID < res.Breakdown[j].PropertyID
	})

	span.SetAttributes(
		attribute.Int("row_count", res.RowCount),
		attribute.Int("property_count", len(res.Breakdown)),
		attribute.String("period", res.Period),
	)
	return res
}

// Top returns the first n breakdown lines.
func (r Result) Top(n int) []PropertyTotals {
	if n <= 0 || n >= len(r.Breakdown) {
		return r.Breakdown
	}
	return r.Breakdown[:n]
}

// Comparison is the change between two aggregations of the same scope.
type Comparison struct {
	Current      Result          `json:"current"`
	Previous     Result          `json:"previous"`
	RevenueDelta decimal.Decimal `json:"revenue_delta"`
	ExpenseDelta decimal.Decimal `json:"expense_delta"`
	NOIDelta     decimal.Decimal `json:"noi_delta"`
	// NOIChangePct is nil when the previous NOI is zero.
	NOIChangePct *float64 `json:"noi_change_pct,omitempty"`
}

// Compare computes current minus previous.
func Compare(current, previous Result) Comparison {
	c := Comparison{
		Current:      current,
		Previous:     previous,
		RevenueDelta: current.TotalRevenue.Sub(previous.TotalRevenue),
		ExpenseDelta: current.TotalExpense.Sub(previous.TotalExpense),
		NOIDelta:     current.NetOperatingIncome.Sub(previous.NetOperatingIncome),
	}
	if !previous.NetOperatingIncome.IsZero() {
		pct, _ := c.NOIDelta.Div(previous.NetOperatingIncome.Abs()).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		c.NOIChangePct = &pct
	}
	return c
}
