package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
	"github.com/fyrsmithlabs/portfoliod/internal/period"
	"github.com/fyrsmithlabs/portfoliod/internal/pnl"
)

// Status values of a Report.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// topContributors caps the breakdown lines quoted in the message.
const topContributors = 3

// Report is a P&L answer: the aggregation, an optional period comparison,
// and the rendered message.
type Report struct {
	Status     string          `json:"status"`
	Scope      string          `json:"scope"`
	Result     pnl.Result      `json:"result"`
	Comparison *pnl.Comparison `json:"comparison,omitempty"`
	Message    string          `json:"message"`
}

// PnL aggregates q and renders the outcome. names are the display names of
// the properties in scope; empty means the whole portfolio, or the
// tenants in q when it filters by tenant.
func PnL(ctx context.Context, table *ledger.Table, names []string, q ledger.Query) Report {
	res := pnl.Aggregate(ctx, table, q)
	rep := Report{Status: StatusOK, Scope: scope(names, q.TenantIDs), Result: res}
	if res.NoData {
		rep.Status = StatusNoData
		rep.Message = noData(table, rep.Scope, q.Period)
		return rep
	}
	rep.Message = summarize(rep.Scope, q.Period, res)
	return rep
}

// PnLComparison reports q's period against previous for the same scope.
func PnLComparison(ctx context.Context, table *ledger.Table, names []string, q ledger.Query, previous period.Filter) Report {
	rep := PnL(ctx, table, names, q)
	prevQuery := q
	prevQuery.Period = previous
	prev := pnl.Aggregate(ctx, table, prevQuery)
	if rep.Result.NoData && prev.NoData {
		return rep
	}

	cmp := pnl.Compare(rep.Result, prev)
	rep.Comparison = &cmp
	rep.Status = StatusOK
	var b strings.Builder
	if rep.Result.NoData {
		fmt.Fprintf(&b, "There is no financial data for %s in %s.", rep.Scope, q.Period.Label())
	} else {
		b.WriteString(summarize(rep.Scope, q.Period, rep.Result))
	}
	fmt.Fprintf(&b, " Compared with %s (NOI %s), NOI changed by %s",
		previous.Label(), pnl.FormatCurrency(prev.NetOperatingIncome), pnl.FormatCurrency(cmp.NOIDelta))
	if cmp.NOIChangePct != nil {
		fmt.Fprintf(&b, " (%s)", pnl.FormatPercent(*cmp.NOIChangePct))
	}
	b.WriteString(".")
	rep.Message = b.String()
	return rep
}

func scope(names, tenants []string) string {
	var parts []string
	if len(names) > 0 {
		parts = append(parts, joinNames(names))
	}
	if len(tenants) > 0 {
		labels := make([]string, len(tenants))
		for i, t := range tenants {
			labels[i] = "Tenant " + ledger.NormalizeTenant(t)
		}
		parts = append(parts, joinNames(labels))
	}
	if len(parts) == 0 {
		return "the portfolio"
	}
	return strings.Join(parts, " for ")
}

func summarize(scope string, f period.Filter, res pnl.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "P&L for %s (%s): revenue %s, expense %s, net operating income %s across %d ledger rows.",
		scope, f.Label(),
		pnl.FormatCurrency(res.TotalRevenue),
		pnl.FormatCurrency(res.TotalExpense),
		pnl.FormatCurrency(res.NetOperatingIncome),
		res.RowCount)
	if len(res.Breakdown) > 1 {
		top := res.Top(topContributors)
		lines := make([]string, len(top))
		for i, line := range top {
			lines[i] = fmt.Sprintf("%s %s", line.DisplayName, pnl.FormatCurrency(line.NOI))
		}
		fmt.Fprintf(&b, " Top contributors by NOI: %s.", strings.Join(lines, ", "))
	}
	return b.String()
}

func noData(table *ledger.Table, scope string, f period.Filter) string {
	msg := fmt.Sprintf("I couldn't find any financial data for %s", scope)
	if !f.IsNone() {
		msg += " in " + f.Label()
	}
	msg += ". Try asking for tenant-level, property-level, or combined totals"
	if table != nil {
		if first, last := table.PeriodRange(); !first.IsNone() {
			msg += fmt.Sprintf(" for a period between %s and %s", first, last)
		}
	}
	return msg + "."
}
