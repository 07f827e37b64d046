package console

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/portfoliod/internal/intent"
	"github.com/fyrsmithlabs/portfoliod/internal/pnl"
	"github.com/fyrsmithlabs/portfoliod/internal/specialist"
	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

const (
	chartHeight     = 10
	barWidth        = 7
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

var (
	revenueBar = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	expenseBar = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noiBar     = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
)

// reportFrom extracts a P&L report from a response. Results arrive typed
// from the in-process supervisor and as generic JSON over HTTP.
func reportFrom(resp *supervisor.Response) (specialist.Report, bool) {
	if resp == nil || resp.Intent != intent.PnL || resp.Result == nil {
		return specialist.Report{}, false
	}
	switch r := resp.Result.(type) {
	case specialist.Report:
		return r, !r.Result.NoData
	case *specialist.Report:
		return *r, !r.Result.NoData
	}
	b, err := json.Marshal(resp.Result)
	if err != nil {
		return specialist.Report{}, false
	}
	var report specialist.Report
	if err := json.Unmarshal(b, &report); err != nil {
		return specialist.Report{}, false
	}
	return report, !report.Result.NoData && len(report.Result.Breakdown) > 0
}

// noiChart renders revenue, expense, and NOI bars per property, or current
// versus previous period when the report carries a comparison. Negative
// values are drawn as empty bars.
func noiChart(report specialist.Report) string {
	var data []barchart.BarData
	if c := report.Comparison; c != nil {
		data = append(data,
			barFor(labelOr(c.Previous.Period, "prev"), c.Previous),
			barFor(labelOr(c.Current.Period, "curr"), c.Current),
		)
	} else {
		for _, p := range report.Result.Breakdown {
			data = append(data, barchart.BarData{
				Label: p.PropertyID,
				Values: []barchart.BarValue{
					{Name: "Revenue", Value: clamp(p.Revenue.InexactFloat64()), Style: revenueBar},
					{Name: "Expense", Value: clamp(p.Expense.InexactFloat64()), Style: expenseBar},
					{Name: "NOI", Value: clamp(p.NOI.InexactFloat64()), Style: noiBar},
				},
			})
		}
	}
	if len(data) == 0 {
		return ""
	}

	bc := barchart.New(len(data)*(barWidth+1), chartHeight)
	bc.PushAll(data)
	bc.Draw()

	legend := revenueBar.Render("■ revenue") + "  " + expenseBar.Render("■ expense") + "  " + noiBar.Render("■ NOI")
	return bc.View() + "\n" + legend
}

func barFor(label string, r pnl.Result) barchart.BarData {
	return barchart.BarData{
		Label: label,
		Values: []barchart.BarValue{
			{Name: "Revenue", Value: clamp(r.TotalRevenue.InexactFloat64()), Style: revenueBar},
			{Name: "Expense", Value: clamp(r.TotalExpense.InexactFloat64()), Style: expenseBar},
			{Name: "NOI", Value: clamp(r.NetOperatingIncome.InexactFloat64()), Style: noiBar},
		},
	}
}

func labelOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	if len(s) > barWidth {
		return s[:barWidth]
	}
	return s
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// appendToHistory appends a value, keeping at most historySize entries.
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// latencySparkline charts turn latencies in milliseconds.
func latencySparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()
	return sparklineStyle.Render(strings.TrimRight(spark.View(), "\n"))
}
