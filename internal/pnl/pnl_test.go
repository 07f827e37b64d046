package pnl

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
	"github.com/fyrsmithlabs/portfoliod/internal/period"
)

func fixture(t *testing.T) *ledger.Table {
	t.Helper()
	table, err := ledger.Load(filepath.Join("..", "ledger", "testdata", "portfolio.csv"))
	require.NoError(t, err)
	return table
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregate_Year2025(t *testing.T) {
	table := fixture(t)
	res := Aggregate(context.Background(), table, ledger.Query{Period: period.NewYear(2025)})

	assert.False(t, res.NoData)
	assert.Equal(t, "2025", res.Period)
	assert.True(t, dec("592124.15").Equal(res.TotalRevenue), res.TotalRevenue.String())
	assert.True(t, dec("2599.29").Equal(res.TotalExpense), res.TotalExpense.String())
	assert.True(t, dec("589524.86").Equal(res.NetOperatingIncome), res.NetOperatingIncome.String())

	want := []struct {
		id  string
		noi string
	}{
		{"P180", "199803.33"},
		{"P220", "151217.07"},
		{"P160", "131324.86"},
		{"P120", "107179.60"},
	}
	require.Len(t, res.Breakdown, len(want))
	for i, w := range want {
		assert.Equal(t, w.id, res.Breakdown[i].PropertyID)
		assert.True(t, dec(w.noi).Equal(res.Breakdown[i].NOI), "%s: %s", w.id, res.Breakdown[i].NOI)
	}
	assert.Equal(t, "Building 180", res.Breakdown[0].DisplayName)
}

func TestAggregate_Invariants(t *testing.T) {
	table := fixture(t)
	queries := map[string]ledger.Query{
		"all time":   {},
		"2025":       {Period: period.NewYear(2025)},
		"2025-Q2":    {Period: period.NewQuarter(2025, 2)},
		"entity E1":  {EntityID: "E1"},
		"properties": {PropertyIDs: []string{"P120", "P220"}},
		"tenant 14":  {TenantIDs: []string{"Tenant 14"}},
	}
	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			res := Aggregate(context.Background(), table, q)

			assert.True(t, res.TotalRevenue.Sub(res.TotalExpense).Equal(res.NetOperatingIncome))

			sumNOI := decimal.Zero
			rows := 0
			for i, line := range res.Breakdown {
				sumNOI = sumNOI.Add(line.NOI)
				rows += line.RowCount
				assert.True(t, line.Revenue.Sub(line.Expense).Equal(line.NOI))
				if i > 0 {
					assert.True(t, res.Breakdown[i-1].NOI.Abs().GreaterThanOrEqual(line.NOI.Abs()))
				}
			}
			assert.True(t, sumNOI.Equal(res.NetOperatingIncome))
			assert.Equal(t, res.RowCount, rows)
			assert.Equal(t, len(table.Filter(q)), res.RowCount)
		})
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	table := fixture(t)
	q := ledger.Query{Period: period.NewYear(2025)}

	first := Aggregate(context.Background(), table, q)
	second := Aggregate(context.Background(), table, q)
	assert.Equal(t, first, second)
}

func TestAggregate_TenantQuarter(t *testing.T) {
	table := fixture(t)
	res := Aggregate(context.Background(), table, ledger.Query{
		TenantIDs: []string{"14"},
		Period:    period.NewQuarter(2025, 1),
	})

	assert.Equal(t, 3, res.RowCount)
	assert.True(t, dec("81301.78").Equal(res.TotalRevenue), res.TotalRevenue.String())
	assert.True(t, res.TotalExpense.IsZero())
	require.Len(t, res.Breakdown, 1)
	assert.Equal(t, "P180", res.Breakdown[0].PropertyID)
}

func TestAggregate_ExpenseCredits(t *testing.T) {
	row := func(typ ledger.Type, amount string) ledger.Row {
		return ledger.Row{EntityID: "E1", PropertyID: "P1", Type: typ, Period: "2025-01", Amount: dec(amount)}
	}
	tests := []struct {
		name string
		rows []ledger.Row
	}{
		{"expenses booked positive", []ledger.Row{
			row(ledger.Revenue, "1000"), row(ledger.Expense, "300"), row(ledger.Expense, "-100"),
		}},
		{"expenses booked negative", []ledger.Row{
			row(ledger.Revenue, "1000"), row(ledger.Expense, "-300"), row(ledger.Expense, "100"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Aggregate(context.Background(), ledger.NewTable(tt.rows), ledger.Query{})
			assert.True(t, dec("200").Equal(res.TotalExpense), res.TotalExpense.String())
			assert.True(t, dec("800").Equal(res.NetOperatingIncome), res.NetOperatingIncome.String())
			require.Len(t, res.Breakdown, 1)
			assert.True(t, dec("800").Equal(res.Breakdown[0].NOI))
		})
	}
}

func TestAggregate_ZeroAmountRowsCounted(t *testing.T) {
	table := fixture(t)
	res := Aggregate(context.Background(), table, ledger.Query{
		TenantIDs: []string{"tenant_15"},
		Period:    period.NewMonth(2025, 3),
	})
	assert.Equal(t, 2, res.RowCount, "parking row with 0.00 is included")
	assert.True(t, dec("12500").Equal(res.TotalRevenue))
}

func TestAggregate_NoData(t *testing.T) {
	table := fixture(t)

	tests := []struct {
		name  string
		table *ledger.Table
		q     ledger.Query
	}{
		{"future year", table, ledger.Query{Period: period.NewYear(2030)}},
		{"unknown property", table, ledger.Query{PropertyIDs: []string{"P999"}}},
		{"nil table", nil, ledger.Query{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Aggregate(context.Background(), tt.table, tt.q)
			assert.True(t, res.NoData)
			assert.Zero(t, res.RowCount)
			assert.True(t, res.TotalRevenue.IsZero())
			assert.True(t, res.TotalExpense.IsZero())
			assert.True(t, res.NetOperatingIncome.IsZero())
			assert.NotNil(t, res.Breakdown)
			assert.Empty(t, res.Breakdown)
		})
	}
}

func TestResult_Top(t *testing.T) {
	res := Aggregate(context.Background(), fixture(t), ledger.Query{Period: period.NewYear(2025)})

	assert.Len(t, res.Top(2), 2)
	assert.Equal(t, "P180", res.Top(1)[0].PropertyID)
	assert.Len(t, res.Top(0), 4)
	assert.Len(t, res.Top(10), 4)
}

func TestCompare(t *testing.T) {
	table := fixture(t)
	ctx := context.Background()

	t.Run("portfolio", func(t *testing.T) {
		cur := Aggregate(ctx, table, ledger.Query{Period: period.NewYear(2025)})
		prev := Aggregate(ctx, table, ledger.Query{Period: period.NewYear(2024)})
		assert.True(t, dec("25800").Equal(prev.NetOperatingIncome), prev.NetOperatingIncome.String())

		c := Compare(cur, prev)
		assert.True(t, dec("563724.86").Equal(c.NOIDelta), c.NOIDelta.String())
		require.NotNil(t, c.NOIChangePct)
		assert.InDelta(t, 2184.98, *c.NOIChangePct, 0.001)
	})

	t.Run("single property", func(t *testing.T) {
		cur := Aggregate(ctx, table, ledger.Query{PropertyIDs: []string{"P180"}, Period: period.NewYear(2025)})
		prev := Aggregate(ctx, table, ledger.Query{PropertyIDs: []string{"P180"}, Period: period.NewYear(2024)})

		c := Compare(cur, prev)
		assert.True(t, dec("173303.33").Equal(c.NOIDelta))
		require.NotNil(t, c.NOIChangePct)
		assert.InDelta(t, 653.97, *c.NOIChangePct, 0.001)
	})

	t.Run("previous empty", func(t *testing.T) {
		cur := Aggregate(ctx, table, ledger.Query{Period: period.NewYear(2025)})
		prev := Aggregate(ctx, table, ledger.Query{Period: period.NewYear(2020)})

		c := Compare(cur, prev)
		assert.Nil(t, c.NOIChangePct)
		assert.True(t, c.NOIDelta.Equal(cur.NetOperatingIncome))
	})
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "USD 0.00"},
		{"7.5", "USD 7.50"},
		{"999.999", "USD 1,000.00"},
		{"1234.56", "USD 1,234.56"},
		{"589524.86", "USD 589,524.86"},
		{"1000000", "USD 1,000,000.00"},
		{"-820.4", "-USD 820.40"},
		{"-1234567.891", "-USD 1,234,567.89"},
		{"-0.001", "USD 0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCurrency(dec(tt.in)))
		})
	}
	assert.Equal(t, "EUR 12.00", FormatCurrencyCode(dec("12"), "EUR"))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+12.50%", FormatPercent(12.5))
	assert.Equal(t, "-3.00%", FormatPercent(-3))
}
