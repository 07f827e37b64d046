package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/portfoliod/internal/period"
)

func loadFixture(t *testing.T) *Table {
	t.Helper()
	table, err := Load(filepath.Join("testdata", "portfolio.csv"))
	require.NoError(t, err)
	return table
}

func sum(rows []Row, typ Type) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		if r.Type == typ {
			total = total.Add(r.Amount)
		}
	}
	return total
}

func TestLoad_Fixture(t *testing.T) {
	table := loadFixture(t)

	assert.Equal(t, 37, table.Len())
	assert.Equal(t, filepath.Join("testdata", "portfolio.csv"), table.Source())

	props := table.Properties()
	require.Len(t, props, 4)
	assert.Equal(t, []string{"P120", "P160", "P180", "P220"}, []string{
		props[0].PropertyID, props[1].PropertyID, props[2].PropertyID, props[3].PropertyID,
	})

	p180, ok := table.Property("P180")
	require.True(t, ok)
	assert.Equal(t, "Building 180", p180.DisplayName)
	assert.Equal(t, "180 Main Street", p180.Address)
	assert.Equal(t, "E2", p180.EntityID)

	p160, ok := table.Property("P160")
	require.True(t, ok)
	assert.Equal(t, "Building 160", p160.DisplayName, "first non-empty name wins")

	_, ok = table.Property("P999")
	assert.False(t, ok)

	assert.Equal(t, []string{"0", "14", "15", "21", "31", "41"}, table.Tenants())
}

func TestLoad_PeriodFormats(t *testing.T) {
	table := loadFixture(t)

	keys := map[string]period.Filter{}
	for _, r := range table.Rows() {
		keys[r.Period] = r.Key
	}
	assert.Equal(t, period.NewMonth(2025, 1), keys["25-01"])
	assert.Equal(t, period.NewQuarter(2025, 2), keys["2025-Q2"])
	assert.Equal(t, period.NewMonth(2025, 6), keys["2025-M06"])
	assert.Equal(t, period.NewYear(2024), keys["2024"])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want error
	}{
		{"absent file", filepath.Join("testdata", "nope.csv"), os.ErrNotExist},
		{"missing column", filepath.Join("testdata", "missing_amount.csv"), ErrMissingColumn},
		{"corrupt amount", filepath.Join("testdata", "bad_amount.csv"), ErrInvalidRow},
		{"unsupported extension", filepath.Join("testdata", "portfolio.xlsx"), ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)

			var loadErr *DatasetLoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.path, loadErr.Path)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Load(filepath.Join("testdata", "bad_amount.csv"))
	var loadErr *DatasetLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, 3, loadErr.Line)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	require.NoError(t, os.WriteFile(path, []byte("entity_id,property_id,ledger_type,period,amount\n"), 0o600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLoad_TSV(t *testing.T) {
	table, err := Load(filepath.Join("testdata", "small.tsv"))
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	p, ok := table.Property("P9")
	require.True(t, ok)
	assert.Equal(t, "Annex", p.DisplayName)
	assert.Empty(t, p.Address)

	rows := table.Rows()
	assert.Equal(t, "7", rows[1].TenantID)
	assert.Empty(t, rows[2].TenantID, "blank tenant cell keeps its column")
	assert.Equal(t, Expense, rows[2].Type)
	assert.True(t, decimal.RequireFromString("-5").Equal(rows[2].Amount))

	assert.True(t, table.HasColumn("tenant_id"))
	assert.True(t, table.HasColumn("Property_Name"))
	assert.False(t, table.HasColumn("address"))
	assert.False(t, table.HasColumn("valuation"))
}

func TestLoad_TSVBlankCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.tsv")
	data := "entity_id\tproperty_id\ttenant_id\tledger_type\tperiod\tamount\n" +
		"E1\tP1\t\trevenue\t2025-01\t100.00\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	table, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	row := table.Rows()[0]
	assert.Empty(t, row.TenantID)
	assert.Equal(t, "2025-01", row.Period)
	assert.True(t, decimal.NewFromInt(100).Equal(row.Amount))
}

func TestExpenseCost(t *testing.T) {
	charge := func(amount string) Row {
		return Row{PropertyID: "P1", Type: Expense, Period: "2025-01", Amount: decimal.RequireFromString(amount)}
	}
	rent := Row{PropertyID: "P1", Type: Revenue, Period: "2025-01", Amount: decimal.NewFromInt(1000)}

	tests := []struct {
		name  string
		rows  []Row
		check Row
		want  string
	}{
		{"positive books charge", []Row{rent, charge("300"), charge("-100")}, charge("300"), "300"},
		{"positive books refund", []Row{rent, charge("300"), charge("-100")}, charge("-100"), "-100"},
		{"negative books charge", []Row{rent, charge("-300"), charge("100")}, charge("-300"), "300"},
		{"negative books refund", []Row{rent, charge("-300"), charge("100")}, charge("100"), "-100"},
		{"revenue costs nothing", []Row{rent, charge("300")}, rent, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTable(tt.rows)
			got := table.ExpenseCost(tt.check)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), got.String())
		})
	}
}

func TestFilter(t *testing.T) {
	table := loadFixture(t)

	t.Run("year subsumes months and quarters", func(t *testing.T) {
		rows := table.Filter(Query{Period: period.NewYear(2025)})
		assert.Len(t, rows, 34)
		assert.True(t, sum(rows, Revenue).Equal(decimal.RequireFromString("592124.15")))
		assert.True(t, sum(rows, Expense).Equal(decimal.RequireFromString("2599.29")))
	})

	t.Run("null and zero tenants are kept", func(t *testing.T) {
		rows := table.Filter(Query{PropertyIDs: []string{"P180"}, Period: period.NewYear(2025)})
		var blank, zeroTenant, zeroAmount int
		for _, r := range rows {
			if r.TenantID == "" {
				blank++
			}
			if r.TenantID == "0" {
				zeroTenant++
			}
			if r.Amount.IsZero() {
				zeroAmount++
			}
		}
		assert.Equal(t, 1, blank)
		assert.Equal(t, 1, zeroTenant)
		assert.Equal(t, 1, zeroAmount)
		assert.Len(t, rows, 12)
	})

	t.Run("tenant spellings normalize", func(t *testing.T) {
		for _, tenant := range []string{"14", "Tenant 14", "tenant_14", "T-14", "014"} {
			rows := table.Filter(Query{TenantIDs: []string{tenant}, Period: period.NewQuarter(2025, 1)})
			require.Len(t, rows, 3, tenant)
			assert.True(t, sum(rows, Revenue).Equal(decimal.RequireFromString("81301.78")), tenant)
		}
	})

	t.Run("quarter row matches quarter filter only", func(t *testing.T) {
		rows := table.Filter(Query{PropertyIDs: []string{"P220"}, Period: period.NewQuarter(2025, 2)})
		assert.Len(t, rows, 5)

		rows = table.Filter(Query{PropertyIDs: []string{"P220"}, Period: period.NewMonth(2025, 6)})
		assert.Len(t, rows, 2)
	})

	t.Run("entity filter is case insensitive", func(t *testing.T) {
		rows := table.Filter(Query{EntityID: "e1", Period: period.NewYear(2025)})
		for _, r := range rows {
			assert.Equal(t, "E1", r.EntityID)
		}
		assert.Len(t, rows, 14)
	})

	t.Run("no match is empty not nil", func(t *testing.T) {
		rows := table.Filter(Query{PropertyIDs: []string{"P999"}})
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("no filters returns everything", func(t *testing.T) {
		assert.Len(t, table.Filter(Query{}), table.Len())
	})
}

func TestLatest(t *testing.T) {
	table := loadFixture(t)

	key, rows := table.Latest("P180")
	assert.Equal(t, period.NewMonth(2025, 6), key)
	require.Len(t, rows, 1)
	assert.Equal(t, "14", rows[0].TenantID)
	assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("27100.60")))

	key, rows = table.Latest("P220")
	assert.Equal(t, period.NewMonth(2025, 6), key, "month outranks the quarter ending the same month")
	assert.Len(t, rows, 2, "2025-06 and 2025-M06 share a key")

	key, rows = table.Latest("P999")
	assert.True(t, key.IsNone())
	assert.Empty(t, rows)
}

func TestCodesAndRange(t *testing.T) {
	table := loadFixture(t)

	info, ok := table.Code("6100")
	require.True(t, ok)
	assert.Equal(t, "Property management fees", info.Description)
	assert.Equal(t, Expense, info.Type)
	assert.Len(t, table.Codes(), 8)

	first, last := table.PeriodRange()
	assert.Equal(t, period.NewMonth(2024, 11), first)
	assert.Equal(t, period.NewMonth(2025, 6), last)
}

func TestNormalizeTenant(t *testing.T) {
	tests := map[string]string{
		"14":        "14",
		"Tenant 14": "14",
		"tenant_14": "14",
		"T14":       "14",
		"t-14":      "14",
		"0014":      "14",
		"0":         "0",
		"":          "",
		"NULL":      "",
		"nan":       "",
		"acme":      "acme",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeTenant(in), in)
	}
}

func TestParseType(t *testing.T) {
	for _, in := range []string{"revenue", "Income", "REVENUES"} {
		typ, err := ParseType(in)
		require.NoError(t, err)
		assert.Equal(t, Revenue, typ)
	}
	for _, in := range []string{"expense", "Expenses", "cost"} {
		typ, err := ParseType(in)
		require.NoError(t, err)
		assert.Equal(t, Expense, typ)
	}
	_, err := ParseType("asset")
	assert.Error(t, err)
}

func TestNewTable_SeedsProperties(t *testing.T) {
	table := NewTable([]Row{
		{EntityID: "E1", PropertyID: "A", Type: Revenue, Period: "2025-01", Amount: decimal.NewFromInt(10)},
		{EntityID: "E1", PropertyID: "B", Type: Expense, Period: "2025", Amount: decimal.NewFromInt(3)},
	}, PropertyRecord{PropertyID: "A", DisplayName: "Alpha", Address: "1 First Street"})

	a, ok := table.Property("A")
	require.True(t, ok)
	assert.Equal(t, "Alpha", a.DisplayName)

	b, ok := table.Property("B")
	require.True(t, ok)
	assert.Equal(t, "B", b.DisplayName)

	rows := table.Filter(Query{Period: period.NewMonth(2025, 1)})
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].PropertyID)
}
