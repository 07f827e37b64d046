// Package ledger holds the portfolio ledger dataset in memory.
//
// A Table is loaded once at startup and never mutated afterwards, so any
// number of requests may query it concurrently without locking.
package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fyrsmithlabs/portfoliod/internal/period"
)

// Type is the ledger type of a row. Revenue is added in aggregation and
// expense is subtracted; see Table.ExpenseCost for expense signs.
type Type string

const (
	Revenue Type = "revenue"
	Expense Type = "expense"
)

// Row is one immutable ledger entry.
type Row struct {
	EntityID    string          `json:"entity_id"`
	PropertyID  string          `json:"property_id"`
	TenantID    string          `json:"tenant_id,omitempty"`
	Type        Type            `json:"ledger_type"`
	Group       string          `json:"ledger_group,omitempty"`
	Subtype     string          `json:"ledger_subtype,omitempty"`
	Code        string          `json:"ledger_code,omitempty"`
	Description string          `json:"ledger_description,omitempty"`
	Period      string          `json:"period"`
	Key         period.Filter   `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
}

// PropertyRecord is the canonical identity of a property.
type PropertyRecord struct {
	PropertyID  string `json:"property_id"`
	DisplayName string `json:"display_name"`
	Address     string `json:"address,omitempty"`
	EntityID    string `json:"entity_id"`
}

// CodeInfo describes a ledger code as it appears in the dataset.
type CodeInfo struct {
	Code        string `json:"ledger_code"`
	Type        Type   `json:"ledger_type"`
	Group       string `json:"ledger_group,omitempty"`
	Subtype     string `json:"ledger_subtype,omitempty"`
	Description string `json:"ledger_description,omitempty"`
}

// Query selects rows. Empty fields do not constrain the result.
type Query struct {
	EntityID    string
	PropertyIDs []string
	TenantIDs   []string
	Period      period.Filter
}

// Table is the read-only in-memory dataset.
type Table struct {
	source     string
	rows       []Row
	properties []PropertyRecord
	byProperty map[string]int
	codes      map[string]CodeInfo
	tenants    []string
	columns    map[string]bool

	// expenseSign is -1 when the dataset books expenses as negative amounts.
	expenseSign decimal.Decimal
}

// NewTable builds a table from rows. Rows are copied and Key is derived
// from Period when unset. props seeds display names and addresses; any
// property referenced only by rows falls back to its id as display name.
func NewTable(rows []Row, props ...PropertyRecord) *Table {
	t := &Table{
		rows:       make([]Row, len(rows)),
		byProperty: make(map[string]int),
		codes:      make(map[string]CodeInfo),
	}
	copy(t.rows, rows)
	for i := range t.rows {
		if t.rows[i].Key.IsNone() {
			if k, err := period.ParseKey(t.rows[i].Period); err == nil {
				t.rows[i].Key = k
			}
		}
	}
	names := make([]propertyColumns, 0, len(rows))
	for _, row := range t.rows {
		var col propertyColumns
		for _, p := range props {
			if p.PropertyID == row.PropertyID {
				col = propertyColumns{name: p.DisplayName, address: p.Address}
				break
			}
		}
		names = append(names, col)
	}
	t.index(names)
	return t
}

// index derives properties, ledger codes, and tenants. names carries the
// optional per-row property name and address columns.
func (t *Table) index(names []propertyColumns) {
	tenants := make(map[string]struct{})
	expenses := decimal.Zero
	for i, row := range t.rows {
		if row.Type == Expense {
			expenses = expenses.Add(row.Amount)
		}
		pos, ok := t.byProperty[row.PropertyID]
		if !ok {
			pos = len(t.properties)
			t.byProperty[row.PropertyID] = pos
			t.properties = append(t.properties, PropertyRecord{
				PropertyID: row.PropertyID,
				EntityID:   row.EntityID,
			})
		}
		if i < len(names) {
			rec := &t.properties[pos]
			if rec.DisplayName == "" {
				rec.DisplayName = names[i].name
			}
			if rec.Address == "" {
				rec.Address = names[i].address
			}
		}
		if row.Code != "" {
			if _, seen := t.codes[row.Code]; !seen {
				t.codes[row.Code] = CodeInfo{
					Code:        row.Code,
					Type:        row.Type,
					Group:       row.Group,
					Subtype:     row.Subtype,
					Description: row.Description,
				}
			}
		}
		if key := NormalizeTenant(row.TenantID); key != "" {
			tenants[key] = struct{}{}
		}
	}

	t.expenseSign = decimal.NewFromInt(1)
	if expenses.IsNegative() {
		t.expenseSign = decimal.NewFromInt(-1)
	}

	for i := range t.properties {
		if t.properties[i].DisplayName == "" {
			t.properties[i].DisplayName = t.properties[i].PropertyID
		}
	}
	sort.Slice(t.properties, func(i, j int) bool {
		return t.properties[i].PropertyID < t.properties[j].PropertyID
	})
	for i, p := range t.properties {
		t.byProperty[p.PropertyID] = i
	}

	t.tenants = make([]string, 0, len(tenants))
	for k := range tenants {
		t.tenants = append(t.tenants, k)
	}
	sort.Strings(t.tenants)
}

// ExpenseCost returns what an expense row adds to total expense: its amount
// in the table's booking convention, so a charge is positive and a refund or
// reversal is negative. The convention is fixed per table by the sign of the
// net expense sum. Non-expense rows cost zero.
func (t *Table) ExpenseCost(row Row) decimal.Decimal {
	if row.Type != Expense {
		return decimal.Zero
	}
	if t.expenseSign.IsZero() {
		return row.Amount
	}
	return row.Amount.Mul(t.expenseSign)
}

// HasColumn reports whether the loaded file carried the named column.
// Tables built with NewTable have no header and report false.
func (t *Table) HasColumn(name string) bool {
	return t.columns[strings.ToLower(strings.TrimSpace(name))]
}

// Source is the path the table was loaded from, if any.
func (t *Table) Source() string { return t.source }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of all rows in load order.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Filter returns the rows matching q. It never fails; no match yields an
// empty slice. Rows without a tenant are kept unless q filters by tenant.
func (t *Table) Filter(q Query) []Row {
	props := toSet(q.PropertyIDs, func(s string) string { return s })
	tenants := toSet(q.TenantIDs, NormalizeTenant)
	entity := strings.TrimSpace(q.EntityID)

	out := make([]Row, 0)
	for _, row := range t.rows {
		if entity != "" && !strings.EqualFold(row.EntityID, entity) {
			continue
		}
		if props != nil {
			if _, ok := props[row.PropertyID]; !ok {
				continue
			}
		}
		if tenants != nil {
			if _, ok := tenants[NormalizeTenant(row.TenantID)]; !ok {
				continue
			}
		}
		if !q.Period.Contains(row.Key) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Properties returns the distinct properties sorted by id.
func (t *Table) Properties() []PropertyRecord {
	out := make([]PropertyRecord, len(t.properties))
	copy(out, t.properties)
	return out
}

// Property looks up one property by id.
func (t *Table) Property(id string) (PropertyRecord, bool) {
	pos, ok := t.byProperty[id]
	if !ok {
		return PropertyRecord{}, false
	}
	return t.properties[pos], true
}

// Tenants returns the distinct normalized tenant keys, sorted.
func (t *Table) Tenants() []string {
	out := make([]string, len(t.tenants))
	copy(out, t.tenants)
	return out
}

// Code looks up a ledger code.
func (t *Table) Code(code string) (CodeInfo, bool) {
	info, ok := t.codes[strings.TrimSpace(code)]
	return info, ok
}

// Codes returns every ledger code sorted by code.
func (t *Table) Codes() []CodeInfo {
	out := make([]CodeInfo, 0, len(t.codes))
	for _, c := range t.codes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// PeriodRange returns the earliest and latest period keys in the table.
func (t *Table) PeriodRange() (first, last period.Filter) {
	for _, row := range t.rows {
		if row.Key.IsNone() {
			continue
		}
		if first.IsNone() || row.Key.Before(first) {
			first = row.Key
		}
		if last.IsNone() || last.Before(row.Key) {
			last = row.Key
		}
	}
	return first, last
}

// Latest returns the rows of the temporally last period recorded for a
// property. Periods are ordered by year, end month, then specificity. An
// unknown property or one without history yields a None key and no rows.
func (t *Table) Latest(propertyID string) (period.Filter, []Row) {
	var latest period.Filter
	for _, row := range t.rows {
		if row.PropertyID != propertyID || row.Key.IsNone() {
			continue
		}
		if latest.IsNone() || latest.Before(row.Key) {
			latest = row.Key
		}
	}
	if latest.IsNone() {
		return latest, nil
	}
	var rows []Row
	for _, row := range t.rows {
		if row.PropertyID == propertyID && row.Key == latest {
			rows = append(rows, row)
		}
	}
	return latest, rows
}

// NormalizeTenant maps "Tenant 14", "tenant_14", "T-14", and "14" to "14".
// Null-like values ("", "null", "none", "nan") normalize to "".
func NormalizeTenant(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "null", "none", "nan", "n/a":
		return ""
	}
	s = strings.TrimPrefix(s, "tenant")
	if rest := strings.TrimLeft(strings.TrimPrefix(s, "t"), " _-#:"); isDigits(rest) {
		s = rest
	} else {
		s = strings.TrimLeft(s, " _-#:")
	}
	if isDigits(s) {
		if trimmed := strings.TrimLeft(s, "0"); trimmed != "" {
			return trimmed
		}
		return "0"
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func toSet(values []string, norm func(string) string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if k := norm(v); k != "" {
			set[k] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
