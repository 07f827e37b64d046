package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fyrsmithlabs/portfoliod/internal/period"
)

// Sentinel causes wrapped by DatasetLoadError.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrInvalidRow    = errors.New("invalid row")
	ErrEmptyDataset  = errors.New("dataset has no rows")
	ErrUnsupported   = errors.New("unsupported dataset format")
)

// DatasetLoadError reports a dataset that cannot be served. It is fatal at
// startup.
type DatasetLoadError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *DatasetLoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load dataset %s: line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("load dataset %s: %s", e.Path, e.Reason)
}

func (e *DatasetLoadError) Unwrap() error { return e.Err }

var requiredColumns = []string{"entity_id", "property_id", "ledger_type", "period", "amount"}

type propertyColumns struct {
	name    string
	address string
}

// Load reads a CSV (.csv) or TSV (.tsv) ledger file into a Table.
// Header names are matched case-insensitively.
func Load(path string) (*Table, error) {
	var comma rune
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", "":
		comma = ','
	case ".tsv", ".tab":
		comma = '\t'
	default:
		return nil, &DatasetLoadError{Path: path, Reason: "expected .csv or .tsv", Err: ErrUnsupported}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &DatasetLoadError{Path: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()

	t, err := read(f, comma, path)
	if err != nil {
		return nil, err
	}
	t.source = path
	return t, nil
}

func read(r io.Reader, comma rune, path string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	// A tab counts as leading space, so trimming would swallow empty TSV cells.
	cr.TrimLeadingSpace = comma != '\t'
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DatasetLoadError{Path: path, Reason: "file is empty", Err: ErrEmptyDataset}
		}
		return nil, &DatasetLoadError{Path: path, Line: 1, Reason: "malformed header", Err: err}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, &DatasetLoadError{Path: path, Line: 1, Reason: fmt.Sprintf("missing required column %q", name), Err: ErrMissingColumn}
		}
	}
	get := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		rows  []Row
		names []propertyColumns
	)
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &DatasetLoadError{Path: path, Line: line, Reason: "malformed record", Err: err}
		}

		row, err := parseRow(rec, get)
		if err != nil {
			return nil, &DatasetLoadError{Path: path, Line: line, Reason: err.Error(), Err: ErrInvalidRow}
		}
		rows = append(rows, row)
		names = append(names, propertyColumns{
			name:    get(rec, "property_name"),
			address: get(rec, "address"),
		})
	}
	if len(rows) == 0 {
		return nil, &DatasetLoadError{Path: path, Reason: "no data rows", Err: ErrEmptyDataset}
	}

	t := &Table{
		rows:       rows,
		byProperty: make(map[string]int),
		codes:      make(map[string]CodeInfo),
		columns:    make(map[string]bool, len(cols)),
	}
	for name := range cols {
		t.columns[name] = true
	}
	t.index(names)
	return t, nil
}

func parseRow(rec []string, get func([]string, string) string) (Row, error) {
	row := Row{
		EntityID:    get(rec, "entity_id"),
		PropertyID:  get(rec, "property_id"),
		TenantID:    get(rec, "tenant_id"),
		Group:       get(rec, "ledger_group"),
		Subtype:     get(rec, "ledger_subtype"),
		Code:        get(rec, "ledger_code"),
		Description: get(rec, "ledger_description"),
		Period:      get(rec, "period"),
	}
	if row.PropertyID == "" {
		return Row{}, errors.New("empty property_id")
	}

	typ, err := ParseType(get(rec, "ledger_type"))
	if err != nil {
		return Row{}, err
	}
	row.Type = typ

	key, err := period.ParseKey(row.Period)
	if err != nil {
		return Row{}, err
	}
	row.Key = key

	raw := strings.ReplaceAll(get(rec, "amount"), ",", "")
	if raw == "" {
		raw = "0"
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return Row{}, fmt.Errorf("invalid amount %q", get(rec, "amount"))
	}
	row.Amount = amount
	return row, nil
}

// ParseType maps dataset spellings onto a ledger Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "revenue", "revenues", "income":
		return Revenue, nil
	case "expense", "expenses", "cost", "costs":
		return Expense, nil
	default:
		return "", fmt.Errorf("unknown ledger_type %q", s)
	}
}
