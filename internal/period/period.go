// Package period models the time frame of a portfolio request.
//
// A Filter is a tagged variant: None, Year, Quarter, or Month. Coarser
// filters subsume finer ones, so a Year filter matches every quarter and
// month inside that year. The zero Filter is None and matches everything.
package period

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the granularity of a Filter.
type Kind string

const (
	KindNone    Kind = ""
	KindYear    Kind = "year"
	KindQuarter Kind = "quarter"
	KindMonth   Kind = "month"
)

// ErrInvalidKey is returned by ParseKey for strings that are not period keys.
var ErrInvalidKey = errors.New("invalid period key")

// Filter is a canonical period. At most one is active per request.
type Filter struct {
	Kind    Kind `json:"kind,omitempty"`
	Year    int  `json:"year,omitempty"`
	Quarter int  `json:"quarter,omitempty"`
	Month   int  `json:"month,omitempty"`
}

// None returns the empty filter ("all time").
func None() Filter { return Filter{} }

// NewYear returns a Year filter.
func NewYear(year int) Filter { return Filter{Kind: KindYear, Year: year} }

// NewQuarter returns a Quarter filter. q must be in 1..4.
func NewQuarter(year, q int) Filter { return Filter{Kind: KindQuarter, Year: year, Quarter: q} }

// NewMonth returns a Month filter. m must be in 1..12.
func NewMonth(year, m int) Filter { return Filter{Kind: KindMonth, Year: year, Month: m} }

// IsNone reports whether f is the empty filter.
func (f Filter) IsNone() bool { return f.Kind == KindNone }

// Specificity ranks granularity: month > quarter > year > none.
func (f Filter) Specificity() int {
	switch f.Kind {
	case KindYear:
		return 1
	case KindQuarter:
		return 2
	case KindMonth:
		return 3
	default:
		return 0
	}
}

// EndMonth is the last calendar month covered by f.
func (f Filter) EndMonth() int {
	switch f.Kind {
	case KindQuarter:
		return f.Quarter * 3
	case KindMonth:
		return f.Month
	case KindYear:
		return 12
	default:
		return 0
	}
}

// Contains reports whether a row keyed by key falls inside f.
// A None filter contains everything; a None key is contained only by None.
func (f Filter) Contains(key Filter) bool {
	if f.IsNone() {
		return true
	}
	if key.IsNone() || key.Year != f.Year {
		return false
	}
	switch f.Kind {
	case KindYear:
		return true
	case KindQuarter:
		switch key.Kind {
		case KindQuarter:
			return key.Quarter == f.Quarter
		case KindMonth:
			return quarterOf(key.Month) == f.Quarter
		}
		return false
	case KindMonth:
		return key.Kind == KindMonth && key.Month == f.Month
	}
	return false
}

// Before orders periods temporally: by year, then end month, then specificity.
func (f Filter) Before(other Filter) bool {
	if f.Year != other.Year {
		return f.Year < other.Year
	}
	if f.EndMonth() != other.EndMonth() {
		return f.EndMonth() < other.EndMonth()
	}
	return f.Specificity() < other.Specificity()
}

// String renders the canonical key: 2025, 2025-Q1, 2025-03, or "" for None.
func (f Filter) String() string {
	switch f.Kind {
	case KindYear:
		return strconv.Itoa(f.Year)
	case KindQuarter:
		return fmt.Sprintf("%d-Q%d", f.Year, f.Quarter)
	case KindMonth:
		return fmt.Sprintf("%d-%02d", f.Year, f.Month)
	default:
		return ""
	}
}

// Label renders f for people: "2025", "Q1 2025", "March 2025", "all periods".
func (f Filter) Label() string {
	switch f.Kind {
	case KindYear:
		return strconv.Itoa(f.Year)
	case KindQuarter:
		return fmt.Sprintf("Q%d %d", f.Quarter, f.Year)
	case KindMonth:
		return fmt.Sprintf("%s %d", time.Month(f.Month), f.Year)
	default:
		return "all periods"
	}
}

func quarterOf(month int) int {
	return (month-1)/3 + 1
}

var (
	keyYear    = regexp.MustCompile(`^(\d{4})$`)
	keyQuarter = regexp.MustCompile(`^(\d{2}|\d{4})[-\s]?[qQ]([1-4])$`)
	keyMonth   = regexp.MustCompile(`^(\d{2}|\d{4})-[mM]?(\d{1,2})$`)
)

// ParseKey parses a dataset period string. Accepted forms are YYYY,
// YYYY-QN, YY-QN, YYYY-MM, YY-MM, and YYYY-Mmm.
func ParseKey(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if m := keyYear.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		return NewYear(y), nil
	}
	if m := keyQuarter.FindStringSubmatch(s); m != nil {
		q, _ := strconv.Atoi(m[2])
		return NewQuarter(expandYear(m[1]), q), nil
	}
	if m := keyMonth.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return Filter{}, fmt.Errorf("%w: month out of range in %q", ErrInvalidKey, s)
		}
		return NewMonth(expandYear(m[1]), month), nil
	}
	return Filter{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
}

// expandYear maps two-digit years into the 2000s.
func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 2 {
		return 2000 + y
	}
	return y
}
