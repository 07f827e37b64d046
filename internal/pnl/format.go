package pnl

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency prefixes formatted amounts.
const DefaultCurrency = "USD"

// FormatCurrency renders v as "USD 1,234.56", negatives as "-USD 1,234.56".
func FormatCurrency(v decimal.Decimal) string {
	return FormatCurrencyCode(v, DefaultCurrency)
}

// FormatCurrencyCode is FormatCurrency with an explicit currency code.
func FormatCurrencyCode(v decimal.Decimal, code string) string {
	sign := ""
	v = v.Round(2)
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	fixed := v.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return fmt.Sprintf("%s%s %s.%s", sign, code, group(whole), frac)
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatPercent renders a percentage change with an explicit sign.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%+.2f%%", p)
}
