package period

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may":  5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

const (
	monthAlt     = `january|february|march|april|may|june|july|august|september|october|november|december|sept|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec`
	fullMonthAlt = `january|february|march|april|may|june|july|august|september|october|november|december`
	yearPat      = `(20\d{2}|19\d{2})`
)

var (
	reYearMonth     = regexp.MustCompile(`\b` + yearPat + `-m?(0?[1-9]|1[0-2])\b`)
	reMonthSlash    = regexp.MustCompile(`\b(0?[1-9]|1[0-2])/` + yearPat + `\b`)
	reMonthNameYear = regexp.MustCompile(`\b(` + monthAlt + `)\.?,?\s+(?:of\s+)?` + yearPat + `\b`)
	reYearMonthName = regexp.MustCompile(`\b` + yearPat + `\s+(` + monthAlt + `)\b`)
	reBareMonth     = regexp.MustCompile(`\b(?:in|for|during)\s+(` + fullMonthAlt + `)\b`)

	reYearQuarter    = regexp.MustCompile(`\b` + yearPat + `[-\s]*q([1-4])\b`)
	reQuarterYear    = regexp.MustCompile(`\bq([1-4])[-\s,]*(?:of\s+)?` + yearPat + `\b`)
	reShortQuarter   = regexp.MustCompile(`\b(\d{2})-q([1-4])\b`)
	reOrdinalQuarter = regexp.MustCompile(`\b(first|second|third|fourth|1st|2nd|3rd|4th)\s+quarter(?:\s+of)?,?\s+` + yearPat + `\b`)
	reBareQuarter    = regexp.MustCompile(`\bq([1-4])\b`)

	reFiscalYear = regexp.MustCompile(`\bfy\s?` + yearPat + `\b`)
	// A year followed by an out-of-range month or quarter, as in 2025-13 or
	// 2025-Q5, is a malformed key rather than a year.
	reKeySuffix = regexp.MustCompile(`^(?:[-\s]*q\d+|-m?\d{1,2})\b`)
	reYear      = regexp.MustCompile(`\b` + yearPat + `\b`)

	// Numbers that name buildings, tenants, or street addresses are not years.
	reIdentifierBefore = regexp.MustCompile(`(?:building|bldg|tenant|suite|unit|property|#)\s*$`)
	reStreetAfter      = regexp.MustCompile(`^\s+(?:[a-z]+\s+){1,3}?(?:st|street|ave|avenue|rd|road|blvd|boulevard|dr|drive|ln|lane|ct|court|way)\b`)
)

var ordinals = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
	"fourth": 4, "4th": 4,
}

type relative struct {
	phrases []string
	resolve func(ref time.Time) Filter
}

var relatives = []relative{
	{[]string{"this year", "current year", "year to date", "year-to-date", "ytd"}, func(ref time.Time) Filter {
		return NewYear(ref.Year())
	}},
	{[]string{"last year", "previous year", "prior year"}, func(ref time.Time) Filter {
		return NewYear(ref.Year() - 1)
	}},
	{[]string{"this quarter", "current quarter", "quarter to date", "qtd"}, func(ref time.Time) Filter {
		return NewQuarter(ref.Year(), quarterOf(int(ref.Month())))
	}},
	{[]string{"last quarter", "previous quarter", "prior quarter"}, func(ref time.Time) Filter {
		q := quarterOf(int(ref.Month())) - 1
		if q == 0 {
			return NewQuarter(ref.Year()-1, 4)
		}
		return NewQuarter(ref.Year(), q)
	}},
	{[]string{"this month", "current month", "month to date", "mtd"}, func(ref time.Time) Filter {
		return NewMonth(ref.Year(), int(ref.Month()))
	}},
	{[]string{"last month", "previous month", "prior month"}, func(ref time.Time) Filter {
		prev := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return NewMonth(prev.Year(), int(prev.Month()))
	}},
}

type mention struct {
	filter Filter
	pos    int
}

// Parse extracts the period mentioned in text. Relative terms resolve
// against ref; a zero ref means the current date. When several periods are
// mentioned the most specific wins, and among equally specific mentions the
// earliest wins. Text without a recognizable period yields None.
func Parse(text string, ref time.Time) Filter {
	if ref.IsZero() {
		ref = time.Now()
	}
	mentions := Mentions(text, ref)
	if len(mentions) == 0 {
		return None()
	}
	return mentions[0]
}

// Mentions returns every period found in text ordered by specificity
// (most specific first), then by position.
func Mentions(text string, ref time.Time) []Filter {
	if ref.IsZero() {
		ref = time.Now()
	}
	lower := strings.ToLower(text)

	var found []mention
	add := func(f Filter, pos int) {
		found = append(found, mention{filter: f, pos: pos})
	}

	keySpans := make([][]int, 0)
	for _, m := range reYearMonth.FindAllStringSubmatchIndex(lower, -1) {
		add(NewMonth(atoi(lower[m[2]:m[3]]), atoi(lower[m[4]:m[5]])), m[0])
		keySpans = append(keySpans, m[:2])
	}
	for _, m := range reMonthSlash.FindAllStringSubmatchIndex(lower, -1) {
		add(NewMonth(atoi(lower[m[4]:m[5]]), atoi(lower[m[2]:m[3]])), m[0])
	}
	for _, m := range reMonthNameYear.FindAllStringSubmatchIndex(lower, -1) {
		add(NewMonth(atoi(lower[m[4]:m[5]]), monthNames[lower[m[2]:m[3]]]), m[0])
	}
	for _, m := range reYearMonthName.FindAllStringSubmatchIndex(lower, -1) {
		add(NewMonth(atoi(lower[m[2]:m[3]]), monthNames[lower[m[4]:m[5]]]), m[0])
	}
	for _, m := range reBareMonth.FindAllStringSubmatchIndex(lower, -1) {
		month := monthNames[lower[m[2]:m[3]]]
		add(NewMonth(recentYear(ref, month), month), m[0])
	}

	quarterSpans := make([][]int, 0)
	for _, m := range reYearQuarter.FindAllStringSubmatchIndex(lower, -1) {
		add(NewQuarter(atoi(lower[m[2]:m[3]]), atoi(lower[m[4]:m[5]])), m[0])
		quarterSpans = append(quarterSpans, m[:2])
		keySpans = append(keySpans, m[:2])
	}
	for _, m := range reQuarterYear.FindAllStringSubmatchIndex(lower, -1) {
		add(NewQuarter(atoi(lower[m[4]:m[5]]), atoi(lower[m[2]:m[3]])), m[0])
		quarterSpans = append(quarterSpans, m[:2])
	}
	for _, m := range reShortQuarter.FindAllStringSubmatchIndex(lower, -1) {
		add(NewQuarter(expandYear(lower[m[2]:m[3]]), atoi(lower[m[4]:m[5]])), m[0])
		quarterSpans = append(quarterSpans, m[:2])
	}
	for _, m := range reOrdinalQuarter.FindAllStringSubmatchIndex(lower, -1) {
		add(NewQuarter(atoi(lower[m[4]:m[5]]), ordinals[lower[m[2]:m[3]]]), m[0])
	}
	for _, m := range reBareQuarter.FindAllStringSubmatchIndex(lower, -1) {
		if within(m[0], quarterSpans) {
			continue
		}
		q := atoi(lower[m[2]:m[3]])
		add(NewQuarter(recentYear(ref, q*3-2), q), m[0])
	}

	for _, m := range reFiscalYear.FindAllStringSubmatchIndex(lower, -1) {
		add(NewYear(atoi(lower[m[2]:m[3]])), m[0])
	}
	for _, m := range reYear.FindAllStringSubmatchIndex(lower, -1) {
		if reIdentifierBefore.MatchString(lower[:m[0]]) || reStreetAfter.MatchString(lower[m[1]:]) {
			continue
		}
		if reKeySuffix.MatchString(lower[m[1]:]) && !within(m[0], keySpans) {
			continue
		}
		add(NewYear(atoi(lower[m[2]:m[3]])), m[0])
	}

	for _, r := range relatives {
		for _, phrase := range r.phrases {
			if pos := indexWord(lower, phrase); pos >= 0 {
				add(r.resolve(ref), pos)
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		si, sj := found[i].filter.Specificity(), found[j].filter.Specificity()
		if si != sj {
			return si > sj
		}
		return found[i].pos < found[j].pos
	})

	out := make([]Filter, 0, len(found))
	seen := make(map[Filter]bool, len(found))
	for _, m := range found {
		if seen[m.filter] {
			continue
		}
		seen[m.filter] = true
		out = append(out, m.filter)
	}
	return out
}

// recentYear is the year of the latest occurrence of month at or before
// ref, so a bare month or quarter never lands in the future. Quarters pass
// their first month.
func recentYear(ref time.Time, month int) int {
	if month > int(ref.Month()) {
		return ref.Year() - 1
	}
	return ref.Year()
}

func within(pos int, spans [][]int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

// indexWord finds phrase in s on word boundaries.
func indexWord(s, phrase string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], phrase)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(phrase)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return start
		}
		offset = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
