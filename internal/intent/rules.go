package intent

import (
	"context"
	"regexp"
	"strings"
)

// markerGroup is a named family of lexical markers.
type markerGroup struct {
	name     string
	patterns []*regexp.Regexp
}

func group(name string, exprs ...string) markerGroup {
	g := markerGroup{name: name}
	for _, e := range exprs {
		g.patterns = append(g.patterns, regexp.MustCompile(`(?i)`+e))
	}
	return g
}

// match returns the marker texts of g found in text.
func (g markerGroup) match(text string) []string {
	var out []string
	for _, re := range g.patterns {
		if m := strings.TrimRight(re.FindString(text), ".?!,;:"); m != "" {
			out = append(out, g.name+":"+strings.ToLower(m))
		}
	}
	return out
}

var (
	comparisonMarkers = group("comparison",
		`\bvs\b\.?`, `\bversus\b`, `\bcompared\s+(?:to|with)\b`, `\bcompar(?:e|ing|ison)\b`, `\bagainst\b`)
	priceMarkers = group("price",
		`\bprices?\b`, `\bvaluations?\b`, `\bworth\b`, `\bvalue\b`, `\bappraisal\b`, `\bmarket\s+value\b`)
	financialMarkers = group("financial",
		`\bp\s*&\s*l\b`, `\bpnl\b`, `\bprofit\b`, `\bloss(?:es)?\b`, `\bnoi\b`, `\bnet\s+operating\s+income\b`,
		`\bincome\b`, `\brevenues?\b`, `\bexpenses?\b`, `\bperformance\b`, `\bearnings\b`)
	detailMarkers = group("detail",
		`\btell\s+me\s+about\b`, `\bdetails?\b`, `\bdescribe\b`, `\binfo(?:rmation)?\b`, `\boverview\s+of\b`,
		`\bsnapshot\b`, `\blatest\b`)
	definitionalMarkers = group("definitional",
		`\bwhat\s+(?:is|are|does)\b`, `\bwhat's\b`, `\bmeaning\s+of\b`, `\bdefinition\b`, `\bdefine\b`, `\bexplain\b`,
		`\bhow\s+(?:is|are|does|do)\b`, `\bhelp\s+me\s+understand\b`, `\bledger\s+(?:code|group|hierarchy)s?\b`,
		`\bwhat\s+can\s+you\s+do\b`)
)

// RuleBased is the deterministic classifier.
type RuleBased struct{}

// NewRuleBased returns the deterministic classifier.
func NewRuleBased() *RuleBased { return &RuleBased{} }

// Classify applies marker priorities:
//
//  1. a financial marker with a property or tenant and a period is P&L;
//  2. a financial comparison across periods, or across the whole
//     portfolio, is P&L unless a price marker is present;
//  3. comparison or price markers are a price comparison;
//  4. a definitional question with no slots is general knowledge;
//  5. financial markers are P&L;
//  6. detail markers, or a question naming a property, are asset details;
//  7. otherwise clarification when slots are present or the text is very
//     short, else general knowledge.
func (r *RuleBased) Classify(_ context.Context, text string, sig Signals) Decision {
	comparison := comparisonMarkers.match(text)
	price := priceMarkers.match(text)
	financial := financialMarkers.match(text)
	detail := detailMarkers.match(text)
	definitional := definitionalMarkers.match(text)

	var markers []string
	for _, m := range [][]string{comparison, price, financial, detail, definitional} {
		markers = append(markers, m...)
	}
	decide := func(i Intent, rule string) Decision {
		return Decision{Intent: i, Source: SourceRules, Markers: markers, Rule: rule}
	}

	switch {
	case len(financial) > 0 && (sig.HasProperties || sig.HasTenants) && sig.HasPeriod:
		return decide(PnL, "financial_with_scope")
	case len(comparison) > 0 && len(financial) > 0 && len(price) == 0 &&
		(sig.Periods >= 2 || !sig.HasProperties) && (sig.any() || len(definitional) == 0):
		return decide(PnL, "financial_comparison")
	case len(comparison) > 0 || len(price) > 0:
		return decide(PriceComparison, "comparison")
	case len(definitional) > 0 && !sig.any():
		return decide(GeneralKnowledge, "definitional")
	case len(financial) > 0:
		return decide(PnL, "financial")
	case len(detail) > 0:
		return decide(AssetDetails, "detail")
	case len(definitional) > 0 && sig.HasProperties:
		return decide(AssetDetails, "question_about_property")
	case len(definitional) > 0:
		return decide(GeneralKnowledge, "definitional")
	case sig.any():
		return decide(Clarification, "slots_without_marker")
	case len(strings.Fields(text)) < 4:
		return decide(Clarification, "too_short")
	default:
		return decide(GeneralKnowledge, "no_marker")
	}
}

var _ Strategy = (*RuleBased)(nil)
