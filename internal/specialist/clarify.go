package specialist

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/portfoliod/internal/intent"
	"github.com/fyrsmithlabs/portfoliod/internal/resolver"
)

// Prompt is everything Clarify needs to ask one targeted question.
type Prompt struct {
	Intent intent.Intent
	// Missing lists required slots still absent.
	Missing []intent.Slot
	// Unresolved holds not-found and ambiguous mentions.
	Unresolved []resolver.Resolution
	// Resolved names the properties already identified.
	Resolved []string
	// Options are property names offered when nothing more specific is known.
	Options []string
}

// Clarify renders one follow-up question. Unresolved mentions take
// precedence, then missing slots, then the intent's fallback hint. It never
// touches the dataset.
func Clarify(p Prompt) string {
	if len(p.Unresolved) > 0 {
		parts := make([]string, 0, len(p.Unresolved))
		for _, r := range p.Unresolved {
			parts = append(parts, unresolvedSentence(r))
		}
		return strings.Join(parts, " ")
	}

	def := intent.Lookup(p.Intent)
	for _, slot := range p.Missing {
		switch slot {
		case intent.SlotSecondProperty:
			if len(p.Resolved) > 0 {
				return withOptions(fmt.Sprintf("I found %s, but a comparison needs two properties. %s",
					joinNames(p.Resolved), def.FallbackHint), exclude(p.Options, p.Resolved))
			}
			return withOptions(def.FallbackHint, p.Options)
		case intent.SlotProperty:
			return withOptions(def.FallbackHint, p.Options)
		case intent.SlotTimeframe:
			return intent.Lookup(intent.PnL).FallbackHint
		}
	}
	if p.Intent == intent.Clarification && len(p.Resolved) > 0 {
		return fmt.Sprintf("What would you like to know about %s? I can report P&L or show the latest ledger details.",
			joinNames(p.Resolved))
	}
	return withOptions(def.FallbackHint, p.Options)
}

func unresolvedSentence(r resolver.Resolution) string {
	names := make([]string, len(r.Suggestions))
	for i, s := range r.Suggestions {
		names[i] = s.DisplayName
	}
	switch r.Status {
	case resolver.StatusAmbiguous:
		return fmt.Sprintf("%q could refer to %s. Which one did you mean?", r.Mention, orNames(names))
	default:
		if len(names) == 0 {
			return fmt.Sprintf("I couldn't find %q in the portfolio.", r.Mention)
		}
		return fmt.Sprintf("I couldn't find %q in the portfolio. Did you mean %s?", r.Mention, orNames(names))
	}
}

func withOptions(msg string, options []string) string {
	if len(options) == 0 {
		return msg
	}
	return msg + " Known properties: " + strings.Join(options, ", ") + "."
}

func exclude(all, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	var out []string
	for _, a := range all {
		if !skip[a] {
			out = append(out, a)
		}
	}
	return out
}

// orNames renders "A", "A or B", or "A, B or C".
func orNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
	}
}
