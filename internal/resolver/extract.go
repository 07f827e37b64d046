package resolver

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
)

var (
	reBuilding = regexp.MustCompile(`(?i)\b(?:building|bldg)\.?\s*#?\s*\d+[a-z]?\b`)
	reStreet   = regexp.MustCompile(`(?i)\b\d+\s+(?:[a-z]+\.?\s+){1,3}?(?:st|street|ave|avenue|rd|road|blvd|boulevard|dr|drive|ln|lane|ct|court|way|pl|place)\b\.?`)
	reTenant   = regexp.MustCompile(`(?i)\btenants?[\s_#:-]*(?:id[\s#:]*)?(\d+)\b`)
)

// Extract finds property references in free text: "Building 180" style
// references and street addresses. Mentions are returned in order of
// appearance, normalized and de-duplicated.
func Extract(text string) []string {
	type span struct {
		start int
		text  string
	}
	var spans []span
	for _, re := range []*regexp.Regexp{reBuilding, reStreet} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			spans = append(spans, span{start: loc[0], text: text[loc[0]:loc[1]]})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, Normalize(s.text))
	}
	return dedupe(out)
}

// ExtractTenants returns normalized tenant keys mentioned as "tenant 14",
// "Tenant #14", or "tenant_14".
func ExtractTenants(text string) []string {
	var out []string
	for _, m := range reTenant.FindAllStringSubmatch(text, -1) {
		out = append(out, ledger.NormalizeTenant(m[1]))
	}
	return dedupe(out)
}

// Mentions combines Extract with the aliases, names, and addresses of idx
// that appear in text. Mentions contained in a longer mention are dropped.
func Mentions(text string, idx *Index) []string {
	all := Extract(text)
	if idx != nil {
		all = append(all, idx.Phrases(text)...)
	}
	all = dedupe(all)

	var out []string
	for i, m := range all {
		covered := false
		for j, other := range all {
			if i != j && len(other) > len(m) && containsPhrase(other, m) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, m)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
