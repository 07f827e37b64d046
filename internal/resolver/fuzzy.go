package resolver

import (
	"github.com/agnivade/levenshtein"
)

const (
	editWeight  = 0.6
	tokenWeight = 0.4

	// maxFuzzyScore keeps every fuzzy score strictly below an exact match.
	maxFuzzyScore = 0.99
)

// similarity scores two normalized strings in [0, 0.99]. Identical strings
// still score 0.99; only the exact stage reports 1.0.
//
// The score blends an edit-distance ratio with token overlap and is halved
// when a number in the mention is absent from the candidate, so that
// "building 190" never resolves to "building 180".
func similarity(mention, candidate string) float64 {
	if mention == "" || candidate == "" {
		return 0
	}
	score := editWeight*editRatio(mention, candidate) + tokenWeight*jaccard(mention, candidate)
	if !numbersCovered(mention, candidate) {
		score *= 0.5
	}
	if score > maxFuzzyScore {
		score = maxFuzzyScore
	}
	return score
}

func editRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func jaccard(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 && len(bs) == 0 {
		return 1
	}
	inter := 0
	for t := range as {
		if bs[t] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokens(s) {
		set[t] = true
	}
	return set
}

func numbersCovered(mention, candidate string) bool {
	have := make(map[string]bool)
	for _, n := range numbers(candidate) {
		have[n] = true
	}
	for _, n := range numbers(mention) {
		if !have[n] {
			return false
		}
	}
	return true
}
