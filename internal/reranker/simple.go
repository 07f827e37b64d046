package reranker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// SimpleReranker blends the search score with term overlap between the
// mention and the candidate text. Numbers in the mention count double: a
// candidate that misses "180" in "building 180" is almost never the property
// the user meant.
type SimpleReranker struct{}

// NewSimpleReranker creates a new SimpleReranker instance.
func NewSimpleReranker() *SimpleReranker {
	return &SimpleReranker{}
}

const (
	searchWeight  = 0.5
	overlapWeight = 0.5
)

// Rerank implements Reranker.
func (r *SimpleReranker) Rerank(ctx context.Context, mention string, candidates []Candidate, topK int) ([]Scored, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	if len(candidates) == 0 {
		return []Scored{}, nil
	}

	terms := tokenize(mention)
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		s := Scored{Candidate: c, OriginalRank: i, Combined: c.Score}
		if len(terms) > 0 {
			s.Overlap = overlap(terms, tokenize(c.Text))
			s.Combined = searchWeight*c.Score + overlapWeight*s.Overlap
		}
		scored[i] = s
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Combined != scored[j].Combined {
			return scored[i].Combined > scored[j].Combined
		}
		return scored[i].PropertyID < scored[j].PropertyID
	})
	return scored[:topK], nil
}

// Close closes the reranker. SimpleReranker has no resources to clean up.
func (r *SimpleReranker) Close() error {
	return nil
}

// tokenize lowercases text and splits it into terms, dropping stopwords and
// one-letter words. Numeric terms are always kept.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if isNumber(f) || (len(f) > 1 && !stopwords[f]) {
			out = append(out, f)
		}
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "about": true,
	"me": true, "tell": true, "show": true, "is": true, "what": true, "our": true,
}

// overlap is the weighted share of mention terms present in the candidate.
// Numeric terms weigh twice as much as words.
func overlap(terms, doc []string) float32 {
	have := make(map[string]bool, len(doc))
	for _, t := range doc {
		have[t] = true
	}
	var total, hit float32
	counted := make(map[string]bool, len(terms))
	for _, t := range terms {
		if counted[t] {
			continue
		}
		counted[t] = true
		w := float32(1)
		if isNumber(t) {
			w = 2
		}
		total += w
		if have[t] {
			hit += w
		}
	}
	if total == 0 {
		return 0
	}
	return hit / total
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
