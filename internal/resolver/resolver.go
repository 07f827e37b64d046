// Package resolver maps noisy property mentions to canonical property ids.
//
// Resolution runs an ordered chain per mention: normalization, exact alias
// lookup, exact name or address match, fuzzy lexical similarity, and an
// optional semantic search. The exact and alias stages short-circuit. The
// fuzzy stage resolves only above its acceptance threshold and reports
// equally strong candidates as ambiguous. The semantic stage never
// resolves; it only contributes suggestions to a not-found result.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/embeddings"
	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
)

// Status is the outcome of resolving one mention.
type Status string

const (
	StatusResolved  Status = "resolved"
	StatusAmbiguous Status = "ambiguous"
	StatusNotFound  Status = "not_found"
)

// Stage names the part of the chain that produced a result.
type Stage string

const (
	StageNone     Stage = "none"
	StageAlias    Stage = "alias"
	StageExact    Stage = "exact"
	StageFuzzy    Stage = "fuzzy"
	StageSemantic Stage = "semantic"
)

// Defaults for Config.
const (
	DefaultFuzzyThreshold  = 0.6
	DefaultSuggestionFloor = 0.15
	DefaultMaxSuggestions  = 3
	DefaultSemanticTimeout = 2 * time.Second
)

// Suggestion is a ranked near-miss offered to the user. It is never a
// confirmed match.
type Suggestion struct {
	PropertyID  string  `json:"property_id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
	Stage       Stage   `json:"stage"`
}

// Resolution is the result for one mention.
type Resolution struct {
	Mention     string       `json:"mention"`
	Status      Status       `json:"status"`
	PropertyID  string       `json:"property_id,omitempty"`
	Confidence  float64      `json:"confidence"`
	Stage       Stage        `json:"stage"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Err returns a *NotFoundError or *AmbiguousError for unresolved mentions.
func (r Resolution) Err() error {
	switch r.Status {
	case StatusNotFound:
		return &NotFoundError{Mention: r.Mention, Suggestions: r.Suggestions}
	case StatusAmbiguous:
		return &AmbiguousError{Mention: r.Mention, Candidates: r.Suggestions}
	default:
		return nil
	}
}

// NotFoundError reports a mention that matches no portfolio property.
type NotFoundError struct {
	Mention     string
	Suggestions []Suggestion
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("property %q not found in portfolio", e.Mention)
	}
	return fmt.Sprintf("property %q not found in portfolio (did you mean %s?)", e.Mention, suggestionNames(e.Suggestions))
}

// AmbiguousError reports a mention that matches several properties equally well.
type AmbiguousError struct {
	Mention    string
	Candidates []Suggestion
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("property %q is ambiguous between %s", e.Mention, suggestionNames(e.Candidates))
}

func suggestionNames(s []Suggestion) string {
	names := make([]string, len(s))
	for i, sg := range s {
		names[i] = sg.DisplayName
	}
	return strings.Join(names, ", ")
}

// Config tunes a Resolver. Zero values take the defaults.
type Config struct {
	FuzzyThreshold  float64
	SuggestionFloor float64
	MaxSuggestions  int
	SemanticTimeout time.Duration

	// Embedder enables the semantic stage. Nil means lexical-only.
	Embedder embeddings.Provider
	Logger   *zap.Logger
}

func (c *Config) applyDefaults() {
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if c.SuggestionFloor <= 0 {
		c.SuggestionFloor = DefaultSuggestionFloor
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = DefaultMaxSuggestions
	}
	if c.SemanticTimeout <= 0 {
		c.SemanticTimeout = DefaultSemanticTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

type snapshot struct {
	index    *Index
	semantic *SemanticIndex
}

// Resolver resolves mentions against the current index. It is safe for
// concurrent use; Reload swaps the index atomically.
type Resolver struct {
	cfg        Config
	properties []ledger.PropertyRecord
	current    atomic.Pointer[snapshot]
}

// New builds a resolver over properties and aliases. A failure to build the
// semantic index is logged and leaves the resolver lexical-only.
func New(ctx context.Context, properties []ledger.PropertyRecord, aliases map[string]string, cfg Config) (*Resolver, error) {
	cfg.applyDefaults()
	r := &Resolver{
		cfg:        cfg,
		properties: append([]ledger.PropertyRecord(nil), properties...),
	}
	if err := r.Reload(ctx, aliases); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds the index with a new alias map and swaps it in.
func (r *Resolver) Reload(ctx context.Context, aliases map[string]string) error {
	idx, err := NewIndex(r.properties, aliases)
	if err != nil {
		return err
	}
	for _, key := range idx.Dropped() {
		r.cfg.Logger.Warn("alias references unknown property, dropped", zap.String("alias", key), zap.String("property_id", aliases[key]))
	}

	snap := &snapshot{index: idx}
	if r.cfg.Embedder != nil {
		sem, err := NewSemanticIndex(ctx, idx, r.cfg.Embedder, r.cfg.SemanticTimeout, r.cfg.Logger)
		if err != nil {
			r.cfg.Logger.Warn("semantic index unavailable, using lexical matching only", zap.Error(err))
			semanticErrors.WithLabelValues("build").Inc()
		} else {
			snap.semantic = sem
		}
	}
	r.current.Store(snap)
	r.cfg.Logger.Debug("property index built",
		zap.Int("properties", idx.Len()),
		zap.Int("aliases", len(idx.aliases)),
		zap.Bool("semantic", snap.semantic != nil))
	return nil
}

// Index returns the index currently in use.
func (r *Resolver) Index() *Index {
	return r.current.Load().index
}

// Semantic reports whether the semantic stage is active.
func (r *Resolver) Semantic() bool {
	return r.current.Load().semantic != nil
}

// Mentions extracts property mentions from text against the current index.
func (r *Resolver) Mentions(text string) []string {
	return Mentions(text, r.Index())
}

// Resolve resolves each mention independently, preserving order.
func (r *Resolver) Resolve(ctx context.Context, mentions []string) []Resolution {
	ctx, span := tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.Int("mention_count", len(mentions)))

	snap := r.current.Load()
	out := make([]Resolution, 0, len(mentions))
	for _, m := range mentions {
		res := r.resolveOne(ctx, snap, m)
		resolutions.WithLabelValues(string(res.Stage), string(res.Status)).Inc()
		out = append(out, res)
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, snap *snapshot, mention string) Resolution {
	idx := snap.index
	norm := Normalize(mention)
	res := Resolution{Mention: mention, Status: StatusNotFound, Stage: StageNone}
	if norm == "" {
		return res
	}

	if id, ok := idx.aliases[norm]; ok {
		res.Status, res.PropertyID, res.Confidence, res.Stage = StatusResolved, id, 1, StageAlias
		return res
	}

	if ids := idx.exact[norm]; len(ids) > 0 {
		if len(ids) == 1 {
			res.Status, res.PropertyID, res.Confidence, res.Stage = StatusResolved, ids[0], 1, StageExact
			return res
		}
		res.Status, res.Confidence, res.Stage = StatusAmbiguous, 1, StageExact
		for _, id := range sortedCopy(ids) {
			res.Suggestions = append(res.Suggestions, r.suggestion(idx, id, 1, StageExact))
		}
		return res
	}

	ranked := r.fuzzyRank(idx, norm)
	if len(ranked) > 0 && ranked[0].Score >= r.cfg.FuzzyThreshold {
		top := ranked[0].Score
		var tied []Suggestion
		for _, s := range ranked {
			if s.Score == top {
				tied = append(tied, s)
			}
		}
		if len(tied) == 1 {
			res.Status, res.PropertyID, res.Confidence, res.Stage = StatusResolved, tied[0].PropertyID, top, StageFuzzy
			return res
		}
		res.Status, res.Confidence, res.Stage = StatusAmbiguous, top, StageFuzzy
		res.Suggestions = tied
		return res
	}

	// Not found: offer near-misses from whichever stage is most confident.
	var lexical []Suggestion
	for _, s := range ranked {
		if s.Score < r.cfg.SuggestionFloor || len(lexical) == r.cfg.MaxSuggestions {
			break
		}
		lexical = append(lexical, s)
	}
	res.Suggestions, res.Stage = lexical, StageFuzzy
	if len(lexical) > 0 {
		res.Confidence = lexical[0].Score
	} else {
		res.Stage = StageNone
	}

	if snap.semantic != nil {
		semantic, err := snap.semantic.Suggest(ctx, norm, r.cfg.MaxSuggestions)
		if err != nil {
			semanticErrors.WithLabelValues("query").Inc()
			r.cfg.Logger.Warn("semantic suggestions failed, using lexical only",
				zap.String("mention", mention), zap.Error(err))
		} else if len(semantic) > 0 && (len(lexical) == 0 || semantic[0].Score > lexical[0].Score) {
			for i := range semantic {
				if p, ok := idx.Property(semantic[i].PropertyID); ok {
					semantic[i].DisplayName = p.DisplayName
				}
			}
			res.Suggestions, res.Stage, res.Confidence = semantic, StageSemantic, semantic[0].Score
		}
	}
	return res
}

// fuzzyRank scores every property by its best key, highest first, ties by id.
func (r *Resolver) fuzzyRank(idx *Index, norm string) []Suggestion {
	ranked := make([]Suggestion, 0, len(idx.ids))
	for _, id := range idx.ids {
		best := 0.0
		for _, key := range idx.keys[id] {
			if s := similarity(norm, key); s > best {
				best = s
			}
		}
		if best > 0 {
			ranked = append(ranked, r.suggestion(idx, id, best, StageFuzzy))
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].PropertyID < ranked[j].PropertyID
	})
	return ranked
}

func (r *Resolver) suggestion(idx *Index, id string, score float64, stage Stage) Suggestion {
	p := idx.properties[id]
	return Suggestion{PropertyID: id, DisplayName: p.DisplayName, Score: score, Stage: stage}
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
