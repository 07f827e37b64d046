package resolver

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
)

func portfolio() []ledger.PropertyRecord {
	return []ledger.PropertyRecord{
		{PropertyID: "P120", DisplayName: "Building 120", Address: "120 Harbor Way", EntityID: "E1"},
		{PropertyID: "P160", DisplayName: "Building 160", Address: "160 Elm Street", EntityID: "E1"},
		{PropertyID: "P180", DisplayName: "Building 180", Address: "180 Main Street", EntityID: "E2"},
		{PropertyID: "P220", DisplayName: "Building 220", Address: "220 Oak Avenue", EntityID: "E2"},
	}
}

func testAliases() map[string]string {
	return map[string]string{
		"the harbor building": "P120",
		"hq":                  "P180",
		"elm st tower":        "P160",
	}
}

func newTestResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	r, err := New(context.Background(), portfolio(), testAliases(), cfg)
	require.NoError(t, err)
	return r
}

func TestResolver_Resolve(t *testing.T) {
	r := newTestResolver(t, Config{})

	tests := []struct {
		name       string
		mention    string
		wantStatus Status
		wantID     string
		wantStage  Stage
	}{
		{"display name", "Building 180", StatusResolved, "P180", StageExact},
		{"display name any case", "BUILDING 220", StatusResolved, "P220", StageExact},
		{"address with abbreviation", "180 Main St.", StatusResolved, "P180", StageExact},
		{"abbreviated building", "Bldg 220", StatusResolved, "P220", StageExact},
		{"property id", "p160", StatusResolved, "P160", StageExact},
		{"alias", "HQ", StatusResolved, "P180", StageAlias},
		{"alias with abbreviation", "Elm Street Tower", StatusResolved, "P160", StageAlias},
		{"fuzzy typo", "Buiding 180", StatusResolved, "P180", StageFuzzy},
		{"fuzzy near alias", "harbor building", StatusResolved, "P120", StageFuzzy},
		{"fuzzy partial address", "oak ave", StatusResolved, "P220", StageFuzzy},
		{"wrong number", "Building 190", StatusNotFound, "", StageFuzzy},
		{"truncated number", "Building 18", StatusNotFound, "", StageFuzzy},
		{"unknown address", "123 Fake St", StatusNotFound, "", StageFuzzy},
		{"empty", "  ", StatusNotFound, "", StageNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(context.Background(), []string{tt.mention})
			require.Len(t, got, 1)
			res := got[0]
			assert.Equal(t, tt.mention, res.Mention)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantID, res.PropertyID)
			assert.Equal(t, tt.wantStage, res.Stage)
		})
	}
}

func TestResolver_Confidence(t *testing.T) {
	r := newTestResolver(t, Config{})

	t.Run("exact beats any fuzzy score", func(t *testing.T) {
		for _, p := range portfolio() {
			res := r.Resolve(context.Background(), []string{p.DisplayName})[0]
			require.Equal(t, StatusResolved, res.Status)
			assert.Equal(t, 1.0, res.Confidence)

			for _, other := range portfolio() {
				if other.PropertyID == p.PropertyID {
					continue
				}
				for _, key := range r.Index().keys[other.PropertyID] {
					assert.Less(t, similarity(Normalize(p.DisplayName), key), res.Confidence)
				}
			}
		}
	})

	t.Run("fuzzy is flagged below one", func(t *testing.T) {
		res := r.Resolve(context.Background(), []string{"harbor building"})[0]
		assert.Equal(t, StageFuzzy, res.Stage)
		assert.InDelta(t, 0.74, res.Confidence, 0.01)
		assert.Less(t, res.Confidence, 1.0)
	})

	t.Run("identical strings still cap below exact", func(t *testing.T) {
		assert.Equal(t, maxFuzzyScore, similarity("building 180", "building 180"))
	})
}

func TestResolver_NotFoundSuggestions(t *testing.T) {
	r := newTestResolver(t, Config{})

	res := r.Resolve(context.Background(), []string{"123 Fake St"})[0]
	require.Equal(t, StatusNotFound, res.Status)
	require.NotEmpty(t, res.Suggestions)
	assert.LessOrEqual(t, len(res.Suggestions), DefaultMaxSuggestions)
	assert.Equal(t, "P180", res.Suggestions[0].PropertyID)
	assert.Equal(t, "Building 180", res.Suggestions[0].DisplayName)
	for i := 1; i < len(res.Suggestions); i++ {
		assert.GreaterOrEqual(t, res.Suggestions[i-1].Score, res.Suggestions[i].Score)
	}
	for _, s := range res.Suggestions {
		assert.GreaterOrEqual(t, s.Score, DefaultSuggestionFloor)
	}

	var nf *NotFoundError
	require.ErrorAs(t, res.Err(), &nf)
	assert.Equal(t, "123 Fake St", nf.Mention)
	assert.Contains(t, nf.Error(), "did you mean Building 180")

	t.Run("ties ordered by id", func(t *testing.T) {
		res := r.Resolve(context.Background(), []string{"Building 190"})[0]
		require.Len(t, res.Suggestions, 3)
		assert.Equal(t, []string{"P120", "P160", "P180"}, suggestionIDs(res.Suggestions))
	})

	t.Run("nothing above floor", func(t *testing.T) {
		res := r.Resolve(context.Background(), []string{"waterfront"})[0]
		assert.Equal(t, StatusNotFound, res.Status)
		assert.Empty(t, res.Suggestions)
		assert.Equal(t, StageNone, res.Stage)
		assert.EqualError(t, res.Err(), `property "waterfront" not found in portfolio`)
	})
}

func TestResolver_Ambiguous(t *testing.T) {
	t.Run("equally strong fuzzy matches", func(t *testing.T) {
		props := []ledger.PropertyRecord{
			{PropertyID: "T1", DisplayName: "East Tower"},
			{PropertyID: "T2", DisplayName: "West Tower"},
		}
		r, err := New(context.Background(), props, nil, Config{})
		require.NoError(t, err)

		res := r.Resolve(context.Background(), []string{"eest tower"})[0]
		assert.Equal(t, StatusAmbiguous, res.Status)
		assert.Equal(t, StageFuzzy, res.Stage)
		assert.Empty(t, res.PropertyID)
		assert.Equal(t, []string{"T1", "T2"}, suggestionIDs(res.Suggestions))

		var amb *AmbiguousError
		require.ErrorAs(t, res.Err(), &amb)
		assert.Equal(t, `property "eest tower" is ambiguous between East Tower, West Tower`, amb.Error())
	})

	t.Run("shared display name", func(t *testing.T) {
		props := []ledger.PropertyRecord{
			{PropertyID: "B2", DisplayName: "Harbor Plaza", Address: "2 Pier Road"},
			{PropertyID: "B1", DisplayName: "Harbor Plaza", Address: "1 Pier Road"},
		}
		r, err := New(context.Background(), props, nil, Config{})
		require.NoError(t, err)

		res := r.Resolve(context.Background(), []string{"harbor plaza"})[0]
		assert.Equal(t, StatusAmbiguous, res.Status)
		assert.Equal(t, StageExact, res.Stage)
		assert.Equal(t, []string{"B1", "B2"}, suggestionIDs(res.Suggestions))

		res = r.Resolve(context.Background(), []string{"1 Pier Rd"})[0]
		assert.Equal(t, StatusResolved, res.Status)
		assert.Equal(t, "B1", res.PropertyID)
	})

	t.Run("alias wins over shared name", func(t *testing.T) {
		props := []ledger.PropertyRecord{
			{PropertyID: "B1", DisplayName: "Harbor Plaza"},
			{PropertyID: "B2", DisplayName: "Harbor Plaza"},
		}
		r, err := New(context.Background(), props, map[string]string{"Harbor Plaza": "B2"}, Config{})
		require.NoError(t, err)

		res := r.Resolve(context.Background(), []string{"Harbor Plaza"})[0]
		assert.Equal(t, StatusResolved, res.Status)
		assert.Equal(t, StageAlias, res.Stage)
		assert.Equal(t, "B2", res.PropertyID)
	})
}

func TestResolver_ThresholdConfig(t *testing.T) {
	r := newTestResolver(t, Config{FuzzyThreshold: 0.8, MaxSuggestions: 1})

	res := r.Resolve(context.Background(), []string{"harbor building"})[0]
	assert.Equal(t, StatusNotFound, res.Status)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "P120", res.Suggestions[0].PropertyID)
}

func TestResolver_PreservesOrder(t *testing.T) {
	r := newTestResolver(t, Config{})

	got := r.Resolve(context.Background(), []string{"Building 220", "nowhere at all", "hq"})
	require.Len(t, got, 3)
	assert.Equal(t, "P220", got[0].PropertyID)
	assert.Equal(t, StatusNotFound, got[1].Status)
	assert.Equal(t, "P180", got[2].PropertyID)
	assert.Nil(t, got[0].Err())

	assert.Empty(t, r.Resolve(context.Background(), nil))
}

func TestResolver_Reload(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := newTestResolver(t, Config{Logger: zap.New(core)})

	before := r.Index()
	require.NoError(t, r.Reload(context.Background(), map[string]string{
		"waterfront": "P120",
		"old depot":  "P999",
	}))
	assert.NotSame(t, before, r.Index())

	res := r.Resolve(context.Background(), []string{"the waterfront"})
	assert.Equal(t, StatusResolved, res[0].Status)

	res = r.Resolve(context.Background(), []string{"waterfront", "hq"})
	assert.Equal(t, StageAlias, res[0].Stage)
	assert.Equal(t, "P120", res[0].PropertyID)
	assert.NotEqual(t, StageAlias, res[1].Stage, "old aliases are replaced")

	assert.Equal(t, []string{"old depot"}, r.Index().Dropped())
	assert.Equal(t, 1, logs.FilterMessage("alias references unknown property, dropped").Len())
}

func TestResolver_ConcurrentReload(t *testing.T) {
	r := newTestResolver(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res := r.Resolve(context.Background(), []string{"Building 180"})
			assert.Equal(t, "P180", res[0].PropertyID)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Reload(context.Background(), testAliases()))
		}()
	}
	wg.Wait()
}

func TestNew_InvalidProperties(t *testing.T) {
	_, err := New(context.Background(), []ledger.PropertyRecord{{PropertyID: "P1"}, {PropertyID: "P1"}}, nil, Config{})
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = New(context.Background(), []ledger.PropertyRecord{{PropertyID: " "}}, nil, Config{})
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

// fakeEmbedder maps words onto a few concept axes so that "waterfront" lands
// next to "harbor" without any model.
type fakeEmbedder struct {
	docErr   error
	queryErr error
}

var fakeAxes = map[string]int{
	"harbor": 0, "waterfront": 0, "marina": 0,
	"main": 1, "downtown": 1,
	"elm": 2,
	"oak": 3,
}

func (f *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, 5)
	v[4] = 0.1
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return r == ' ' || r == '|' }) {
		if axis, ok := fakeAxes[tok]; ok {
			v[axis]++
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / math.Sqrt(norm))
	}
	return v
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.docErr != nil {
		return nil, f.docErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) Dimension() int { return 5 }
func (f *fakeEmbedder) Close() error   { return nil }

func TestResolver_Semantic(t *testing.T) {
	t.Run("suggests but never resolves", func(t *testing.T) {
		r := newTestResolver(t, Config{Embedder: &fakeEmbedder{}})
		require.True(t, r.Semantic())

		res := r.Resolve(context.Background(), []string{"waterfront"})[0]
		assert.Equal(t, StatusNotFound, res.Status)
		assert.Empty(t, res.PropertyID)
		assert.Equal(t, StageSemantic, res.Stage)
		require.NotEmpty(t, res.Suggestions)
		assert.Equal(t, "P120", res.Suggestions[0].PropertyID)
		assert.Equal(t, "Building 120", res.Suggestions[0].DisplayName)
		assert.Equal(t, StageSemantic, res.Suggestions[0].Stage)
	})

	t.Run("lexical stages run first", func(t *testing.T) {
		r := newTestResolver(t, Config{Embedder: &fakeEmbedder{}})

		res := r.Resolve(context.Background(), []string{"Building 160", "Buiding 180"})
		assert.Equal(t, StageExact, res[0].Stage)
		assert.Equal(t, StageFuzzy, res[1].Stage)
		assert.Equal(t, "P180", res[1].PropertyID)
	})

	t.Run("build failure degrades to lexical", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		r := newTestResolver(t, Config{
			Embedder: &fakeEmbedder{docErr: errors.New("model unavailable")},
			Logger:   zap.New(core),
		})
		assert.False(t, r.Semantic())
		assert.Equal(t, 1, logs.FilterMessage("semantic index unavailable, using lexical matching only").Len())

		res := r.Resolve(context.Background(), []string{"123 Fake St"})[0]
		assert.Equal(t, StageFuzzy, res.Stage)
		assert.NotEmpty(t, res.Suggestions)
	})

	t.Run("query failure keeps lexical suggestions", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		r := newTestResolver(t, Config{
			Embedder: &fakeEmbedder{queryErr: errors.New("timeout")},
			Logger:   zap.New(core),
		})
		require.True(t, r.Semantic())

		res := r.Resolve(context.Background(), []string{"123 Fake St"})[0]
		assert.Equal(t, StatusNotFound, res.Status)
		assert.Equal(t, StageFuzzy, res.Stage)
		assert.Equal(t, "P180", res.Suggestions[0].PropertyID)
		assert.Equal(t, 1, logs.FilterMessage("semantic suggestions failed, using lexical only").Len())
	})
}

func TestSemanticIndex_NilProvider(t *testing.T) {
	idx, err := NewIndex(portfolio(), nil)
	require.NoError(t, err)

	_, err = NewSemanticIndex(context.Background(), idx, nil, 0, nil)
	assert.ErrorIs(t, err, ErrSemanticUnavailable)

	var s *SemanticIndex
	_, err = s.Suggest(context.Background(), "harbor", 3)
	assert.ErrorIs(t, err, ErrSemanticUnavailable)
}

type stalledEmbedder struct{ *fakeEmbedder }

func (stalledEmbedder) EmbedDocuments(ctx context.Context, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSemanticIndex_BuildTimeout(t *testing.T) {
	prev := indexBuildTimeout
	indexBuildTimeout = 20 * time.Millisecond
	t.Cleanup(func() { indexBuildTimeout = prev })

	idx, err := NewIndex(portfolio(), nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = NewSemanticIndex(context.Background(), idx, stalledEmbedder{&fakeEmbedder{}}, 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func suggestionIDs(s []Suggestion) []string {
	ids := make([]string, len(s))
	for i, sg := range s {
		ids[i] = sg.PropertyID
	}
	return ids
}
