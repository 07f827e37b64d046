package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/embeddings"
	"github.com/fyrsmithlabs/portfoliod/internal/reranker"
)

var tracer = otel.Tracer("portfoliod.resolver")

// ErrSemanticUnavailable is returned by Suggest on a nil index.
var ErrSemanticUnavailable = errors.New("semantic index unavailable")

const collectionName = "properties"

// indexBuildTimeout bounds embedding the whole portfolio at build time.
var indexBuildTimeout = 30 * time.Second

// SemanticIndex is an in-memory embedding index over property documents. It
// only ever produces suggestions.
type SemanticIndex struct {
	collection *chromem.Collection
	reranker   reranker.Reranker
	timeout    time.Duration
	logger     *zap.Logger
}

// NewSemanticIndex embeds one document per property of idx and stores it in
// an in-memory chromem collection.
func NewSemanticIndex(ctx context.Context, idx *Index, provider embeddings.Provider, timeout time.Duration, logger *zap.Logger) (*SemanticIndex, error) {
	ctx, span := tracer.Start(ctx, "SemanticIndex.Build")
	defer span.End()

	if provider == nil {
		return nil, fmt.Errorf("%w: no embedding provider", ErrSemanticUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultSemanticTimeout
	}

	ef := func(ctx context.Context, text string) ([]float32, error) {
		return provider.EmbedQuery(ctx, text)
	}
	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	ids := idx.ids
	if len(ids) > 0 {
		texts := make([]string, len(ids))
		for i, id := range ids {
			texts[i] = idx.document(id)
		}

		embedCtx, cancel := context.WithTimeout(ctx, indexBuildTimeout)
		vectors, err := provider.EmbedDocuments(embedCtx, texts)
		cancel()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "embedding failed")
			return nil, fmt.Errorf("embedding properties: %w", err)
		}
		if len(vectors) != len(ids) {
			return nil, fmt.Errorf("embedding properties: got %d vectors for %d properties", len(vectors), len(ids))
		}

		docs := make([]chromem.Document, len(ids))
		for i, id := range ids {
			docs[i] = chromem.Document{
				ID:        id,
				Content:   texts[i],
				Metadata:  map[string]string{"property_id": id, "display_name": idx.properties[id].DisplayName},
				Embedding: vectors[i],
			}
		}
		if err := collection.AddDocuments(ctx, docs, 1); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "add documents failed")
			return nil, fmt.Errorf("adding documents: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("document_count", len(ids)))
	span.SetStatus(codes.Ok, "")
	return &SemanticIndex{
		collection: collection,
		reranker:   reranker.NewSimpleReranker(),
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Suggest returns up to k properties semantically close to mention,
// re-ranked by lexical agreement. The lookup is bounded by the index timeout.
func (s *SemanticIndex) Suggest(ctx context.Context, mention string, k int) ([]Suggestion, error) {
	if s == nil {
		return nil, ErrSemanticUnavailable
	}
	ctx, span := tracer.Start(ctx, "SemanticIndex.Suggest")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count := s.collection.Count()
	if count == 0 || k <= 0 || mention == "" {
		return nil, nil
	}
	n := k * 2
	if n > count {
		n = count
	}

	results, err := s.collection.Query(ctx, mention, n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("querying semantic index: %w", err)
	}

	candidates := make([]reranker.Candidate, len(results))
	for i, r := range results {
		candidates[i] = reranker.Candidate{PropertyID: r.ID, Text: r.Content, Score: r.Similarity}
	}
	ranked, err := s.reranker.Rerank(ctx, mention, candidates, k)
	if err != nil {
		return nil, fmt.Errorf("reranking: %w", err)
	}

	out := make([]Suggestion, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, Suggestion{
			PropertyID: r.PropertyID,
			Score:      float64(r.Combined),
			Stage:      StageSemantic,
		})
	}
	span.SetAttributes(attribute.Int("result_count", len(out)))
	span.SetStatus(codes.Ok, "")
	return out, nil
}
