// Package search answers nearest-neighbor queries over persisted chunk
// vectors, scoped to one knowledge base. It is read-only: chunks become
// visible only after a document's ingestion run fully succeeds, so
// queries never observe partial state.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
	"github.com/corpora-app/corpora/pkg/logging"
)

const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.7
	maxTopK                    = 100
)

type Service struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	logger   *logging.Logger
}

func NewService(db core.DbClient, embedder core.EmbeddingProvider) *Service {
	return &Service{db: db, embedder: embedder, logger: logging.NewLogger("search")}
}

// Request is the query contract: TopK defaults to 5 and
// SimilarityThreshold to 0.7 when omitted.
type Request struct {
	KnowledgeBaseID     string   `json:"knowledge_base_id"`
	Query               string   `json:"query"`
	TopK                int      `json:"top_k"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
}

type Response struct {
	Results []models.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

// Search embeds the query text and returns at most TopK chunks of the
// knowledge base's ready documents scoring at least the threshold,
// ordered by descending similarity with stable insertion-order
// tie-breaking. A knowledge base with nothing to return yields an empty
// result set, not an error.
func (s *Service) Search(ctx context.Context, userID string, req Request) (*Response, error) {
	kb, err := s.db.GetKnowledgeBaseByID(ctx, req.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, &core.NotFoundError{Resource: "knowledge base", ID: req.KnowledgeBaseID}
	}
	if kb.UserID != userID {
		return nil, &core.AccessDeniedError{Resource: "knowledge base", ID: req.KnowledgeBaseID}
	}

	if req.Query == "" {
		return nil, &core.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	threshold := DefaultSimilarityThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, &core.ValidationError{Field: "similarity_threshold", Reason: "must be within [0, 1]"}
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{req.Query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("provider returned %d vectors for the query", len(vecs))}
	}
	queryVec := vecs[0]
	if len(queryVec) != kb.EmbeddingDimensions {
		return nil, &core.EmbeddingError{
			Err: fmt.Errorf("query embedding has %d dimensions, knowledge base expects %d", len(queryVec), kb.EmbeddingDimensions),
		}
	}

	hits, err := s.db.SearchSimilarChunks(ctx, kb.ID, queryVec, threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	// Re-apply threshold, ordering and cap here as well: the backend is
	// expected to do this, but the response contract must hold for any
	// DbClient implementation.
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Similarity >= threshold {
			results = append(results, h)
		}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Similarity > results[b].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}

	s.logger.Debug("search complete", "knowledge_base_id", kb.ID, "hits", len(results))
	return &Response{Results: results, Count: len(results)}, nil
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors, mapped into [0, 1] semantics used by the threshold contract
// (1 = identical direction). Zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
