package search_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/core/coretest"
	"github.com/corpora-app/corpora/internal/models"
	"github.com/corpora-app/corpora/internal/search"
)

type searchFixture struct {
	db       *coretest.FakeDB
	embedder *coretest.FakeEmbedder
	svc      *search.Service
	kb       *models.KnowledgeBase
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()

	db := coretest.NewFakeDB()
	embedder := &coretest.FakeEmbedder{Dimensions: 4}

	now := time.Now().UTC()
	kb := &models.KnowledgeBase{
		ID:                  uuid.NewString(),
		UserID:              "user-1",
		Name:                "notes",
		EmbeddingProvider:   "gemini",
		EmbeddingModel:      "text-embedding-004",
		EmbeddingDimensions: 4,
		ChunkSize:           500,
		ChunkOverlap:        50,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, db.CreateKnowledgeBase(context.Background(), kb))

	return &searchFixture{db: db, embedder: embedder, svc: search.NewService(db, embedder), kb: kb}
}

// addReadyDocument stores a ready document whose chunks carry the given
// embeddings.
func (f *searchFixture) addReadyDocument(t *testing.T, kbID, name string, embeddings ...[]float32) *models.Document {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	key := "user-1/" + uuid.NewString() + "/" + name
	doc := &models.Document{
		ID:              uuid.NewString(),
		KnowledgeBaseID: kbID,
		Name:            name,
		SourceType:      models.SourceFile,
		FilePath:        &key,
		FileType:        "txt",
		Metadata:        map[string]any{},
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.db.CreateDocument(ctx, doc))

	chunks := make([]models.Chunk, len(embeddings))
	for i, emb := range embeddings {
		chunks[i] = models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    name + " chunk",
			Embedding:  emb,
			CreatedAt:  now,
		}
	}
	require.NoError(t, f.db.ReplaceDocumentChunks(ctx, doc.ID, chunks))

	ok, err := f.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusPending, models.StatusProcessing, nil)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusProcessing, models.StatusReady, nil)
	require.NoError(t, err)
	require.True(t, ok)
	return doc
}

// fixedQueryVec makes the embedder return exactly this vector for the query.
func (f *searchFixture) fixedQueryVec(vec []float32) {
	f.embedder.EmbedFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = vec
		}
		return out, nil
	}
}

func TestSearch_Validation(t *testing.T) {
	ctx := context.Background()
	f := newSearchFixture(t)

	t.Run("unknown knowledge base", func(t *testing.T) {
		_, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: "missing", Query: "q"})
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("foreign knowledge base is denied", func(t *testing.T) {
		_, err := f.svc.Search(ctx, "user-2", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q"})
		var denied *core.AccessDeniedError
		assert.ErrorAs(t, err, &denied)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "query", vErr.Field)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		for _, bad := range []float64{-0.1, 1.5} {
			th := bad
			_, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q", SimilarityThreshold: &th})
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "similarity_threshold", vErr.Field)
		}
	})
}

func TestSearch_EmptyKnowledgeBase(t *testing.T) {
	f := newSearchFixture(t)

	resp, err := f.svc.Search(context.Background(), "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.Count)
}

func TestSearch_ThresholdFiltersResults(t *testing.T) {
	ctx := context.Background()
	f := newSearchFixture(t)

	// cosine against (1,0,0,0): exact match scores 1.0, the second vector
	// is tilted to score ~0.85
	f.addReadyDocument(t, f.kb.ID, "close.txt", []float32{1, 0, 0, 0})
	f.addReadyDocument(t, f.kb.ID, "far.txt", []float32{0.85, 0.5268, 0, 0})
	f.fixedQueryVec([]float32{1, 0, 0, 0})

	th := 0.9
	resp, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q", SimilarityThreshold: &th})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "close.txt", resp.Results[0].DocumentName)
	assert.InDelta(t, 1.0, resp.Results[0].Similarity, 1e-6)

	th = 0.8
	resp, err = f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q", SimilarityThreshold: &th})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)

	// a threshold above every score yields an empty result set, not an error
	th = 0.99999
	resp, err = f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q", SimilarityThreshold: &th})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
}

func TestSearch_DefaultsAndTopK(t *testing.T) {
	ctx := context.Background()
	f := newSearchFixture(t)

	// ten chunks, all above the 0.7 default threshold with slightly
	// decreasing similarity
	embs := make([][]float32, 10)
	for i := range embs {
		embs[i] = []float32{1, float32(i) * 0.05, 0, 0}
	}
	f.addReadyDocument(t, f.kb.ID, "doc.txt", embs...)
	f.fixedQueryVec([]float32{1, 0, 0, 0})

	t.Run("top_k defaults to five", func(t *testing.T) {
		resp, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, search.DefaultTopK, resp.Count)
	})

	t.Run("explicit top_k caps the results", func(t *testing.T) {
		resp, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q", TopK: 3})
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Count)
	})

	t.Run("ordered by descending similarity", func(t *testing.T) {
		resp, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q", TopK: 10})
		require.NoError(t, err)
		for i := 1; i < len(resp.Results); i++ {
			assert.GreaterOrEqual(t, resp.Results[i-1].Similarity, resp.Results[i].Similarity)
		}
		// chunk 0 is the exact match
		assert.Equal(t, 0, resp.Results[0].ChunkIndex)
	})
}

func TestSearch_EqualScoresKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	f := newSearchFixture(t)

	// identical embeddings score identically; insertion order breaks the tie
	first := f.addReadyDocument(t, f.kb.ID, "first.txt", []float32{1, 0, 0, 0})
	second := f.addReadyDocument(t, f.kb.ID, "second.txt", []float32{1, 0, 0, 0})
	f.fixedQueryVec([]float32{1, 0, 0, 0})

	resp, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, first.ID, resp.Results[0].DocumentID)
	assert.Equal(t, second.ID, resp.Results[1].DocumentID)
}

func TestSearch_ScopedToKnowledgeBase(t *testing.T) {
	ctx := context.Background()
	f := newSearchFixture(t)

	now := time.Now().UTC()
	other := &models.KnowledgeBase{
		ID:                  uuid.NewString(),
		UserID:              "user-1",
		Name:                "other",
		EmbeddingProvider:   "gemini",
		EmbeddingModel:      "text-embedding-004",
		EmbeddingDimensions: 4,
		ChunkSize:           500,
		ChunkOverlap:        50,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, f.db.CreateKnowledgeBase(ctx, other))

	f.addReadyDocument(t, f.kb.ID, "mine.txt", []float32{1, 0, 0, 0})
	f.addReadyDocument(t, other.ID, "theirs.txt", []float32{1, 0, 0, 0})
	f.fixedQueryVec([]float32{1, 0, 0, 0})

	resp, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "mine.txt", resp.Results[0].DocumentName)
}

func TestSearch_IgnoresUnreadyDocuments(t *testing.T) {
	ctx := context.Background()
	f := newSearchFixture(t)

	f.addReadyDocument(t, f.kb.ID, "ready.txt", []float32{1, 0, 0, 0})

	// a pending document with persisted chunks must stay invisible
	now := time.Now().UTC()
	key := "user-1/p/pending.txt"
	pending := &models.Document{
		ID:              uuid.NewString(),
		KnowledgeBaseID: f.kb.ID,
		Name:            "pending.txt",
		SourceType:      models.SourceFile,
		FilePath:        &key,
		FileType:        "txt",
		Metadata:        map[string]any{},
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.db.CreateDocument(ctx, pending))
	require.NoError(t, f.db.ReplaceDocumentChunks(ctx, pending.ID, []models.Chunk{
		{ID: uuid.NewString(), DocumentID: pending.ID, ChunkIndex: 0, Content: "x", Embedding: []float32{1, 0, 0, 0}},
	}))

	f.fixedQueryVec([]float32{1, 0, 0, 0})

	resp, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "ready.txt", resp.Results[0].DocumentName)
}

func TestSearch_EmbeddingFailures(t *testing.T) {
	ctx := context.Background()
	f := newSearchFixture(t)

	t.Run("provider error propagates", func(t *testing.T) {
		f.embedder.EmbedFunc = func(context.Context, []string) ([][]float32, error) {
			return nil, &core.EmbeddingError{Transient: true, Err: errors.New("rate limited")}
		}
		_, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q"})
		var embErr *core.EmbeddingError
		require.ErrorAs(t, err, &embErr)
	})

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		f.embedder.EmbedFunc = nil
		f.embedder.Dimensions = 3
		_, err := f.svc.Search(ctx, "user-1", search.Request{KnowledgeBaseID: f.kb.ID, Query: "q"})
		var embErr *core.EmbeddingError
		require.ErrorAs(t, err, &embErr)
		assert.Contains(t, embErr.Error(), "dimensions")
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, search.CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, search.CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, search.CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	t.Run("degenerate inputs score zero", func(t *testing.T) {
		assert.Zero(t, search.CosineSimilarity(nil, nil))
		assert.Zero(t, search.CosineSimilarity([]float32{1, 2}, []float32{1}))
		assert.Zero(t, search.CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	})
}
