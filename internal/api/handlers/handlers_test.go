package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/corpora-app/corpora/internal/api/middlewares"
	"github.com/corpora-app/corpora/internal/core/coretest"
	"github.com/corpora-app/corpora/internal/models"
	"github.com/corpora-app/corpora/internal/registry"
	"github.com/corpora-app/corpora/internal/search"
)

type stubIngestor struct {
	enqueued []string
	err      error
}

func (s *stubIngestor) Start(context.Context, int) {}

func (s *stubIngestor) Enqueue(documentID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.enqueued = append(s.enqueued, documentID)
	return "run-" + documentID, nil
}

func (s *stubIngestor) ProcessOne(context.Context, string) error { return nil }

type handlerFixture struct {
	db       *coretest.FakeDB
	blobs    *coretest.FakeObjectStore
	embedder *coretest.FakeEmbedder
	registry *registry.Service
	ingestor *stubIngestor
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	db := coretest.NewFakeDB()
	blobs := coretest.NewFakeObjectStore()
	return &handlerFixture{
		db:       db,
		blobs:    blobs,
		embedder: &coretest.FakeEmbedder{Dimensions: 4},
		registry: registry.NewService(db, blobs),
		ingestor: &stubIngestor{},
	}
}

func (f *handlerFixture) createKB(t *testing.T, userID string) *models.KnowledgeBase {
	t.Helper()
	kb, err := f.registry.CreateKnowledgeBase(context.Background(), registry.KnowledgeBaseInput{
		UserID:              userID,
		Name:                "notes",
		EmbeddingProvider:   "gemini",
		EmbeddingModel:      "text-embedding-004",
		EmbeddingDimensions: 4,
		ChunkSize:           500,
		ChunkOverlap:        50,
	})
	require.NoError(t, err)
	return kb
}

// authedRequest builds a request carrying the user id and chi URL params.
func authedRequest(method, target, userID string, body []byte, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func TestCreateKnowledgeBaseHandler(t *testing.T) {
	f := newHandlerFixture(t)
	h := NewKnowledgeBaseHandler(f.registry)

	t.Run("valid input is created", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"name":                 "notes",
			"embedding_provider":   "gemini",
			"embedding_model":      "text-embedding-004",
			"embedding_dimensions": 4,
			"chunk_size":           500,
			"chunk_overlap":        50,
		})
		rec := httptest.NewRecorder()
		h.CreateKnowledgeBase(rec, authedRequest(http.MethodPost, "/api/knowledge-bases", "user-1", body, nil))

		require.Equal(t, http.StatusCreated, rec.Code)
		var kb models.KnowledgeBase
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kb))
		assert.Equal(t, "user-1", kb.UserID)
		assert.NotEmpty(t, kb.ID)
	})

	t.Run("validation failure is a 400", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"name": "notes"})
		rec := httptest.NewRecorder()
		h.CreateKnowledgeBase(rec, authedRequest(http.MethodPost, "/api/knowledge-bases", "user-1", body, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing identity is a 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/knowledge-bases", bytes.NewReader(nil))
		rec := httptest.NewRecorder()
		h.CreateKnowledgeBase(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSubmitURLHandler(t *testing.T) {
	f := newHandlerFixture(t)
	kb := f.createKB(t, "user-1")
	h := NewDocumentHandler(f.registry, f.blobs, f.ingestor)

	t.Run("accepted and enqueued", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"name": "guide", "source_url": "https://example.com/guide"})
		rec := httptest.NewRecorder()
		h.SubmitURL(rec, authedRequest(http.MethodPost, "/x", "user-1", body, map[string]string{"kb_id": kb.ID}))

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp enqueueResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, models.StatusPending, resp.Document.Status)
		assert.NotEmpty(t, resp.RunID)
		assert.Equal(t, []string{resp.Document.ID}, f.ingestor.enqueued)
	})

	t.Run("foreign knowledge base is a 403", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"source_url": "https://example.com"})
		rec := httptest.NewRecorder()
		h.SubmitURL(rec, authedRequest(http.MethodPost, "/x", "user-2", body, map[string]string{"kb_id": kb.ID}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown knowledge base is a 404", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"source_url": "https://example.com"})
		rec := httptest.NewRecorder()
		h.SubmitURL(rec, authedRequest(http.MethodPost, "/x", "user-1", body, map[string]string{"kb_id": "missing"}))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing url is a 400", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"name": "no url"})
		rec := httptest.NewRecorder()
		h.SubmitURL(rec, authedRequest(http.MethodPost, "/x", "user-1", body, map[string]string{"kb_id": kb.ID}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReprocessDocumentHandler(t *testing.T) {
	f := newHandlerFixture(t)
	kb := f.createKB(t, "user-1")
	h := NewDocumentHandler(f.registry, f.blobs, f.ingestor)

	url := "https://example.com/guide"
	doc, err := f.registry.Create(context.Background(), registry.CreateInput{
		KnowledgeBaseID: kb.ID, Name: "guide", SourceType: models.SourceURL, SourceURL: &url, FileType: "html",
	})
	require.NoError(t, err)

	t.Run("pending document is a 409", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ReprocessDocument(rec, authedRequest(http.MethodPost, "/x", "user-1", nil, map[string]string{"document_id": doc.ID}))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("failed document is accepted", func(t *testing.T) {
		require.NoError(t, f.registry.Transition(context.Background(), doc.ID, models.StatusProcessing, nil))
		msg := "boom"
		require.NoError(t, f.registry.Transition(context.Background(), doc.ID, models.StatusFailed, &msg))

		rec := httptest.NewRecorder()
		h.ReprocessDocument(rec, authedRequest(http.MethodPost, "/x", "user-1", nil, map[string]string{"document_id": doc.ID}))

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp enqueueResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, models.StatusPending, resp.Document.Status)
		assert.Nil(t, resp.Document.ErrorMessage)
	})

	t.Run("other user cannot reprocess", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ReprocessDocument(rec, authedRequest(http.MethodPost, "/x", "user-2", nil, map[string]string{"document_id": doc.ID}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestSearchHandler(t *testing.T) {
	f := newHandlerFixture(t)
	kb := f.createKB(t, "user-1")
	h := NewSearchHandler(search.NewService(f.db, f.embedder))

	t.Run("empty knowledge base returns zero results", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"query": "anything"})
		rec := httptest.NewRecorder()
		h.Search(rec, authedRequest(http.MethodPost, "/x", "user-1", body, map[string]string{"kb_id": kb.ID}))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp search.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.Count)
	})

	t.Run("bad threshold is a 400", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"query": "q", "similarity_threshold": 2.0})
		rec := httptest.NewRecorder()
		h.Search(rec, authedRequest(http.MethodPost, "/x", "user-1", body, map[string]string{"kb_id": kb.ID}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("foreign knowledge base is a 403", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"query": "q"})
		rec := httptest.NewRecorder()
		h.Search(rec, authedRequest(http.MethodPost, "/x", "user-2", body, map[string]string{"kb_id": kb.ID}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
