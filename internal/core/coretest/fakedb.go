// Package coretest provides in-memory implementations of the core
// collaborator interfaces for tests: a database, a blob store and an
// embedding provider. The fakes mirror the semantics the SQL layer
// guarantees (CAS status swaps, cascades, all-or-nothing chunk writes) so
// service tests exercise the real contracts.
package coretest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
	"github.com/corpora-app/corpora/internal/search"
)

// FakeDB is a mutex-guarded in-memory core.DbClient.
type FakeDB struct {
	mu             sync.Mutex
	kbs            map[string]models.KnowledgeBase
	docs           map[string]models.Document
	chunks         map[string][]models.Chunk // by document id
	insertSeq     int
	insertOrder   map[string]int // chunk id -> global insertion order
	FailOnReplace error          // returned by ReplaceDocumentChunks when set
}

var _ core.DbClient = (*FakeDB)(nil)

func NewFakeDB() *FakeDB {
	return &FakeDB{
		kbs:         map[string]models.KnowledgeBase{},
		docs:        map[string]models.Document{},
		chunks:      map[string][]models.Chunk{},
		insertOrder: map[string]int{},
	}
}

func (f *FakeDB) CreateKnowledgeBase(_ context.Context, kb *models.KnowledgeBase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kbs[kb.ID] = *kb
	return nil
}

func (f *FakeDB) GetKnowledgeBaseByID(_ context.Context, id string) (*models.KnowledgeBase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kb, ok := f.kbs[id]
	if !ok {
		return nil, nil
	}
	out := kb
	return &out, nil
}

func (f *FakeDB) ListKnowledgeBasesByUser(_ context.Context, userID string) ([]models.KnowledgeBase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.KnowledgeBase
	for _, kb := range f.kbs {
		if kb.UserID == userID {
			out = append(out, kb)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (f *FakeDB) DeleteKnowledgeBase(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kbs[id]; !ok {
		return &core.NotFoundError{Resource: "knowledge base", ID: id}
	}
	delete(f.kbs, id)
	for docID, doc := range f.docs {
		if doc.KnowledgeBaseID == id {
			delete(f.docs, docID)
			delete(f.chunks, docID)
		}
	}
	return nil
}

func (f *FakeDB) CreateDocument(_ context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = *doc
	return nil
}

func (f *FakeDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	out := doc
	return &out, nil
}

func (f *FakeDB) ListDocumentsByKnowledgeBase(_ context.Context, kbID string) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Document
	for _, doc := range f.docs {
		if doc.KnowledgeBaseID == kbID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (f *FakeDB) UpdateDocumentStatus(_ context.Context, id string, from, to models.DocumentStatus, errorMessage *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.Status != from {
		return false, nil
	}
	now := time.Now().UTC()
	doc.Status = to
	doc.ErrorMessage = errorMessage
	switch to {
	case models.StatusProcessing:
		doc.ProcessingStartedAt = &now
	case models.StatusReady, models.StatusFailed:
		doc.ProcessingCompletedAt = &now
	case models.StatusPending:
		doc.ProcessingStartedAt = nil
		doc.ProcessingCompletedAt = nil
	}
	doc.UpdatedAt = now
	f.docs[id] = doc
	return true, nil
}

func (f *FakeDB) UpdateDocumentContent(_ context.Context, id string, content string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return &core.NotFoundError{Resource: "document", ID: id}
	}
	doc.Content = &content
	doc.Metadata = metadata
	doc.UpdatedAt = time.Now().UTC()
	f.docs[id] = doc
	return nil
}

func (f *FakeDB) ResetDocumentForReprocess(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return false, nil
	}
	if doc.Status != models.StatusReady && doc.Status != models.StatusFailed {
		return false, nil
	}
	doc.Status = models.StatusPending
	doc.Content = nil
	doc.ErrorMessage = nil
	doc.ProcessingStartedAt = nil
	doc.ProcessingCompletedAt = nil
	doc.UpdatedAt = time.Now().UTC()
	f.docs[id] = doc
	delete(f.chunks, id)
	return true, nil
}

func (f *FakeDB) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return &core.NotFoundError{Resource: "document", ID: id}
	}
	delete(f.docs, id)
	delete(f.chunks, id)
	return nil
}

func (f *FakeDB) ReplaceDocumentChunks(_ context.Context, documentID string, chunks []models.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOnReplace != nil {
		return f.FailOnReplace
	}
	stored := make([]models.Chunk, len(chunks))
	copy(stored, chunks)
	f.chunks[documentID] = stored
	for i := range stored {
		f.insertSeq++
		f.insertOrder[stored[i].ID] = f.insertSeq
	}
	return nil
}

func (f *FakeDB) GetChunksByDocument(_ context.Context, documentID string) ([]models.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Chunk, len(f.chunks[documentID]))
	copy(out, f.chunks[documentID])
	sort.Slice(out, func(a, b int) bool { return out[a].ChunkIndex < out[b].ChunkIndex })
	return out, nil
}

// SearchSimilarChunks scores with search.CosineSimilarity over chunks of
// ready documents in the knowledge base, matching the SQL contract:
// threshold filter, descending similarity, insertion-order tie-break,
// limit.
func (f *FakeDB) SearchSimilarChunks(_ context.Context, kbID string, query []float32, minSimilarity float64, limit int) ([]models.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.SearchResult
	for docID, doc := range f.docs {
		if doc.KnowledgeBaseID != kbID || doc.Status != models.StatusReady {
			continue
		}
		for _, ch := range f.chunks[docID] {
			score := search.CosineSimilarity(query, ch.Embedding)
			if score < minSimilarity {
				continue
			}
			out = append(out, models.SearchResult{
				ChunkID:      ch.ID,
				DocumentID:   docID,
				DocumentName: doc.Name,
				ChunkIndex:   ch.ChunkIndex,
				Content:      ch.Content,
				Similarity:   score,
			})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Similarity != out[b].Similarity {
			return out[a].Similarity > out[b].Similarity
		}
		return f.insertOrder[out[a].ChunkID] < f.insertOrder[out[b].ChunkID]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeDB) Close() error { return nil }
