package core

import (
	"context"
	"io"

	"github.com/corpora-app/corpora/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a
// specific database.
type DbClient interface {
	CreateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error
	GetKnowledgeBaseByID(ctx context.Context, id string) (*models.KnowledgeBase, error)
	ListKnowledgeBasesByUser(ctx context.Context, userID string) ([]models.KnowledgeBase, error)
	// DeleteKnowledgeBase removes the row; documents and chunks go with it
	// through ON DELETE CASCADE.
	DeleteKnowledgeBase(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByKnowledgeBase(ctx context.Context, kbID string) ([]models.Document, error)
	// UpdateDocumentStatus is a compare-and-swap: the row changes only if
	// its status still equals from. It stamps processing_started_at when
	// moving to processing, processing_completed_at when moving to
	// ready/failed, and clears both when moving back to pending.
	// Returns false when the document exists but the swap lost a race.
	UpdateDocumentStatus(ctx context.Context, id string, from, to models.DocumentStatus, errorMessage *string) (bool, error)
	UpdateDocumentContent(ctx context.Context, id string, content string, metadata map[string]any) error
	// ResetDocumentForReprocess atomically clears content and error,
	// deletes all chunks, and resets status to pending — but only when the
	// current status is ready or failed. Returns false otherwise.
	ResetDocumentForReprocess(ctx context.Context, id string) (bool, error)
	DeleteDocument(ctx context.Context, id string) error

	// ReplaceDocumentChunks deletes any existing chunks for the document
	// and inserts the given set in one transaction, so a reader never sees
	// a partially written chunk set.
	ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error)

	// SearchSimilarChunks returns up to limit chunks of ready documents in
	// the knowledge base whose cosine similarity to query is at least
	// minSimilarity, ordered by descending similarity with insertion-order
	// tie-break.
	SearchSimilarChunks(ctx context.Context, kbID string, query []float32, minSimilarity float64, limit int) ([]models.SearchResult, error)

	Close() error
}

// ObjectClient defines interactions with blob storage. Deletes are
// best-effort: a missing blob is not an error the caller has to care about.
type ObjectClient interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	FetchBytes(ctx context.Context, key string) ([]byte, error)
	DeleteBlob(ctx context.Context, key string) error
}

// EmbeddingProvider turns texts into embedding vectors, batched.
// Failures are reported as *EmbeddingError so callers can distinguish
// transient from permanent ones.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentExtractor converts raw bytes or a fetched URL into normalized
// text plus extraction metadata. Failures are *ExtractionError.
type DocumentExtractor interface {
	ExtractBytes(ctx context.Context, data []byte, fileType string) (*models.Extraction, error)
	ExtractURL(ctx context.Context, rawURL string) (*models.Extraction, error)
}
