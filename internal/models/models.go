package models

import (
	"time"
)

// SourceType tells the pipeline where a document's raw bytes come from.
type SourceType string

const (
	SourceFile SourceType = "file"
	SourceURL  SourceType = "url"
)

// DocumentStatus is the ingestion state of a document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// MaxFileSize is the largest file_size we accept. JSON clients read the
// field as a plain number, so it must stay within float64's exact integer
// range (2^53 - 1).
const MaxFileSize int64 = 1<<53 - 1

// KnowledgeBase is a named collection of documents sharing one embedding
// configuration, owned by a single user. The embedding configuration is
// immutable after creation so persisted chunk vectors always match
// EmbeddingDimensions.
type KnowledgeBase struct {
	ID                  string    `db:"id" json:"id"`
	UserID              string    `db:"user_id" json:"user_id"`
	Name                string    `db:"name" json:"name"`
	Description         string    `db:"description" json:"description"`
	EmbeddingProvider   string    `db:"embedding_provider" json:"embedding_provider"`
	EmbeddingModel      string    `db:"embedding_model" json:"embedding_model"`
	EmbeddingDimensions int       `db:"embedding_dimensions" json:"embedding_dimensions"`
	ChunkSize           int       `db:"chunk_size" json:"chunk_size"`
	ChunkOverlap        int       `db:"chunk_overlap" json:"chunk_overlap"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Document is one ingested source inside a knowledge base.
//
// SourceURL is set iff SourceType is "url"; FilePath (the blob storage
// key) is set iff SourceType is "file". Content and the processing
// timestamps stay nil until the pipeline has run.
type Document struct {
	ID                    string         `db:"id" json:"id"`
	KnowledgeBaseID       string         `db:"knowledge_base_id" json:"knowledge_base_id"`
	Name                  string         `db:"name" json:"name"`
	SourceType            SourceType     `db:"source_type" json:"source_type"`
	SourceURL             *string        `db:"source_url" json:"source_url"`
	FilePath              *string        `db:"file_path" json:"file_path"`
	FileType              string         `db:"file_type" json:"file_type"`
	FileSize              *int64         `db:"file_size" json:"file_size"`
	Content               *string        `db:"content" json:"content,omitempty"`
	Metadata              map[string]any `db:"metadata" json:"metadata"`
	Status                DocumentStatus `db:"status" json:"status"`
	ErrorMessage          *string        `db:"error_message" json:"error_message"`
	ProcessingStartedAt   *time.Time     `db:"processing_started_at" json:"processing_started_at"`
	ProcessingCompletedAt *time.Time     `db:"processing_completed_at" json:"processing_completed_at"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// Chunk is one contiguous slice of a document's extracted text plus its
// embedding vector. ChunkIndex is the stable zero-based position inside
// the document.
type Chunk struct {
	ID         string         `db:"id" json:"id"`
	DocumentID string         `db:"document_id" json:"document_id"`
	ChunkIndex int            `db:"chunk_index" json:"chunk_index"`
	Content    string         `db:"content" json:"content"`
	Embedding  []float32      `db:"embedding" json:"-"` // pgvector column
	Metadata   map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// SearchResult is one similarity hit. Similarity is transient and only
// exists on query results; DocumentName is carried for citation.
type SearchResult struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}

// Extraction is the normalized output of the content extractor.
type Extraction struct {
	Content  string
	Metadata map[string]any
}
