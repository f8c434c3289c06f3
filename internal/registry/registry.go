// Package registry owns knowledge base and document metadata and the
// document status state machine. It is the single point of truth for
// whether a document is ingested and queryable.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/extract"
	"github.com/corpora-app/corpora/internal/models"
	"github.com/corpora-app/corpora/pkg/logging"
)

type Service struct {
	db     core.DbClient
	blobs  core.ObjectClient
	logger *logging.Logger
}

func NewService(db core.DbClient, blobs core.ObjectClient) *Service {
	return &Service{db: db, blobs: blobs, logger: logging.NewLogger("registry")}
}

// KnowledgeBaseInput carries everything needed to create a knowledge base.
type KnowledgeBaseInput struct {
	UserID              string `json:"-"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	ChunkSize           int    `json:"chunk_size"`
	ChunkOverlap        int    `json:"chunk_overlap"`
}

// CreateKnowledgeBase validates the embedding configuration and persists
// the knowledge base. The configuration is immutable afterwards.
func (s *Service) CreateKnowledgeBase(ctx context.Context, in KnowledgeBaseInput) (*models.KnowledgeBase, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, &core.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.EmbeddingProvider == "" || in.EmbeddingModel == "" {
		return nil, &core.ValidationError{Field: "embedding", Reason: "provider and model are required"}
	}
	if in.EmbeddingDimensions <= 0 {
		return nil, &core.ValidationError{Field: "embedding_dimensions", Reason: "must be positive"}
	}
	if in.ChunkSize <= 0 {
		return nil, &core.ValidationError{Field: "chunk_size", Reason: "must be positive"}
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		return nil, &core.ValidationError{Field: "chunk_overlap", Reason: "must be non-negative and smaller than chunk_size"}
	}

	now := time.Now().UTC()
	kb := &models.KnowledgeBase{
		ID:                  uuid.NewString(),
		UserID:              in.UserID,
		Name:                in.Name,
		Description:         in.Description,
		EmbeddingProvider:   in.EmbeddingProvider,
		EmbeddingModel:      in.EmbeddingModel,
		EmbeddingDimensions: in.EmbeddingDimensions,
		ChunkSize:           in.ChunkSize,
		ChunkOverlap:        in.ChunkOverlap,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.db.CreateKnowledgeBase(ctx, kb); err != nil {
		return nil, fmt.Errorf("create knowledge base: %w", err)
	}
	return kb, nil
}

// GetKnowledgeBase loads a knowledge base and enforces ownership.
func (s *Service) GetKnowledgeBase(ctx context.Context, userID, kbID string) (*models.KnowledgeBase, error) {
	kb, err := s.db.GetKnowledgeBaseByID(ctx, kbID)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, &core.NotFoundError{Resource: "knowledge base", ID: kbID}
	}
	if kb.UserID != userID {
		return nil, &core.AccessDeniedError{Resource: "knowledge base", ID: kbID}
	}
	return kb, nil
}

func (s *Service) ListKnowledgeBases(ctx context.Context, userID string) ([]models.KnowledgeBase, error) {
	return s.db.ListKnowledgeBasesByUser(ctx, userID)
}

// DeleteKnowledgeBase removes the knowledge base, its documents and their
// chunks. Blob deletion is best-effort per document: a missing backing
// blob never aborts the cascade.
func (s *Service) DeleteKnowledgeBase(ctx context.Context, userID, kbID string) error {
	if _, err := s.GetKnowledgeBase(ctx, userID, kbID); err != nil {
		return err
	}

	docs, err := s.db.ListDocumentsByKnowledgeBase(ctx, kbID)
	if err != nil {
		return fmt.Errorf("list documents for delete: %w", err)
	}
	for _, doc := range docs {
		if doc.SourceType == models.SourceFile && doc.FilePath != nil {
			if err := s.blobs.DeleteBlob(ctx, *doc.FilePath); err != nil {
				s.logger.Warn("blob delete failed, continuing", "document_id", doc.ID, "key", *doc.FilePath, "err", err)
			}
		}
	}

	if err := s.db.DeleteKnowledgeBase(ctx, kbID); err != nil {
		return fmt.Errorf("delete knowledge base: %w", err)
	}
	return nil
}

// CreateInput is the tagged request for registering a document: exactly
// one locator must be set, matching SourceType.
type CreateInput struct {
	KnowledgeBaseID string
	Name            string
	SourceType      models.SourceType
	SourceURL       *string
	FilePath        *string
	FileType        string
	FileSize        *int64
}

// Create validates locator consistency and the file-type whitelist and
// registers the document in pending.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Document, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, &core.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !extract.IsSupportedFileType(in.FileType) {
		return nil, &core.ValidationError{
			Field:  "file_type",
			Reason: fmt.Sprintf("unsupported file type %q; supported types are %s", in.FileType, strings.Join(extract.SupportedFileTypes, ", ")),
		}
	}
	switch in.SourceType {
	case models.SourceURL:
		if in.SourceURL == nil || strings.TrimSpace(*in.SourceURL) == "" {
			return nil, &core.ValidationError{Field: "source_url", Reason: "required for url documents"}
		}
		if in.FilePath != nil {
			return nil, &core.ValidationError{Field: "file_path", Reason: "must not be set for url documents"}
		}
	case models.SourceFile:
		if in.FilePath == nil || strings.TrimSpace(*in.FilePath) == "" {
			return nil, &core.ValidationError{Field: "file_path", Reason: "required for file documents"}
		}
		if in.SourceURL != nil {
			return nil, &core.ValidationError{Field: "source_url", Reason: "must not be set for file documents"}
		}
	default:
		return nil, &core.ValidationError{Field: "source_type", Reason: `must be "file" or "url"`}
	}
	if in.FileSize != nil && (*in.FileSize < 0 || *in.FileSize > models.MaxFileSize) {
		return nil, &core.ValidationError{Field: "file_size", Reason: "must be between 0 and 2^53-1"}
	}

	kb, err := s.db.GetKnowledgeBaseByID(ctx, in.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, &core.NotFoundError{Resource: "knowledge base", ID: in.KnowledgeBaseID}
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:              uuid.NewString(),
		KnowledgeBaseID: in.KnowledgeBaseID,
		Name:            in.Name,
		SourceType:      in.SourceType,
		SourceURL:       in.SourceURL,
		FilePath:        in.FilePath,
		FileType:        in.FileType,
		FileSize:        in.FileSize,
		Metadata:        map[string]any{},
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// Get loads a document by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &core.NotFoundError{Resource: "document", ID: id}
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, kbID string) ([]models.Document, error) {
	return s.db.ListDocumentsByKnowledgeBase(ctx, kbID)
}

// Transition moves the document through the status state machine.
// processing stamps processing_started_at; ready and failed stamp
// processing_completed_at. An illegal transition or a lost race both
// surface as Conflict; an unknown id as NotFound.
func (s *Service) Transition(ctx context.Context, id string, to models.DocumentStatus, errorMessage *string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canTransition(doc.Status, to) {
		return &core.ConflictError{Reason: fmt.Sprintf("illegal status transition %s -> %s for document %s", doc.Status, to, id)}
	}

	updated, err := s.db.UpdateDocumentStatus(ctx, id, doc.Status, to, errorMessage)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if !updated {
		return &core.ConflictError{Reason: fmt.Sprintf("document %s changed state concurrently", id)}
	}
	return nil
}

// Reprocess discards all prior chunks, clears content and error, and
// returns the document to pending so the pipeline can run again. Name,
// source locator and file type are preserved: the caller never resupplies
// the original content. While a run is in flight (processing) — or one is
// already queued (pending) — it returns Conflict.
func (s *Service) Reprocess(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.StatusProcessing {
		return nil, &core.ConflictError{Reason: fmt.Sprintf("document %s is currently processing", id)}
	}
	if doc.Status == models.StatusPending {
		return nil, &core.ConflictError{Reason: fmt.Sprintf("document %s is already queued for processing", id)}
	}

	reset, err := s.db.ResetDocumentForReprocess(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reset document: %w", err)
	}
	if !reset {
		// someone else reset or claimed it between our read and the swap
		return nil, &core.ConflictError{Reason: fmt.Sprintf("document %s changed state concurrently", id)}
	}
	return s.Get(ctx, id)
}

// Delete removes the document (chunks cascade at the storage layer) and,
// for file-backed documents, asks blob storage to drop the bytes. A
// missing blob is logged and ignored.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if doc.SourceType == models.SourceFile && doc.FilePath != nil {
		if err := s.blobs.DeleteBlob(ctx, *doc.FilePath); err != nil {
			s.logger.Warn("blob delete failed, continuing", "document_id", id, "key", *doc.FilePath, "err", err)
		}
	}
	return nil
}
