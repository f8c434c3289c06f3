// Package ingest runs the asynchronous extraction → chunk → embed →
// persist pipeline for documents. Work is enqueued with an opaque run
// handle and executed by a bounded worker pool; chunk persistence is
// all-or-nothing so readers never observe a half-ingested document.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
	"github.com/corpora-app/corpora/internal/registry"
	"github.com/corpora-app/corpora/pkg/logging"
)

// Ingestor is the orchestrator-facing surface of the pipeline.
type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	// Enqueue schedules a document and returns an opaque run handle
	// immediately. A full queue is reported as Conflict, never blocked on.
	Enqueue(documentID string) (string, error)
	ProcessOne(ctx context.Context, documentID string) error
}

// Config tunes the pipeline.
//
// BatchSize:    chunks per embedding round-trip.
// MaxRetries:   retry budget for transient provider failures per batch.
// EmbedTimeout: per-batch provider deadline.
// QueueSize:    bound on the in-memory job queue.
type Config struct {
	BatchSize    int
	MaxRetries   int
	EmbedTimeout time.Duration
	RetryBackoff time.Duration
	QueueSize    int
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.BatchSize <= 0 {
		out.BatchSize = 16
	}
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if out.EmbedTimeout <= 0 {
		out.EmbedTimeout = 60 * time.Second
	}
	if out.RetryBackoff <= 0 {
		out.RetryBackoff = 2 * time.Second
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 64
	}
	return &out
}

type job struct {
	runID      string
	documentID string
}

// DocumentIngestor drives the pipeline for one document at a time per
// worker. Status changes always go through the registry so the state
// machine stays authoritative.
type DocumentIngestor struct {
	db        core.DbClient
	blobs     core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	registry  *registry.Service
	cfg       *Config
	jobs      chan job
	logger    *logging.Logger
}

var _ Ingestor = (*DocumentIngestor)(nil)

func NewDocumentIngestor(
	db core.DbClient,
	blobs core.ObjectClient,
	embedder core.EmbeddingProvider,
	extractor core.DocumentExtractor,
	reg *registry.Service,
	cfg *Config,
) *DocumentIngestor {
	cfg = cfg.withDefaults()
	return &DocumentIngestor{
		db:        db,
		blobs:     blobs,
		embedder:  embedder,
		extractor: extractor,
		registry:  reg,
		cfg:       cfg,
		jobs:      make(chan job, cfg.QueueSize),
		logger:    logging.NewLogger("ingest"),
	}
}

// Start launches numWorkers goroutines that drain the job queue until ctx
// is cancelled. Documents in the same knowledge base may process
// concurrently; the pending→processing claim keeps two workers off the
// same document.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= numWorkers; w++ {
		worker := w
		g.Go(func() error {
			log := i.logger.With("worker", worker)
			for {
				select {
				case <-gctx.Done():
					log.Info("ingest worker shutting down")
					return gctx.Err()
				case j := <-i.jobs:
					log.Info("processing document", "run_id", j.runID, "document_id", j.documentID)
					if err := i.ProcessOne(gctx, j.documentID); err != nil {
						log.Error("ingestion run failed", "run_id", j.runID, "document_id", j.documentID, "err", err)
					}
				}
			}
		})
	}
	go func() { _ = g.Wait() }()
}

// Enqueue schedules a document for ingestion and returns the run handle.
func (i *DocumentIngestor) Enqueue(documentID string) (string, error) {
	runID := uuid.NewString()
	select {
	case i.jobs <- job{runID: runID, documentID: documentID}:
		return runID, nil
	default:
		return "", &core.ConflictError{Reason: "ingestion queue is full, retry later"}
	}
}

// ProcessOne runs the full pipeline for a single document: claim, fetch,
// extract, chunk, embed, persist. Extraction and embedding failures are
// converted into a failed status with the error message recorded; they do
// not propagate as pipeline panics into the orchestrator.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, documentID string) error {
	if err := i.registry.Transition(ctx, documentID, models.StatusProcessing, nil); err != nil {
		if core.IsConflict(err) {
			// another worker claimed it, or it was deleted/reset mid-queue
			i.logger.Warn("skipping document, could not claim", "document_id", documentID, "err", err)
			return nil
		}
		return err
	}

	doc, err := i.db.GetDocumentByID(ctx, documentID)
	if err != nil || doc == nil {
		return i.fail(ctx, documentID, fmt.Errorf("load document: %w", err))
	}
	kb, err := i.db.GetKnowledgeBaseByID(ctx, doc.KnowledgeBaseID)
	if err != nil || kb == nil {
		return i.fail(ctx, documentID, fmt.Errorf("load knowledge base %s: %w", doc.KnowledgeBaseID, err))
	}

	ext, err := i.extractContent(ctx, doc)
	if err != nil {
		return i.fail(ctx, documentID, err)
	}

	if err := i.db.UpdateDocumentContent(ctx, documentID, ext.Content, ext.Metadata); err != nil {
		return i.fail(ctx, documentID, fmt.Errorf("store extracted content: %w", err))
	}

	texts, err := Split(ext.Content, kb.ChunkSize, kb.ChunkOverlap)
	if err != nil {
		return i.fail(ctx, documentID, err)
	}

	vectors, err := i.embedChunks(ctx, texts, kb.EmbeddingDimensions)
	if err != nil {
		return i.fail(ctx, documentID, err)
	}

	now := time.Now().UTC()
	chunks := make([]models.Chunk, len(texts))
	for idx := range texts {
		chunks[idx] = models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			ChunkIndex: idx,
			Content:    texts[idx],
			Embedding:  vectors[idx],
			CreatedAt:  now,
		}
	}
	if err := i.db.ReplaceDocumentChunks(ctx, documentID, chunks); err != nil {
		return i.fail(ctx, documentID, fmt.Errorf("persist chunks: %w", err))
	}

	if err := i.registry.Transition(ctx, documentID, models.StatusReady, nil); err != nil {
		return err
	}
	i.logger.Info("document ready", "document_id", documentID, "chunks", len(chunks))
	return nil
}

// extractContent resolves the document's locator: URL documents are
// fetched by the extractor itself, file documents come out of blob storage.
func (i *DocumentIngestor) extractContent(ctx context.Context, doc *models.Document) (*models.Extraction, error) {
	switch doc.SourceType {
	case models.SourceURL:
		if doc.SourceURL == nil {
			return nil, core.Extractionf("url", "document %s has no source_url", doc.ID)
		}
		return i.extractor.ExtractURL(ctx, *doc.SourceURL)
	case models.SourceFile:
		if doc.FilePath == nil {
			return nil, core.Extractionf(doc.FileType, "document %s has no file_path", doc.ID)
		}
		data, err := i.blobs.FetchBytes(ctx, *doc.FilePath)
		if err != nil {
			return nil, core.NewExtractionError(doc.FileType, fmt.Errorf("fetch blob %s: %w", *doc.FilePath, err))
		}
		return i.extractor.ExtractBytes(ctx, data, doc.FileType)
	default:
		return nil, core.Extractionf(string(doc.SourceType), "unknown source type")
	}
}

// fail records the terminal failure on the document. The status write uses
// a context detached from the (possibly expired) run context so a timed-out
// pipeline can still report what happened.
func (i *DocumentIngestor) fail(ctx context.Context, documentID string, cause error) error {
	msg := cause.Error()
	if err := i.registry.Transition(context.WithoutCancel(ctx), documentID, models.StatusFailed, &msg); err != nil {
		i.logger.Error("could not mark document failed", "document_id", documentID, "err", err)
	}
	return cause
}
