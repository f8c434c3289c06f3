package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/corpora-app/corpora/internal/config"
	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Knowledge bases

func (c *DatabaseClient) CreateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error {
	if kb == nil {
		return errors.New("nil knowledge base")
	}
	const q = `
		INSERT INTO knowledge_bases
			(id, user_id, name, description,
			 embedding_provider, embedding_model, embedding_dimensions,
			 chunk_size, chunk_overlap, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()), COALESCE($11, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		kb.ID, kb.UserID, kb.Name, kb.Description,
		kb.EmbeddingProvider, kb.EmbeddingModel, kb.EmbeddingDimensions,
		kb.ChunkSize, kb.ChunkOverlap, kb.CreatedAt, kb.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetKnowledgeBaseByID(ctx context.Context, id string) (*models.KnowledgeBase, error) {
	const q = `
		SELECT id, user_id, name, description,
		       embedding_provider, embedding_model, embedding_dimensions,
		       chunk_size, chunk_overlap, created_at, updated_at
		FROM knowledge_bases WHERE id = $1
	`
	var kb models.KnowledgeBase
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&kb.ID, &kb.UserID, &kb.Name, &kb.Description,
		&kb.EmbeddingProvider, &kb.EmbeddingModel, &kb.EmbeddingDimensions,
		&kb.ChunkSize, &kb.ChunkOverlap, &kb.CreatedAt, &kb.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

func (c *DatabaseClient) ListKnowledgeBasesByUser(ctx context.Context, userID string) ([]models.KnowledgeBase, error) {
	const q = `
		SELECT id, user_id, name, description,
		       embedding_provider, embedding_model, embedding_dimensions,
		       chunk_size, chunk_overlap, created_at, updated_at
		FROM knowledge_bases
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.KnowledgeBase
	for rows.Next() {
		var kb models.KnowledgeBase
		if err := rows.Scan(
			&kb.ID, &kb.UserID, &kb.Name, &kb.Description,
			&kb.EmbeddingProvider, &kb.EmbeddingModel, &kb.EmbeddingDimensions,
			&kb.ChunkSize, &kb.ChunkOverlap, &kb.CreatedAt, &kb.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, kb)
	}
	return out, rows.Err()
}

// DeleteKnowledgeBase relies on ON DELETE CASCADE for documents and chunks.
func (c *DatabaseClient) DeleteKnowledgeBase(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &core.NotFoundError{Resource: "knowledge base", ID: id}
	}
	return nil
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	meta, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO documents
			(id, knowledge_base_id, name, source_type, source_url, file_path,
			 file_type, file_size, content, metadata, status, error_message,
			 processing_started_at, processing_completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        COALESCE($15, now()), COALESCE($16, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		doc.ID, doc.KnowledgeBaseID, doc.Name, doc.SourceType, doc.SourceURL, doc.FilePath,
		doc.FileType, doc.FileSize, doc.Content, meta, doc.Status, doc.ErrorMessage,
		doc.ProcessingStartedAt, doc.ProcessingCompletedAt, doc.CreatedAt, doc.UpdatedAt)
	return err
}

const documentColumns = `
	id, knowledge_base_id, name, source_type, source_url, file_path,
	file_type, file_size, content, metadata, status, error_message,
	processing_started_at, processing_completed_at, created_at, updated_at`

func scanDocument(row interface{ Scan(dest ...any) error }) (*models.Document, error) {
	var (
		d    models.Document
		meta []byte
	)
	err := row.Scan(
		&d.ID, &d.KnowledgeBaseID, &d.Name, &d.SourceType, &d.SourceURL, &d.FilePath,
		&d.FileType, &d.FileSize, &d.Content, &meta, &d.Status, &d.ErrorMessage,
		&d.ProcessingStartedAt, &d.ProcessingCompletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode document metadata: %w", err)
		}
	}
	return &d, nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *DatabaseClient) ListDocumentsByKnowledgeBase(ctx context.Context, kbID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE knowledge_base_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, kbID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

// UpdateDocumentStatus is a compare-and-swap so concurrent transitions
// cannot both win. Timestamp stamping follows the state machine: entering
// processing records the start, terminal states record completion, going
// back to pending clears both.
func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, from, to models.DocumentStatus, errorMessage *string) (bool, error) {
	const q = `
		UPDATE documents
		SET status = $3,
		    error_message = $4,
		    processing_started_at = CASE
		        WHEN $3 = 'processing' THEN now()
		        WHEN $3 = 'pending' THEN NULL
		        ELSE processing_started_at END,
		    processing_completed_at = CASE
		        WHEN $3 IN ('ready', 'failed') THEN now()
		        WHEN $3 = 'pending' THEN NULL
		        ELSE processing_completed_at END,
		    updated_at = now()
		WHERE id = $1 AND status = $2
	`
	res, err := c.db.ExecContext(ctx, q, id, from, to, errorMessage)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *DatabaseClient) UpdateDocumentContent(ctx context.Context, id string, content string, metadata map[string]any) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	const q = `
		UPDATE documents
		SET content = $2, metadata = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, content, meta)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &core.NotFoundError{Resource: "document", ID: id}
	}
	return nil
}

// ResetDocumentForReprocess performs the reprocess reset and the chunk
// purge in one transaction, guarded by the status check so a concurrent
// claim wins cleanly.
func (c *DatabaseClient) ResetDocumentForReprocess(ctx context.Context, id string) (bool, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}

	const q = `
		UPDATE documents
		SET status = 'pending', content = NULL, error_message = NULL,
		    processing_started_at = NULL, processing_completed_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND status IN ('ready', 'failed')
	`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, id); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	return true, tx.Commit()
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &core.NotFoundError{Resource: "document", ID: id}
	}
	return nil
}

// Chunks

// ReplaceDocumentChunks swaps the document's chunk set in one transaction:
// either every row of the new set commits or none do.
func (c *DatabaseClient) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		_ = tx.Rollback()
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, chunk_index, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		meta, err := marshalMetadata(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.ChunkIndex, ch.Content, vec, meta, ch.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	const q = `
		SELECT id, document_id, chunk_index, content, embedding, metadata, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		var (
			ch   models.Chunk
			emb  pgvector.Vector
			meta []byte
		)
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.ChunkIndex, &ch.Content, &emb, &meta, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ch.Metadata); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SearchSimilarChunks scores with pgvector cosine distance (`<=>`),
// mapped to similarity as 1 - distance. Only chunks of ready documents in
// the requested knowledge base are candidates; ties resolve by chunk
// insertion order for deterministic output.
func (c *DatabaseClient) SearchSimilarChunks(ctx context.Context, kbID string, query []float32, minSimilarity float64, limit int) ([]models.SearchResult, error) {
	const q = `
		SELECT c.id, c.document_id, d.name, c.chunk_index, c.content,
		       1 - (c.embedding <=> $2) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.knowledge_base_id = $1
		  AND d.status = 'ready'
		  AND 1 - (c.embedding <=> $2) >= $3
		ORDER BY c.embedding <=> $2 ASC, c.created_at ASC, c.chunk_index ASC
		LIMIT $4
	`
	vec := pgvector.NewVector(query)
	rows, err := c.db.QueryContext(ctx, q, kbID, vec, minSimilarity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.DocumentName, &r.ChunkIndex, &r.Content, &r.Similarity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
