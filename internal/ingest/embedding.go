package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/corpora-app/corpora/internal/core"
)

// embedChunks turns chunk texts into vectors, batched. Every vector must
// match the knowledge base's configured dimensions; a mismatch is a
// permanent provider error and is never retried.
func (i *DocumentIngestor) embedChunks(ctx context.Context, texts []string, dimensions int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += i.cfg.BatchSize {
		end := start + i.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := i.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, &core.EmbeddingError{
				Err: fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(batch)),
			}
		}
		for _, v := range vecs {
			if len(v) != dimensions {
				return nil, &core.EmbeddingError{
					Err: fmt.Errorf("provider returned %d-dimensional vector, knowledge base expects %d", len(v), dimensions),
				}
			}
		}
		vectors = append(vectors, vecs...)
	}
	return vectors, nil
}

// embedBatch runs one provider round-trip under a per-batch timeout, with
// a small retry budget for transient failures (rate limits, timeouts).
func (i *DocumentIngestor) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= i.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			i.logger.Warn("transient embedding failure, retrying", "attempt", attempt, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * i.cfg.RetryBackoff):
			}
		}

		batchCtx, cancel := context.WithTimeout(ctx, i.cfg.EmbedTimeout)
		vecs, err := i.embedder.EmbedTexts(batchCtx, texts)
		cancel()
		if err == nil {
			return vecs, nil
		}
		if !core.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("embedding retries exhausted: %w", lastErr)
}
