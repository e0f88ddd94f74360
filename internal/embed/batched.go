package embed

import (
	"context"
	"time"

	"github.com/agent-brain/core/internal/apperr"
)

// minRetries is the minimum number of attempts made for a transient
// embed_batch failure before propagating EmbeddingError.
const minRetries = 3

// retryBackoff is the exponential backoff schedule applied between attempts:
// 200ms, 400ms, 800ms, 1.6s, then capped at 2s for any later attempt.
func retryBackoff(attempt int) time.Duration {
	d := 200 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}

// embedBatchWithRetry calls embedder.EmbedBatch, retrying transient failures
// with exponential backoff, for minRetries attempts in all (the first call
// plus minRetries-1 retries) before giving up.
func embedBatchWithRetry(ctx context.Context, embedder Embedder, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < minRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff(attempt - 1)):
			}
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}
	return nil, apperr.Wrap(apperr.EmbeddingError, "embed_batch failed after retries", lastErr)
}

// EmbedChunksWithProgress embeds texts in fixed-size batches (embeddingBatchSize,
//  default 100), reporting progress after each batch via progress
// (which may be nil to disable reporting). Yields at every batch boundary so
// the indexing coordinator (C8) can observe ctx cancellation between batches.
func EmbedChunksWithProgress(ctx context.Context, embedder Embedder, texts []string, batchSize int, progress ProgressFunc) ([][]float32, error) {
	total := len(texts)
	if total == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	results := make([][]float32, total)
	processed := 0
	for start := 0; start < total; start += batchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + batchSize
		if end > total {
			end = total
		}

		vecs, err := embedBatchWithRetry(ctx, embedder, texts[start:end])
		if err != nil {
			return nil, err
		}
		copy(results[start:end], vecs)

		processed += end - start
		if progress != nil {
			progress(processed, total, "embed")
		}
	}
	return results, nil
}
