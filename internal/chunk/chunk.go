// Package chunk implements C5, the prose and code chunkers: splitting a
// LoadedDocument into bounded, embeddable Chunks.
//
// Both chunkers share a deterministic chunk_id scheme (short_hash(source +
// "#" + chunk_index)) so re-indexing the same file content upserts to the
// same vector/keyword entries rather than growing the store, keeping
// indexing idempotent across repeated runs over unchanged content.
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/agent-brain/core/internal/tokencount"
)

// Options are the chunk-size thresholds shared by both chunkers.
type Options struct {
	ChunkSize    int // target size, in tokens
	ChunkOverlap int // overlap carried between adjacent chunks, in tokens
	MinChunkSize int
	MaxChunkSize int

	// GenerateSummaries gates the optional Summarizer call during code
	// chunking.
	GenerateSummaries bool
}

// clampTokenCount enforces the 128 <= token_count <= 2048 invariant from
//  without altering the underlying text: callers choose chunk
// boundaries to make this a no-op in the common case; this is the backstop.
func clampTokenCount(n int) int {
	if n < 128 {
		return 128
	}
	if n > 2048 {
		return 2048
	}
	return n
}

// chunkID implements the deterministic id scheme from :
// short_hash(source + "#" + chunk_index).
func chunkID(source string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", source, index)))
	return hex.EncodeToString(sum[:])[:16]
}

func tokenCountOf(text string) int {
	return clampTokenCount(tokencount.Count(text))
}

// Summarizer is the capability interface the code chunker's optional
// per-chunk summarization step ( step 5) calls through.
// Summarization failures attach nothing and never fail the chunk.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
