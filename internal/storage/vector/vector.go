// Package vector implements the C3 vector store contract:
// upsert/search/get/count/reset keyed by chunk_id, with a fixed collection
// dimension and metadata-filtered cosine similarity search. Two backends
// are wired, both selectable via Settings.StorageBackend /
// AGENT_BRAIN_STORAGE_BACKEND:
//
//   - "chromem" (reference backend) -- internal/storage/vector/chromem.go
//   - "qdrant" (alternate backend)  -- internal/storage/vector/qdrant.go
//
// Grounded on internal/mcp/chromem_searcher.go, generalized from a
// read-only searcher into the full store contract.
package vector

import (
	"context"

	"github.com/agent-brain/core/internal/model"
)

// SearchResult is one hit from Search, with cosine similarity already
// converted from chromem's raw similarity (or qdrant's score) into the
// [0,1] similarity = 1 - cosine_distance convention.
type SearchResult struct {
	ChunkID string
	Chunk   model.Chunk
	Score   float64
}

// Filter is the metadata filter grammar: eq, in, and.
// The zero value matches everything.
type Filter struct {
	Eq  map[string]string
	In  map[string][]string
	And []Filter
}

// Matches reports whether metadata satisfies f.
func (f Filter) Matches(metadata map[string]string) bool {
	for k, v := range f.Eq {
		if metadata[k] != v {
			return false
		}
	}
	for k, vs := range f.In {
		if !containsStr(vs, metadata[k]) {
			return false
		}
	}
	for _, sub := range f.And {
		if !sub.Matches(metadata) {
			return false
		}
	}
	return true
}

func (f Filter) IsZero() bool {
	return len(f.Eq) == 0 && len(f.In) == 0 && len(f.And) == 0
}

func containsStr(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// UpsertBatchSize bounds a single Upsert call, matching the reference
// backend's documented per-request limit.
const UpsertBatchSize = 40000

// Store is the capability interface every vector backend implements, so
// callers can treat "reference vector DB" and "alternate backend" as
// interchangeable tagged variants behind a common contract.
type Store interface {
	// Upsert writes or replaces entries by chunk_id. Callers are expected to
	// not exceed UpsertBatchSize per call; larger batches should be split by
	// the caller (the indexing coordinator does this at vector_write_batch_size).
	Upsert(ctx context.Context, embeddings []model.Embedding, chunks []model.Chunk) error

	// Search returns the highest cosine-similarity hits above threshold,
	// restricted by filter, ordered descending by score.
	Search(ctx context.Context, queryEmbedding []float32, topK int, threshold float64, filter Filter) ([]SearchResult, error)

	Get(ctx context.Context, chunkID string) (*model.Chunk, bool, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Reset(ctx context.Context) error
	IsInitialized() bool

	// Name identifies the backend ("chromem", "qdrant") for health reporting.
	Name() string

	// SupportsGraphFusion reports true only for the reference backend. The
	// query engine (C9) consults this to decide whether multi-mode may
	// include the graph ranker, and graph-mode itself returns
	// UnsupportedBackend outright when this is false.
	SupportsGraphFusion() bool

	Dimensions() int
}
