// Package embed implements C6, the embedding generator: a tagged Embedder
// capability with several concrete backends, plus the
// Summarizer/TripleExtractor capability the code chunker (C5) and graph
// extractor (C7) call through optionally.
//
// Generalizes the original internal/embed.Provider (a single Embed(texts,
// mode) method) into the spec's narrower Embedder contract
// (embed_query/embed_batch/dimension, plus Close), since the daemon only ever embeds a
// single query string or a batch of passage chunks -- never a mixed slice.
package embed

import "context"

// EmbedMode specifies the type of embedding to generate. Some providers
// (e.g. BGE-family models behind the local endpoint) prepend a different
// instruction prefix for queries vs. passages; others ignore it.
type EmbedMode string

const (
	EmbedModeQuery   EmbedMode = "query"
	EmbedModePassage EmbedMode = "passage"
)

// Embedder is the capability contract from : embed_query,
// embed_batch, dimension. Implementations must return vectors of the
// declared Dimension() on every call.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Close() error
}

// ProgressFunc reports embedding progress during a batch run: processed and
// total chunk counts, and the pipeline stage name (always "embed" for C6,
// kept as a parameter so the indexing coordinator can reuse the signature
// for other stages).
type ProgressFunc func(processed, total int, stage string)
