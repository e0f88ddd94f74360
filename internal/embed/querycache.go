package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/maypok86/otter"
)

// defaultQueryCacheSize is the maximum number of distinct query strings
// cached at once, grounded on the original graph.searcher file cache
// capacity choice (a fixed, generous bound rather than a memory-weighted one
// since query vectors are small and fixed-size).
const defaultQueryCacheSize = 2048

// QueryCache wraps an Embedder so repeated EmbedQuery calls for the same
// query_text (common across vector/hybrid/multi mode within one query()
// request) skip the network/subprocess round trip.
// Built the same way the original graph.searcher builds its file cache:
// otter.MustBuilder with a fixed capacity.
type QueryCache struct {
	inner Embedder
	cache otter.Cache[string, []float32]
}

// NewQueryCache builds a query-embedding cache in front of inner, capacity
// bounded at maxEntries.
func NewQueryCache(inner Embedder, maxEntries int) *QueryCache {
	cache, err := otter.MustBuilder[string, []float32](maxEntries).
		CollectStats().
		Build()
	if err != nil {
		// otter.MustBuilder only fails on invalid capacity; maxEntries is a
		// package constant, so this can't happen in practice.
		panic(err)
	}
	return &QueryCache{inner: inner, cache: cache}
}

func (c *QueryCache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec)
	return vec, nil
}

func (c *QueryCache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *QueryCache) Dimension() int { return c.inner.Dimension() }

func (c *QueryCache) Close() error {
	c.cache.Close()
	return c.inner.Close()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
