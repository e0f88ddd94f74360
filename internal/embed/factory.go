package embed

import (
	"context"

	"github.com/agent-brain/core/internal/apperr"
)

// Config selects and parameterizes an Embedder implementation across its
// four tagged provider variants: local, mock, openai, gemini.
type Config struct {
	Provider  string // local | mock | openai | gemini
	Endpoint  string // local
	APIKey    string // openai | gemini
	Model     string // openai | gemini
	Dimension int    // declared vector dimension; must match the store's
}

// NewEmbedder builds the Embedder selected by Config.Provider, wrapped in a
// query-embedding cache (see QueryCache).
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		embedder Embedder
		err      error
	)
	switch cfg.Provider {
	case "", "local":
		embedder = newLocalEmbedder(cfg.Endpoint, cfg.Dimension)
	case "mock":
		embedder = newMockEmbedder(cfg.Dimension)
	case "openai":
		embedder = newOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.Dimension)
	case "gemini":
		embedder, err = newGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimension)
		if err != nil {
			return nil, err
		}
	case "anthropic", "cohere", "ollama":
		return nil, apperr.New(apperr.ConfigError, cfg.Provider+" has no embeddings endpoint; valid as summarization_provider only")
	default:
		return nil, apperr.New(apperr.ConfigError, "unsupported embedding_provider: "+cfg.Provider)
	}
	return NewQueryCache(embedder, defaultQueryCacheSize), nil
}
