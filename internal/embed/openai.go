package embed

import (
	"context"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/agent-brain/core/internal/apperr"
)

// openaiEmbedder wraps openai-go/v2's embeddings endpoint, grounded on the
// client-construction pattern the example pack's llm/openai.Client uses
// (an API-keyed option.WithAPIKey client, reused across calls).
type openaiEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

func newOpenAIEmbedder(apiKey, model string, dimension int) *openaiEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &openaiEmbedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		dimension: dimension,
	}
}

func (e *openaiEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.EmbeddingError, "openai embeddings request", err)
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *openaiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, apperr.New(apperr.EmbeddingError, "openai returned no embeddings")
	}
	return vecs[0], nil
}

func (e *openaiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts)
}

func (e *openaiEmbedder) Dimension() int { return e.dimension }

func (e *openaiEmbedder) Close() error { return nil }
