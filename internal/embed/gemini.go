package embed

import (
	"context"

	genai "google.golang.org/genai"

	"github.com/agent-brain/core/internal/apperr"
)

// geminiEmbedder wraps google.golang.org/genai's embedding endpoint,
// constructed the same way the example pack's llm/google.Client builds its
// *genai.Client (API key + context at construction time).
type geminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func newGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int) (*geminiEmbedder, error) {
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, apperr.Wrap(apperr.EmbeddingError, "initializing gemini client", err)
	}
	return &geminiEmbedder{client: client, model: model, dimension: dimension}, nil
}

func (e *geminiEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.EmbeddingError, "gemini embed_content request", err)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *geminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, apperr.New(apperr.EmbeddingError, "gemini returned no embeddings")
	}
	return vecs[0], nil
}

func (e *geminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts)
}

func (e *geminiEmbedder) Dimension() int { return e.dimension }

func (e *geminiEmbedder) Close() error { return nil }
