package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agent-brain/core/internal/apperr"
)

// localEmbedder is a thin HTTP client against an operator-run embedding
// endpoint (e.g. a sidecar serving BGE-small-en-v1.5). Downloading,
// installing, and supervising the embedding model's own subprocess is out
// of scope here: it treats the embedding model process as an external,
// pluggable service reachable behind a narrow contract, not something this
// daemon manages.
type localEmbedder struct {
	endpoint   string
	dimension  int
	client     *http.Client
}

func newLocalEmbedder(endpoint string, dimension int) *localEmbedder {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8420"
	}
	return &localEmbedder{
		endpoint:  endpoint,
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type localEmbedRequest struct {
	Texts []string `json:"texts"`
	Mode  string   `json:"mode"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *localEmbedder) embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	body, err := json.Marshal(localEmbedRequest{Texts: texts, Mode: string(mode)})
	if err != nil {
		return nil, apperr.Wrap(apperr.EmbeddingError, "encoding embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.EmbeddingError, "building embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.EmbeddingError, "calling local embedding endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.EmbeddingError, fmt.Sprintf("local embedding endpoint returned status %d", resp.StatusCode))
	}

	var out localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.EmbeddingError, "decoding embed response", err)
	}
	return out.Embeddings, nil
}

func (e *localEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text}, EmbedModeQuery)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, apperr.New(apperr.EmbeddingError, "local embedding endpoint returned no vectors")
	}
	return vecs[0], nil
}

func (e *localEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, EmbedModePassage)
}

func (e *localEmbedder) Dimension() int { return e.dimension }

func (e *localEmbedder) Close() error { return nil }
