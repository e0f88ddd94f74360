package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// mockEmbedder generates deterministic embeddings by hashing input text,
// ported from the original MockProvider but narrowed to the Embedder
// contract (embed_query/embed_batch/dimension).
type mockEmbedder struct {
	mu         sync.Mutex
	dimension  int
	embedError error
}

func newMockEmbedder(dimension int) *mockEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &mockEmbedder{dimension: dimension}
}

// SetEmbedError configures the mock to fail the next call, for test use.
func (p *mockEmbedder) SetEmbedError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedError = err
}

func (p *mockEmbedder) vectorFor(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	out := make([]float32, p.dimension)
	for j := 0; j < p.dimension; j++ {
		offset := (j * 4) % len(hash)
		val := binary.BigEndian.Uint32(hash[offset : offset+4])
		out[j] = (float32(val)/float32(1<<32))*2.0 - 1.0
	}
	return out
}

func (p *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	err := p.embedError
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.vectorFor(text), nil
}

func (p *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	err := p.embedError
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectorFor(t)
	}
	return out, nil
}

func (p *mockEmbedder) Dimension() int { return p.dimension }

func (p *mockEmbedder) Close() error { return nil }
