package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
)

const collectionName = "agent-brain"

// chromemStore is the reference vector backend, generalizing the prior implementation's
// chromemSearcher (internal/mcp/chromem_searcher.go) from a read-only
// searcher with an atomic-swap reload into the full upsert/search/get/
// count/reset contract. Persists under <stateDir>/chroma_db via chromem-go's
// own on-disk layout.
type chromemStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	dir        string
	dimensions int

	// metaIndex mirrors each stored document's flat metadata fields so
	// Count(filter) can scan without chromem's embedding-query API (which
	// chromem-go requires even for an unfiltered "list everything" call).
	// Non-goals exclude sub-document deletion, so this index only ever
	// grows or is wiped wholesale by Reset.
	metaIndex map[string]map[string]string

	// docIndex mirrors the full decoded chunk for point lookups by Get.
	// chromem-go's public API is a vector/metadata store, not a
	// point-lookup store, so Get is served from this sidecar rather than
	// betting on an unconfirmed by-ID accessor.
	docIndex map[string]model.Chunk
}

// NewChromemStore opens (or creates) a persistent chromem-go database at
// dir. dimensions fixes the collection's vector width; inserting a
// differently-sized embedding fails with DimensionMismatch.
func NewChromemStore(dir string, dimensions int) (Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "opening chromem db", err)
	}
	s := &chromemStore{
		db:         db,
		dir:        dir,
		dimensions: dimensions,
		metaIndex:  make(map[string]map[string]string),
		docIndex:   make(map[string]model.Chunk),
	}
	if err := s.openOrCreateCollection(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *chromemStore) openOrCreateCollection() error {
	// No embedding func: callers always supply embeddings directly (C6 owns
	// the Embedder), so chromem never needs to compute one itself.
	col, err := s.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "opening chromem collection", err)
	}
	s.collection = col
	return nil
}

func (s *chromemStore) Name() string              { return "chromem" }
func (s *chromemStore) SupportsGraphFusion() bool  { return true }
func (s *chromemStore) Dimensions() int            { return s.dimensions }
func (s *chromemStore) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection != nil
}

func (s *chromemStore) Upsert(ctx context.Context, embeddings []model.Embedding, chunks []model.Chunk) error {
	if len(embeddings) != len(chunks) {
		return apperr.New(apperr.StoreError, "embeddings/chunks length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, emb := range embeddings {
		if len(emb.Vector) != s.dimensions {
			return apperr.New(apperr.DimensionMismatch, fmt.Sprintf("embedding dimension %d does not match collection dimension %d", len(emb.Vector), s.dimensions))
		}
		metadata, err := encodeMetadata(chunks[i])
		if err != nil {
			return apperr.Wrap(apperr.StoreError, "encoding chunk metadata", err)
		}
		doc := chromem.Document{
			ID:        emb.ChunkID,
			Content:   chunks[i].Text,
			Embedding: emb.Vector,
			Metadata:  metadata,
		}
		// chromem has no native upsert-by-id replace; delete then add.
		_ = s.collection.Delete(ctx, nil, nil, emb.ChunkID)
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return apperr.Wrap(apperr.StoreError, "adding document to chromem", err)
		}
		s.metaIndex[emb.ChunkID] = metadata
		s.docIndex[emb.ChunkID] = chunks[i]
	}
	return nil
}

func (s *chromemStore) Search(ctx context.Context, queryEmbedding []float32, topK int, threshold float64, filter Filter) ([]SearchResult, error) {
	if len(queryEmbedding) != s.dimensions {
		return nil, apperr.New(apperr.DimensionMismatch, fmt.Sprintf("query embedding dimension %d does not match collection dimension %d", len(queryEmbedding), s.dimensions))
	}
	s.mu.RLock()
	col := s.collection
	s.mu.RUnlock()
	if col == nil {
		return nil, apperr.New(apperr.NotReady, "vector store not initialized")
	}

	// Over-fetch beyond topK since no native chromem where filter is passed:
	// every Filter predicate is applied to the results after the query.
	nResults := topK * 3
	if nResults < topK {
		nResults = topK
	}
	if total := col.Count(); nResults > total {
		nResults = total
	}
	if nResults == 0 {
		return nil, nil
	}

	docs, err := col.QueryEmbedding(ctx, queryEmbedding, nResults, nil, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "chromem query failed", err)
	}

	results := make([]SearchResult, 0, topK)
	for _, doc := range docs {
		score := float64(doc.Similarity)
		if score < threshold {
			continue
		}
		if !filter.IsZero() && !filter.Matches(doc.Metadata) {
			continue
		}
		chunk, err := decodeMetadata(doc.ID, doc.Content, doc.Metadata)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{ChunkID: doc.ID, Chunk: chunk, Score: score})
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

func (s *chromemStore) Get(ctx context.Context, chunkID string) (*model.Chunk, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return nil, false, apperr.New(apperr.NotReady, "vector store not initialized")
	}
	chunk, ok := s.docIndex[chunkID]
	if !ok {
		return nil, false, nil
	}
	return &chunk, true, nil
}

func (s *chromemStore) Count(ctx context.Context, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return 0, nil
	}
	if filter.IsZero() {
		return s.collection.Count(), nil
	}
	n := 0
	for _, meta := range s.metaIndex {
		if filter.Matches(meta) {
			n++
		}
	}
	return n, nil
}

func (s *chromemStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.db.DeleteCollection(collectionName)
	col, err := s.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "recreating chromem collection", err)
	}
	s.collection = col
	s.metaIndex = make(map[string]map[string]string)
	s.docIndex = make(map[string]model.Chunk)
	return nil
}

// chunkMeta is the JSON-serialized form of model.ChunkMetadata stowed in a
// single chromem metadata field, since chromem metadata values are plain
// strings: this lets Search/Get reconstruct a full model.Chunk, not just its
// text, while the flattened source/source_type/language copies below remain
// as plain string fields so Filter.Matches can still operate natively.
type chunkMeta struct {
	TokenCount int                 `json:"token_count"`
	Metadata   model.ChunkMetadata `json:"metadata"`
}

func encodeMetadata(c model.Chunk) (map[string]string, error) {
	blob, err := json.Marshal(chunkMeta{TokenCount: c.TokenCount, Metadata: c.Metadata})
	if err != nil {
		return nil, err
	}
	m := map[string]string{
		"chunk_json":  string(blob),
		"source":      c.Metadata.Source,
		"source_type": string(c.Metadata.SourceType),
		"language":    c.Metadata.Language,
	}
	return m, nil
}

func decodeMetadata(chunkID, text string, metadata map[string]string) (model.Chunk, error) {
	raw, ok := metadata["chunk_json"]
	if !ok {
		return model.Chunk{}, fmt.Errorf("chunk %s missing chunk_json metadata", chunkID)
	}
	var cm chunkMeta
	if err := json.Unmarshal([]byte(raw), &cm); err != nil {
		return model.Chunk{}, err
	}
	return model.Chunk{
		ChunkID:    chunkID,
		Text:       text,
		TokenCount: cm.TokenCount,
		Metadata:   cm.Metadata,
	}, nil
}
