package vector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
)

const qdrantCollection = "agent_brain"

// qdrantStore is the alternate vector backend selectable via
// AGENT_BRAIN_STORAGE_BACKEND=qdrant: a gRPC client against an operator-run
// Qdrant instance. It never reports graph-fusion support
// (SupportsGraphFusion returns false) -- multi-mode silently drops the
// graph ranker against this backend, and graph-mode itself returns
// UnsupportedBackend outright.
type qdrantStore struct {
	client     *qdrant.Client
	dimensions int
}

// NewQdrantStore connects to a Qdrant instance at host:port and ensures the
// collection exists with the declared dimension.
func NewQdrantStore(ctx context.Context, host string, port int, dimensions int) (Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "connecting to qdrant", err)
	}
	s := &qdrantStore{client: client, dimensions: dimensions}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *qdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, qdrantCollection)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "checking qdrant collection", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: qdrantCollection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "creating qdrant collection", err)
	}
	return nil
}

func (s *qdrantStore) Name() string             { return "qdrant" }
func (s *qdrantStore) SupportsGraphFusion() bool { return false }
func (s *qdrantStore) Dimensions() int           { return s.dimensions }
func (s *qdrantStore) IsInitialized() bool       { return s.client != nil }

func (s *qdrantStore) Upsert(ctx context.Context, embeddings []model.Embedding, chunks []model.Chunk) error {
	if len(embeddings) != len(chunks) {
		return apperr.New(apperr.StoreError, "embeddings/chunks length mismatch")
	}
	points := make([]*qdrant.PointStruct, 0, len(embeddings))
	for i, emb := range embeddings {
		if len(emb.Vector) != s.dimensions {
			return apperr.New(apperr.DimensionMismatch, fmt.Sprintf("embedding dimension %d does not match collection dimension %d", len(emb.Vector), s.dimensions))
		}
		payload, err := encodePayload(chunks[i])
		if err != nil {
			return apperr.Wrap(apperr.StoreError, "encoding qdrant payload", err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(emb.ChunkID),
			Vectors: qdrant.NewVectors(emb.Vector...),
			Payload: payload,
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qdrantCollection,
		Points:         points,
	})
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "qdrant upsert failed", err)
	}
	return nil
}

func (s *qdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int, threshold float64, filter Filter) ([]SearchResult, error) {
	if len(queryEmbedding) != s.dimensions {
		return nil, apperr.New(apperr.DimensionMismatch, fmt.Sprintf("query embedding dimension %d does not match collection dimension %d", len(queryEmbedding), s.dimensions))
	}
	limit := uint64(topK * 3)
	withPayload := true
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qdrantCollection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(withPayload),
		Filter:         toQdrantFilter(filter),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "qdrant query failed", err)
	}

	results := make([]SearchResult, 0, topK)
	for _, p := range points {
		score := float64(p.GetScore())
		if score < threshold {
			continue
		}
		chunk, id, err := decodePayload(p.GetId(), p.GetPayload())
		if err != nil {
			continue
		}
		results = append(results, SearchResult{ChunkID: id, Chunk: chunk, Score: score})
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

func (s *qdrantStore) Get(ctx context.Context, chunkID string) (*model.Chunk, bool, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: qdrantCollection,
		Ids:            []*qdrant.PointId{qdrant.NewID(chunkID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil || len(points) == 0 {
		return nil, false, nil
	}
	chunk, id, err := decodePayload(points[0].GetId(), points[0].GetPayload())
	if err != nil {
		return nil, false, apperr.Wrap(apperr.StoreError, "decoding qdrant payload", err)
	}
	_ = id
	return &chunk, true, nil
}

func (s *qdrantStore) Count(ctx context.Context, filter Filter) (int, error) {
	exact := true
	resp, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: qdrantCollection,
		Filter:         toQdrantFilter(filter),
		Exact:          &exact,
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.StoreError, "qdrant count failed", err)
	}
	return int(resp), nil
}

func (s *qdrantStore) Reset(ctx context.Context) error {
	_ = s.client.DeleteCollection(ctx, qdrantCollection)
	return s.ensureCollection(ctx)
}

func encodePayload(c model.Chunk) (map[string]*qdrant.Value, error) {
	blob, err := json.Marshal(chunkMeta{TokenCount: c.TokenCount, Metadata: c.Metadata})
	if err != nil {
		return nil, err
	}
	return map[string]*qdrant.Value{
		"chunk_json":  qdrant.NewValueString(string(blob)),
		"text":        qdrant.NewValueString(c.Text),
		"source":      qdrant.NewValueString(c.Metadata.Source),
		"source_type": qdrant.NewValueString(string(c.Metadata.SourceType)),
		"language":    qdrant.NewValueString(c.Metadata.Language),
	}, nil
}

func decodePayload(id *qdrant.PointId, payload map[string]*qdrant.Value) (model.Chunk, string, error) {
	chunkID := id.GetUuid()
	if chunkID == "" {
		chunkID = fmt.Sprintf("%d", id.GetNum())
	}
	raw, ok := payload["chunk_json"]
	if !ok {
		return model.Chunk{}, chunkID, fmt.Errorf("point %s missing chunk_json payload", chunkID)
	}
	var cm chunkMeta
	if err := json.Unmarshal([]byte(raw.GetStringValue()), &cm); err != nil {
		return model.Chunk{}, chunkID, err
	}
	text := ""
	if t, ok := payload["text"]; ok {
		text = t.GetStringValue()
	}
	return model.Chunk{
		ChunkID:    chunkID,
		Text:       text,
		TokenCount: cm.TokenCount,
		Metadata:   cm.Metadata,
	}, chunkID, nil
}

func toQdrantFilter(f Filter) *qdrant.Filter {
	if f.IsZero() {
		return nil
	}
	var must []*qdrant.Condition
	for k, v := range f.Eq {
		must = append(must, qdrant.NewMatch(k, v))
	}
	for k, vs := range f.In {
		for _, v := range vs {
			must = append(must, qdrant.NewMatch(k, v))
		}
	}
	for _, sub := range f.And {
		if nested := toQdrantFilter(sub); nested != nil {
			must = append(must, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Filter{Filter: nested},
			})
		}
	}
	return &qdrant.Filter{Must: must}
}
