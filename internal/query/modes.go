package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
	"github.com/agent-brain/core/internal/storage/vector"
)

// queryHybrid runs vector and bm25 concurrently, normalizes each side by its
// own max score, and blends with alpha.
func (e *Engine) queryHybrid(ctx context.Context, req Request, filter vector.Filter) ([]Result, error) {
	effectiveTopK := req.TopK
	if n, err := e.Vector.Count(ctx, vector.Filter{}); err == nil && n < effectiveTopK {
		effectiveTopK = n
	}
	if effectiveTopK <= 0 {
		effectiveTopK = req.TopK
	}
	vreq := req
	vreq.TopK = effectiveTopK

	var vectorHits []vector.SearchResult
	var bm25Hits []keywordHit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := e.vectorSearch(gctx, vreq, filter)
		vectorHits = hits
		return err
	})
	g.Go(func() error {
		if !e.Keyword.IsInitialized() {
			return nil
		}
		hits, err := e.Keyword.Search(gctx, req.QueryText, effectiveTopK, filter)
		if err != nil {
			return err
		}
		for _, h := range hits {
			bm25Hits = append(bm25Hits, keywordHit{chunkID: h.ChunkID, chunk: h.Chunk, score: h.Score})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vectorNorm := normalize(vectorScores(vectorHits))
	bm25Norm := normalize(bm25Scores(bm25Hits))

	type merged struct {
		chunk       model.Chunk
		vectorScore *float64
		bm25Score   *float64
		blended     float64
	}
	byID := map[string]*merged{}
	order := []string{}
	for i, h := range vectorHits {
		v := vectorNorm[i]
		byID[h.ChunkID] = &merged{chunk: h.Chunk, vectorScore: ptr(h.Score), blended: req.Alpha * v}
		order = append(order, h.ChunkID)
	}
	for i, h := range bm25Hits {
		b := bm25Norm[i]
		if m, ok := byID[h.chunkID]; ok {
			m.bm25Score = ptr(h.score)
			m.blended += (1 - req.Alpha) * b
			continue
		}
		byID[h.chunkID] = &merged{chunk: h.chunk, bm25Score: ptr(h.score), blended: (1 - req.Alpha) * b}
		order = append(order, h.chunkID)
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		m := byID[id]
		out = append(out, resultFromChunk(m.chunk, m.blended, m.vectorScore, m.bm25Score, nil))
	}
	sortByScoreDesc(out)
	return out, nil
}

type keywordHit struct {
	chunkID string
	chunk   model.Chunk
	score   float64
}

func vectorScores(hits []vector.SearchResult) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = h.Score
	}
	return out
}

func bm25Scores(hits []keywordHit) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = h.score
	}
	return out
}

// normalize divides every score by the maximum in scores; if the maximum is
// zero, every normalized score is zero.
func normalize(scores []float64) []float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == 0 {
		return out
	}
	for i, s := range scores {
		out[i] = s / max
	}
	return out
}

func ptr(f float64) *float64 { return &f }

// queryGraph extracts candidate entities from the query text, walks the
// graph store up to TraversalDepth hops for each, resolves the touched
// chunks from the vector store, and falls back to vector mode if nothing
// resolves.
func (e *Engine) queryGraph(ctx context.Context, req Request, filter vector.Filter) ([]Result, error) {
	if !e.Vector.SupportsGraphFusion() {
		return nil, apperr.New(apperr.UnsupportedBackend, "graph mode requires the reference vector backend")
	}
	if e.Graph == nil {
		return e.queryVector(ctx, req, filter)
	}

	depth := e.TraversalDepth
	if depth <= 0 {
		depth = 2
	}

	entities := extractEntities(req.QueryText)
	seenChunk := map[string]*Result{}
	order := []string{}

	for _, entity := range entities {
		triplets, err := e.Graph.TripletsFor(ctx, entity, depth)
		if err != nil {
			return nil, err
		}
		for _, t := range triplets {
			chunkPtr, ok, err := e.Vector.Get(ctx, t.SourceChunkID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if !filter.IsZero() && !filter.Matches(flattenMeta(chunkPtr.Metadata)) {
				continue
			}
			path := fmt.Sprintf("%s → %s → %s", t.Subject, t.Predicate, t.Object)
			r, exists := seenChunk[t.SourceChunkID]
			if !exists {
				rr := resultFromChunk(*chunkPtr, 1.0, nil, nil, ptr(1.0))
				rr.RelatedEntities = []string{entity}
				rr.RelationshipPath = []string{path}
				seenChunk[t.SourceChunkID] = &rr
				order = append(order, t.SourceChunkID)
				continue
			}
			r.RelatedEntities = appendUnique(r.RelatedEntities, entity)
			r.RelationshipPath = appendUnique(r.RelationshipPath, path)
			score := float64(len(r.RelationshipPath))
			r.Score = score
			r.GraphScore = ptr(score)
		}
	}

	if len(order) == 0 {
		return e.queryVector(ctx, req, filter)
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		out = append(out, *seenChunk[id])
	}
	sortByScoreDesc(out)
	return out, nil
}

func flattenMeta(m model.ChunkMetadata) map[string]string {
	return map[string]string{
		"source":      m.Source,
		"source_type": string(m.SourceType),
		"language":    m.Language,
	}
}

func appendUnique(xs []string, x string) []string {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}

// queryMulti runs vector, bm25, and (if a graph store is configured and the
// vector backend supports graph fusion) graph concurrently and fuses the three rankings with Reciprocal Rank Fusion.
func (e *Engine) queryMulti(ctx context.Context, req Request, filter vector.Filter) ([]Result, error) {
	var vectorResults, bm25Results, graphResults []Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := e.queryVector(gctx, req, filter)
		vectorResults = r
		return err
	})
	g.Go(func() error {
		if !e.Keyword.IsInitialized() {
			return nil
		}
		r, err := e.queryBM25(gctx, req, filter)
		bm25Results = r
		return err
	})
	if e.Graph != nil && e.Vector.SupportsGraphFusion() {
		g.Go(func() error {
			r, err := e.queryGraph(gctx, req, filter)
			graphResults = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type fused struct {
		result Result
		score  float64
	}
	byID := map[string]*fused{}
	order := []string{}

	apply := func(results []Result) {
		for rank, r := range results {
			f, ok := byID[r.ChunkID]
			contribution := 1.0 / float64(rrfK+rank+1)
			if !ok {
				byID[r.ChunkID] = &fused{result: r, score: contribution}
				order = append(order, r.ChunkID)
				continue
			}
			f.score += contribution
			if r.VectorScore != nil {
				f.result.VectorScore = r.VectorScore
			}
			if r.BM25Score != nil {
				f.result.BM25Score = r.BM25Score
			}
			if r.GraphScore != nil {
				f.result.GraphScore = r.GraphScore
				f.result.RelatedEntities = r.RelatedEntities
				f.result.RelationshipPath = r.RelationshipPath
			}
		}
	}
	apply(vectorResults)
	apply(bm25Results)
	apply(graphResults)

	out := make([]Result, 0, len(order))
	for _, id := range order {
		f := byID[id]
		f.result.Score = f.score
		out = append(out, f.result)
	}
	sortByScoreDesc(out)
	return out, nil
}
