// Package query implements C9, the query engine: five retrieval modes
// (vector, bm25, hybrid, graph, multi) fused over the three stores.
//
// Generalizes internal/mcp/searcher_coordinator.go's concurrent
// dual-searcher pattern (run the chromem and bleve searchers side by side,
// join before responding) from an update-time fan-out into a query-time one,
// using golang.org/x/sync/errgroup in place of its raw sync.WaitGroup +
// channel plumbing.
package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
	"github.com/agent-brain/core/internal/storage/graph"
	"github.com/agent-brain/core/internal/storage/keyword"
	"github.com/agent-brain/core/internal/storage/vector"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeBM25   Mode = "bm25"
	ModeHybrid Mode = "hybrid"
	ModeGraph  Mode = "graph"
	ModeMulti  Mode = "multi"
)

const (
	maxQueryTextLen = 1000
	defaultTopK     = 5
	maxTopK         = 50
	rrfK            = 60
)

// Request is the query(request) argument.
type Request struct {
	QueryText            string
	Mode                 Mode
	TopK                 int
	SimilarityThreshold  float64
	Alpha                float64
	SourceTypes          []string
	Languages            []string
	FilePaths            []string
}

// Result is one ranked hit, carrying whichever per-mode scores contributed
// to it; fields not produced by the request's mode are left at their zero
// value.
type Result struct {
	Text          string
	Source        string
	Score         float64
	VectorScore   *float64
	BM25Score     *float64
	GraphScore    *float64
	ChunkID       string
	SourceType    model.SourceType
	Language      string
	Metadata      model.ChunkMetadata

	RelatedEntities  []string
	RelationshipPath []string
}

// Response is the query(request) return value. BackendCapabilities reports
// whether the configured vector backend supports graph fusion: multi-mode
// silently drops the graph contributor on a non-reference backend rather
// than erroring, and this field is how a caller discovers that happened.
type Response struct {
	Results             []Result            `json:"results"`
	QueryTimeMs         int64               `json:"query_time_ms"`
	TotalResults        int                 `json:"total_results"`
	BackendCapabilities BackendCapabilities `json:"backend_capabilities"`
}

// BackendCapabilities reports what the active vector backend can do.
type BackendCapabilities struct {
	VectorBackend       string `json:"vector_backend"`
	SupportsGraphFusion bool   `json:"supports_graph_fusion"`
}

// IsReadyChecker reports whether the indexing coordinator currently has a
// job in flight; the query engine refuses to serve while one does.
type IsReadyChecker interface {
	IsIndexing() bool
}

// Engine drives the five query modes against the three stores.
type Engine struct {
	Vector   vector.Store
	Keyword  keyword.Store
	Graph    graph.Store
	Embedder Embedder

	TraversalDepth int // default graph_traversal_depth, 2 if unset

	Indexing IsReadyChecker
}

// Embedder is the narrow capability the query engine needs from C6: embed
// the query text once per request. Kept separate from embed.Embedder so
// this package doesn't import embed.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Query dispatches request to the selected mode, enforcing the shared
// validation and readiness gate first.
func (e *Engine) Query(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	if err := validate(&req); err != nil {
		return nil, err
	}
	if e.Indexing != nil && e.Indexing.IsIndexing() {
		return nil, apperr.New(apperr.NotReady, "an indexing job is running")
	}
	if !e.Vector.IsInitialized() {
		return nil, apperr.New(apperr.NotReady, "vector store is not initialized")
	}

	filter := buildFilter(req)

	var results []Result
	var err error
	switch req.Mode {
	case "", ModeVector:
		results, err = e.queryVector(ctx, req, filter)
	case ModeBM25:
		results, err = e.queryBM25(ctx, req, filter)
	case ModeHybrid:
		results, err = e.queryHybrid(ctx, req, filter)
	case ModeGraph:
		results, err = e.queryGraph(ctx, req, filter)
	case ModeMulti:
		results, err = e.queryMulti(ctx, req, filter)
	default:
		return nil, apperr.New(apperr.BadRequest, "unsupported mode: "+string(req.Mode))
	}
	if err != nil {
		return nil, err
	}

	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return &Response{
		Results:      results,
		QueryTimeMs:  time.Since(started).Milliseconds(),
		TotalResults: len(results),
		BackendCapabilities: BackendCapabilities{
			VectorBackend:       e.Vector.Name(),
			SupportsGraphFusion: e.Vector.SupportsGraphFusion(),
		},
	}, nil
}

func validate(req *Request) error {
	text := strings.TrimSpace(req.QueryText)
	if text == "" {
		return apperr.New(apperr.BadRequest, "query_text must not be empty")
	}
	if len(text) > maxQueryTextLen {
		return apperr.New(apperr.BadRequest, "query_text exceeds 1000 characters")
	}
	req.QueryText = text

	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	if req.TopK > maxTopK {
		req.TopK = maxTopK
	}
	if req.SimilarityThreshold < 0 || req.SimilarityThreshold > 1 {
		return apperr.New(apperr.BadRequest, "similarity_threshold must be in [0,1]")
	}
	if req.Alpha == 0 {
		req.Alpha = 0.5
	}
	if req.Alpha < 0 || req.Alpha > 1 {
		return apperr.New(apperr.BadRequest, "alpha must be in [0,1]")
	}
	return nil
}

func buildFilter(req Request) vector.Filter {
	f := vector.Filter{In: map[string][]string{}}
	if len(req.SourceTypes) > 0 {
		f.In["source_type"] = req.SourceTypes
	}
	if len(req.Languages) > 0 {
		f.In["language"] = req.Languages
	}
	if len(req.FilePaths) > 0 {
		f.In["source"] = req.FilePaths
	}
	if len(f.In) == 0 {
		return vector.Filter{}
	}
	return f
}

func (e *Engine) queryVector(ctx context.Context, req Request, filter vector.Filter) ([]Result, error) {
	hits, err := e.vectorSearch(ctx, req, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, resultFromChunk(h.Chunk, h.Score, &h.Score, nil, nil))
	}
	return out, nil
}

func (e *Engine) vectorSearch(ctx context.Context, req Request, filter vector.Filter) ([]vector.SearchResult, error) {
	qvec, err := e.Embedder.EmbedQuery(ctx, req.QueryText)
	if err != nil {
		return nil, err
	}
	return e.Vector.Search(ctx, qvec, req.TopK, req.SimilarityThreshold, filter)
}

func (e *Engine) queryBM25(ctx context.Context, req Request, filter vector.Filter) ([]Result, error) {
	if !e.Keyword.IsInitialized() {
		return nil, apperr.New(apperr.NotReady, "keyword store is not initialized")
	}
	hits, err := e.Keyword.Search(ctx, req.QueryText, req.TopK, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, resultFromChunk(h.Chunk, h.Score, nil, &h.Score, nil))
	}
	return out, nil
}

func resultFromChunk(c model.Chunk, score float64, vectorScore, bm25Score, graphScore *float64) Result {
	return Result{
		Text:        c.Text,
		Source:      c.Metadata.Source,
		Score:       score,
		VectorScore: vectorScore,
		BM25Score:   bm25Score,
		GraphScore:  graphScore,
		ChunkID:     c.ChunkID,
		SourceType:  c.Metadata.SourceType,
		Language:    c.Metadata.Language,
		Metadata:    c.Metadata,
	}
}

func sortByScoreDesc(results []Result) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}
