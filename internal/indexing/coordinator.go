// Package indexing implements C8, the indexing coordinator: the single
// in-flight pipeline that turns a folder on disk into populated vector,
// keyword, and graph stores, reporting progress across six named bands.
//
// Generalizes internal/indexer.Indexer / indexer_v2.go's
// goroutine-plus-ProgressReporter shape (see internal/indexer/progress.go)
// into an explicit percent-banded state machine, and internal/indexer/daemon.Actor's
// single-in-flight-job guard (atomic isIndexing + cancellable context) into
// a sync.Mutex-guarded model.IndexingState plus a context.CancelFunc, since
// this daemon has no gRPC job stream to drive progress through -- callers
// poll GetStatus instead.
package indexing

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/chunk"
	"github.com/agent-brain/core/internal/discovery"
	"github.com/agent-brain/core/internal/embed"
	"github.com/agent-brain/core/internal/model"
	graphstore "github.com/agent-brain/core/internal/storage/graph"
	"github.com/agent-brain/core/internal/storage/keyword"
	"github.com/agent-brain/core/internal/storage/vector"
	"github.com/agent-brain/core/internal/triplet"
)

// Request is the start_indexing argument  /index and
// /index/add bodies carry. Reset distinguishes the two endpoints: /index
// resets the stores first, /index/add never does.
type Request struct {
	FolderPath   string
	Recursive    bool
	IncludeCode  bool
	ChunkSize    int // 0 = use the configured default
	ChunkOverlap int // 0 = use the configured default
	Reset        bool
}

// Deps are the already-constructed collaborators a Coordinator drives. All
// fields are required except Summarizer/TripleExtractor and Graph, which may
// be nil to disable the optional code-summary step and the graph stage
// respectively (summarization_provider unset, enable_graph_index=false).
type Deps struct {
	Discover func(rootDir string) (*discovery.Loader, error)

	ChunkOptions      chunk.Options
	CodeChunkLines    int
	CodeChunkOverlap  int
	CodeChunkMaxChars int
	Summarizer        chunk.Summarizer

	Embedder              embed.Embedder
	EmbeddingBatchSize    int
	VectorWriteBatchSize  int

	Vector  vector.Store
	Keyword keyword.Store
	Graph   graphstore.Store

	EnableGraphIndex         bool
	GraphMaxTripletsPerChunk int
	GraphUseCodeMetadata     bool
	GraphUseLLMExtraction    bool
	TripleExtractor          triplet.LLMExtractor

	Logger zerolog.Logger
}

// Coordinator owns the single in-flight indexing job and the IndexingState
// singleton. Zero value is not usable; construct with NewCoordinator.
type Coordinator struct {
	deps    Deps
	metrics *metrics

	mu     sync.Mutex
	state  model.IndexingState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator builds a Coordinator. reg may be nil to register metrics
// against prometheus.DefaultRegisterer.
func NewCoordinator(deps Deps, reg prometheus.Registerer) *Coordinator {
	return &Coordinator{
		deps:    deps,
		metrics: newMetrics(reg),
		state: model.IndexingState{
			Status:             model.StatusIdle,
			IndexedFolders:     map[string]struct{}{},
			SupportedLanguages: map[string]struct{}{},
		},
	}
}

// GetStatus returns a snapshot of the current (or most recent) job's state.
func (c *Coordinator) GetStatus() model.IndexingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// IsIndexing implements query.IsReadyChecker: the query engine's readiness
// gate consults this before serving any mode
func (c *Coordinator) IsIndexing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsIndexing
}

// StartIndexing validates the request, assigns a job id, and launches the
// pipeline in a goroutine, returning before any stage has run. Fails with
// AlreadyIndexing if a job is already in flight.
func (c *Coordinator) StartIndexing(req Request) (string, error) {
	if req.FolderPath == "" || !filepath.IsAbs(req.FolderPath) {
		return "", apperr.New(apperr.BadRequest, "folder_path must be an absolute path")
	}

	c.mu.Lock()
	if c.state.IsIndexing {
		c.mu.Unlock()
		return "", apperr.New(apperr.AlreadyIndexing, "an indexing job is already in flight")
	}

	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	c.state = model.IndexingState{
		CurrentJobID:       jobID,
		Status:             model.StatusIndexing,
		IsIndexing:         true,
		FolderPath:         req.FolderPath,
		StartedAt:          time.Now(),
		IndexedFolders:     cloneOrNew(c.state.IndexedFolders),
		SupportedLanguages: cloneOrNew(c.state.SupportedLanguages),
	}
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.runJob(jobCtx, jobID, req)
	}()

	return jobID, nil
}

// Stop implements lifecycle.Drainer: it cancels the in-flight job (if any)
// and blocks until it yields at its next suspension point, or ctx expires.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears all three stores and the state counters. It refuses while a
// job is in flight
func (c *Coordinator) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.state.IsIndexing {
		c.mu.Unlock()
		return apperr.New(apperr.AlreadyIndexing, "cannot reset while an indexing job is running")
	}
	c.mu.Unlock()

	if err := c.deps.Vector.Reset(ctx); err != nil {
		return err
	}
	if err := c.deps.Keyword.Reset(ctx); err != nil {
		return err
	}
	if c.deps.Graph != nil {
		if err := c.deps.Graph.Clear(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.state = model.IndexingState{
		Status:             model.StatusIdle,
		IndexedFolders:     map[string]struct{}{},
		SupportedLanguages: map[string]struct{}{},
	}
	c.mu.Unlock()
	return nil
}

func cloneOrNew(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// setProgress updates progress/counters under lock and mirrors them onto the
// prometheus gauges, matching the job only if it is still the current one
// (a late-arriving update from a superseded job is silently dropped, though
// in practice the single-in-flight guard makes that impossible).
func (c *Coordinator) setProgress(jobID string, percent float64, mutate func(*model.IndexingState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.CurrentJobID != jobID {
		return
	}
	c.state.ProgressPercent = percent
	if mutate != nil {
		mutate(&c.state)
	}
	c.metrics.progressGauge.Set(percent)
	c.metrics.documentsGauge.Set(float64(c.state.TotalDocuments))
	c.metrics.chunksGauge.Set(float64(c.state.TotalChunks))
}

func (c *Coordinator) fail(jobID string, stage string, err error) {
	log := c.deps.Logger.With().Str("job_id", jobID).Str("stage", stage).Logger()
	log.Error().Err(err).Msg("indexing stage failed")

	c.mu.Lock()
	if c.state.CurrentJobID == jobID {
		c.state.Status = model.StatusFailed
		c.state.Error = err.Error()
		c.state.IsIndexing = false
		c.state.CompletedAt = time.Now()
	}
	c.mu.Unlock()
	c.metrics.jobsTotal.WithLabelValues("failed").Inc()
}

// runJob drives the six progress-banded stages in order
// A failure at any stage sets status=failed and leaves whatever was already
// persisted in place; it never rolls back prior stages.
func (c *Coordinator) runJob(ctx context.Context, jobID string, req Request) {
	started := time.Now()
	log := c.deps.Logger.With().Str("job_id", jobID).Str("folder_path", req.FolderPath).Logger()
	log.Info().Msg("indexing job started")

	if req.Reset {
		if err := c.resetStoresOnly(ctx); err != nil {
			c.fail(jobID, "reset", err)
			return
		}
	}

	// Stage 1: load, 0-20%.
	loader, err := c.deps.Discover(req.FolderPath)
	if err != nil {
		c.fail(jobID, "load", err)
		return
	}
	docs, warnings, err := loader.Load()
	if err != nil {
		c.fail(jobID, "load", err)
		return
	}
	for _, w := range warnings {
		log.Warn().Str("path", w.Path).Str("reason", w.Reason).Msg("skipped file during load")
	}
	docs = filterDocs(docs, req)
	c.setProgress(jobID, 20, func(s *model.IndexingState) {
		s.TotalDocuments = len(docs)
		s.IndexedFolders[req.FolderPath] = struct{}{}
	})
	log.Info().Int("documents", len(docs)).Msg("load stage complete")

	if ctxDone(ctx) {
		c.fail(jobID, "load", ctx.Err())
		return
	}

	// Stage 2: chunk, 20-50%.
	chunkOpts := c.deps.ChunkOptions
	if req.ChunkSize > 0 {
		chunkOpts.ChunkSize = req.ChunkSize
	}
	if req.ChunkOverlap > 0 {
		chunkOpts.ChunkOverlap = req.ChunkOverlap
	}
	proseChunker := chunk.NewProseChunker(chunkOpts)
	codeChunker := chunk.NewCodeChunker(chunkOpts, c.deps.CodeChunkLines, c.deps.CodeChunkOverlap, c.deps.CodeChunkMaxChars, c.deps.Summarizer)

	var chunks []model.Chunk
	languages := map[string]struct{}{}
	for i, doc := range docs {
		if ctxDone(ctx) {
			c.fail(jobID, "chunk", ctx.Err())
			return
		}
		var docChunks []model.Chunk
		if doc.IsCode() {
			docChunks = codeChunker.Chunk(ctx, doc)
			if doc.Language != "" {
				languages[doc.Language] = struct{}{}
			}
		} else {
			docChunks = proseChunker.Chunk(doc)
		}
		chunks = append(chunks, docChunks...)

		percent := 20 + 30*float64(i+1)/float64(maxInt(len(docs), 1))
		c.setProgress(jobID, percent, func(s *model.IndexingState) {
			s.ProcessedDocuments = i + 1
		})
	}
	totalDoc, totalCode := countByKind(chunks)
	c.setProgress(jobID, 50, func(s *model.IndexingState) {
		s.TotalChunks = len(chunks)
		s.TotalDocChunks = totalDoc
		s.TotalCodeChunks = totalCode
		for lang := range languages {
			s.SupportedLanguages[lang] = struct{}{}
		}
	})
	log.Info().Int("chunks", len(chunks)).Msg("chunk stage complete")

	if len(chunks) == 0 {
		c.complete(jobID, started)
		return
	}

	// Stage 3: embed, 50-90%.
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := embed.EmbedChunksWithProgress(ctx, c.deps.Embedder, texts, c.deps.EmbeddingBatchSize, func(processed, total int, stage string) {
		percent := 50 + 40*float64(processed)/float64(maxInt(total, 1))
		c.setProgress(jobID, percent, nil)
	})
	if err != nil {
		c.fail(jobID, "embed", err)
		return
	}
	embeddings := make([]model.Embedding, len(chunks))
	for i, ch := range chunks {
		embeddings[i] = model.Embedding{ChunkID: ch.ChunkID, Vector: vectors[i]}
	}
	c.setProgress(jobID, 90, nil)
	log.Info().Int("embeddings", len(embeddings)).Msg("embed stage complete")

	if ctxDone(ctx) {
		c.fail(jobID, "embed", ctx.Err())
		return
	}

	// Stage 4: vector upsert, 90-95%.
	batchSize := c.deps.VectorWriteBatchSize
	if batchSize <= 0 || batchSize > vector.UpsertBatchSize {
		batchSize = vector.UpsertBatchSize
	}
	for start := 0; start < len(chunks); start += batchSize {
		end := minInt(start+batchSize, len(chunks))
		if err := c.deps.Vector.Upsert(ctx, embeddings[start:end], chunks[start:end]); err != nil {
			c.fail(jobID, "vector_upsert", err)
			return
		}
		percent := 90 + 5*float64(end)/float64(maxInt(len(chunks), 1))
		c.setProgress(jobID, percent, nil)
	}
	log.Info().Msg("vector upsert stage complete")

	if ctxDone(ctx) {
		c.fail(jobID, "vector_upsert", ctx.Err())
		return
	}

	// Stage 5: keyword build, 95-97%.
	if err := c.deps.Keyword.Build(ctx, chunks); err != nil {
		c.fail(jobID, "keyword_build", err)
		return
	}
	c.setProgress(jobID, 97, nil)
	log.Info().Msg("keyword build stage complete")

	// Stage 6: graph build, 97-100%, conditional.
	if c.deps.EnableGraphIndex && c.deps.Graph != nil {
		extractor := triplet.New(c.deps.GraphMaxTripletsPerChunk, c.deps.GraphUseCodeMetadata, c.deps.GraphUseLLMExtraction, c.deps.TripleExtractor)
		for i, ch := range chunks {
			if ctxDone(ctx) {
				c.fail(jobID, "graph_build", ctx.Err())
				return
			}
			for _, t := range extractor.Extract(ctx, ch) {
				if err := c.deps.Graph.Add(ctx, t); err != nil {
					c.fail(jobID, "graph_build", err)
					return
				}
			}
			percent := 97 + 3*float64(i+1)/float64(maxInt(len(chunks), 1))
			c.setProgress(jobID, percent, nil)
		}
		if err := c.deps.Graph.Persist(ctx); err != nil {
			c.fail(jobID, "graph_build", err)
			return
		}
		log.Info().Msg("graph build stage complete")
	}

	c.complete(jobID, started)
}

func (c *Coordinator) complete(jobID string, started time.Time) {
	c.mu.Lock()
	if c.state.CurrentJobID == jobID {
		c.state.Status = model.StatusCompleted
		c.state.IsIndexing = false
		c.state.ProgressPercent = 100
		c.state.CompletedAt = time.Now()
	}
	c.mu.Unlock()

	c.metrics.jobsTotal.WithLabelValues("completed").Inc()
	c.metrics.jobDuration.Observe(time.Since(started).Seconds())
	c.deps.Logger.Info().Str("job_id", jobID).Dur("duration", time.Since(started)).Msg("indexing job completed")
}

func (c *Coordinator) resetStoresOnly(ctx context.Context) error {
	if err := c.deps.Vector.Reset(ctx); err != nil {
		return err
	}
	if err := c.deps.Keyword.Reset(ctx); err != nil {
		return err
	}
	if c.deps.Graph != nil {
		return c.deps.Graph.Clear(ctx)
	}
	return nil
}

func filterDocs(docs []model.LoadedDocument, req Request) []model.LoadedDocument {
	out := docs[:0:0]
	for _, d := range docs {
		if !req.IncludeCode && d.SourceType != model.SourceDoc {
			continue
		}
		if !req.Recursive && filepath.Dir(d.Source) != filepath.Clean(req.FolderPath) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func countByKind(chunks []model.Chunk) (docChunks, codeChunks int) {
	for _, c := range chunks {
		if c.IsCode() {
			codeChunks++
		} else {
			docChunks++
		}
	}
	return
}

func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
