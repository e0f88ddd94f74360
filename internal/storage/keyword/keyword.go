// Package keyword implements the C3 keyword store: a persisted BM25
// inverted index over chunk text, built and queried on demand.
//
// Tokenization is delegated to bleve's standard English analyzer
// (github.com/blevesearch/bleve/v2/analysis/analyzer/standard), the same
// analyzer exact_searcher.go wires into its bleve mapping
// (buildBleveMapping's textMapping.Analyzer = "standard"). Scoring itself is
// computed directly against the BM25 formula rather than handed to bleve's
// own scorer, so the k1/b constants and the 3x-over-fetch filtering policy
// hold exactly rather than approximately -- bleve's built-in TF-IDF/BM25F
// scorer is tuned for free-text relevance, not for deterministic ranking.
package keyword

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
	"github.com/agent-brain/core/internal/storage/vector"
)

const (
	k1 = 1.5
	b  = 0.75
)

// ScoredHit is one BM25 result.
type ScoredHit struct {
	ChunkID string
	Chunk   model.Chunk
	Score   float64
}

// Store is the capability interface for the keyword index.
type Store interface {
	Build(ctx context.Context, chunks []model.Chunk) error
	Search(ctx context.Context, query string, topK int, filter vector.Filter) ([]ScoredHit, error)
	Reset(ctx context.Context) error
	IsInitialized() bool
	Count() int
}

// postings maps a term to the set of chunk ids containing it, with each
// chunk's term frequency within that document.
type postings struct {
	DocFreq int            `json:"doc_freq"`
	TermFq  map[string]int `json:"term_fq"` // chunk_id -> count
}

// docMeta is the persisted per-document record needed to recompute BM25 at
// query time plus reconstruct the chunk on a hit.
type docMeta struct {
	Chunk     model.Chunk `json:"chunk"`
	DocLength int         `json:"doc_length"` // token count post-tokenization
}

// bm25Store is the reference keyword store, persisted as postings.json +
// docmeta.json under <stateDir>/bm25_index/, mirroring the atomic-
// temp-then-rename write idiom used throughout the original storage layer.
type bm25Store struct {
	mu  sync.RWMutex
	dir string

	postings map[string]*postings // term -> postings
	docs     map[string]*docMeta  // chunk_id -> doc meta
	totalLen int64
	built    bool
}

// NewStore opens (or creates) a BM25 keyword store rooted at dir.
func NewStore(dir string) (Store, error) {
	s := &bm25Store{
		dir:      dir,
		postings: make(map[string]*postings),
		docs:     make(map[string]*docMeta),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "creating bm25 index directory", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *bm25Store) postingsPath() string { return filepath.Join(s.dir, "postings.json") }
func (s *bm25Store) docMetaPath() string  { return filepath.Join(s.dir, "docmeta.json") }

func (s *bm25Store) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.built
}

func (s *bm25Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Build tokenizes every chunk, computes per-term document frequencies, and
// persists the postings + doc-length table, replacing any prior content
// (this rebuilds the keyword store wholesale at the "keyword build" stage;
// there is no incremental update path).
func (s *bm25Store) Build(ctx context.Context, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	postingsByTerm := make(map[string]*postings)
	docs := make(map[string]*docMeta, len(chunks))
	var totalLen int64

	for _, c := range chunks {
		terms := tokenize(c.Text)
		termFq := make(map[string]int, len(terms))
		for _, t := range terms {
			termFq[t]++
		}
		docs[c.ChunkID] = &docMeta{Chunk: c, DocLength: len(terms)}
		totalLen += int64(len(terms))

		for term, fq := range termFq {
			p, ok := postingsByTerm[term]
			if !ok {
				p = &postings{TermFq: make(map[string]int)}
				postingsByTerm[term] = p
			}
			p.DocFreq++
			p.TermFq[c.ChunkID] = fq
		}
	}

	s.postings = postingsByTerm
	s.docs = docs
	s.totalLen = totalLen
	s.built = true

	return s.persistLocked()
}

// Search tokenizes the query, scores every candidate document by the BM25
// formula, and returns the top hits post metadata-filter. Because BM25
// cannot filter at score time, it over-fetches max(3*topK, topK) before
// applying the filter.
func (s *bm25Store) Search(ctx context.Context, query string, topK int, filter vector.Filter) ([]ScoredHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.built {
		return nil, apperr.New(apperr.NotReady, "keyword store not initialized")
	}
	if topK <= 0 {
		return nil, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	n := len(s.docs)
	if n == 0 {
		return nil, nil
	}
	avgdl := float64(s.totalLen) / float64(n)
	if avgdl == 0 {
		avgdl = 1
	}

	scores := make(map[string]float64)
	for _, term := range dedupe(terms) {
		p, ok := s.postings[term]
		if !ok {
			continue
		}
		idf := idfOf(n, p.DocFreq)
		for chunkID, fq := range p.TermFq {
			meta := s.docs[chunkID]
			dl := float64(meta.DocLength)
			denom := float64(fq) + k1*(1-b+b*dl/avgdl)
			if denom == 0 {
				continue
			}
			scores[chunkID] += idf * (float64(fq) * (k1 + 1)) / denom
		}
	}

	if len(scores) == 0 {
		return nil, nil
	}

	overFetch := topK * 3
	if overFetch < topK {
		overFetch = topK
	}

	type ranked struct {
		id    string
		score float64
	}
	all := make([]ranked, 0, len(scores))
	for id, sc := range scores {
		all = append(all, ranked{id, sc})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if len(all) > overFetch {
		all = all[:overFetch]
	}

	hits := make([]ScoredHit, 0, topK)
	for _, r := range all {
		meta := s.docs[r.id]
		if !filter.IsZero() {
			flat := flatten(meta.Chunk.Metadata)
			if !filter.Matches(flat) {
				continue
			}
		}
		hits = append(hits, ScoredHit{ChunkID: r.id, Chunk: meta.Chunk, Score: r.score})
		if len(hits) >= topK {
			break
		}
	}
	return hits, nil
}

// Reset deletes persisted files and clears in-memory state. Must succeed
// even over a partial/corrupt prior run.
func (s *bm25Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.postings = make(map[string]*postings)
	s.docs = make(map[string]*docMeta)
	s.totalLen = 0
	s.built = false

	_ = os.Remove(s.postingsPath())
	_ = os.Remove(s.docMetaPath())
	return nil
}

func (s *bm25Store) persistLocked() error {
	if err := writeJSONAtomic(s.postingsPath(), s.postings); err != nil {
		return apperr.Wrap(apperr.StoreError, "persisting bm25 postings", err)
	}
	if err := writeJSONAtomic(s.docMetaPath(), s.docs); err != nil {
		return apperr.Wrap(apperr.StoreError, "persisting bm25 doc metadata", err)
	}
	return nil
}

// load restores a previously persisted index, if present. Absence of either
// file is treated as "not yet built", never an error -- Reset must succeed
// even with partial state from a crashed prior run, and that tolerance
// extends naturally to load as well.
func (s *bm25Store) load() error {
	pdata, err := os.ReadFile(s.postingsPath())
	if err != nil {
		return nil
	}
	ddata, err := os.ReadFile(s.docMetaPath())
	if err != nil {
		return nil
	}
	var postingsByTerm map[string]*postings
	if err := json.Unmarshal(pdata, &postingsByTerm); err != nil {
		return nil
	}
	var docs map[string]*docMeta
	if err := json.Unmarshal(ddata, &docs); err != nil {
		return nil
	}
	var totalLen int64
	for _, d := range docs {
		totalLen += int64(d.DocLength)
	}
	s.postings = postingsByTerm
	s.docs = docs
	s.totalLen = totalLen
	s.built = len(docs) > 0
	return nil
}

func idfOf(n, docFreq int) float64 {
	// Classical BM25 IDF with the +1 smoothing so common terms never go
	// negative for small corpora.
	return math.Log(1 + (float64(n)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
}

// textAnalyzer is bleve's standard English analyzer, built once and shared
// across every tokenize call -- it holds no per-document state.
var textAnalyzer = sync.OnceValue(func() analysis.Analyzer {
	cache := registry.NewCache()
	an, err := cache.AnalyzerNamed(standard.Name)
	if err != nil {
		// The standard analyzer is registered by importing the package;
		// this can only fail if the bleve registry itself is broken.
		panic(err)
	}
	return an
})

func tokenize(text string) []string {
	tokens := textAnalyzer().Analyze([]byte(text))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, string(t.Term))
	}
	return out
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// flatten mirrors chromem.go's encodeMetadata flattening so vector.Filter
// (source/source_type/language eq/in/and) applies identically across both
// stores.
func flatten(m model.ChunkMetadata) map[string]string {
	return map[string]string{
		"source":      m.Source,
		"source_type": string(m.SourceType),
		"language":    m.Language,
	}
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
