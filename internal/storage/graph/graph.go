// Package graph implements C3's graph store: an append-only collection of
// GraphTriples with case-insensitive substring entity lookup and hop-bounded
// traversal, backed by an in-memory directed graph and persisted as JSON.
//
// Grounded on the original internal/graph.storage (atomic temp-then-rename
// JSON persistence) and internal/graph.searcher (graph.New with a directed,
// string-hashed github.com/dominikbraun/graph.Graph, plus an otter.Cache
// speeding up repeat lookups).
package graph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/maypok86/otter"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
)

const (
	storeFileName    = "graph_store.json"
	metadataFileName = "graph_metadata.json"
	schemaVersion    = "1.0"

	// entityCacheSize bounds the exact-match lookup cache; substring queries
	// still fall back to a full vertex scan, since otter only accelerates
	// lookups it has already seen.
	entityCacheSize = 4096
)

// Store is the C3 graph store contract from : add, triplets_for,
// persist, load, clear, counts. Entity match is case-insensitive substring.
type Store interface {
	Add(ctx context.Context, t model.GraphTriple) error
	TripletsFor(ctx context.Context, entity string, depth int) ([]model.GraphTriple, error)
	Persist(ctx context.Context) error
	Load(ctx context.Context) error
	Clear(ctx context.Context) error
	Counts(ctx context.Context) (entities, relationships int, err error)
}

type jsonStore struct {
	mu       sync.RWMutex
	dir      string
	triplets []model.GraphTriple
	g        graph.Graph[string, string]
	byExact  otter.Cache[string, []int]
}

type graphFile struct {
	SchemaVersion string             `json:"schema_version"`
	Triplets      []model.GraphTriple `json:"triplets"`
}

type metadataFile struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	EntityCount   int       `json:"entity_count"`
	RelationCount int       `json:"relationship_count"`
}

// NewStore builds a graph store persisting under dir (typically
// <state_dir>/graph_index/).
func NewStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "creating graph store directory", err)
	}
	cache, err := otter.MustBuilder[string, []int](entityCacheSize).Build()
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "building graph entity cache", err)
	}
	s := &jsonStore{
		dir:     dir,
		g:       graph.New(graph.StringHash, graph.Directed()),
		byExact: cache,
	}
	return s, nil
}

func (s *jsonStore) Add(ctx context.Context, t model.GraphTriple) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.triplets)
	s.triplets = append(s.triplets, t)

	_ = s.g.AddVertex(t.Subject)
	_ = s.g.AddVertex(t.Object)
	_ = s.g.AddEdge(t.Subject, t.Object, graph.EdgeAttribute("predicate", t.Predicate))

	s.indexEntity(t.Subject, idx)
	s.indexEntity(t.Object, idx)
	return nil
}

func (s *jsonStore) indexEntity(entity string, idx int) {
	key := strings.ToLower(entity)
	existing, _ := s.byExact.Get(key)
	s.byExact.Set(key, append(existing, idx))
}

// TripletsFor returns every triplet reachable within depth hops of an entity
// matching query as a case-insensitive substring, starting from every vertex
// that matches directly. Results are deduplicated by
// (subject,predicate,object,source_chunk_id).
func (s *jsonStore) TripletsFor(ctx context.Context, entity string, depth int) ([]model.GraphTriple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if depth <= 0 {
		depth = 1
	}
	needle := strings.ToLower(strings.TrimSpace(entity))
	if needle == "" {
		return nil, nil
	}

	seed := map[string]struct{}{}
	if exact, ok := s.byExact.Get(needle); ok {
		for _, idx := range exact {
			seed[s.triplets[idx].Subject] = struct{}{}
			seed[s.triplets[idx].Object] = struct{}{}
		}
	}
	adjacency, err := s.g.AdjacencyMap()
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "reading graph adjacency", err)
	}
	for vertex := range adjacency {
		if strings.Contains(strings.ToLower(vertex), needle) {
			seed[vertex] = struct{}{}
		}
	}
	if len(seed) == 0 {
		return nil, nil
	}

	visited := map[string]struct{}{}
	frontier := make([]string, 0, len(seed))
	for v := range seed {
		frontier = append(frontier, v)
		visited[v] = struct{}{}
	}

	seenTriplet := map[string]struct{}{}
	var out []model.GraphTriple
	collect := func(vertex string) {
		key := strings.ToLower(vertex)
		idxs, _ := s.byExact.Get(key)
		for _, idx := range idxs {
			t := s.triplets[idx]
			tk := t.Subject + "\x00" + t.Predicate + "\x00" + t.Object + "\x00" + t.SourceChunkID
			if _, dup := seenTriplet[tk]; dup {
				continue
			}
			seenTriplet[tk] = struct{}{}
			out = append(out, t)
		}
	}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, vertex := range frontier {
			collect(vertex)
			for neighbor := range adjacency[vertex] {
				if _, ok := visited[neighbor]; ok {
					continue
				}
				visited[neighbor] = struct{}{}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	for _, vertex := range frontier {
		collect(vertex)
	}

	return out, nil
}

func (s *jsonStore) Counts(ctx context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, err := s.g.Order()
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.StoreError, "counting graph vertices", err)
	}
	return order, len(s.triplets), nil
}

func (s *jsonStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triplets = nil
	s.g = graph.New(graph.StringHash, graph.Directed())
	s.byExact.Clear()
	for _, name := range []string{storeFileName, metadataFileName} {
		_ = os.Remove(filepath.Join(s.dir, name))
	}
	return nil
}

func (s *jsonStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	triplets := append([]model.GraphTriple(nil), s.triplets...)
	s.mu.RUnlock()

	if err := writeJSONAtomic(filepath.Join(s.dir, storeFileName), graphFile{
		SchemaVersion: schemaVersion,
		Triplets:      triplets,
	}); err != nil {
		return err
	}

	entities, relationships, err := s.Counts(ctx)
	if err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(s.dir, metadataFileName), metadataFile{
		SchemaVersion: schemaVersion,
		GeneratedAt:   time.Now(),
		EntityCount:   entities,
		RelationCount: relationships,
	})
}

func (s *jsonStore) Load(ctx context.Context) error {
	path := filepath.Join(s.dir, storeFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "reading graph store file", err)
	}

	var gf graphFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return apperr.Wrap(apperr.StoreError, "parsing graph store file", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.triplets = nil
	s.g = graph.New(graph.StringHash, graph.Directed())
	s.byExact.Clear()
	for _, t := range gf.Triplets {
		idx := len(s.triplets)
		s.triplets = append(s.triplets, t)
		_ = s.g.AddVertex(t.Subject)
		_ = s.g.AddVertex(t.Object)
		_ = s.g.AddEdge(t.Subject, t.Object, graph.EdgeAttribute("predicate", t.Predicate))
		s.indexEntity(t.Subject, idx)
		s.indexEntity(t.Object, idx)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "encoding graph JSON", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.Wrap(apperr.StoreError, "writing graph temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperr.Wrap(apperr.StoreError, "renaming graph temp file", err)
	}
	return nil
}
