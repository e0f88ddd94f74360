// Package model holds the data entities shared across every Agent Brain
// component: documents on their way in, chunks and embeddings as they move
// through the pipeline, triplets in the graph projection, and the three
// pieces of process-wide state (IndexingState, RuntimeRecord, LockRecord)
// the spec calls out as singletons with a single owning component.
package model

import "time"

// SourceType classifies a LoadedDocument / Chunk by what kind of content it holds.
type SourceType string

const (
	SourceDoc  SourceType = "doc"
	SourceCode SourceType = "code"
	SourceTest SourceType = "test"
)

// SymbolKind enumerates the code symbol shapes the chunker and graph
// extractor recognize.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolMethod    SymbolKind = "method"
	SymbolClass     SymbolKind = "class"
	SymbolType      SymbolKind = "type"
	SymbolInterface SymbolKind = "interface"
	SymbolImpl      SymbolKind = "impl"
)

// LoadedDocument is raw file content plus classification, produced by the
// document loader (C4) and consumed once by the chunkers (C5). Never persisted.
type LoadedDocument struct {
	Source     string // absolute path
	FileName   string
	Text       string
	SourceType SourceType
	Language   string // optional; empty if unknown
	FileHash   string // sha256 hex of Text
}

// ChunkMetadata carries the semantic attributes attached to a chunk. Only the
// fields relevant to the chunk's SourceType are populated; the rest are the
// zero value.
type ChunkMetadata struct {
	ChunkID      string
	Source       string
	ChunkIndex   int
	TotalChunks  int
	SourceType   SourceType
	Language     string

	// Code fields.
	SymbolName string
	SymbolKind SymbolKind
	StartLine  int
	EndLine    int
	Docstring  string
	Parameters []string
	ReturnType string
	Parent     string
	Imports    []string
	Summary    string

	// Prose fields.
	HeadingPath  []string
	SectionTitle string
}

// Chunk is a bounded, embeddable span of text or code. Invariant:
// 128 <= TokenCount <= 2048 (enforced by the chunkers).
type Chunk struct {
	ChunkID    string
	Text       string
	TokenCount int
	Metadata   ChunkMetadata
}

// IsCode reports whether this chunk came from a code file (as opposed to prose).
func (c Chunk) IsCode() bool {
	return c.Metadata.SourceType == SourceCode || c.Metadata.SourceType == SourceTest
}

// Embedding is a fixed-dimension vector belonging to one chunk.
type Embedding struct {
	ChunkID string
	Vector  []float32
}

// GraphTriple is an immutable (subject, predicate, object) fact. The graph
// store is append-only: deleting the originating chunk does not remove
// triplets it produced.
type GraphTriple struct {
	Subject       string
	SubjectType   string
	Predicate     string
	Object        string
	ObjectType    string
	SourceChunkID string
}

// IndexStatus is the lifecycle state of the single in-flight indexing job.
type IndexStatus string

const (
	StatusIdle      IndexStatus = "idle"
	StatusIndexing  IndexStatus = "indexing"
	StatusCompleted IndexStatus = "completed"
	StatusFailed    IndexStatus = "failed"
)

// IndexingState is the C8-owned singleton describing the current (or most
// recent) indexing job. Mutated only by the indexing coordinator under an
// exclusive guard; read by the request surface and query engine.
type IndexingState struct {
	CurrentJobID string
	Status       IndexStatus
	IsIndexing   bool
	FolderPath   string

	TotalDocuments     int
	ProcessedDocuments int
	TotalChunks        int
	TotalDocChunks     int
	TotalCodeChunks    int

	ProgressPercent float64
	StartedAt       time.Time
	CompletedAt     time.Time
	Error           string

	IndexedFolders     map[string]struct{}
	SupportedLanguages map[string]struct{}
}

// Snapshot returns a deep-enough copy safe to hand to a reader without
// holding the coordinator's lock.
func (s IndexingState) Snapshot() IndexingState {
	out := s
	out.IndexedFolders = cloneSet(s.IndexedFolders)
	out.SupportedLanguages = cloneSet(s.SupportedLanguages)
	return out
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

// RuntimeMode distinguishes a per-project daemon from the shared-scope one.
type RuntimeMode string

const (
	ModeProject RuntimeMode = "project"
	ModeShared  RuntimeMode = "shared"
)

// RuntimeRecord is the daemon's self-advertisement, written once the server
// is accepting requests and removed on clean shutdown.
type RuntimeRecord struct {
	SchemaVersion string      `json:"schema_version"`
	Mode          RuntimeMode `json:"mode"`
	ProjectRoot   string      `json:"project_root"`
	InstanceID    string      `json:"instance_id"`
	BaseURL       string      `json:"base_url"`
	BindHost      string      `json:"bind_host"`
	Port          int         `json:"port"`
	PID           int         `json:"pid"`
	StartedAt     time.Time   `json:"started_at"`
}

// LockRecord prevents concurrent daemons from sharing a state directory.
type LockRecord struct {
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
}

const RuntimeSchemaVersion = "1.0"
