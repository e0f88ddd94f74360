// Package config implements C1, the config / project resolver: locating the
// project root, deriving the per-project state directory and its sibling
// store directories, and loading the flat validated settings structure this
// daemon runs on. Adapted from internal/config, which used the same
// viper-based loader/validator shape for a narrower settings surface.
package config

import "time"

// Settings is the flat validated structure every subsystem reads its
// configuration from.
type Settings struct {
	// Embedding / summarization provider selection.
	EmbeddingProvider      string `mapstructure:"embedding_provider"`
	EmbeddingModel         string `mapstructure:"embedding_model"`
	EmbeddingDimensions    int    `mapstructure:"embedding_dimensions"`
	EmbeddingEndpoint      string `mapstructure:"embedding_endpoint"`
	EmbeddingAPIKey        string `mapstructure:"embedding_api_key"`
	SummarizationProvider  string `mapstructure:"summarization_provider"`
	SummarizationModel     string `mapstructure:"summarization_model"`
	SummarizationAPIKey    string `mapstructure:"summarization_api_key"`

	// Chunker thresholds, in tokens.
	ChunkSize     int `mapstructure:"chunk_size"`
	ChunkOverlap  int `mapstructure:"chunk_overlap"`
	MinChunkSize  int `mapstructure:"min_chunk_size"`
	MaxChunkSize  int `mapstructure:"max_chunk_size"`

	// Throughput knobs.
	EmbeddingBatchSize    int `mapstructure:"embedding_batch_size"`
	VectorWriteBatchSize  int `mapstructure:"vector_write_batch_size"`

	// Query defaults.
	DefaultTopK                 int     `mapstructure:"default_top_k"`
	DefaultSimilarityThreshold  float64 `mapstructure:"default_similarity_threshold"`
	DefaultAlpha                float64 `mapstructure:"default_alpha"`
	RRFK                        int     `mapstructure:"rrf_k"`

	// Graph toggles.
	EnableGraphIndex          bool   `mapstructure:"enable_graph_index"`
	GraphStoreType            string `mapstructure:"graph_store_type"`
	GraphMaxTripletsPerChunk  int    `mapstructure:"graph_max_triplets_per_chunk"`
	GraphUseCodeMetadata      bool   `mapstructure:"graph_use_code_metadata"`
	GraphUseLLMExtraction     bool   `mapstructure:"graph_use_llm_extraction"`
	GraphTraversalDepth       int    `mapstructure:"graph_traversal_depth"`

	// Lifecycle knobs.
	BindHost         string `mapstructure:"bind_host"`
	PortRangeStart   int    `mapstructure:"port_range_start"`
	PortRangeEnd     int    `mapstructure:"port_range_end"`
	StartupTimeoutS  int    `mapstructure:"startup_timeout_s"`
	ShutdownTimeoutS int    `mapstructure:"shutdown_timeout_s"`

	// File discovery (ambient, not in the table but required to drive C4;
	// generalizes the original PathsConfig).
	CodePatterns   []string `mapstructure:"code_patterns"`
	DocPatterns    []string `mapstructure:"doc_patterns"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`

	// Storage backend selection (AGENT_BRAIN_STORAGE_BACKEND).
	StorageBackend string `mapstructure:"storage_backend"`
	QdrantHost     string `mapstructure:"qdrant_host"`
	QdrantPort     int    `mapstructure:"qdrant_port"`

	// Mode + explicit overrides.
	Mode         string `mapstructure:"mode"` // "project" | "shared"
	ExplicitPort int    `mapstructure:"explicit_port"`
	StateDir     string `mapstructure:"state_dir"` // AGENT_BRAIN_STATE_DIR override
}

func (s Settings) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutS) * time.Second
}

func (s Settings) StartupTimeout() time.Duration {
	return time.Duration(s.StartupTimeoutS) * time.Second
}

// Default returns the baseline settings: concrete defaults for every field,
// chosen to match the reference deployment's behavior (384-dim local
// embeddings, graph index on, a modest lifecycle port range).
func Default() *Settings {
	return &Settings{
		EmbeddingProvider:     "local",
		EmbeddingModel:        "BAAI/bge-small-en-v1.5",
		EmbeddingDimensions:   384,
		SummarizationProvider: "",
		SummarizationModel:    "",

		ChunkSize:    512,
		ChunkOverlap: 64,
		MinChunkSize: 128,
		MaxChunkSize: 2048,

		EmbeddingBatchSize:   100,
		VectorWriteBatchSize: 500,

		DefaultTopK:                5,
		DefaultSimilarityThreshold: 0.0,
		DefaultAlpha:               0.5,
		RRFK:                       60,

		EnableGraphIndex:         true,
		GraphStoreType:           "reference",
		GraphMaxTripletsPerChunk: 20,
		GraphUseCodeMetadata:     true,
		GraphUseLLMExtraction:    false,
		GraphTraversalDepth:      2,

		BindHost:         "127.0.0.1",
		PortRangeStart:   27100,
		PortRangeEnd:     27199,
		StartupTimeoutS:  30,
		ShutdownTimeoutS: 10,

		CodePatterns: []string{
			"**/*.go", "**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx",
			"**/*.py", "**/*.rs", "**/*.c", "**/*.cpp", "**/*.cc",
			"**/*.h", "**/*.hpp", "**/*.php", "**/*.rb", "**/*.java",
		},
		DocPatterns: []string{"**/*.md", "**/*.rst", "**/*.txt"},
		IgnorePatterns: []string{
			"node_modules/**", "vendor/**", ".git/**", "dist/**",
			"build/**", "target/**", "__pycache__/**",
		},

		StorageBackend: "chromem",
		QdrantHost:     "127.0.0.1",
		QdrantPort:     6334,
		Mode:           "project",
	}
}
