package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/agent-brain/core/internal/apperr"
)

// Loader loads validated Settings for a project root via viper.New, with
// AGENT_BRAIN_ as the environment variable prefix and a
// ReadInConfig-tolerant-of-not-found pattern: a missing config.yml falls
// back to defaults rather than failing the load.
type Loader interface {
	Load() (*Settings, error)
}

type loader struct {
	projectRoot string
}

// NewLoader creates a Loader rooted at projectRoot; it reads
// <projectRoot>/.agent-brain/config.yml if present. This is deliberately a
// different path from StatePaths.StateDir (.claude/agent-brain or
// ~/.agent-brain): config.yml is a human-authored, checked-in file, while
// the state dir holds generated runtime state (lock.json, runtime.json,
// the stores) that belongs in a tool-owned directory instead.
func NewLoader(projectRoot string) Loader {
	return &loader{projectRoot: projectRoot}
}

func (l *loader) Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(l.projectRoot + "/.agent-brain")

	v.SetEnvPrefix("AGENT_BRAIN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range boundEnvKeys {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperr.Wrap(apperr.ConfigError, "reading config file", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "unmarshaling settings", err)
	}

	if err := Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

var boundEnvKeys = []string{
	"embedding_provider", "embedding_model", "embedding_dimensions",
	"embedding_endpoint", "embedding_api_key",
	"summarization_provider", "summarization_model", "summarization_api_key",
	"chunk_size", "chunk_overlap", "min_chunk_size", "max_chunk_size",
	"embedding_batch_size", "vector_write_batch_size",
	"default_top_k", "default_similarity_threshold", "default_alpha", "rrf_k",
	"enable_graph_index", "graph_store_type", "graph_max_triplets_per_chunk",
	"graph_use_code_metadata", "graph_use_llm_extraction", "graph_traversal_depth",
	"bind_host", "port_range_start", "port_range_end",
	"startup_timeout_s", "shutdown_timeout_s",
	"storage_backend", "qdrant_host", "qdrant_port", "mode", "state_dir",
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("embedding_provider", d.EmbeddingProvider)
	v.SetDefault("embedding_model", d.EmbeddingModel)
	v.SetDefault("embedding_dimensions", d.EmbeddingDimensions)
	v.SetDefault("embedding_endpoint", d.EmbeddingEndpoint)
	v.SetDefault("embedding_api_key", d.EmbeddingAPIKey)
	v.SetDefault("summarization_provider", d.SummarizationProvider)
	v.SetDefault("summarization_model", d.SummarizationModel)
	v.SetDefault("summarization_api_key", d.SummarizationAPIKey)

	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("chunk_overlap", d.ChunkOverlap)
	v.SetDefault("min_chunk_size", d.MinChunkSize)
	v.SetDefault("max_chunk_size", d.MaxChunkSize)

	v.SetDefault("embedding_batch_size", d.EmbeddingBatchSize)
	v.SetDefault("vector_write_batch_size", d.VectorWriteBatchSize)

	v.SetDefault("default_top_k", d.DefaultTopK)
	v.SetDefault("default_similarity_threshold", d.DefaultSimilarityThreshold)
	v.SetDefault("default_alpha", d.DefaultAlpha)
	v.SetDefault("rrf_k", d.RRFK)

	v.SetDefault("enable_graph_index", d.EnableGraphIndex)
	v.SetDefault("graph_store_type", d.GraphStoreType)
	v.SetDefault("graph_max_triplets_per_chunk", d.GraphMaxTripletsPerChunk)
	v.SetDefault("graph_use_code_metadata", d.GraphUseCodeMetadata)
	v.SetDefault("graph_use_llm_extraction", d.GraphUseLLMExtraction)
	v.SetDefault("graph_traversal_depth", d.GraphTraversalDepth)

	v.SetDefault("bind_host", d.BindHost)
	v.SetDefault("port_range_start", d.PortRangeStart)
	v.SetDefault("port_range_end", d.PortRangeEnd)
	v.SetDefault("startup_timeout_s", d.StartupTimeoutS)
	v.SetDefault("shutdown_timeout_s", d.ShutdownTimeoutS)

	v.SetDefault("code_patterns", d.CodePatterns)
	v.SetDefault("doc_patterns", d.DocPatterns)
	v.SetDefault("ignore_patterns", d.IgnorePatterns)

	v.SetDefault("storage_backend", d.StorageBackend)
	v.SetDefault("qdrant_host", d.QdrantHost)
	v.SetDefault("qdrant_port", d.QdrantPort)
	v.SetDefault("mode", d.Mode)
}
