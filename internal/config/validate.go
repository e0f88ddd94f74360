package config

import (
	"fmt"
	"strings"

	"github.com/agent-brain/core/internal/apperr"
)

var validEmbeddingProviders = map[string]bool{
	"local": true, "mock": true, "openai": true, "gemini": true,
}

var validSummarizationProviders = map[string]bool{
	"": true, "mock": true, "anthropic": true,
}

var validStorageBackends = map[string]bool{
	"chromem": true, "qdrant": true,
}

var validGraphStoreTypes = map[string]bool{
	"reference": true, "embedded": true,
}

// Validate checks a Settings value for internal consistency, generalizing
// the original config.Validate/validateEmbedding/validateChunking/
// validateStorage split (one sub-validator per concern, errors aggregated
// via apperr.Join instead of the original local joinErrors).
func Validate(s *Settings) error {
	var errs []error
	errs = append(errs, validateEmbedding(s)...)
	errs = append(errs, validateSummarization(s)...)
	errs = append(errs, validateChunking(s)...)
	errs = append(errs, validateQueryDefaults(s)...)
	errs = append(errs, validateGraph(s)...)
	errs = append(errs, validateLifecycle(s)...)
	errs = append(errs, validateStorage(s)...)
	return apperr.Join(apperr.ConfigError, errs)
}

func validateEmbedding(s *Settings) []error {
	var errs []error
	provider := strings.ToLower(s.EmbeddingProvider)
	if !validEmbeddingProviders[provider] {
		errs = append(errs, fmt.Errorf("invalid embedding_provider %q (valid: local, mock, openai, gemini)", s.EmbeddingProvider))
	}
	if strings.TrimSpace(s.EmbeddingModel) == "" {
		errs = append(errs, fmt.Errorf("embedding_model is required"))
	}
	if s.EmbeddingDimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding_dimensions must be positive, got %d", s.EmbeddingDimensions))
	}
	return errs
}

func validateSummarization(s *Settings) []error {
	var errs []error
	provider := strings.ToLower(s.SummarizationProvider)
	if !validSummarizationProviders[provider] {
		errs = append(errs, fmt.Errorf("invalid summarization_provider %q (valid: \"\", mock, anthropic)", s.SummarizationProvider))
	}
	return errs
}

func validateChunking(s *Settings) []error {
	var errs []error
	if s.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", s.ChunkSize))
	}
	if s.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunk_overlap cannot be negative, got %d", s.ChunkOverlap))
	}
	if s.MinChunkSize <= 0 || s.MinChunkSize > s.MaxChunkSize {
		errs = append(errs, fmt.Errorf("min_chunk_size (%d) must be positive and <= max_chunk_size (%d)", s.MinChunkSize, s.MaxChunkSize))
	}
	if s.MaxChunkSize > 2048 {
		errs = append(errs, fmt.Errorf("max_chunk_size (%d) must not exceed 2048", s.MaxChunkSize))
	}
	if s.ChunkOverlap >= s.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk_overlap (%d) should be less than chunk_size (%d)", s.ChunkOverlap, s.ChunkSize))
	}
	if s.EmbeddingBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding_batch_size must be positive, got %d", s.EmbeddingBatchSize))
	}
	if s.VectorWriteBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("vector_write_batch_size must be positive, got %d", s.VectorWriteBatchSize))
	}
	return errs
}

func validateQueryDefaults(s *Settings) []error {
	var errs []error
	if s.DefaultTopK <= 0 || s.DefaultTopK > 50 {
		errs = append(errs, fmt.Errorf("default_top_k must be in [1,50], got %d", s.DefaultTopK))
	}
	if s.DefaultSimilarityThreshold < 0 || s.DefaultSimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("default_similarity_threshold must be in [0,1], got %v", s.DefaultSimilarityThreshold))
	}
	if s.DefaultAlpha < 0 || s.DefaultAlpha > 1 {
		errs = append(errs, fmt.Errorf("default_alpha must be in [0,1], got %v", s.DefaultAlpha))
	}
	if s.RRFK <= 0 {
		errs = append(errs, fmt.Errorf("rrf_k must be positive, got %d", s.RRFK))
	}
	return errs
}

func validateGraph(s *Settings) []error {
	var errs []error
	if !validGraphStoreTypes[s.GraphStoreType] {
		errs = append(errs, fmt.Errorf("invalid graph_store_type %q (valid: reference, embedded)", s.GraphStoreType))
	}
	if s.GraphMaxTripletsPerChunk <= 0 {
		errs = append(errs, fmt.Errorf("graph_max_triplets_per_chunk must be positive, got %d", s.GraphMaxTripletsPerChunk))
	}
	if s.GraphTraversalDepth <= 0 || s.GraphTraversalDepth > 10 {
		errs = append(errs, fmt.Errorf("graph_traversal_depth must be in [1,10], got %d", s.GraphTraversalDepth))
	}
	return errs
}

func validateLifecycle(s *Settings) []error {
	var errs []error
	if s.PortRangeStart <= 0 || s.PortRangeEnd < s.PortRangeStart {
		errs = append(errs, fmt.Errorf("invalid port range [%d,%d]", s.PortRangeStart, s.PortRangeEnd))
	}
	if s.StartupTimeoutS <= 0 {
		errs = append(errs, fmt.Errorf("startup_timeout_s must be positive, got %d", s.StartupTimeoutS))
	}
	if s.ShutdownTimeoutS <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout_s must be positive, got %d", s.ShutdownTimeoutS))
	}
	return errs
}

func validateStorage(s *Settings) []error {
	var errs []error
	if !validStorageBackends[s.StorageBackend] {
		errs = append(errs, fmt.Errorf("invalid storage_backend %q (valid: chromem, qdrant)", s.StorageBackend))
	}
	return errs
}
