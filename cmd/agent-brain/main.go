// Command agent-brain is the per-project retrieval daemon: it resolves the
// project root and its state directory, acquires the single-instance lock,
// constructs the indexing coordinator and query engine, and serves the HTTP
// request surface until a shutdown signal arrives.
//
// A cobra-based multi-subcommand CLI (daemon lifecycle split across
// `indexer start`/`stop`/`status`) is out of scope here: this binary has one
// mode, start-and-serve, so a thin flag.FlagSet replaces cobra entirely
// rather than forcing a multi-command shape onto a single-command daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agent-brain/core/internal/chunk"
	"github.com/agent-brain/core/internal/config"
	"github.com/agent-brain/core/internal/discovery"
	"github.com/agent-brain/core/internal/embed"
	"github.com/agent-brain/core/internal/indexing"
	"github.com/agent-brain/core/internal/lifecycle"
	"github.com/agent-brain/core/internal/model"
	"github.com/agent-brain/core/internal/query"
	"github.com/agent-brain/core/internal/server"
	graphstore "github.com/agent-brain/core/internal/storage/graph"
	"github.com/agent-brain/core/internal/storage/keyword"
	"github.com/agent-brain/core/internal/storage/vector"
)

var version = "dev"

func main() {
	var (
		rootFlag   = flag.String("root", "", "project root override (default: nearest VCS/project ancestor of cwd)")
		portFlag   = flag.Int("port", 0, "explicit bind port override (default: first free port in the configured range)")
		sharedFlag = flag.Bool("shared", false, "run in shared mode (~/.agent-brain instead of a per-project state dir)")
		verbose    = flag.Bool("verbose", false, "enable debug-level logging")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(*rootFlag, *portFlag, *sharedFlag); err != nil {
		log.Fatal().Err(err).Msg("agent-brain exited")
	}
}

func run(rootOverride string, explicitPort int, shared bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	projectRoot, err := config.ResolveProjectRoot(rootOverride, cwd)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	loader := config.NewLoader(projectRoot)
	settings, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if shared {
		settings.Mode = "shared"
	}
	if explicitPort != 0 {
		settings.ExplicitPort = explicitPort
	}

	statePaths, err := config.ResolveStatePaths(settings.Mode, projectRoot, settings.StateDir)
	if err != nil {
		return fmt.Errorf("resolving state paths: %w", err)
	}
	if err := os.MkdirAll(statePaths.StateDir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	lock, err := lifecycle.AcquireLock(statePaths.StateDir)
	if err != nil {
		return fmt.Errorf("acquiring instance lock: %w", err)
	}
	defer lock.Release()

	ctx := context.Background()

	embedder, err := embed.NewEmbedder(ctx, embed.Config{
		Provider:  settings.EmbeddingProvider,
		Endpoint:  settings.EmbeddingEndpoint,
		APIKey:    settings.EmbeddingAPIKey,
		Model:     settings.EmbeddingModel,
		Dimension: settings.EmbeddingDimensions,
	})
	if err != nil {
		return fmt.Errorf("constructing embedder: %w", err)
	}
	defer embedder.Close()

	bundle, err := embed.NewSummarizer(embed.SummarizerConfig{
		Provider: settings.SummarizationProvider,
		APIKey:   settings.SummarizationAPIKey,
		Model:    settings.SummarizationModel,
	})
	if err != nil {
		return fmt.Errorf("constructing summarizer: %w", err)
	}
	var (
		summarizer      embed.Summarizer
		tripleExtractor embed.TripleExtractor
	)
	if bundle != nil {
		summarizer = bundle
		tripleExtractor = bundle
	}

	vectorStore, err := vector.NewStore(ctx, settings.StorageBackend, statePaths.VectorDir, settings.EmbeddingDimensions, settings.QdrantHost, settings.QdrantPort)
	if err != nil {
		return fmt.Errorf("constructing vector store: %w", err)
	}
	keywordStore, err := keyword.NewStore(statePaths.KeywordDir)
	if err != nil {
		return fmt.Errorf("constructing keyword store: %w", err)
	}
	var graphStore graphstore.Store
	if settings.EnableGraphIndex {
		graphStore, err = graphstore.NewStore(statePaths.GraphDir)
		if err != nil {
			return fmt.Errorf("constructing graph store: %w", err)
		}
	}

	coordinator := indexing.NewCoordinator(indexing.Deps{
		Discover: func(rootDir string) (*discovery.Loader, error) {
			return discovery.New(rootDir, settings.CodePatterns, settings.DocPatterns, settings.IgnorePatterns)
		},
		ChunkOptions: chunkOptionsFrom(settings),
		CodeChunkLines:    settings.ChunkSize / 4,
		CodeChunkOverlap:  settings.ChunkOverlap / 4,
		CodeChunkMaxChars: settings.MaxChunkSize * 4,
		Summarizer:        summarizer,

		Embedder:             embedder,
		EmbeddingBatchSize:   settings.EmbeddingBatchSize,
		VectorWriteBatchSize: settings.VectorWriteBatchSize,

		Vector:  vectorStore,
		Keyword: keywordStore,
		Graph:   graphStore,

		EnableGraphIndex:         settings.EnableGraphIndex,
		GraphMaxTripletsPerChunk: settings.GraphMaxTripletsPerChunk,
		GraphUseCodeMetadata:     settings.GraphUseCodeMetadata,
		GraphUseLLMExtraction:    settings.GraphUseLLMExtraction,
		TripleExtractor:          tripleExtractor,

		Logger: log.Logger,
	}, nil)

	queryEngine := &query.Engine{
		Vector:         vectorStore,
		Keyword:        keywordStore,
		Graph:          graphStore,
		Embedder:       embedder,
		TraversalDepth: settings.GraphTraversalDepth,
		Indexing:       coordinator,
	}

	mode := model.ModeProject
	if settings.Mode == "shared" {
		mode = model.ModeShared
	}

	ln, boundPort, err := lifecycle.SelectPort(settings.BindHost, settings.ExplicitPort, settings.PortRangeStart, settings.PortRangeEnd)
	if err != nil {
		return fmt.Errorf("selecting bind port: %w", err)
	}

	runtime, err := lifecycle.PublishRuntime(statePaths.StateDir, mode, projectRoot, settings.BindHost, boundPort)
	if err != nil {
		return fmt.Errorf("publishing runtime record: %w", err)
	}
	defer runtime.Remove()

	srv := server.New(server.HealthInfo{
		Version:    version,
		Mode:       mode,
		InstanceID: runtime.Record().InstanceID,
	}, coordinator, queryEngine)

	log.Info().
		Str("project_root", projectRoot).
		Str("state_dir", statePaths.StateDir).
		Int("port", boundPort).
		Str("storage_backend", settings.StorageBackend).
		Msg("agent-brain ready")

	return lifecycle.Run(ctx, srv, ln, coordinator, settings.ShutdownTimeout())
}

func chunkOptionsFrom(s *config.Settings) chunk.Options {
	return chunk.Options{
		ChunkSize:    s.ChunkSize,
		ChunkOverlap: s.ChunkOverlap,
		MinChunkSize: s.MinChunkSize,
		MaxChunkSize: s.MaxChunkSize,

		GenerateSummaries: s.SummarizationProvider != "",
	}
}
