package vector

import (
	"context"

	"github.com/agent-brain/core/internal/apperr"
)

// NewStore selects and constructs the vector backend named by backend
// ("chromem" | "qdrant"), per Settings.StorageBackend / AGENT_BRAIN_STORAGE_BACKEND.
func NewStore(ctx context.Context, backend, dir string, dimensions int, qdrantHost string, qdrantPort int) (Store, error) {
	switch backend {
	case "", "chromem":
		return NewChromemStore(dir, dimensions)
	case "qdrant":
		return NewQdrantStore(ctx, qdrantHost, qdrantPort, dimensions)
	default:
		return nil, apperr.New(apperr.ConfigError, "unsupported storage_backend: "+backend)
	}
}
