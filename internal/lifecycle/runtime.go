package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
)

// Runtime manages the runtime.json advertisement file: published once the
// server is ready to accept requests, removed on shutdown.
type Runtime struct {
	path   string
	record model.RuntimeRecord
}

// PublishRuntime writes runtime.json with a freshly minted instance_id, the
// way uuid.NewString() is used for job_id/instance_id generation throughout
// (internal/indexer, internal/daemon).
func PublishRuntime(stateDir string, mode model.RuntimeMode, projectRoot, bindHost string, port int) (*Runtime, error) {
	record := model.RuntimeRecord{
		SchemaVersion: model.RuntimeSchemaVersion,
		Mode:          mode,
		ProjectRoot:   projectRoot,
		InstanceID:    uuid.NewString(),
		BaseURL:       fmt.Sprintf("http://%s:%d", bindHost, port),
		BindHost:      bindHost,
		Port:          port,
		PID:           os.Getpid(),
		StartedAt:     time.Now().UTC(),
	}
	path := filepath.Join(stateDir, "runtime.json")
	if err := writeJSONAtomic(path, record); err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "writing runtime.json", err)
	}
	return &Runtime{path: path, record: record}, nil
}

// Record returns the published RuntimeRecord.
func (r *Runtime) Record() model.RuntimeRecord { return r.record }

// Remove deletes runtime.json as part of shutdown.
func (r *Runtime) Remove() error {
	err := os.Remove(r.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReadRuntime reads runtime.json for client discovery, treating a record
// whose pid is no longer alive as stale (returns nil, nil).
func ReadRuntime(stateDir string) (*model.RuntimeRecord, error) {
	path := filepath.Join(stateDir, "runtime.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec model.RuntimeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil
	}
	if !pidAlive(rec.PID) {
		return nil, nil
	}
	return &rec, nil
}
