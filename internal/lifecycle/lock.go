// Package lifecycle implements C2: the single-instance lock, port
// allocation, runtime-file advertisement, and graceful-shutdown sequence.
// Grounded on internal/daemon (gofrs/flock for the actual OS-level lock,
// the same atomic-write-then-rename persistence idiom as
// internal/graph/storage.go) but generalized from a Unix-socket singleton
// check to a PID-liveness lock.json contract, since that file -- not a
// socket -- is the documented external interface.
package lifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
)

// Lock represents a held single-instance lock for one state directory.
type Lock struct {
	path string
	flk  *flock.Flock
}

// AcquireLock reads lock.json, fails with AlreadyRunning if the pid in it
// is alive, otherwise treats it as stale, removes it, and atomically
// creates a fresh lock for the current pid.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "creating state directory", err)
	}
	lockPath := filepath.Join(stateDir, "lock.json")

	if existing, err := readLockRecord(lockPath); err == nil && existing != nil {
		if pidAlive(existing.PID) {
			return nil, apperr.New(apperr.AlreadyRunning, "a live daemon already holds the lock for this project")
		}
		_ = os.Remove(lockPath)
	}

	flk := flock.New(lockPath + ".flock")
	locked, err := flk.TryLock()
	if err != nil {
		return nil, apperr.Wrap(apperr.AlreadyRunning, "acquiring file lock", err)
	}
	if !locked {
		return nil, apperr.New(apperr.AlreadyRunning, "a live daemon already holds the lock for this project")
	}

	record := model.LockRecord{PID: os.Getpid(), CreatedAt: time.Now().UTC()}
	if err := writeJSONAtomic(lockPath, record); err != nil {
		_ = flk.Unlock()
		return nil, apperr.Wrap(apperr.ConfigError, "writing lock.json", err)
	}

	return &Lock{path: lockPath, flk: flk}, nil
}

// Release deletes lock.json and releases the underlying OS-level lock,
// as part of shutdown.
func (l *Lock) Release() error {
	_ = os.Remove(l.path)
	return l.flk.Unlock()
}

func readLockRecord(path string) (*model.LockRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec model.LockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupt lock file is treated the same as stale: remove and proceed.
		return nil, nil
	}
	return &rec, nil
}

// pidAlive reports whether a process with the given pid is currently running.
// On POSIX, signal 0 checks for existence/permission without affecting the process.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
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
