package lifecycle

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
)

func TestAcquireLockWritesRecord(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(filepath.Join(dir, "lock.json"))
	require.NoError(t, err)
	var rec model.LockRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, os.Getpid(), rec.PID)
}

func TestAcquireLockRejectsWhileLiveHolderPresent(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	_, err = AcquireLock(dir)
	require.Error(t, err)
	assert.Equal(t, apperr.AlreadyRunning, apperr.KindOf(err))
}

func TestAcquireLockRecoversFromCrashedHolder(t *testing.T) {
	// Scenario 1 from : daemon A crashes (process gone but its
	// lock.json survives with a now-dead pid), daemon B in the same
	// directory must succeed and lock.json must end up holding B's pid.
	dir := t.TempDir()

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	deadPID := cmd.Process.Pid
	require.NoError(t, cmd.Process.Kill())
	_ = cmd.Wait()

	stale := model.LockRecord{PID: deadPID, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, writeJSONAtomic(filepath.Join(dir, "lock.json"), stale))

	lock, err := AcquireLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(filepath.Join(dir, "lock.json"))
	require.NoError(t, err)
	var rec model.LockRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, os.Getpid(), rec.PID)
	assert.NotEqual(t, deadPID, rec.PID)
}

func TestReleaseRemovesLockFile(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	_, err = os.Stat(filepath.Join(dir, "lock.json"))
	assert.True(t, os.IsNotExist(err))
}
