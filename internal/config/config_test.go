package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-brain/core/internal/apperr"
)

func TestDefaultSettingsValidate(t *testing.T) {
	err := Validate(Default())
	require.NoError(t, err)
}

func TestValidateRejectsBadProvider(t *testing.T) {
	s := Default()
	s.EmbeddingProvider = "carrier-pigeon"
	err := Validate(s)
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigError, apperr.KindOf(err))
}

func TestValidateRejectsOutOfRangeAlpha(t *testing.T) {
	s := Default()
	s.DefaultAlpha = 1.5
	require.Error(t, Validate(s))
}

func TestValidateRejectsOverlapTooLarge(t *testing.T) {
	s := Default()
	s.ChunkOverlap = s.ChunkSize
	require.Error(t, Validate(s))
}

func TestResolveProjectRootExplicitOverrideWins(t *testing.T) {
	dir := t.TempDir()
	root, err := ResolveProjectRoot(dir, "/somewhere/else")
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestResolveProjectRootFindsVCSAncestor(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := ResolveProjectRoot("", nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestResolveProjectRootFallsBackToStartDir(t *testing.T) {
	dir := t.TempDir()
	found, err := ResolveProjectRoot("", dir)
	require.NoError(t, err)
	assert.Equal(t, dir, found)
}

func TestResolveStatePathsProjectMode(t *testing.T) {
	paths, err := ResolveStatePaths("project", "/repo", "")
	require.NoError(t, err)
	assert.Equal(t, "/repo/.claude/agent-brain", paths.StateDir)
	assert.Equal(t, "/repo/.claude/agent-brain/lock.json", paths.LockFile)
	assert.Equal(t, "/repo/.claude/agent-brain/chroma_db", paths.VectorDir)
}

func TestResolveStatePathsOverrideWins(t *testing.T) {
	paths, err := ResolveStatePaths("project", "/repo", "/custom/state")
	require.NoError(t, err)
	assert.Equal(t, "/custom/state", paths.StateDir)
}
