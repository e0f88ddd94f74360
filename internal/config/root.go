package config

import (
	"os"
	"path/filepath"

	"github.com/agent-brain/core/internal/apperr"
)

// vcsMarkers and projectMarkers implement the root-resolution precedence:
// explicit override -> nearest VCS ancestor -> nearest project-marker
// ancestor -> cwd.
var vcsMarkers = []string{".git", ".hg", ".svn"}

var projectMarkers = []string{
	"go.mod", "package.json", "pyproject.toml", "Cargo.toml",
	"pom.xml", "composer.json", "Gemfile",
}

// ResolveProjectRoot implements the precedence chain. explicitOverride wins
// outright when non-empty; startDir is where the ancestor walk begins
// (typically the process's working directory).
func ResolveProjectRoot(explicitOverride, startDir string) (string, error) {
	if explicitOverride != "" {
		abs, err := filepath.Abs(explicitOverride)
		if err != nil {
			return "", apperr.Wrap(apperr.ConfigError, "resolving explicit project root", err)
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return "", apperr.New(apperr.ConfigError, "explicit project root is not a directory: "+abs)
		}
		return abs, nil
	}

	start, err := filepath.Abs(startDir)
	if err != nil {
		return "", apperr.Wrap(apperr.ConfigError, "resolving start directory", err)
	}

	if root := findAncestorWithAny(start, vcsMarkers); root != "" {
		return root, nil
	}
	if root := findAncestorWithAny(start, projectMarkers); root != "" {
		return root, nil
	}
	return start, nil
}

func findAncestorWithAny(start string, markers []string) string {
	dir := start
	for {
		for _, m := range markers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// StatePaths are the per-instance state directory and its store
// subdirectories, derived from the project root (or the user's home in
// shared mode).
type StatePaths struct {
	StateDir   string
	LockFile   string
	RuntimeFile string
	VectorDir  string
	KeywordDir string
	GraphDir   string
}

// ResolveStatePaths derives the state directory tree. mode is
// model.ModeProject or model.ModeShared; override, if set, replaces the
// computed state dir outright (AGENT_BRAIN_STATE_DIR).
func ResolveStatePaths(mode string, projectRoot string, override string) (StatePaths, error) {
	stateDir := override
	if stateDir == "" {
		switch mode {
		case "shared":
			home, err := os.UserHomeDir()
			if err != nil {
				return StatePaths{}, apperr.Wrap(apperr.ConfigError, "resolving user home for shared state dir", err)
			}
			stateDir = filepath.Join(home, ".agent-brain")
		default:
			stateDir = filepath.Join(projectRoot, ".claude", "agent-brain")
		}
	}
	return StatePaths{
		StateDir:    stateDir,
		LockFile:    filepath.Join(stateDir, "lock.json"),
		RuntimeFile: filepath.Join(stateDir, "runtime.json"),
		VectorDir:   filepath.Join(stateDir, "chroma_db"),
		KeywordDir:  filepath.Join(stateDir, "bm25_index"),
		GraphDir:    filepath.Join(stateDir, "graph_index"),
	}, nil
}
