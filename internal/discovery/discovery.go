// Package discovery implements C4, the document loader: walking a folder,
// skipping noisy directories/patterns, classifying each accepted file as
// doc/code/test, and producing a LoadedDocument per file.
//
// Grounded directly on internal/indexer/discovery.go's FileDiscovery
// (gobwas/glob-compiled code/docs/ignore pattern sets, walked with
// filepath.Walk), generalized to return classified LoadedDocuments instead
// of bare file path lists, and with the hard-coded ".cortex" ignore swapped
// for this repo's state-directory name.
package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/chunk"
	"github.com/agent-brain/core/internal/model"
)

// StateDirName is always skipped, mirroring the hard-coded ".cortex" ignore
// in FileDiscovery.shouldIgnore.
const StateDirName = ".claude/agent-brain"

// Loader walks a project tree and loads classified documents.
type Loader struct {
	rootDir        string
	codePatterns   []glob.Glob
	docPatterns    []glob.Glob
	ignorePatterns []glob.Glob
}

// Warning is a recoverable per-file problem (e.g. non-UTF-8 content) that
// does not abort the walk ("skipped with a warning, never
// a fatal error").
type Warning struct {
	Path   string
	Reason string
}

// New compiles the code/doc/ignore glob pattern sets rooted at rootDir.
func New(rootDir string, codePatterns, docPatterns, ignorePatterns []string) (*Loader, error) {
	l := &Loader{rootDir: rootDir}
	var err error
	if l.codePatterns, err = compileAll(codePatterns); err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "compiling code glob patterns", err)
	}
	if l.docPatterns, err = compileAll(docPatterns); err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "compiling doc glob patterns", err)
	}
	if l.ignorePatterns, err = compileAll(ignorePatterns); err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "compiling ignore glob patterns", err)
	}
	return l, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// Load walks rootDir recursively and returns every accepted LoadedDocument,
// plus the warnings for files skipped along the way.
func (l *Loader) Load() ([]model.LoadedDocument, []Warning, error) {
	var docs []model.LoadedDocument
	var warnings []Warning

	err := filepath.Walk(l.rootDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(l.rootDir, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if l.shouldIgnore(relPath) {
			return nil
		}

		isCode := matchesAny(relPath, l.codePatterns)
		isDoc := !isCode && matchesAny(relPath, l.docPatterns)
		if !isCode && !isDoc {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, Warning{Path: path, Reason: err.Error()})
			return nil
		}
		if !utf8.Valid(data) {
			warnings = append(warnings, Warning{Path: path, Reason: "not valid UTF-8"})
			return nil
		}

		fileName := filepath.Base(path)
		ext := filepath.Ext(path)
		language, _ := chunk.LanguageForExt(ext)

		doc := model.LoadedDocument{
			Source:     path,
			FileName:   fileName,
			Text:       string(data),
			SourceType: classify(fileName, isCode),
			Language:   language,
			FileHash:   hashOf(data),
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, warnings, apperr.Wrap(apperr.StoreError, "walking project tree", err)
	}
	return docs, warnings, nil
}

// classify applies the source-type classification order: a code
// extension whose filename starts with test_ or ends _test (before the
// extension) is `test`; any other code extension is `code`; doc extensions
// were already routed to isCode=false by the caller, so this always returns
// doc for that branch.
func classify(fileName string, isCode bool) model.SourceType {
	if !isCode {
		return model.SourceDoc
	}
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test") {
		return model.SourceTest
	}
	return model.SourceCode
}

func (l *Loader) shouldIgnore(relPath string) bool {
	if strings.HasPrefix(relPath, StateDirName+"/") || relPath == StateDirName {
		return true
	}
	if matchesAny(relPath, l.ignorePatterns) {
		return true
	}
	return matchesAny(relPath+"/**", l.ignorePatterns)
}

func matchesAny(path string, patterns []glob.Glob) bool {
	for _, p := range patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
