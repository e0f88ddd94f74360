// Package triplet implements C7, the graph extractor: turning a chunk and
// its metadata into (subject, predicate, object) triplets by the union of a
// deterministic code-metadata extractor and an optional LLM extractor.
//
// The deterministic half is grounded on internal/graph in spirit
// (interface_matcher.go/extractor.go deterministically
// derive call/implements/depends_on facts from parsed source) but rebuilt
// against model.ChunkMetadata directly rather than go/ast, since this
// daemon's chunks already carry the symbol/import facts C5 (the tree-sitter
// chunker) extracted for every supported language, not just Go.
package triplet

import (
	"context"
	"strings"

	"github.com/agent-brain/core/internal/model"
)

// Extractor produces triplets for one chunk, capped at maxPerChunk and
// bypassed entirely when the caller does not invoke it (enable_graph_index
// is a caller-side gate, not something this package checks).
type Extractor struct {
	maxPerChunk int
	llm         LLMExtractor
	useMetadata bool
	useLLM      bool
}

// LLMExtractor is the narrow interface this package needs from an
// embed.TripleExtractor, kept separate so triplet doesn't import embed.
type LLMExtractor interface {
	ExtractTriples(ctx context.Context, chunkText, sourceChunkID string) ([]model.GraphTriple, error)
}

// New builds a graph extractor. llm may be nil to disable the LLM half
// (graph_use_llm_extraction=false or no summarization_provider configured).
func New(maxPerChunk int, useMetadata, useLLM bool, llm LLMExtractor) *Extractor {
	return &Extractor{maxPerChunk: maxPerChunk, llm: llm, useMetadata: useMetadata, useLLM: useLLM}
}

// Extract returns up to maxPerChunk triplets for chunk.
func (e *Extractor) Extract(ctx context.Context, chunk model.Chunk) []model.GraphTriple {
	var out []model.GraphTriple

	if e.useMetadata {
		out = append(out, metadataTriplets(chunk)...)
	}

	if e.useLLM && e.llm != nil && len(out) < e.maxPerChunk {
		// LLM extraction failures produce zero triplets and are never
		// fatal to the pipeline -- enforced by the
		// TripleExtractor implementation itself (see embed.anthropicSummarizer),
		// so this call is never expected to return an error worth checking.
		llmTriplets, err := e.llm.ExtractTriples(ctx, chunk.Text, chunk.ChunkID)
		if err == nil {
			out = append(out, llmTriplets...)
		}
	}

	if e.maxPerChunk > 0 && len(out) > e.maxPerChunk {
		out = out[:e.maxPerChunk]
	}
	return out
}

// metadataTriplets derives the deterministic facts that fall out of
// chunk metadata: (symbol_name, defined_in, source), (symbol_name, has_type,
// symbol_kind), (symbol_name, belongs_to, parent), plus import/call-site
// facts for known languages.
func metadataTriplets(chunk model.Chunk) []model.GraphTriple {
	meta := chunk.Metadata
	var out []model.GraphTriple

	if meta.SymbolName == "" {
		return out
	}

	out = append(out, model.GraphTriple{
		Subject:       meta.SymbolName,
		SubjectType:   "symbol",
		Predicate:     "defined_in",
		Object:        meta.Source,
		ObjectType:    "source",
		SourceChunkID: chunk.ChunkID,
	})

	if meta.SymbolKind != "" {
		out = append(out, model.GraphTriple{
			Subject:       meta.SymbolName,
			SubjectType:   "symbol",
			Predicate:     "has_type",
			Object:        string(meta.SymbolKind),
			ObjectType:    "symbol_kind",
			SourceChunkID: chunk.ChunkID,
		})
	}

	if meta.Parent != "" {
		out = append(out, model.GraphTriple{
			Subject:       meta.SymbolName,
			SubjectType:   "symbol",
			Predicate:     "belongs_to",
			Object:        meta.Parent,
			ObjectType:    "symbol",
			SourceChunkID: chunk.ChunkID,
		})
	}

	for _, imp := range meta.Imports {
		name := importTarget(imp)
		if name == "" {
			continue
		}
		out = append(out, model.GraphTriple{
			Subject:       meta.Source,
			SubjectType:   "source",
			Predicate:     "imports",
			Object:        name,
			ObjectType:    "module",
			SourceChunkID: chunk.ChunkID,
		})
	}

	for _, callee := range callSites(chunk.Text, meta.SymbolName) {
		out = append(out, model.GraphTriple{
			Subject:       meta.SymbolName,
			SubjectType:   "symbol",
			Predicate:     "calls",
			Object:        callee,
			ObjectType:    "symbol",
			SourceChunkID: chunk.ChunkID,
		})
	}

	return out
}

// importTarget strips language punctuation from a raw import line down to
// the module path/name, e.g. `import "fmt"` -> fmt, `import foo from 'bar'`
// -> bar, `use std::fmt;` -> std::fmt.
func importTarget(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(line, ";")
	for _, prefix := range []string{"import ", "use ", "require "} {
		line = strings.TrimPrefix(line, prefix)
	}
	if idx := strings.LastIndex(line, "'"); idx >= 0 {
		if start := strings.LastIndex(line[:idx], "'"); start >= 0 {
			line = line[start+1 : idx]
		}
	}
	return strings.Trim(strings.TrimSpace(line), `"'`)
}

// callSites finds simple `name(` call expressions in text, skipping every
// occurrence of the symbol's own name (its declaration and any recursive
// call alike), as a cheap pattern-based call-site
// extraction shared across languages (no AST available at this layer).
func callSites(text, ownSymbol string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, word := range strings.FieldsFunc(line, func(r rune) bool {
			return !isIdentChar(r) && r != '('
		}) {
			idx := strings.IndexByte(word, '(')
			if idx <= 0 {
				continue
			}
			name := word[:idx]
			if name == "" || name == ownSymbol || isKeyword(name) {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func isIdentChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

var keywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"func": true, "function": true, "def": true, "catch": true, "else": true,
}

func isKeyword(s string) bool { return keywords[s] }
