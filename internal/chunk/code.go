package chunk

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/agent-brain/core/internal/model"
)

// CodeChunker implements the code-chunking algorithm: parse to an AST,
// collect symbols, slide a line-bounded window with overlap over the
// source, and attach the window's dominant symbol as chunk metadata.
// Generalizes the per-language treeSitterParser set
// (internal/indexer/parsers/*.go) from a bespoke three-tier Symbols/
// Definitions/Data extraction into the flat symbol table this windowing
// algorithm consumes directly.
type CodeChunker struct {
	opts      Options
	prose     *ProseChunker
	chunkLines        int
	chunkLinesOverlap int
	maxChars          int
	summarizer        Summarizer
}

// NewCodeChunker builds a code chunker. chunkLines/chunkLinesOverlap/maxChars
// are the sliding-window parameters; summarizer may be nil to disable the
// optional per-chunk summary step.
func NewCodeChunker(opts Options, chunkLines, chunkLinesOverlap, maxChars int, summarizer Summarizer) *CodeChunker {
	return &CodeChunker{
		opts:              opts,
		prose:             NewProseChunker(opts),
		chunkLines:        chunkLines,
		chunkLinesOverlap: chunkLinesOverlap,
		maxChars:          maxChars,
		summarizer:        summarizer,
	}
}

// Chunk splits doc.Text (source code) into CodeChunks. If AST parsing fails
// or the language has no registered grammar, it falls back to the prose
// chunker on the same text, still tagged SourceType = code/test.
func (c *CodeChunker) Chunk(ctx context.Context, doc model.LoadedDocument) []model.Chunk {
	spec, ok := languageSpecs[doc.Language]
	if !ok {
		return c.fallbackToProse(doc)
	}

	source := []byte(doc.Text)
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(spec.language); err != nil {
		return c.fallbackToProse(doc)
	}
	tree := parser.Parse(source, nil)
	if tree == nil {
		return c.fallbackToProse(doc)
	}
	defer tree.Close()

	symbols := extractSymbols(tree.RootNode(), source, spec)
	lines := strings.Split(doc.Text, "\n")
	windows := windowLines(len(lines), c.chunkLines, c.chunkLinesOverlap)

	imports := detectImports(doc.Text, doc.Language)

	var out []model.Chunk
	for idx, w := range windows {
		text := strings.Join(lines[w.start:w.end], "\n")
		if c.maxChars > 0 && len(text) > c.maxChars {
			text = text[:c.maxChars]
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		dom := dominantSymbol(symbols, w.start+1, w.end)

		meta := model.ChunkMetadata{
			ChunkID:    chunkID(doc.Source, idx),
			Source:     doc.Source,
			ChunkIndex: idx,
			SourceType: doc.SourceType,
			Language:   doc.Language,
			StartLine:  w.start + 1,
			EndLine:    w.end,
			Imports:    imports,
		}
		if dom != nil {
			meta.SymbolName = dom.name
			meta.SymbolKind = dom.kind
			meta.StartLine = dom.startLine
			meta.EndLine = dom.endLine
			meta.Docstring = dom.docstring
			meta.Parameters = dom.parameters
			meta.ReturnType = dom.returnType
			meta.Parent = dom.parent
		}

		chunk := model.Chunk{
			ChunkID:    meta.ChunkID,
			Text:       text,
			TokenCount: tokenCountOf(text),
			Metadata:   meta,
		}

		if c.opts.GenerateSummaries && c.summarizer != nil {
			// Summarization failures attach nothing and never fail the chunk.
			if summary, err := c.summarizer.Summarize(ctx, text); err == nil && summary != "" {
				chunk.Metadata.Summary = summary
			}
		}

		out = append(out, chunk)
	}

	for i := range out {
		out[i].Metadata.TotalChunks = len(out)
	}
	return out
}

func (c *CodeChunker) fallbackToProse(doc model.LoadedDocument) []model.Chunk {
	chunks := c.prose.Chunk(doc)
	for i := range chunks {
		chunks[i].Metadata.SourceType = doc.SourceType
		chunks[i].Metadata.Language = doc.Language
	}
	return chunks
}

type window struct{ start, end int } // start inclusive 0-indexed, end exclusive

// windowLines slides a chunkLines-sized window with overlap across a file
// of n lines.
func windowLines(n, chunkLines, overlap int) []window {
	if n == 0 {
		return nil
	}
	if chunkLines <= 0 {
		chunkLines = n
	}
	step := chunkLines - overlap
	if step <= 0 {
		step = chunkLines
	}
	var out []window
	for start := 0; start < n; start += step {
		end := start + chunkLines
		if end > n {
			end = n
		}
		out = append(out, window{start: start, end: end})
		if end == n {
			break
		}
	}
	return out
}

// dominantSymbol picks the symbol whose start line lies inside [startLine,
// endLine]; if several, the one with the latest start line (innermost); if
// none, the nearest enclosing symbol (a symbol whose range contains the
// window but doesn't start inside it).
func dominantSymbol(symbols []symbol, startLine, endLine int) *symbol {
	var best *symbol
	for i := range symbols {
		s := &symbols[i]
		if s.startLine >= startLine && s.startLine <= endLine {
			if best == nil || s.startLine > best.startLine {
				best = s
			}
		}
	}
	if best != nil {
		return best
	}
	for i := range symbols {
		s := &symbols[i]
		if s.startLine <= startLine && s.endLine >= endLine {
			if best == nil || s.startLine > best.startLine {
				best = s
			}
		}
	}
	return best
}

// detectImports applies a small per-language pattern to pick up import/
// use/require lines (and quoted import-block entries for go) from the raw
// text; C and C++ are not scanned. Used both for chunk metadata
// here and by the graph extractor's deterministic import edges.
func detectImports(text, language string) []string {
	var prefix string
	switch language {
	case "go", "rust":
		prefix = ""
	case "python":
		prefix = "import "
	case "typescript", "javascript":
		prefix = "import "
	case "java":
		prefix = "import "
	case "ruby":
		prefix = "require "
	case "php":
		prefix = "use "
	default:
		return nil
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch language {
		case "go", "rust":
			if strings.HasPrefix(trimmed, "use ") || strings.HasPrefix(trimmed, `"`) {
				out = append(out, trimmed)
			}
		default:
			if prefix != "" && strings.HasPrefix(trimmed, prefix) {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// LanguageForExt maps a file extension (with leading dot) to the language
// name used throughout this package and model.ChunkMetadata.Language,
// shared with the document loader (C4).
func LanguageForExt(ext string) (string, bool) {
	lang, ok := extToLanguage[strings.ToLower(ext)]
	return lang, ok
}

var extToLanguage = map[string]string{
	".go":    "go",
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".py":    "python",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".php":   "php",
	".rb":    "ruby",
	".java":  "java",
	".md":    "markdown",
	".rst":   "rst",
	".txt":   "text",
}

// IsCodeLanguage reports whether lang is one of the languages with a
// registered tree-sitter grammar (as opposed to a prose language like
// markdown/rst/text).
func IsCodeLanguage(lang string) bool {
	_, ok := languageSpecs[lang]
	return ok
}
