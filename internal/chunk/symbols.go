package chunk

import (
	"github.com/agent-brain/core/internal/model"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// languageSpec binds a tree-sitter grammar to the node-kind tables needed to
// recognize a common set of symbol shapes -- function, method, class, type,
// interface, impl. Generalizes the per-language treeSitterParser
// (internal/indexer/parsers/*.go) -- which paired one grammar with bespoke
// per-language extraction code -- into one generic table-driven walker
// shared by every language, since every grammar already exposes
// "name"/"parameters"/"return_type"/"body" fields the same way.
type languageSpec struct {
	language *sitter.Language
	kinds    map[string]model.SymbolKind
	// classKinds marks node kinds that establish a "parent" for nested
	// symbols (methods inside a class/impl/struct).
	classKinds map[string]bool
}

var languageSpecs = map[string]languageSpec{
	"go": {
		language: sitter.NewLanguage(golang.Language()),
		kinds: map[string]model.SymbolKind{
			"function_declaration": model.SymbolFunction,
			"method_declaration":   model.SymbolMethod,
			"type_declaration":     model.SymbolType,
		},
	},
	"python": {
		language: sitter.NewLanguage(python.Language()),
		kinds: map[string]model.SymbolKind{
			"function_definition": model.SymbolFunction,
			"class_definition":    model.SymbolClass,
		},
		classKinds: map[string]bool{"class_definition": true},
	},
	"typescript": {
		language: sitter.NewLanguage(typescript.LanguageTypescript()),
		kinds: map[string]model.SymbolKind{
			"function_declaration":  model.SymbolFunction,
			"method_definition":     model.SymbolMethod,
			"class_declaration":     model.SymbolClass,
			"interface_declaration": model.SymbolInterface,
			"type_alias_declaration": model.SymbolType,
		},
		classKinds: map[string]bool{"class_declaration": true, "interface_declaration": true},
	},
	"javascript": {
		language: sitter.NewLanguage(javascript.Language()),
		kinds: map[string]model.SymbolKind{
			"function_declaration": model.SymbolFunction,
			"method_definition":    model.SymbolMethod,
			"class_declaration":    model.SymbolClass,
		},
		classKinds: map[string]bool{"class_declaration": true},
	},
	"java": {
		language: sitter.NewLanguage(java.Language()),
		kinds: map[string]model.SymbolKind{
			"method_declaration":    model.SymbolMethod,
			"class_declaration":     model.SymbolClass,
			"interface_declaration": model.SymbolInterface,
		},
		classKinds: map[string]bool{"class_declaration": true, "interface_declaration": true},
	},
	"rust": {
		language: sitter.NewLanguage(rust.Language()),
		kinds: map[string]model.SymbolKind{
			"function_item":  model.SymbolFunction,
			"impl_item":      model.SymbolImpl,
			"struct_item":    model.SymbolType,
			"trait_item":     model.SymbolInterface,
		},
		classKinds: map[string]bool{"impl_item": true, "trait_item": true},
	},
	"c": {
		language: sitter.NewLanguage(c.Language()),
		kinds: map[string]model.SymbolKind{
			"function_definition": model.SymbolFunction,
			"struct_specifier":    model.SymbolType,
		},
	},
	"cpp": {
		language: sitter.NewLanguage(c.Language()),
		kinds: map[string]model.SymbolKind{
			"function_definition": model.SymbolFunction,
			"struct_specifier":    model.SymbolType,
		},
	},
	"php": {
		language: sitter.NewLanguage(php.LanguagePHP()),
		kinds: map[string]model.SymbolKind{
			"function_definition": model.SymbolFunction,
			"method_declaration":  model.SymbolMethod,
			"class_declaration":   model.SymbolClass,
		},
		classKinds: map[string]bool{"class_declaration": true},
	},
	"ruby": {
		language: sitter.NewLanguage(ruby.Language()),
		kinds: map[string]model.SymbolKind{
			"method": model.SymbolMethod,
			"class":  model.SymbolClass,
			"module": model.SymbolType,
		},
		classKinds: map[string]bool{"class": true, "module": true},
	},
}

// symbol is one recognized code symbol, flattened from whatever grammar
// produced it into the shape model.ChunkMetadata's code fields expect.
type symbol struct {
	name       string
	kind       model.SymbolKind
	startLine  int // 1-indexed, inclusive
	endLine    int // 1-indexed, inclusive
	docstring  string
	parameters []string
	returnType string
	parent     string
}

// extractSymbols walks the whole tree once and returns every recognized
// symbol in document order, parent-stamped for nested symbols.
func extractSymbols(root *sitter.Node, source []byte, spec languageSpec) []symbol {
	var out []symbol
	var walk func(node *sitter.Node, parent string)
	walk = func(node *sitter.Node, parent string) {
		if node == nil {
			return
		}
		kind, recognized := spec.kinds[node.Kind()]
		nextParent := parent
		if recognized {
			sym := symbolFromNode(node, source, kind, parent)
			out = append(out, sym)
			if spec.classKinds[node.Kind()] && sym.name != "" {
				nextParent = sym.name
			}
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i), nextParent)
		}
	}
	walk(root, "")
	return out
}

func symbolFromNode(node *sitter.Node, source []byte, kind model.SymbolKind, parent string) symbol {
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = string(source[n.StartByte():n.EndByte()])
	}
	params := paramList(node, source)
	returnType := ""
	if n := node.ChildByFieldName("return_type"); n != nil {
		returnType = string(source[n.StartByte():n.EndByte()])
	} else if n := node.ChildByFieldName("result"); n != nil {
		returnType = string(source[n.StartByte():n.EndByte()])
	}
	return symbol{
		name:       name,
		kind:       kind,
		startLine:  int(node.StartPosition().Row) + 1,
		endLine:    int(node.EndPosition().Row) + 1,
		docstring:  leadingComment(node, source),
		parameters: params,
		returnType: returnType,
		parent:     parent,
	}
}

// paramList reads the grammar's "parameters" field (present in nearly every
// supported grammar for function-shaped nodes) and splits it into individual
// parameter strings on top-level commas.
func paramList(node *sitter.Node, source []byte) []string {
	n := node.ChildByFieldName("parameters")
	if n == nil {
		n = node.ChildByFieldName("parameter")
	}
	if n == nil {
		return nil
	}
	raw := string(source[n.StartByte():n.EndByte()])
	return splitTopLevelCommas(trimEnclosing(raw))
}

func trimEnclosing(s string) string {
	if len(s) >= 2 && (s[0] == '(' || s[0] == '<') {
		return s[1 : len(s)-1]
	}
	return s
}

func splitTopLevelCommas(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				if p := trimSpace(s[start:i]); p != "" {
					out = append(out, p)
				}
				start = i + 1
			}
		}
	}
	if p := trimSpace(s[start:]); p != "" {
		out = append(out, p)
	}
	return out
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && isSpace(s[i]) {
		i++
	}
	for j > i && isSpace(s[j-1]) {
		j--
	}
	return s[i:j]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

// leadingComment picks up a docstring in the two shapes this corpus of
// grammars uses: a preceding sibling comment node (Go, Rust, Java, C, PHP),
// or -- for Python -- a string-literal expression statement as the first
// statement of the body.
func leadingComment(node *sitter.Node, source []byte) string {
	if body := node.ChildByFieldName("body"); body != nil && body.ChildCount() > 0 {
		first := body.Child(0)
		if first != nil && (first.Kind() == "expression_statement" || first.Kind() == "string") {
			text := string(source[first.StartByte():first.EndByte()])
			if len(text) >= 2 {
				return text
			}
		}
	}
	prev := node.PrevSibling()
	if prev != nil && (prev.Kind() == "comment" || prev.Kind() == "line_comment" || prev.Kind() == "block_comment") {
		return string(source[prev.StartByte():prev.EndByte()])
	}
	return ""
}
