package embed

import (
	"context"
	"encoding/json"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/model"
)

// Summarizer is the capability interface the code chunker's optional
// per-chunk summary step ( step 5) calls through; it is the
// same interface chunk.Summarizer names, duplicated here to avoid chunk
// importing embed.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// TripleExtractor is the LLM half of the graph extractor (C7): given chunk
// text, returns candidate (subject, predicate, object) triplets, per
// 
type TripleExtractor interface {
	ExtractTriples(ctx context.Context, chunkText, sourceChunkID string) ([]model.GraphTriple, error)
}

// SummarizerConfig selects a Summarizer/TripleExtractor variant from
// summarization_provider (mock | anthropic)
type SummarizerConfig struct {
	Provider string
	APIKey   string
	Model    string
}

// summarizerBundle satisfies both Summarizer and TripleExtractor, since
// both capabilities are implemented by the same configured provider
// (: "a configured TripleExtractor (implemented by a
// Summarizer-class provider)").
type summarizerBundle interface {
	Summarizer
	TripleExtractor
}

// NewSummarizer returns nil, nil when no summarization_provider is
// configured — disabling both the code-chunk summary step and the LLM
// graph extractor
func NewSummarizer(cfg SummarizerConfig) (summarizerBundle, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "mock":
		return newMockSummarizer(), nil
	case "anthropic":
		return newAnthropicSummarizer(cfg.APIKey, cfg.Model), nil
	default:
		return nil, apperr.New(apperr.ConfigError, "unsupported summarization_provider: "+cfg.Provider)
	}
}

// mockSummarizer returns a truncated-text "summary" deterministically, for
// tests
type mockSummarizer struct{}

func newMockSummarizer() *mockSummarizer { return &mockSummarizer{} }

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= 120 {
		return trimmed, nil
	}
	return trimmed[:120] + "...", nil
}

func (m *mockSummarizer) ExtractTriples(ctx context.Context, chunkText, sourceChunkID string) ([]model.GraphTriple, error) {
	return nil, nil
}

// anthropicSummarizer wraps github.com/anthropics/anthropic-sdk-go for both
// code-chunk summarization and LLM triple extraction, constructed the same
// way the example pack's llm/anthropic.Client does (an API-keyed client
// reused across calls).
type anthropicSummarizer struct {
	sdk   anthropic.Client
	model string
}

const defaultAnthropicMaxTokens int64 = 512

func newAnthropicSummarizer(apiKey, modelName string) *anthropicSummarizer {
	if modelName == "" {
		modelName = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &anthropicSummarizer{
		sdk:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: modelName,
	}
}

func (a *anthropicSummarizer) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", apperr.Wrap(apperr.SummarizerError, "anthropic messages request", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}

func (a *anthropicSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize the following code in one concise sentence:\n\n" + text
	return a.complete(ctx, prompt)
}

type extractedTriple struct {
	Subject     string `json:"subject"`
	SubjectType string `json:"subject_type"`
	Predicate   string `json:"predicate"`
	Object      string `json:"object"`
	ObjectType  string `json:"object_type"`
}

func (a *anthropicSummarizer) ExtractTriples(ctx context.Context, chunkText, sourceChunkID string) ([]model.GraphTriple, error) {
	prompt := "Extract (subject, predicate, object) relationship facts from the following text. " +
		"Respond with ONLY a JSON array of objects shaped " +
		`{"subject":"","subject_type":"","predicate":"","object":"","object_type":""}` +
		" and nothing else.\n\n" + chunkText

	raw, err := a.complete(ctx, prompt)
	if err != nil {
		// LLM extraction failures produce zero triplets and never fail the
		// pipeline
		return nil, nil
	}

	raw = strings.TrimSpace(raw)
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end < start {
		return nil, nil
	}

	var parsed []extractedTriple
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, nil
	}

	out := make([]model.GraphTriple, 0, len(parsed))
	for _, p := range parsed {
		if p.Subject == "" || p.Predicate == "" || p.Object == "" {
			continue
		}
		out = append(out, model.GraphTriple{
			Subject:       p.Subject,
			SubjectType:   p.SubjectType,
			Predicate:     p.Predicate,
			Object:        p.Object,
			ObjectType:    p.ObjectType,
			SourceChunkID: sourceChunkID,
		})
	}
	return out, nil
}
