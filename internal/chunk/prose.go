package chunk

import (
	"regexp"
	"strings"

	"github.com/agent-brain/core/internal/model"
	"github.com/agent-brain/core/internal/tokencount"
)

// ProseChunker splits prose documents by a descending separator cascade --
// double newline, single newline, sentence boundary, whitespace, character
// -- stopping as soon as a fragment fits within ChunkSize tokens, and
// carries ChunkOverlap tokens from the end of one chunk into the start of
// the next. Generalizes the original chunker.go splitByHeaders/
// splitByParagraphs/splitLargeParagraph cascade (section -> paragraph ->
// sentence) into the token-bound, overlap-carrying splitter 
// names, and adds the heading_path/section_title metadata the prior implementation's
// chunker didn't track.
type ProseChunker struct {
	opts Options
}

// NewProseChunker builds a prose chunker with the given thresholds.
func NewProseChunker(opts Options) *ProseChunker {
	return &ProseChunker{opts: opts}
}

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
var sentenceBoundary = regexp.MustCompile(`(?s)([.!?])\s+`)

// Chunk splits doc.Text into TextChunks.
func (p *ProseChunker) Chunk(doc model.LoadedDocument) []model.Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	fragments := p.splitWithHeadings(doc.Text)

	var out []model.Chunk
	var carryOver string
	for _, frag := range fragments {
		text := frag.text
		if carryOver != "" {
			text = carryOver + "\n" + text
			carryOver = ""
		}
		for i, piece := range p.splitToSize(text) {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			if i > 0 && p.opts.ChunkOverlap > 0 && len(out) > 0 {
				piece = tokencount.SuffixByTokens(out[len(out)-1].Text, p.opts.ChunkOverlap) + "\n" + piece
			}
			idx := len(out)
			out = append(out, model.Chunk{
				ChunkID:    chunkID(doc.Source, idx),
				Text:       piece,
				TokenCount: tokenCountOf(piece),
				Metadata: model.ChunkMetadata{
					ChunkID:      chunkID(doc.Source, idx),
					Source:       doc.Source,
					ChunkIndex:   idx,
					SourceType:   model.SourceDoc,
					Language:     doc.Language,
					HeadingPath:  frag.headingPath,
					SectionTitle: frag.sectionTitle,
				},
			})
		}
		if p.opts.ChunkOverlap > 0 && len(out) > 0 {
			carryOver = tokencount.SuffixByTokens(out[len(out)-1].Text, p.opts.ChunkOverlap)
		}
	}

	for i := range out {
		out[i].Metadata.TotalChunks = len(out)
	}
	return out
}

type fragment struct {
	text         string
	headingPath  []string
	sectionTitle string
}

// splitWithHeadings walks the document line by line, accumulating the
// #-prefixed heading stack (heading_path) and cutting a new fragment at
// every heading boundary, the coarsest of the splitter's fallback cascade.
func (p *ProseChunker) splitWithHeadings(text string) []fragment {
	lines := strings.Split(text, "\n")
	var frags []fragment
	var stack []string
	var cur []string
	sectionTitle := ""

	flush := func() {
		if len(cur) == 0 {
			return
		}
		body := strings.TrimSpace(strings.Join(cur, "\n"))
		if body != "" {
			frags = append(frags, fragment{
				text:         body,
				headingPath:  append([]string(nil), stack...),
				sectionTitle: sectionTitle,
			})
		}
		cur = nil
	}

	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			if level-1 < len(stack) {
				stack = stack[:level-1]
			}
			stack = append(stack, title)
			sectionTitle = title
			cur = append(cur, line)
			continue
		}
		cur = append(cur, line)
	}
	flush()

	if len(frags) == 0 {
		frags = append(frags, fragment{text: strings.TrimSpace(text)})
	}
	return frags
}

// splitToSize applies the remaining cascade (paragraph -> sentence ->
// whitespace -> character) to a fragment that may still exceed ChunkSize.
func (p *ProseChunker) splitToSize(text string) []string {
	if tokencount.Count(text) <= p.opts.ChunkSize {
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	if len(paragraphs) > 1 {
		return p.packBySize(paragraphs, "\n\n")
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 1 {
		return p.packBySize(lines, "\n")
	}

	sentences := splitSentences(text)
	if len(sentences) > 1 {
		return p.packBySize(sentences, " ")
	}

	words := strings.Fields(text)
	if len(words) > 1 {
		return p.packBySize(words, " ")
	}

	return p.splitByChars(text)
}

func splitSentences(text string) []string {
	idxs := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(idxs) == 0 {
		return []string{text}
	}
	var out []string
	last := 0
	for _, loc := range idxs {
		out = append(out, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// packBySize greedily packs units (separated by sep when rejoined) into
// chunks that fit ChunkSize tokens, recursing into splitToSize for any
// single unit that alone exceeds the limit.
func (p *ProseChunker) packBySize(units []string, sep string) []string {
	var out []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, sep))
			cur = nil
			curTokens = 0
		}
	}

	for _, u := range units {
		t := tokencount.Count(u)
		if t > p.opts.ChunkSize {
			flush()
			out = append(out, p.splitToSize(u)...)
			continue
		}
		if curTokens > 0 && curTokens+t > p.opts.ChunkSize {
			flush()
		}
		cur = append(cur, u)
		curTokens += t
	}
	flush()
	return out
}

// splitByChars is the cascade's last resort: a hard character cut when no
// separator at all helps (e.g. one extremely long unbroken token).
func (p *ProseChunker) splitByChars(text string) []string {
	approxChars := p.opts.ChunkSize * 4
	if approxChars <= 0 {
		return []string{text}
	}
	var out []string
	for len(text) > approxChars {
		out = append(out, text[:approxChars])
		text = text[approxChars:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
