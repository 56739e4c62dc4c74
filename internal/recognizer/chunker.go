package recognizer

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one bounded segment of the input with its absolute byte offset in
// the original text. Chunk text is always an exact substring of the original,
// so chunk-local offsets shift back to absolute offsets without drift.
type Chunk struct {
	Text   string
	Offset int
}

// splitChunks breaks text into segments no longer than budget bytes,
// preferring paragraph breaks, then line breaks, so an entity is not
// truncated mid-span. Each piece's offset is recovered by substring search
// from the previous piece's end, then consecutive pieces are regrouped into
// spans of the original text: the mapping stays exact even where the
// splitting logic and the original boundaries diverge.
func splitChunks(text string, budget int) []Chunk {
	if budget <= 0 {
		budget = defaultMaxChunkChars
	}
	if len(text) <= budget {
		return []Chunk{{Text: text, Offset: 0}}
	}

	var pieces []string
	for _, para := range strings.Split(text, "\n\n") {
		if len(para) <= budget {
			pieces = append(pieces, para)
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			if len(line) <= budget {
				pieces = append(pieces, line)
				continue
			}
			// A single oversized line is hard-split as a last resort. The cut
			// backs off to a rune boundary so a multibyte character is never
			// torn across two chunks.
			for len(line) > budget {
				cut := budget
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				if cut == 0 {
					cut = budget
				}
				pieces = append(pieces, line[:cut])
				line = line[cut:]
			}
			if line != "" {
				pieces = append(pieces, line)
			}
		}
	}

	// Locate every piece in the original text.
	type span struct{ start, end int }
	var spans []span
	searchFrom := 0
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		idx := strings.Index(text[searchFrom:], piece)
		if idx < 0 {
			continue
		}
		start := searchFrom + idx
		spans = append(spans, span{start: start, end: start + len(piece)})
		searchFrom = start + len(piece)
	}

	if len(spans) == 0 {
		return []Chunk{{Text: text, Offset: 0}}
	}

	// Group consecutive pieces into chunks while the covered original span
	// stays within budget.
	var chunks []Chunk
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.end-cur.start <= budget {
			cur.end = s.end
			continue
		}
		chunks = append(chunks, Chunk{Text: text[cur.start:cur.end], Offset: cur.start})
		cur = s
	}
	chunks = append(chunks, Chunk{Text: text[cur.start:cur.end], Offset: cur.start})

	return chunks
}
