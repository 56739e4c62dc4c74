package recognizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// wordPieceTokenizer is a minimal BERT-compatible tokenizer loaded from a
// vocab.txt file. It tracks byte offsets for every emitted token so label
// scores can be projected back onto the source text.
type wordPieceTokenizer struct {
	vocab map[string]int64
	clsID int64
	sepID int64
	padID int64
	unkID int64
}

const subwordPrefix = "##"

func loadWordPieceTokenizer(path string) (*wordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}

	return &wordPieceTokenizer{
		vocab: vocab,
		clsID: vocab["[CLS]"],
		sepID: vocab["[SEP]"],
		padID: vocab["[PAD]"],
		unkID: vocab["[UNK]"],
	}, nil
}

// tokenSpan carries one token id with the byte range it covers in the input.
// Special and padding tokens use a {-1,-1} range.
type tokenSpan struct {
	id    int64
	start int
	end   int
	word  string
}

// encode produces input ids, an attention mask, and per-token byte spans of
// fixed length seqLen, truncating overly long input.
func (t *wordPieceTokenizer) encode(text string, seqLen int) ([]int64, []int64, []tokenSpan) {
	if seqLen <= 0 {
		return nil, nil, nil
	}

	spans := []tokenSpan{{id: t.clsID, start: -1, end: -1}}

outer:
	for _, w := range wordsWithOffsets(text) {
		for _, p := range t.pieces(strings.ToLower(w.text)) {
			word := text[w.start+p.start : w.start+p.end]
			if p.start > 0 {
				// Continuation pieces keep the WordPiece marker so the
				// adapter can tell subword fragments from full words.
				word = subwordPrefix + word
			}
			spans = append(spans, tokenSpan{
				id:    p.id,
				start: w.start + p.start,
				end:   w.start + p.end,
				word:  word,
			})
			if len(spans) >= seqLen-1 {
				break outer
			}
		}
	}
	spans = append(spans, tokenSpan{id: t.sepID, start: -1, end: -1})

	ids := make([]int64, seqLen)
	attn := make([]int64, seqLen)
	for i := 0; i < seqLen; i++ {
		if i < len(spans) {
			ids[i] = spans[i].id
			attn[i] = 1
		} else {
			ids[i] = t.padID
		}
	}
	for len(spans) < seqLen {
		spans = append(spans, tokenSpan{id: t.padID, start: -1, end: -1})
	}

	return ids, attn, spans
}

type piece struct {
	id    int64
	start int
	end   int
}

// pieces runs greedy longest-match WordPiece over one lowercased word. An
// unmatchable word collapses to a single [UNK] covering the whole word.
func (t *wordPieceTokenizer) pieces(word string) []piece {
	if id, ok := t.vocab[word]; ok {
		return []piece{{id: id, start: 0, end: len(word)}}
	}

	var out []piece
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			sub := word[start:end]
			if start > 0 {
				sub = subwordPrefix + sub
			}
			if id, ok := t.vocab[sub]; ok {
				out = append(out, piece{id: id, start: start, end: end})
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			return []piece{{id: t.unkID, start: 0, end: len(word)}}
		}
	}
	return out
}

type wordOffset struct {
	text  string
	start int
}

func wordsWithOffsets(text string) []wordOffset {
	var words []wordOffset
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, wordOffset{text: text[start:i], start: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, wordOffset{text: text[start:], start: start})
	}
	return words
}
