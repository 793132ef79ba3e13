// Package transcript splits raw earnings-call text into overlapping,
// token-addressed fragments and recovers speaker and timestamp metadata from
// each fragment.
package transcript

import (
	"fmt"
	"unicode/utf8"

	"github.com/Yates-Labs/reseek/internal/apperr"
	"github.com/Yates-Labs/reseek/internal/tokenizer"
)

// ErrInvalidChunking is returned for chunk sizes that cannot make progress.
var ErrInvalidChunking = fmt.Errorf("%w: invalid chunking parameters", apperr.ErrInvalidConfiguration)

// Fragment is a contiguous token range of a transcript.
// EndToken - StartToken == TokenCount always holds.
type Fragment struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	StartToken int    `json:"start_token"`
	EndToken   int    `json:"end_token"`
}

// Split cuts text into fragments of at most maxTokens tokens where each
// fragment after the first starts overlap tokens before the previous one
// ended. The last fragment may be shorter. Empty text yields no fragments.
//
// Byte-level encodings can spread one character over several tokens, so
// window edges snap to the nearest token boundary that falls between
// characters: ends move back and starts move back into the overlap. A window
// only grows past maxTokens when no such boundary exists inside it.
func Split(tok tokenizer.Tokenizer, text string, maxTokens, overlap int) ([]Fragment, error) {
	if err := validate(maxTokens, overlap); err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer cannot be nil", apperr.ErrInvalidConfiguration)
	}

	tokens := tok.Encode(text)
	n := len(tokens)
	if n == 0 {
		return []Fragment{}, nil
	}
	edge := runeEdges(tok, tokens)

	fragments := make([]Fragment, 0, n/(maxTokens-overlap)+1)
	for start := 0; ; {
		end := min(start+maxTokens, n)
		for end > start+1 && !edge[end] {
			end--
		}
		if !edge[end] {
			end = min(start+maxTokens, n)
			for !edge[end] {
				end++
			}
		}

		fragments = append(fragments, Fragment{
			Index:      len(fragments),
			Text:       tok.Decode(tokens[start:end]),
			TokenCount: end - start,
			StartToken: start,
			EndToken:   end,
		})
		if end >= n {
			break
		}

		next := end - overlap
		for next > start && !edge[next] {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return fragments, nil
}

// runeEdges reports, for every token offset 0..len(tokens), whether the
// decoded bytes before it end on a character boundary.
func runeEdges(tok tokenizer.Tokenizer, tokens []int) []bool {
	edge := make([]bool, len(tokens)+1)
	edge[0] = true
	edge[len(tokens)] = true

	var pending []byte
	for i, t := range tokens[:len(tokens)-1] {
		pending = append(pending, tok.Decode([]int{t})...)
		for len(pending) > 0 && utf8.FullRune(pending) {
			_, size := utf8.DecodeRune(pending)
			pending = pending[size:]
		}
		edge[i+1] = len(pending) == 0
	}
	return edge
}

func validate(maxTokens, overlap int) error {
	if maxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidChunking, maxTokens)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunking, overlap)
	}
	if overlap >= maxTokens {
		return fmt.Errorf("%w: overlap (%d) must be less than max tokens (%d)", ErrInvalidChunking, overlap, maxTokens)
	}
	return nil
}
