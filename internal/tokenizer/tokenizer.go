// Package tokenizer turns text into stable integer token sequences. Offsets
// produced by the chunker are expressed in these tokens, so every
// implementation must be deterministic and must decode a full encoding back to
// the exact input bytes.
package tokenizer

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/Yates-Labs/reseek/internal/apperr"
)

const (
	NameRune       = "rune"
	NameCL100KBase = "cl100k_base"
)

var ErrUnknownTokenizer = fmt.Errorf("%w: unknown tokenizer", apperr.ErrInvalidConfiguration)

// Tokenizer converts between text and token IDs.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Name() string
}

// New returns the tokenizer registered under name.
func New(name string) (Tokenizer, error) {
	switch name {
	case NameRune:
		return NewRune(), nil
	case NameCL100KBase, "":
		return NewTiktoken(NameCL100KBase)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTokenizer, name)
	}
}

// RuneTokenizer emits one token per Unicode code point. Bytes that are not
// part of a valid UTF-8 sequence are emitted as negative IDs (-1 - byte) so
// that arbitrary input still round-trips.
type RuneTokenizer struct{}

func NewRune() *RuneTokenizer { return &RuneTokenizer{} }

func (RuneTokenizer) Name() string { return NameRune }

func (RuneTokenizer) Encode(text string) []int {
	tokens := make([]int, 0, len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size == 1 {
			tokens = append(tokens, -1-int(text[i]))
		} else {
			tokens = append(tokens, int(r))
		}
		i += size
	}
	return tokens
}

func (RuneTokenizer) Decode(tokens []int) string {
	buf := make([]byte, 0, len(tokens))
	for _, t := range tokens {
		if t < 0 {
			buf = append(buf, byte(-1-t))
			continue
		}
		buf = utf8.AppendRune(buf, rune(t))
	}
	return string(buf)
}

// TiktokenTokenizer wraps a BPE encoding. The vocabulary is loaded from the
// embedded offline loader, so construction never touches the network.
type TiktokenTokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

func NewTiktoken(encoding string) (*TiktokenTokenizer, error) {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnknownTokenizer, encoding, err)
	}
	if enc == nil {
		return nil, errors.New("tiktoken returned nil encoding")
	}
	return &TiktokenTokenizer{encoding: encoding, enc: enc}, nil
}

func (t *TiktokenTokenizer) Name() string { return t.encoding }

// Encode treats special-token text as ordinary text.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
