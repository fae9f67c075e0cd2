// Package assembly turns intent scores into a token budget and a layered
// system prompt.
package assembly

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts model tokens and trims text to a token count.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) int
	// Tail returns the longest suffix of text whose Count is at most max.
	Tail(text string, max int) string
}

// NewTokenizer loads the named BPE encoding (e.g. cl100k_base). When the
// encoding cannot be loaded it logs a warning and returns a character
// based estimator instead.
func NewTokenizer(encoding string, logger *slog.Logger) Tokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("token counting will use estimate", "encoding", encoding, "error", err)
		return EstimateTokenizer{}
	}
	return &bpeTokenizer{enc: enc}
}

type bpeTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t *bpeTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *bpeTokenizer) Tail(text string, max int) string {
	if max <= 0 {
		return ""
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= max {
		return text
	}
	// A decoded suffix can re-encode to more tokens when the cut lands
	// inside a multi-byte rune; shrink until it fits.
	for n := max; n > 0; n-- {
		tail := t.enc.Decode(tokens[len(tokens)-n:])
		if t.Count(tail) <= max {
			return tail
		}
	}
	return ""
}

// EstimateTokenizer approximates BPE counts: four ASCII characters per
// token and two tokens per non-ASCII rune.
type EstimateTokenizer struct{}

func (EstimateTokenizer) Count(text string) int {
	ascii, other := 0, 0
	for _, r := range text {
		if r <= 127 {
			ascii++
		} else {
			other++
		}
	}
	return estimate(ascii, other)
}

func (EstimateTokenizer) Tail(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	ascii, other := 0, 0
	start := len(runes)
	for i := len(runes) - 1; i >= 0; i-- {
		a, o := ascii, other
		if runes[i] <= 127 {
			a++
		} else {
			o++
		}
		if estimate(a, o) > max {
			break
		}
		ascii, other, start = a, o, i
	}
	return string(runes[start:])
}

func estimate(ascii, other int) int {
	return (ascii+3)/4 + other*2
}
