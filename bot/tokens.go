package bot

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens in text. Abstracted so tests can substitute a
// deterministic implementation for the real BPE encoder.
type Tokenizer interface {
	CountTokens(text string) int
}

// tiktokenWrapper wraps tiktoken to implement our Tokenizer interface
type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	return len(t.Encode(text, nil, nil))
}

// TokenCounter handles token counting for transcripts using tiktoken
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a token counter for the given model.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("get encoding for model %s: %w", model, err)
	}
	return &TokenCounter{encoding: &tiktokenWrapper{encoding}}, nil
}

// NewTokenCounterWithTokenizer creates a token counter with a custom
// tokenizer. Used in tests.
func NewTokenCounterWithTokenizer(tokenizer Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: tokenizer}
}

// Count returns the token count of text.
func (t *TokenCounter) Count(text string) int {
	return t.encoding.CountTokens(text)
}

// TruncateTranscript drops the oldest transcript lines until the result
// fits within maxTokens. A transcript already within budget is returned
// unchanged, so trimming never alters a transcript that fits. When even
// the final line alone exceeds the budget it is returned as-is; the
// completion service enforces its own hard limit.
func (t *TokenCounter) TruncateTranscript(transcript string, maxTokens int) string {
	if maxTokens <= 0 || t.Count(transcript) <= maxTokens {
		return transcript
	}

	lines := strings.Split(transcript, "\n")
	for len(lines) > 1 {
		lines = lines[1:]
		candidate := strings.Join(lines, "\n")
		if t.Count(candidate) <= maxTokens {
			return candidate
		}
	}
	return lines[0]
}
