package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// lineTokenizer counts one token per line, which makes truncation
// behavior easy to reason about in tests.
type lineTokenizer struct{}

func (lineTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Split(text, "\n"))
}

func TestTruncateTranscript(t *testing.T) {
	counter := NewTokenCounterWithTokenizer(lineTokenizer{})
	transcript := "U1: a\nU2: b\nU3: c\nU4: d"

	tests := []struct {
		name      string
		maxTokens int
		want      string
	}{
		{
			name:      "zero budget disables trimming",
			maxTokens: 0,
			want:      transcript,
		},
		{
			name:      "within budget is unchanged",
			maxTokens: 4,
			want:      transcript,
		},
		{
			name:      "oldest lines dropped first",
			maxTokens: 2,
			want:      "U3: c\nU4: d",
		},
		{
			name:      "single line kept even when over budget",
			maxTokens: 1,
			want:      "U4: d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, counter.TruncateTranscript(transcript, tt.maxTokens))
		})
	}
}

func TestTruncateTranscript_Empty(t *testing.T) {
	counter := NewTokenCounterWithTokenizer(lineTokenizer{})
	assert.Equal(t, "", counter.TruncateTranscript("", 10))
}
