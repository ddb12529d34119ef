package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/swen128/slack-gpt/slack"
)

func TestBuildTranscript(t *testing.T) {
	tests := []struct {
		name     string
		messages []slack.ThreadMessage
		want     string
	}{
		{
			name:     "empty history",
			messages: nil,
			want:     "",
		},
		{
			name: "single message",
			messages: []slack.ThreadMessage{
				{User: "U1", Text: "hi"},
			},
			want: "U1: hi",
		},
		{
			name: "multiple messages in order",
			messages: []slack.ThreadMessage{
				{User: "U1", Text: "hello"},
				{User: "U2", Text: "hey there"},
				{User: "U1", Text: "how's it going?"},
			},
			want: "U1: hello\nU2: hey there\nU1: how's it going?",
		},
		{
			name: "empty text renders as empty line body",
			messages: []slack.ThreadMessage{
				{User: "U1", Text: ""},
				{User: "U2", Text: "reply"},
			},
			want: "U1: \nU2: reply",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildTranscript(tt.messages)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.HasSuffix(got, "\n"), "no trailing newline")
		})
	}
}

func TestBuildTranscript_Deterministic(t *testing.T) {
	messages := []slack.ThreadMessage{
		{User: "U1", Text: "a"},
		{User: "U2", Text: "b"},
	}
	assert.Equal(t, BuildTranscript(messages), BuildTranscript(messages))
}

func TestBuildTranscript_OneLinePerMessage(t *testing.T) {
	messages := []slack.ThreadMessage{
		{User: "U1", Text: "a"},
		{User: "U2", Text: "b"},
		{User: "U3", Text: "c"},
	}
	got := BuildTranscript(messages)
	assert.Len(t, strings.Split(got, "\n"), len(messages))
}
