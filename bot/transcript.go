// Package bot implements the mention pipeline: it turns a thread's
// history into a transcript, asks the completion service for a reply,
// and posts that reply back into the thread.
package bot

import (
	"strings"

	"github.com/swen128/slack-gpt/slack"
)

// BuildTranscript renders an ordered thread history as a single prompt
// string, one "<author>: <text>" line per message, joined by newlines in
// input order. It is a pure function: the same input always yields the
// same transcript, and an empty history yields the empty string.
func BuildTranscript(messages []slack.ThreadMessage) string {
	if len(messages) == 0 {
		return ""
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, msg.User+": "+msg.Text)
	}
	return strings.Join(lines, "\n")
}
