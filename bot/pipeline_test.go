package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swen128/slack-gpt/config"
	"github.com/swen128/slack-gpt/errors"
	"github.com/swen128/slack-gpt/openai"
	"github.com/swen128/slack-gpt/server/metrics"
	"github.com/swen128/slack-gpt/slack"
	"go.uber.org/zap/zaptest"
)

type fakeThreads struct {
	msgs       []slack.ThreadMessage
	err        error
	calls      int
	gotChannel string
	gotTS      string
}

func (f *fakeThreads) ThreadHistory(ctx context.Context, channel, threadTS string) ([]slack.ThreadMessage, error) {
	f.calls++
	f.gotChannel = channel
	f.gotTS = threadTS
	return f.msgs, f.err
}

type fakeCompleter struct {
	resp   *openai.ChatCompletionResponse
	err    error
	calls  int
	gotReq openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	f.calls++
	f.gotReq = req
	return f.resp, f.err
}

type fakePoster struct {
	err        error
	calls      int
	gotChannel string
	gotTS      string
	gotText    string
}

func (f *fakePoster) PostReply(ctx context.Context, channel, threadTS, text string) error {
	f.calls++
	f.gotChannel = channel
	f.gotTS = threadTS
	f.gotText = text
	return f.err
}

func completionResponse(content string) *openai.ChatCompletionResponse {
	return &openai.ChatCompletionResponse{
		ID:      "chatcmpl-123",
		Object:  "chat.completion",
		Created: 1680000000,
		Choices: []openai.Choice{
			{
				Index:        0,
				Message:      openai.Message{Role: openai.RoleAssistant, Content: content},
				FinishReason: "stop",
			},
		},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func newTestPipeline(t *testing.T, threads *fakeThreads, completer *fakeCompleter, poster *fakePoster) *Pipeline {
	t.Helper()

	cfg := &config.Config{
		Slack: config.SlackConfig{
			SystemPrompt: "You are a helpful Slack bot.",
		},
		OpenAI: config.OpenAIConfig{
			Model: "gpt-3.5-turbo",
		},
	}

	p, err := NewPipeline(threads, completer, poster, cfg, metrics.NewMetrics(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return p
}

func TestHandleMention_RepliesInThread(t *testing.T) {
	threads := &fakeThreads{msgs: []slack.ThreadMessage{{User: "U1", Text: "hi"}}}
	completer := &fakeCompleter{resp: completionResponse("Hello!")}
	poster := &fakePoster{}
	p := newTestPipeline(t, threads, completer, poster)

	err := p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: "111.222", User: "U1"})
	require.NoError(t, err)

	assert.Equal(t, "C1", threads.gotChannel)
	assert.Equal(t, "111.222", threads.gotTS)

	// The prompt is a fixed system persona plus the transcript as the
	// single user message.
	require.Len(t, completer.gotReq.Messages, 2)
	assert.Equal(t, openai.RoleSystem, completer.gotReq.Messages[0].Role)
	assert.Equal(t, "You are a helpful Slack bot.", completer.gotReq.Messages[0].Content)
	assert.Equal(t, openai.RoleUser, completer.gotReq.Messages[1].Role)
	assert.Equal(t, "U1: hi", completer.gotReq.Messages[1].Content)
	assert.Equal(t, openai.ModelGPT35Turbo, completer.gotReq.Model)

	assert.Equal(t, 1, poster.calls)
	assert.Equal(t, "C1", poster.gotChannel)
	assert.Equal(t, "111.222", poster.gotTS, "reply must anchor to the original thread")
	assert.Equal(t, "Hello!", poster.gotText)
}

func TestHandleMention_NoThreadAnchorIsNoOp(t *testing.T) {
	threads := &fakeThreads{}
	completer := &fakeCompleter{resp: completionResponse("unused")}
	poster := &fakePoster{}
	p := newTestPipeline(t, threads, completer, poster)

	err := p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: ""})
	require.NoError(t, err)

	assert.Zero(t, threads.calls, "no history fetch for a mention outside a thread")
	assert.Zero(t, completer.calls, "no completion call for a mention outside a thread")
	assert.Zero(t, poster.calls, "no post for a mention outside a thread")
}

func TestHandleMention_ReplyIsTrimmed(t *testing.T) {
	threads := &fakeThreads{msgs: []slack.ThreadMessage{{User: "U1", Text: "hi"}}}
	completer := &fakeCompleter{resp: completionResponse("  Hello there  ")}
	poster := &fakePoster{}
	p := newTestPipeline(t, threads, completer, poster)

	err := p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: "1.2"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", poster.gotText)
}

func TestHandleMention_EmptyHistoryStillCompletes(t *testing.T) {
	threads := &fakeThreads{msgs: nil}
	completer := &fakeCompleter{resp: completionResponse("Hi!")}
	poster := &fakePoster{}
	p := newTestPipeline(t, threads, completer, poster)

	err := p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: "1.2"})
	require.NoError(t, err)

	require.Len(t, completer.gotReq.Messages, 2)
	assert.Equal(t, "", completer.gotReq.Messages[1].Content, "empty history degrades to an empty transcript")
	assert.Equal(t, 1, poster.calls)
}

func TestHandleMention_CompletionFailureSkipsPost(t *testing.T) {
	threads := &fakeThreads{msgs: []slack.ThreadMessage{{User: "U1", Text: "hi"}}}
	completer := &fakeCompleter{err: errors.NewRateLimitedError("req", 30)}
	poster := &fakePoster{}
	p := newTestPipeline(t, threads, completer, poster)

	err := p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: "1.2"})
	require.Error(t, err)
	assert.Equal(t, errors.RateLimitedError, errors.TypeOf(err))
	assert.Zero(t, poster.calls, "never post when the completion failed")
}

func TestHandleMention_EmptyReplyIsFailure(t *testing.T) {
	threads := &fakeThreads{msgs: []slack.ThreadMessage{{User: "U1", Text: "hi"}}}
	completer := &fakeCompleter{resp: completionResponse("   ")}
	poster := &fakePoster{}
	p := newTestPipeline(t, threads, completer, poster)

	err := p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: "1.2"})
	require.Error(t, err)
	assert.Equal(t, errors.EmptyReplyError, errors.TypeOf(err))
	assert.Zero(t, poster.calls, "never post a blank reply")
}

func TestHandleMention_HistoryFailureSkipsCompletion(t *testing.T) {
	threads := &fakeThreads{err: errors.NewTransportError("req", "slack unreachable", nil)}
	completer := &fakeCompleter{resp: completionResponse("unused")}
	poster := &fakePoster{}
	p := newTestPipeline(t, threads, completer, poster)

	err := p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: "1.2"})
	require.Error(t, err)
	assert.Zero(t, completer.calls)
	assert.Zero(t, poster.calls)
}

func TestHandleMention_PostFailurePropagates(t *testing.T) {
	threads := &fakeThreads{msgs: []slack.ThreadMessage{{User: "U1", Text: "hi"}}}
	completer := &fakeCompleter{resp: completionResponse("Hello!")}
	poster := &fakePoster{err: errors.NewUpstreamError("req", "channel_not_found", nil)}
	p := newTestPipeline(t, threads, completer, poster)

	err := p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: "1.2"})
	require.Error(t, err)
	assert.Equal(t, errors.UpstreamError, errors.TypeOf(err))
}

func TestHandleMention_SelfMentionIgnored(t *testing.T) {
	threads := &fakeThreads{}
	completer := &fakeCompleter{resp: completionResponse("unused")}
	poster := &fakePoster{}
	p := newTestPipeline(t, threads, completer, poster)
	p.SetBotUserID("UBOT")

	err := p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: "1.2", User: "UBOT"})
	require.NoError(t, err)
	assert.Zero(t, threads.calls)
	assert.Zero(t, completer.calls)
	assert.Zero(t, poster.calls)
}

func TestHandleMention_RedeliveryIsNotDeduplicated(t *testing.T) {
	threads := &fakeThreads{msgs: []slack.ThreadMessage{{User: "U1", Text: "hi"}}}
	completer := &fakeCompleter{resp: completionResponse("Hello!")}
	poster := &fakePoster{}
	p := newTestPipeline(t, threads, completer, poster)

	ev := MentionEvent{Channel: "C1", ThreadTS: "1.2"}
	require.NoError(t, p.HandleMention(context.Background(), ev))
	require.NoError(t, p.HandleMention(context.Background(), ev))

	// Two identical invocations produce two independent posts.
	assert.Equal(t, 2, poster.calls)
	assert.Equal(t, 2, threads.calls)
	assert.Equal(t, 2, completer.calls)
}

func TestHandleMention_SamplingOptionsForwarded(t *testing.T) {
	temp := 0.7
	maxTokens := 256
	threads := &fakeThreads{msgs: []slack.ThreadMessage{{User: "U1", Text: "hi"}}}
	completer := &fakeCompleter{resp: completionResponse("Hello!")}
	poster := &fakePoster{}

	cfg := &config.Config{
		Slack: config.SlackConfig{SystemPrompt: "You are a helpful Slack bot."},
		OpenAI: config.OpenAIConfig{
			Model: "gpt-4",
			Sampling: config.SamplingConfig{
				Temperature: &temp,
				MaxTokens:   &maxTokens,
				Stop:        []string{"\n\n"},
			},
		},
	}
	p, err := NewPipeline(threads, completer, poster, cfg, metrics.NewMetrics(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, p.HandleMention(context.Background(), MentionEvent{Channel: "C1", ThreadTS: "1.2"}))

	assert.Equal(t, openai.ModelGPT4, completer.gotReq.Model)
	require.NotNil(t, completer.gotReq.Temperature)
	assert.Equal(t, 0.7, *completer.gotReq.Temperature)
	require.NotNil(t, completer.gotReq.MaxTokens)
	assert.Equal(t, 256, *completer.gotReq.MaxTokens)
	assert.Equal(t, []string{"\n\n"}, completer.gotReq.Stop)
}

func TestHandleMention_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	threads := &fakeThreads{msgs: []slack.ThreadMessage{{User: "U1", Text: "hi"}}}
	completer := &fakeCompleter{err: errors.NewUpstreamError("req", "boom", nil)}
	poster := &fakePoster{}

	cfg := &config.Config{
		Slack:  config.SlackConfig{SystemPrompt: "You are a helpful Slack bot."},
		OpenAI: config.OpenAIConfig{Model: "gpt-3.5-turbo"},
		CircuitBreaker: config.CircuitBreakerConfig{
			FailureThreshold: 2,
		},
	}
	p, err := NewPipeline(threads, completer, poster, cfg, metrics.NewMetrics(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ev := MentionEvent{Channel: "C1", ThreadTS: "1.2"}
	require.Error(t, p.HandleMention(context.Background(), ev))
	require.Error(t, p.HandleMention(context.Background(), ev))

	// Third invocation is rejected by the open breaker without reaching
	// the completion client.
	before := completer.calls
	require.Error(t, p.HandleMention(context.Background(), ev))
	assert.Equal(t, before, completer.calls)
	assert.Zero(t, poster.calls)
}
