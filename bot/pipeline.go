package bot

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/swen128/slack-gpt/config"
	"github.com/swen128/slack-gpt/errors"
	"github.com/swen128/slack-gpt/openai"
	"github.com/swen128/slack-gpt/server/metrics"
	"github.com/swen128/slack-gpt/server/middleware"
	"github.com/swen128/slack-gpt/slack"
	"go.uber.org/zap"
)

// MentionEvent is the typed inbound mention the pipeline consumes.
// ThreadTS is empty when the mention occurred outside a thread.
type MentionEvent struct {
	Channel  string
	ThreadTS string
	User     string
	Text     string
}

// ThreadSource fetches the ordered message history of a thread.
type ThreadSource interface {
	ThreadHistory(ctx context.Context, channel, threadTS string) ([]slack.ThreadMessage, error)
}

// ReplyPoster posts a threaded reply.
type ReplyPoster interface {
	PostReply(ctx context.Context, channel, threadTS, text string) error
}

// Completer sends one chat completion request.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
}

// Pipeline orchestrates one mention: fetch history, build the transcript,
// request a completion, post the trimmed reply. It holds no per-thread
// state; every invocation reconstructs the thread from the platform, so
// concurrent invocations are independent. All collaborators are injected
// and immutable after construction.
type Pipeline struct {
	threads     ThreadSource
	completions Completer
	replies     ReplyPoster

	model        openai.Model
	systemPrompt string
	sampling     config.SamplingConfig
	botUserID    string
	maxTokens    int

	counter *TokenCounter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewPipeline creates a pipeline from its collaborators and configuration.
// The circuit breaker wraps only the completion call: Slack calls are not
// behind it because Slack redelivers failed events on its own.
func NewPipeline(threads ThreadSource, completions Completer, replies ReplyPoster, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Pipeline, error) {
	p := &Pipeline{
		threads:      threads,
		completions:  completions,
		replies:      replies,
		model:        openai.Model(cfg.OpenAI.Model),
		systemPrompt: cfg.Slack.SystemPrompt,
		sampling:     cfg.OpenAI.Sampling,
		botUserID:    cfg.Slack.BotUserID,
		maxTokens:    cfg.OpenAI.MaxContextTokens,
		metrics:      m,
		logger:       logger,
	}

	if cfg.OpenAI.MaxContextTokens > 0 {
		counter, err := NewTokenCounter(cfg.OpenAI.Model)
		if err != nil {
			return nil, err
		}
		p.counter = counter
	}

	threshold := cfg.CircuitBreaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "completions",
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return p, nil
}

// SetBotUserID records the bot's own user ID so self-authored mentions
// are ignored. Called once at startup, before any event is handled.
func (p *Pipeline) SetBotUserID(id string) {
	p.botUserID = id
}

// HandleMention runs the full pipeline for one mention event. The three
// network operations run strictly in sequence: history fetch, completion,
// reply post. A reply is posted only when the completion succeeded and
// the extracted, trimmed text is non-empty; on any failure the thread
// stays silent and the error propagates to the adapter boundary.
//
// A mention with no thread anchor is a no-op, not an error: there is no
// prior context to reply to. Redelivered events are not deduplicated;
// each invocation is independent.
func (p *Pipeline) HandleMention(ctx context.Context, ev MentionEvent) error {
	if middleware.GetRequestID(ctx) == "" {
		ctx = middleware.WithRequestID(ctx, uuid.New().String())
	}
	requestID := middleware.GetRequestID(ctx)

	logger := p.logger.With(
		zap.String("request_id", requestID),
		zap.String("channel", ev.Channel),
		zap.String("thread_ts", ev.ThreadTS),
	)

	if ev.ThreadTS == "" {
		logger.Debug("Ignoring mention outside a thread")
		p.metrics.MentionsTotal.WithLabelValues("ignored").Inc()
		return nil
	}
	if p.botUserID != "" && ev.User == p.botUserID {
		logger.Debug("Ignoring mention authored by the bot itself")
		p.metrics.MentionsTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	history, err := p.threads.ThreadHistory(ctx, ev.Channel, ev.ThreadTS)
	if err != nil {
		return p.fail(logger, "history fetch failed", err)
	}

	// Zero messages degrades to an empty transcript rather than failing.
	transcript := BuildTranscript(history)
	if p.counter != nil {
		transcript = p.counter.TruncateTranscript(transcript, p.maxTokens)
	}

	start := time.Now()
	resp, err := p.complete(ctx, p.buildRequest(transcript))
	p.metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return p.fail(logger, "completion failed", err)
	}

	p.metrics.TokensUsed.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
	p.metrics.TokensUsed.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return p.fail(logger, "completion yielded empty reply", errors.NewEmptyReplyError(requestID))
	}

	if err := p.replies.PostReply(ctx, ev.Channel, ev.ThreadTS, reply); err != nil {
		return p.fail(logger, "reply post failed", err)
	}

	p.metrics.RepliesPosted.Inc()
	p.metrics.MentionsTotal.WithLabelValues("replied").Inc()
	logger.Info("Posted reply",
		zap.Int("history_messages", len(history)),
		zap.Int("reply_length", len(reply)),
	)
	return nil
}

// buildRequest constructs the completion request: the fixed system
// persona followed by one user message carrying the transcript.
func (p *Pipeline) buildRequest(transcript string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.Message{
			{Role: openai.RoleSystem, Content: p.systemPrompt},
			{Role: openai.RoleUser, Content: transcript},
		},
		Temperature:      p.sampling.Temperature,
		TopP:             p.sampling.TopP,
		N:                p.sampling.N,
		Stop:             p.sampling.Stop,
		MaxTokens:        p.sampling.MaxTokens,
		PresencePenalty:  p.sampling.PresencePenalty,
		FrequencyPenalty: p.sampling.FrequencyPenalty,
		LogitBias:        p.sampling.LogitBias,
		User:             p.sampling.User,
	}
}

// complete invokes the completion client through the circuit breaker.
func (p *Pipeline) complete(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.completions.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errors.NewUpstreamError(middleware.GetRequestID(ctx), "completion circuit open", err)
		}
		return nil, err
	}
	return result.(*openai.ChatCompletionResponse), nil
}

// fail records a pipeline failure and returns the error unmodified so it
// propagates to the adapter boundary. No reply is ever posted after this.
func (p *Pipeline) fail(logger *zap.Logger, msg string, err error) error {
	p.metrics.MentionsTotal.WithLabelValues("failed").Inc()
	p.metrics.ErrorsTotal.WithLabelValues(string(errors.TypeOf(err))).Inc()
	logger.Error(msg, zap.Error(err))
	return err
}
