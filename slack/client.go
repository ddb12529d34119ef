// Package slack wraps the Slack Web API for the two operations the
// pipeline needs: fetching a thread's ordered message history and posting
// a threaded reply. Failures are mapped onto the bot's error taxonomy.
package slack

import (
	"context"
	"net"
	"net/http"
	"net/url"

	slackapi "github.com/slack-go/slack"
	"github.com/swen128/slack-gpt/config"
	"github.com/swen128/slack-gpt/errors"
	"github.com/swen128/slack-gpt/server/middleware"
	"go.uber.org/zap"
)

// ThreadMessage is one historical message in a conversation thread.
// It exists only for the duration of one pipeline invocation.
type ThreadMessage struct {
	User string
	Text string
}

// Client is the platform collaborator handle. Construct once per process
// and reuse; the underlying Web API client is safe for concurrent use.
type Client struct {
	api    *slackapi.Client
	logger *zap.Logger
}

// NewClient creates a Slack client from configuration. If httpClient is
// nil the SDK's default is used.
func NewClient(cfg config.SlackConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	opts := []slackapi.Option{}
	if httpClient != nil {
		opts = append(opts, slackapi.OptionHTTPClient(httpClient))
	}
	return &Client{
		api:    slackapi.New(cfg.BotToken, opts...),
		logger: logger,
	}
}

// BotUserID resolves the authenticated bot's own user ID. Used at startup
// so the pipeline can ignore mentions authored by the bot itself.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", c.mapError(ctx, "auth.test", err)
	}
	return resp.UserID, nil
}

// ThreadHistory fetches the ordered message history for a thread rooted
// at threadTS in the given channel. The returned order is the platform's
// chronological order. A thread with no messages yields an empty slice,
// not an error.
func (c *Client) ThreadHistory(ctx context.Context, channel, threadTS string) ([]ThreadMessage, error) {
	params := &slackapi.GetConversationRepliesParameters{
		ChannelID: channel,
		Timestamp: threadTS,
		Limit:     200,
	}

	var history []ThreadMessage
	for {
		msgs, hasMore, nextCursor, err := c.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, c.mapError(ctx, "conversations.replies", err)
		}
		for _, msg := range msgs {
			history = append(history, ThreadMessage{
				User: msg.User,
				Text: msg.Text,
			})
		}
		if !hasMore {
			return history, nil
		}
		params.Cursor = nextCursor
	}
}

// PostReply posts text to the given channel, anchored to threadTS so it
// renders as a threaded reply rather than a new top-level message.
func (c *Client) PostReply(ctx context.Context, channel, threadTS, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channel,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionTS(threadTS),
	)
	if err != nil {
		return c.mapError(ctx, "chat.postMessage", err)
	}
	return nil
}

// authFailures are the Web API error strings that indicate a credential
// problem rather than a malformed call.
var authFailures = map[string]bool{
	"not_authed":       true,
	"invalid_auth":     true,
	"account_inactive": true,
	"token_revoked":    true,
	"token_expired":    true,
	"missing_scope":    true,
}

// mapError translates a Slack SDK failure onto the bot's error taxonomy.
func (c *Client) mapError(ctx context.Context, op string, err error) error {
	requestID := middleware.GetRequestID(ctx)

	var rateErr *slackapi.RateLimitedError
	if errors.As(err, &rateErr) {
		return errors.NewRateLimitedError(requestID, int(rateErr.RetryAfter.Seconds()))
	}

	var apiErr slackapi.SlackErrorResponse
	if errors.As(err, &apiErr) {
		if authFailures[apiErr.Err] {
			return errors.NewAuthenticationError(requestID, "Slack rejected the bot credential", err)
		}
		return errors.NewUpstreamError(requestID, "Slack API call failed: "+op, err)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || ctx.Err() != nil {
		return errors.NewTransportError(requestID, "Slack API unreachable: "+op, err)
	}

	c.logger.Debug("unclassified Slack error", zap.String("op", op), zap.Error(err))
	return errors.NewUpstreamError(requestID, "Slack API call failed: "+op, err)
}
