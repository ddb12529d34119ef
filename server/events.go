package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/swen128/slack-gpt/bot"
	"github.com/swen128/slack-gpt/errors"
	"github.com/swen128/slack-gpt/server/middleware"
	"go.uber.org/zap"
)

// maxEventBytes bounds the inbound event body size.
const maxEventBytes = 1 << 20

// MentionHandler is the pipeline surface the adapter dispatches to.
type MentionHandler interface {
	HandleMention(ctx context.Context, ev bot.MentionEvent) error
}

// EventsHandler is the invocation adapter for Slack's Events API. It
// verifies the request signature, answers URL verification challenges,
// and hands mention events to the pipeline. It holds no business logic.
type EventsHandler struct {
	signingSecret string
	pipeline      MentionHandler
	logger        *zap.Logger
}

// NewEventsHandler creates the events adapter.
func NewEventsHandler(signingSecret string, pipeline MentionHandler, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		signingSecret: signingSecret,
		pipeline:      pipeline,
		logger:        logger,
	}
}

// ServeHTTP implements http.Handler for the events endpoint.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		errors.WriteError(w, errors.NewValidationError(
			middleware.GetRequestID(r.Context()),
			"Failed to read event body",
			nil,
		))
		return
	}

	respBody, botErr := h.process(r.Context(), r.Header, body)
	if botErr != nil {
		errors.LogError(h.logger, botErr, middleware.GetRequestID(r.Context()))
		errors.WriteError(w, botErr)
		return
	}

	if respBody != "" {
		w.Header().Set("Content-Type", "text/plain")
	}
	w.WriteHeader(http.StatusOK)
	if respBody != "" {
		if _, err := w.Write([]byte(respBody)); err != nil {
			h.logger.Error("Failed to write challenge response", zap.Error(err))
		}
	}
}

// process verifies and dispatches one raw event. It is shared between the
// HTTP endpoint and the Lambda adapter. The returned string is non-empty
// only for URL verification challenges.
func (h *EventsHandler) process(ctx context.Context, header http.Header, body []byte) (string, *errors.BotError) {
	requestID := middleware.GetRequestID(ctx)

	sv, err := slackapi.NewSecretsVerifier(header, h.signingSecret)
	if err != nil {
		return "", errors.NewValidationError(requestID, "Missing or stale event signature", nil)
	}
	if _, err := sv.Write(body); err != nil {
		return "", errors.NewInternalError(requestID, err)
	}
	if err := sv.Ensure(); err != nil {
		return "", errors.NewError(errors.AuthenticationError, "Invalid event signature",
			http.StatusUnauthorized, requestID, nil, err)
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return "", errors.NewValidationError(requestID, "Unparseable event body", nil)
	}

	switch eventsAPIEvent.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			return "", errors.NewValidationError(requestID, "Unparseable challenge body", nil)
		}
		return challenge.Challenge, nil

	case slackevents.CallbackEvent:
		if ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.AppMentionEvent); ok {
			return "", h.dispatch(ctx, ev)
		}
		// Other callback events are outside scope; acknowledge and move on.
		return "", nil

	default:
		return "", nil
	}
}

// dispatch hands a mention event to the pipeline and normalizes failures.
func (h *EventsHandler) dispatch(ctx context.Context, ev *slackevents.AppMentionEvent) *errors.BotError {
	err := h.pipeline.HandleMention(ctx, bot.MentionEvent{
		Channel:  ev.Channel,
		ThreadTS: ev.ThreadTimeStamp,
		User:     ev.User,
		Text:     ev.Text,
	})
	if err == nil {
		return nil
	}

	var botErr *errors.BotError
	if errors.As(err, &botErr) {
		return botErr
	}
	return errors.NewInternalError(middleware.GetRequestID(ctx), err)
}
