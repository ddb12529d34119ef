package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/swen128/slack-gpt/errors"
	"github.com/swen128/slack-gpt/server/middleware"
	"go.uber.org/zap"
)

// LambdaHandler adapts the API Gateway proxy envelope onto the events
// adapter, for deployments where the bot runs as a serverless function
// instead of a long-lived HTTP server. It contains no logic of its own
// beyond translating the envelope.
type LambdaHandler struct {
	events *EventsHandler
	logger *zap.Logger
}

// NewLambdaHandler creates the Lambda adapter.
func NewLambdaHandler(eventsHandler *EventsHandler, logger *zap.Logger) *LambdaHandler {
	return &LambdaHandler{
		events: eventsHandler,
		logger: logger,
	}
}

// Handle processes one Lambda invocation. The HTTP middleware chain does
// not run here, so the request ID is minted directly. Failures are
// reported in the response body; the returned error stays nil so the
// runtime does not retry an invocation the pipeline already rejected.
func (h *LambdaHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := uuid.New().String()
	ctx = middleware.WithRequestID(ctx, requestID)

	header := http.Header{}
	for k, v := range req.Headers {
		header.Set(k, v)
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return errorResponse(errors.NewValidationError(requestID, "Undecodable event body", nil)), nil
		}
		body = decoded
	}

	respBody, botErr := h.events.process(ctx, header, body)
	if botErr != nil {
		errors.LogError(h.logger, botErr, requestID)
		return errorResponse(botErr), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       respBody,
	}, nil
}

func errorResponse(botErr *errors.BotError) events.APIGatewayProxyResponse {
	body, err := json.Marshal(botErr)
	if err != nil {
		body = []byte(`{"type":"internal_error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: botErr.Code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
