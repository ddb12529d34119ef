// Package openai implements a narrow typed client for the chat completions
// API. It serializes one request, sends it with bearer authorization, and
// decodes either a structured response or a typed failure.
//
// The client performs no retries and never consumes a streamed response;
// retry policy, if any, belongs to the caller. It is safe for concurrent
// use: the underlying http.Client may be shared across invocations.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/swen128/slack-gpt/config"
	"github.com/swen128/slack-gpt/errors"
	"github.com/swen128/slack-gpt/server/middleware"
)

// maxErrorBodyBytes bounds how much of a remote error body is retained
// for error details.
const maxErrorBodyBytes = 8 << 10

// Client talks to the chat completions endpoint. Construct once per
// process and reuse; it is immutable after construction.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

// NewClient creates a completion client from configuration. If httpClient
// is nil a default client is used; connection pooling across invocations
// is handled by net/http.
func NewClient(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
	}
}

// CreateChatCompletion sends one chat completion request and returns the
// decoded response. It fails with a typed error:
//
//   - AuthenticationError when the service rejects the credential
//   - InvalidRequestError when the service reports a malformed request
//   - RateLimitedError when throttled
//   - TransportError for network-level failures, including the per-call timeout
//   - UpstreamError for any other non-2xx response, or a 2xx with zero choices
//
// There are no partial results: either a fully decoded response is
// returned or an error is.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	requestID := middleware.GetRequestID(ctx)

	if len(req.Messages) == 0 {
		return nil, errors.NewInvalidRequestError(requestID, "messages must not be empty", nil)
	}
	if !req.Model.Supported() {
		return nil, errors.NewInvalidRequestError(requestID, "unsupported model", map[string]interface{}{
			"model": string(req.Model),
		})
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewInternalError(requestID, fmt.Errorf("marshal completion request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInternalError(requestID, fmt.Errorf("build completion request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewTransportError(requestID, "completion request timed out", err)
		}
		return nil, errors.NewTransportError(requestID, "completion request failed", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, c.errorFromResponse(requestID, httpResp)
	}

	var resp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, errors.NewUpstreamError(requestID, "malformed completion response", err)
	}

	// A 2xx with no choices carries nothing usable; never treat it as success.
	if len(resp.Choices) == 0 {
		return nil, errors.NewUpstreamError(requestID, "completion response contained no choices", nil)
	}

	return &resp, nil
}

// errorFromResponse maps a non-2xx response onto the error taxonomy,
// carrying the remote status code and raw body when available.
func (c *Client) errorFromResponse(requestID string, httpResp *http.Response) *errors.BotError {
	raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))

	message := httpResp.Status
	var envelope apiErrorBody
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	details := map[string]interface{}{
		"status_code": httpResp.StatusCode,
		"body":        string(raw),
	}

	switch httpResp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewError(errors.AuthenticationError, message, http.StatusUnauthorized, requestID, details, nil)
	case http.StatusTooManyRequests:
		retryAfter := 0
		if v := httpResp.Header.Get("Retry-After"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				retryAfter = n
			}
		}
		details["retry_after"] = retryAfter
		return errors.NewError(errors.RateLimitedError, message, http.StatusTooManyRequests, requestID, details, nil)
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return errors.NewError(errors.InvalidRequestError, message, http.StatusBadRequest, requestID, details, nil)
	default:
		return errors.NewError(errors.UpstreamError, message, http.StatusBadGateway, requestID, details, nil)
	}
}
