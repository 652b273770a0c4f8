// Package coze calls Coze workflows over the streaming run API and wraps
// them with the retry policy used by collection tasks.
package coze

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hgj2025/cityinfo-sub001/internal/config"
)

// EventHandler receives each stream event in order. Returning a non-nil
// error aborts the stream and is propagated out of StreamRun.
type EventHandler func(ev StreamEvent) error

// StreamClient executes a workflow and delivers its event stream.
type StreamClient interface {
	StreamRun(ctx context.Context, req WorkflowRequest, handle EventHandler) error
}

// Client is the HTTP implementation of StreamClient against the Coze
// workflow streaming API. All requests pass through a token bucket rate
// limiter so concurrent collection tasks cannot exceed the account quota.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	limiter    *rate.Limiter
}

// NewClient creates a Coze API client from configuration.
func NewClient(cfg config.CozeConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// StreamRun executes the workflow and feeds each server-sent event to
// handle. It returns when the stream ends, the handler aborts, or the
// context is cancelled. A non-200 response is returned as an *APIError.
func (c *Client) StreamRun(ctx context.Context, req WorkflowRequest, handle EventHandler) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("coze: rate limiter wait: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("coze: failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/v1/workflow/stream_run"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("coze: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return parseAPIError(httpResp.StatusCode, httpResp.Body)
	}

	return readEventStream(httpResp.Body, handle)
}

// readEventStream parses a text/event-stream body and dispatches complete
// events. Multi-line data fields are joined with newlines per the SSE spec.
func readEventStream(r io.Reader, handle EventHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)

	var ev StreamEvent
	var dataLines []string

	flush := func() error {
		if ev.Event == "" && len(dataLines) == 0 {
			return nil
		}
		ev.Data = json.RawMessage(strings.Join(dataLines, "\n"))
		err := handle(ev)
		ev = StreamEvent{}
		dataLines = nil
		return err
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "id:"):
			ev.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			ev.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return &APIError{Message: fmt.Sprintf("stream read failed: %v", err)}
	}

	// Streams that end without a trailing blank line still deliver the
	// final event.
	return flush()
}

// parseAPIError builds an *APIError from a non-200 response.
func parseAPIError(statusCode int, body io.Reader) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(body, 1<<20))

	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    string(raw),
	}

	var errResp apiErrorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Msg != "" {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Msg
	}

	return apiErr
}
