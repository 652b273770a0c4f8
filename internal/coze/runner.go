package coze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/observability"
)

// RunResult is the final outcome of a workflow run across all retry
// attempts. Content holds the raw workflow output exactly as received; it is
// the parser's job to make sense of it.
type RunResult struct {
	Success  bool                   `json:"success"`
	Content  string                 `json:"content,omitempty"`
	Error    string                 `json:"error,omitempty"`
	DebugURL string                 `json:"debug_url,omitempty"`
	APICalls []domain.APICallRecord `json:"api_calls"`
}

// donePayload is the data body of a Done event. A Done event may carry its
// own content, which takes precedence over accumulated Message content.
type donePayload struct {
	Content  string `json:"content,omitempty"`
	DebugURL string `json:"debug_url,omitempty"`
}

// sleepFunc blocks for d or until the context is cancelled. Injectable so
// retry timing is testable.
type sleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Runner executes a Coze workflow for a city with retries. A run makes up to
// maxAttempts stream calls, waiting attempt*retryDelay between consecutive
// attempts. A stream that completes without producing any content is a
// terminal failure and is not retried.
type Runner struct {
	client      StreamClient
	workflowID  string
	maxAttempts int
	retryDelay  time.Duration
	logger      zerolog.Logger
	metrics     *observability.Metrics
	sleep       sleepFunc
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithSleep replaces the inter-attempt sleep. Used by tests.
func WithSleep(fn sleepFunc) RunnerOption {
	return func(r *Runner) { r.sleep = fn }
}

// NewRunner creates a workflow runner.
func NewRunner(client StreamClient, workflowID string, maxAttempts int, retryDelay time.Duration, logger zerolog.Logger, metrics *observability.Metrics, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:      client,
		workflowID:  workflowID,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger,
		metrics:     metrics,
		sleep:       defaultSleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the workflow for cityName. It returns an error only when the
// context is cancelled; every workflow-level failure is reported through the
// result's Success and Error fields so callers can persist the outcome.
func (r *Runner) Run(ctx context.Context, cityName string) (*RunResult, error) {
	result := &RunResult{APICalls: make([]domain.APICallRecord, 0, r.maxAttempts)}
	log := r.logger.With().Str("city_name", cityName).Logger()

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			r.metrics.RecordWorkflowRetry()
			delay := time.Duration(attempt-1) * r.retryDelay
			log.Warn().Int("attempt", attempt).Dur("delay", delay).
				Err(lastErr).Msg("retrying workflow call")
			if err := r.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("coze: cancelled between attempts: %w", err)
			}
		}

		outcome, err := r.runOnce(ctx, cityName, attempt, result)
		if err == nil {
			if outcome.content == "" {
				// The stream finished cleanly but produced nothing.
				// Another attempt would produce the same emptiness.
				log.Error().Int("attempt", attempt).Msg("workflow completed with no data")
				result.Error = "workflow completed with no data"
				return result, nil
			}
			result.Success = true
			result.Content = outcome.content
			result.DebugURL = outcome.debugURL
			return result, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("coze: workflow call cancelled: %w", ctx.Err())
		}
		lastErr = err
	}

	log.Error().Err(lastErr).Int("attempts", r.maxAttempts).Msg("workflow failed on all attempts")
	result.Error = fmt.Sprintf("all %d attempts failed: %v", r.maxAttempts, lastErr)
	return result, nil
}

// attemptOutcome is the content gathered from one successful stream.
type attemptOutcome struct {
	content  string
	debugURL string
}

// runOnce performs a single stream call, accumulating content per the event
// rules: Message content is last-write-wins, Done content overrides it, an
// Error event fails the attempt immediately, and Interrupt events are logged
// and otherwise ignored.
func (r *Runner) runOnce(ctx context.Context, cityName string, attempt int, result *RunResult) (attemptOutcome, error) {
	log := r.logger.With().Str("city_name", cityName).Int("attempt", attempt).Logger()

	call := domain.APICallRecord{
		Name:      "coze.stream_run",
		Attempt:   attempt,
		StartedAt: time.Now().UTC(),
	}

	var outcome attemptOutcome
	req := WorkflowRequest{
		WorkflowID: r.workflowID,
		Parameters: map[string]interface{}{"city": cityName},
	}

	err := r.client.StreamRun(ctx, req, func(ev StreamEvent) error {
		switch ev.Event {
		case EventMessage:
			var msg messagePayload
			if jsonErr := json.Unmarshal(ev.Data, &msg); jsonErr != nil {
				log.Warn().Err(jsonErr).Msg("undecodable message event")
				return nil
			}
			if msg.Content != "" {
				outcome.content = msg.Content
			}

		case EventDone:
			var done donePayload
			if jsonErr := json.Unmarshal(ev.Data, &done); jsonErr == nil {
				if done.Content != "" {
					outcome.content = done.Content
				}
				outcome.debugURL = done.DebugURL
			}

		case EventError:
			var ep errorPayload
			if jsonErr := json.Unmarshal(ev.Data, &ep); jsonErr != nil {
				return &APIError{Message: string(ev.Data)}
			}
			return &APIError{Code: ep.ErrorCode, Message: ep.ErrorMessage}

		case EventInterrupt:
			var ip interruptPayload
			_ = json.Unmarshal(ev.Data, &ip)
			log.Warn().Str("interrupt_event_id", ip.InterruptData.EventID).
				Str("node_title", ip.NodeTitle).Msg("workflow interrupted, not resuming")

		case EventPing:
			// keepalive
		}
		return nil
	})

	now := time.Now().UTC()
	call.CompletedAt = &now
	call.DurationMS = now.Sub(call.StartedAt).Milliseconds()
	call.Success = err == nil
	if err != nil {
		call.Error = err.Error()
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsRateLimited() {
			r.metrics.RecordWorkflowRateLimited()
		}
		r.metrics.RecordWorkflowCall("error", now.Sub(call.StartedAt).Seconds())
	} else {
		r.metrics.RecordWorkflowCall("success", now.Sub(call.StartedAt).Seconds())
	}
	result.APICalls = append(result.APICalls, call)

	return outcome, err
}
