package coze

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgj2025/cityinfo-sub001/internal/observability"
)

// fakeStream is a scripted StreamClient. Each call consumes the next script
// entry: either an error to return or a list of events to deliver.
type fakeStream struct {
	calls   int
	scripts []fakeScript
}

type fakeScript struct {
	events []StreamEvent
	err    error
}

func (f *fakeStream) StreamRun(_ context.Context, _ WorkflowRequest, handle EventHandler) error {
	script := f.scripts[f.calls]
	f.calls++
	if script.err != nil {
		return script.err
	}
	for _, ev := range script.events {
		if err := handle(ev); err != nil {
			return err
		}
	}
	return nil
}

func messageEvent(content string) StreamEvent {
	data, _ := json.Marshal(messagePayload{Content: content})
	return StreamEvent{Event: EventMessage, Data: data}
}

func doneEvent(content string) StreamEvent {
	data, _ := json.Marshal(donePayload{Content: content, DebugURL: "https://coze.example/debug/1"})
	return StreamEvent{Event: EventDone, Data: data}
}

func errorEvent(code int, msg string) StreamEvent {
	data, _ := json.Marshal(errorPayload{ErrorCode: code, ErrorMessage: msg})
	return StreamEvent{Event: EventError, Data: data}
}

func newTestRunner(t *testing.T, client StreamClient, delays *[]time.Duration) *Runner {
	t.Helper()
	sleep := func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	metrics := observability.NewMetrics("runner_test_" + sanitize(t.Name()))
	return NewRunner(client, "wf-123", 3, 2*time.Second, zerolog.Nop(), metrics, WithSleep(sleep))
}

// sanitize makes a test name usable as a Prometheus namespace.
func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func TestRunner_SuccessFirstAttempt(t *testing.T) {
	client := &fakeStream{scripts: []fakeScript{
		{events: []StreamEvent{messageEvent(`[{"name":"a"}]`)}},
	}}
	var delays []time.Duration
	runner := newTestRunner(t, client, &delays)

	res, err := runner.Run(context.Background(), "Hangzhou")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, `[{"name":"a"}]`, res.Content)
	assert.Empty(t, delays)
	require.Len(t, res.APICalls, 1)
	assert.True(t, res.APICalls[0].Success)
	assert.Equal(t, 1, res.APICalls[0].Attempt)
}

func TestRunner_MessageLastWriteWins(t *testing.T) {
	client := &fakeStream{scripts: []fakeScript{
		{events: []StreamEvent{
			messageEvent("partial"),
			messageEvent("final"),
		}},
	}}
	var delays []time.Duration
	runner := newTestRunner(t, client, &delays)

	res, err := runner.Run(context.Background(), "Hangzhou")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "final", res.Content)
}

func TestRunner_DoneOverridesMessages(t *testing.T) {
	client := &fakeStream{scripts: []fakeScript{
		{events: []StreamEvent{
			messageEvent("streamed"),
			doneEvent("authoritative"),
		}},
	}}
	var delays []time.Duration
	runner := newTestRunner(t, client, &delays)

	res, err := runner.Run(context.Background(), "Hangzhou")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "authoritative", res.Content)
	assert.Equal(t, "https://coze.example/debug/1", res.DebugURL)
}

func TestRunner_RetriesWithLinearBackoff(t *testing.T) {
	client := &fakeStream{scripts: []fakeScript{
		{err: &APIError{StatusCode: 500, Message: "upstream blew up"}},
		{events: []StreamEvent{errorEvent(720701, "node failed")}},
		{events: []StreamEvent{messageEvent("ok")}},
	}}
	var delays []time.Duration
	runner := newTestRunner(t, client, &delays)

	res, err := runner.Run(context.Background(), "Hangzhou")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Content)

	// Waits grow with the attempt number that just failed.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)

	require.Len(t, res.APICalls, 3)
	assert.False(t, res.APICalls[0].Success)
	assert.False(t, res.APICalls[1].Success)
	assert.Contains(t, res.APICalls[1].Error, "node failed")
	assert.True(t, res.APICalls[2].Success)
}

func TestRunner_AllAttemptsFail(t *testing.T) {
	client := &fakeStream{scripts: []fakeScript{
		{err: &APIError{StatusCode: 500, Message: "boom"}},
		{err: &APIError{StatusCode: 500, Message: "boom"}},
		{err: &APIError{StatusCode: 500, Message: "boom"}},
	}}
	var delays []time.Duration
	runner := newTestRunner(t, client, &delays)

	res, err := runner.Run(context.Background(), "Hangzhou")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "all 3 attempts failed")
	assert.Contains(t, res.Error, "boom")

	// No delay after the final attempt.
	assert.Len(t, delays, 2)
	assert.Len(t, res.APICalls, 3)
}

func TestRunner_EmptyStreamIsTerminal(t *testing.T) {
	client := &fakeStream{scripts: []fakeScript{
		{events: []StreamEvent{{Event: EventPing}}},
	}}
	var delays []time.Duration
	runner := newTestRunner(t, client, &delays)

	res, err := runner.Run(context.Background(), "Hangzhou")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "workflow completed with no data", res.Error)

	// A clean-but-empty stream is not retried.
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, delays)
}

func TestRunner_InterruptIsIgnored(t *testing.T) {
	interruptData, _ := json.Marshal(map[string]interface{}{
		"interrupt_data": map[string]interface{}{"event_id": "ev-1", "type": 1},
	})
	client := &fakeStream{scripts: []fakeScript{
		{events: []StreamEvent{
			messageEvent("before"),
			{Event: EventInterrupt, Data: interruptData},
			messageEvent("after"),
		}},
	}}
	var delays []time.Duration
	runner := newTestRunner(t, client, &delays)

	res, err := runner.Run(context.Background(), "Hangzhou")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "after", res.Content)
}

func TestRunner_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeStream{scripts: []fakeScript{
		{err: &APIError{StatusCode: 500, Message: "boom"}},
	}}
	metrics := observability.NewMetrics("runner_test_cancel")
	sleep := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	runner := NewRunner(client, "wf-123", 3, 2*time.Second, zerolog.Nop(), metrics, WithSleep(sleep))

	res, err := runner.Run(ctx, "Hangzhou")

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}
