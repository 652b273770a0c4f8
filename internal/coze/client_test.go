package coze

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgj2025/cityinfo-sub001/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.CozeConfig{
		BaseURL:   baseURL,
		APIToken:  "test-token",
		Timeout:   5 * time.Second,
		RateLimit: 100,
		RateBurst: 100,
	})
}

func TestClient_StreamRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/workflow/stream_run", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("id: 0\nevent: Message\ndata: {\"content\":\"hello\"}\n\n" +
			"id: 1\nevent: Done\ndata: {\"debug_url\":\"https://example/d\"}\n\n"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	var events []StreamEvent
	err := client.StreamRun(context.Background(), WorkflowRequest{WorkflowID: "wf"}, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventMessage, events[0].Event)
	assert.JSONEq(t, `{"content":"hello"}`, string(events[0].Data))
	assert.Equal(t, EventDone, events[1].Event)
}

func TestClient_StreamRunFinalEventWithoutBlankLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("event: Message\ndata: {\"content\":\"x\"}"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	var events []StreamEvent
	err := client.StreamRun(context.Background(), WorkflowRequest{WorkflowID: "wf"}, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventMessage, events[0].Event)
}

func TestClient_StreamRunHandlerAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("event: Error\ndata: {\"error_code\":1,\"error_message\":\"bad\"}\n\n" +
			"event: Message\ndata: {\"content\":\"never seen\"}\n\n"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	seen := 0
	err := client.StreamRun(context.Background(), WorkflowRequest{WorkflowID: "wf"}, func(ev StreamEvent) error {
		seen++
		return &APIError{Code: 1, Message: "bad"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, seen)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad", apiErr.Message)
}

func TestClient_StreamRunAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":4013,"msg":"rate limit exceeded"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.StreamRun(context.Background(), WorkflowRequest{WorkflowID: "wf"}, func(StreamEvent) error {
		t.Fatal("handler should not be called")
		return nil
	})

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, 4013, apiErr.Code)
	assert.Equal(t, "rate limit exceeded", apiErr.Message)
	assert.True(t, apiErr.IsRateLimited())
}
