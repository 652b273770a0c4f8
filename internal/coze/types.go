package coze

import (
	"encoding/json"
	"fmt"
)

// Stream event names emitted by the Coze workflow streaming API.
const (
	EventMessage   = "Message"
	EventDone      = "Done"
	EventError     = "Error"
	EventInterrupt = "Interrupt"
	EventPing      = "PING"
)

// WorkflowRequest describes a single workflow execution request.
type WorkflowRequest struct {
	WorkflowID string                 `json:"workflow_id"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// StreamEvent is a single server-sent event from a streaming workflow run.
// Data is left raw; its shape depends on the event name.
type StreamEvent struct {
	ID    string
	Event string
	Data  json.RawMessage
}

// messagePayload is the data body of a Message event. Content carries the
// workflow node's output, typically a JSON-encoded string.
type messagePayload struct {
	Content      string `json:"content"`
	NodeTitle    string `json:"node_title,omitempty"`
	NodeIsFinish bool   `json:"node_is_finish,omitempty"`
}

// errorPayload is the data body of an Error event.
type errorPayload struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// interruptPayload is the data body of an Interrupt event. Interrupts signal
// that the workflow paused waiting for input; they carry an event ID that
// would be needed to resume.
type interruptPayload struct {
	InterruptData struct {
		EventID string `json:"event_id"`
		Type    int    `json:"type"`
	} `json:"interrupt_data"`
	NodeTitle string `json:"node_title,omitempty"`
}

// APIError represents a failed call to the Coze API, either an HTTP-level
// failure or an Error event received mid-stream.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("coze: API error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("coze: workflow error (code %d): %s", e.Code, e.Message)
}

// IsRateLimited reports whether the error is an HTTP 429 response.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// apiErrorResponse is the error body returned by the Coze API for non-200
// responses.
type apiErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
