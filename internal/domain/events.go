package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for published lifecycle events.
const (
	EventTypeTaskStarted    = "task.started"
	EventTypeTaskCompleted  = "task.completed"
	EventTypeTaskFailed     = "task.failed"
	EventTypeReviewApproved = "review.approved"
	EventTypeReviewRejected = "review.rejected"
)

// Event is a lifecycle notification published to Kafka. Delivery is
// best-effort; consumers must tolerate duplicates and gaps.
type Event struct {
	EventID       string                 `json:"event_id"`
	EventVersion  int                    `json:"event_version"`
	AggregateID   string                 `json:"aggregate_id"`
	AggregateType string                 `json:"aggregate_type"`
	EventType     string                 `json:"event_type"`
	Payload       json.RawMessage        `json:"payload"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewEvent creates a lifecycle event with the given parameters.
// The payload is JSON-serialized automatically.
func NewEvent(eventType, aggregateID, aggregateType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:       uuid.New().String(),
		EventVersion:  1,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payloadBytes,
		CreatedAt:     time.Now(),
	}, nil
}

// WithMetadata sets the metadata on the event.
func (e *Event) WithMetadata(metadata map[string]interface{}) *Event {
	e.Metadata = metadata
	return e
}

// TaskStartedPayload is the payload for task.started events.
type TaskStartedPayload struct {
	TaskID   uuid.UUID `json:"task_id"`
	CityName string    `json:"city_name"`
	DataType DataType  `json:"data_type"`
}

// TaskCompletedPayload is the payload for task.completed events.
type TaskCompletedPayload struct {
	TaskID          uuid.UUID `json:"task_id"`
	CityName        string    `json:"city_name"`
	RecordCount     int       `json:"record_count"`
	ReviewCount     int       `json:"review_count"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// TaskFailedPayload is the payload for task.failed events.
type TaskFailedPayload struct {
	TaskID   uuid.UUID `json:"task_id"`
	CityName string    `json:"city_name"`
	Error    string    `json:"error"`
	Step     string    `json:"step"`
}

// ReviewDecidedPayload is the payload for review.approved and
// review.rejected events.
type ReviewDecidedPayload struct {
	ReviewID   uuid.UUID    `json:"review_id"`
	TaskID     *uuid.UUID   `json:"task_id,omitempty"`
	DataType   DataType     `json:"data_type"`
	CityName   string       `json:"city_name"`
	Status     ReviewStatus `json:"status"`
	ReviewerID string       `json:"reviewer_id,omitempty"`
}
