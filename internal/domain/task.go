package domain

import (
	"time"

	"github.com/google/uuid"
)

// Progress checkpoints recorded on a collection task as it moves through the
// pipeline. Values are percentages.
const (
	ProgressCreated    = 0
	ProgressDispatched = 10
	ProgressParsing    = 50
	ProgressDone       = 100
)

// StepEntry is one entry in a task's append-only step log. Entries are
// stored as a JSONB array in insertion order and are never rewritten.
type StepEntry struct {
	// Step is a short machine-readable step name (e.g. "workflow_dispatched").
	Step string `json:"step"`

	// Timestamp records when the step was logged.
	Timestamp time.Time `json:"timestamp"`

	// Description is a human-readable explanation of the step.
	Description string `json:"description,omitempty"`

	// Data holds step-specific context such as attempt numbers or counts.
	Data map[string]interface{} `json:"data,omitempty"`
}

// APICallRecord captures one outbound call to the external workflow API,
// including failed attempts. Stored as a JSONB array on the task.
type APICallRecord struct {
	// Name identifies the external call (e.g. "coze_workflow_run").
	Name string `json:"name"`

	// Attempt is the 1-based attempt number within a run.
	Attempt int `json:"attempt"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DurationMS is the wall-clock call duration in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// TaskStats summarizes a finished collection run. Stored as JSONB.
type TaskStats struct {
	// RecordCount is the number of records parsed from the workflow output.
	RecordCount int `json:"record_count"`

	// ReviewCount is the number of review items created for this run.
	ReviewCount int `json:"review_count"`

	// DurationSeconds is the total pipeline duration.
	DurationSeconds float64 `json:"duration_seconds"`

	// StepCount is the length of the step log at completion.
	StepCount int `json:"step_count"`
}

// CollectionTask tracks one data-collection run for a city from dispatch
// through parsing, review submission, and completion.
type CollectionTask struct {
	ID uuid.UUID `json:"id"`

	// CityName is the collection target as supplied by the operator.
	CityName string `json:"city_name"`

	// DataType is the kind of data this run collects.
	DataType DataType `json:"data_type"`

	// Temporal workflow tracking
	TemporalWorkflowID string `json:"temporal_workflow_id,omitempty"`
	TemporalRunID      string `json:"temporal_run_id,omitempty"`

	// Status and progress
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`

	// RequestPayload is the request sent to the external workflow API.
	RequestPayload map[string]interface{} `json:"request_payload,omitempty"`

	// ResponsePayload is the raw aggregated workflow output, kept even when
	// parsing fails so operators can diagnose malformed responses.
	ResponsePayload map[string]interface{} `json:"response_payload,omitempty"`

	// APICalls logs every outbound attempt, including retries.
	APICalls []APICallRecord `json:"api_calls,omitempty"`

	// Steps is the append-only pipeline step log.
	Steps []StepEntry `json:"steps,omitempty"`

	// ErrorMessage holds the terminal failure reason for failed tasks.
	ErrorMessage string `json:"error_message,omitempty"`

	// ParseError holds parser diagnostics. A parse error alone does not
	// fail the task.
	ParseError string `json:"parse_error,omitempty"`

	// Stats summarizes the run once it completes.
	Stats *TaskStats `json:"stats,omitempty"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns the elapsed time since the task was created, or the total
// runtime if the task has reached a terminal state.
func (t *CollectionTask) Duration() time.Duration {
	if t.CompletedAt != nil {
		return t.CompletedAt.Sub(t.CreatedAt)
	}
	return time.Since(t.CreatedAt)
}

// IsActive returns true if the task is still in progress.
func (t *CollectionTask) IsActive() bool {
	return !t.Status.IsTerminal()
}

// AppendStep appends an entry to the in-memory step log. Persistence is the
// repository's concern.
func (t *CollectionTask) AppendStep(step, description string, data map[string]interface{}) {
	t.Steps = append(t.Steps, StepEntry{
		Step:        step,
		Timestamp:   time.Now().UTC(),
		Description: description,
		Data:        data,
	})
}
