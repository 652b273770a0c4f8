// Package activities provides Temporal activity implementations for the
// travel data collection pipeline.
//
// Activity inputs and outputs are defined as serializable structs that cross
// the Temporal serialization boundary. Each activity receives an input struct
// and returns an output struct (or error). All fields must be exported for
// JSON serialization by the Temporal SDK's default data converter.
package activities

import (
	"github.com/google/uuid"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// RunCozeInput contains the parameters for the workflow execution activity.
type RunCozeInput struct {
	// TaskID is the collection task identifier.
	TaskID uuid.UUID

	// CityName is the collection target passed to the external workflow.
	CityName string
}

// RunCozeOutput contains the outcome of the workflow execution activity.
// A workflow-level failure is reported through Success and Error rather
// than as an activity error, so the caller can persist the outcome.
type RunCozeOutput struct {
	// Success reports whether the workflow produced content.
	Success bool

	// Content is the raw workflow output exactly as received.
	Content string

	// Error is the failure reason when Success is false.
	Error string

	// DebugURL links to the external workflow's debug trace, when provided.
	DebugURL string

	// APICalls logs every outbound attempt made during the run, including
	// failed ones.
	APICalls []domain.APICallRecord
}

// ParseContentInput contains the parameters for the content parse activity.
type ParseContentInput struct {
	// TaskID is the collection task identifier, used for logging.
	TaskID uuid.UUID

	// Content is the raw workflow output to normalize.
	Content string
}

// ParseContentOutput contains the results of the content parse activity.
// Parsing never fails the activity; malformed input yields an empty record
// list and a diagnostic ParseError.
type ParseContentOutput struct {
	// Records is the normalized record list.
	Records []domain.Record

	// ParseError holds parser diagnostics when normalization failed.
	ParseError string
}

// RecordStepInput contains the parameters for the step log activity.
type RecordStepInput struct {
	// TaskID is the collection task identifier.
	TaskID uuid.UUID

	// Step is a short machine-readable step name.
	Step string

	// Description is a human-readable explanation of the step.
	Description string

	// Data holds step-specific context such as attempt numbers or counts.
	Data map[string]interface{}
}

// SetProgressInput contains the parameters for the progress update activity.
type SetProgressInput struct {
	// TaskID is the collection task identifier.
	TaskID uuid.UUID

	// Progress is the new progress percentage, 0-100.
	Progress int
}

// SetResponsePayloadInput contains the parameters for the response payload
// persistence activity.
type SetResponsePayloadInput struct {
	// TaskID is the collection task identifier.
	TaskID uuid.UUID

	// Payload is the raw workflow output to store on the task. It is kept
	// even when parsing later fails.
	Payload map[string]interface{}
}

// RecordAPICallsInput contains the parameters for the API call log activity.
type RecordAPICallsInput struct {
	// TaskID is the collection task identifier.
	TaskID uuid.UUID

	// Calls are the outbound call records to append, including failed
	// attempts.
	Calls []domain.APICallRecord
}

// CompleteTaskInput contains the parameters for the task completion activity.
type CompleteTaskInput struct {
	// TaskID is the collection task identifier.
	TaskID uuid.UUID

	// Stats summarizes the finished run.
	Stats domain.TaskStats

	// ParseError holds parser diagnostics when the run completed with
	// unparseable output. A parse error alone does not fail the task.
	ParseError string
}

// FailTaskInput contains the parameters for the task failure activity.
type FailTaskInput struct {
	// TaskID is the collection task identifier.
	TaskID uuid.UUID

	// Error is the terminal failure reason.
	Error string

	// DurationSeconds is the pipeline runtime at the point of failure,
	// measured by the workflow.
	DurationSeconds float64
}

// SaveRecordsInput contains the parameters for the record persistence
// activity.
type SaveRecordsInput struct {
	// TaskID is the collection task that produced the records.
	TaskID uuid.UUID

	// CityName is the city the records belong to.
	CityName string

	// DataType is the task's collection data type. City overview runs
	// route records to the overview upsert instead of the place tables.
	DataType domain.DataType

	// Records are the parsed records to submit and save.
	Records []domain.Record
}

// SaveRecordsOutput contains the results of the record persistence activity.
type SaveRecordsOutput struct {
	// RecordCount is the number of records saved.
	RecordCount int

	// ReviewCount is the number of pending review items created.
	ReviewCount int
}

// PublishEventInput contains the parameters for the event publish activity.
type PublishEventInput struct {
	// EventType is the lifecycle event type (e.g. "task.completed").
	EventType string

	// TaskID is the collection task identifier, used as the aggregate ID.
	TaskID uuid.UUID

	// Payload is the event payload that will be JSON-serialized.
	Payload map[string]interface{}
}
