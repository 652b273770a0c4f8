package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// TaskRepository handles collection task persistence and lifecycle
// management. The task is the durable audit record of a collection run:
// step logs and API call records are append-only and survive failure at any
// point in the pipeline.
type TaskRepository interface {
	// Create inserts a new collection task.
	// Returns domain.ErrAlreadyExists if a task with the same ID exists.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, task *domain.CollectionTask) error

	// Get retrieves a task by ID.
	// Returns domain.ErrNotFound if no matching task exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.CollectionTask, error)

	// GetByWorkflowID retrieves a task by its Temporal workflow ID.
	// Returns domain.ErrNotFound if no matching task exists.
	GetByWorkflowID(ctx context.Context, workflowID string) (*domain.CollectionTask, error)

	// Update performs an optimistic update using SELECT FOR UPDATE. The
	// function receives the current task state; changes it makes are
	// persisted. An error from the function aborts the update.
	// Returns domain.ErrNotFound if no matching task exists.
	Update(ctx context.Context, id uuid.UUID, fn func(*domain.CollectionTask) error) error

	// AppendStep appends one entry to the task's step log. The log is
	// append-only; existing entries are never rewritten.
	AppendStep(ctx context.Context, id uuid.UUID, entry domain.StepEntry) error

	// RecordAPICalls appends outbound call records, including failed
	// attempts, to the task's API call log.
	RecordAPICalls(ctx context.Context, id uuid.UUID, calls []domain.APICallRecord) error

	// SetProgress updates the task's progress percentage.
	SetProgress(ctx context.Context, id uuid.UUID, progress int) error

	// SetWorkflow records the Temporal workflow and run IDs on the task.
	SetWorkflow(ctx context.Context, id uuid.UUID, workflowID, runID string) error

	// SetResponsePayload stores the raw workflow output on the task. The
	// payload is kept even when parsing later fails.
	SetResponsePayload(ctx context.Context, id uuid.UUID, payload map[string]interface{}) error

	// Complete transitions the task to completed with final stats and an
	// optional parse error, stamping completed_at and progress 100.
	// Returns domain.ErrInvalidInput when the task is already terminal.
	Complete(ctx context.Context, id uuid.UUID, stats domain.TaskStats, parseError string) error

	// Fail transitions the task to failed with the terminal error message,
	// stamping completed_at. Accumulated step and call logs are preserved.
	// Returns domain.ErrInvalidInput when the task is already terminal.
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error

	// List retrieves tasks matching the filter with a total count for
	// pagination.
	List(ctx context.Context, filter TaskFilter) ([]*domain.CollectionTask, int64, error)
}

// TaskFilter specifies criteria for listing collection tasks.
type TaskFilter struct {
	// Status filters by one or more task statuses (optional).
	Status []domain.TaskStatus

	// DataType filters by collection data type (optional).
	DataType domain.DataType

	// CityName filters by exact city name (optional).
	CityName string

	// CreatedAfter filters to tasks created after this timestamp (optional).
	CreatedAfter *time.Time

	// Limit specifies maximum number of results (default: 50, max: 500).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate normalizes pagination values.
func (f *TaskFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
