package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// txBeginner is implemented by pool-like DBTX values (e.g. *pgxpool.Pool,
// *database.DB). Update wraps SELECT FOR UPDATE + UPDATE in a transaction
// when the underlying DBTX can begin one.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// validTaskTransitions defines the allowed status transitions for collection
// tasks. Tasks only move forward; terminal states never transition.
var validTaskTransitions = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskStatusRunning: {
		domain.TaskStatusCompleted,
		domain.TaskStatusFailed,
	},
}

// Compile-time interface verification.
var _ TaskRepository = (*PgTaskRepository)(nil)

// PgTaskRepository is a PostgreSQL implementation of TaskRepository.
type PgTaskRepository struct {
	db DBTX
}

// NewPgTaskRepository creates a new PostgreSQL task repository.
func NewPgTaskRepository(db DBTX) *PgTaskRepository {
	return &PgTaskRepository{db: db}
}

const taskColumns = `id, city_name, data_type,
	temporal_workflow_id, temporal_run_id, status, progress,
	request_payload, response_payload, api_calls, steps,
	error_message, parse_error, stats,
	created_at, updated_at, completed_at`

// Create inserts a new collection task.
func (r *PgTaskRepository) Create(ctx context.Context, task *domain.CollectionTask) error {
	if task == nil {
		return domain.NewValidationError("task", "task cannot be nil")
	}
	if task.ID == uuid.Nil {
		return domain.NewValidationError("id", "task ID is required")
	}
	if task.CityName == "" {
		return domain.NewValidationError("city_name", "city name is required")
	}
	if task.DataType == "" {
		return domain.NewValidationError("data_type", "data type is required")
	}

	requestJSON, err := json.Marshal(task.RequestPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}
	responseJSON, err := json.Marshal(task.ResponsePayload)
	if err != nil {
		return fmt.Errorf("failed to marshal response payload: %w", err)
	}
	callsJSON, err := json.Marshal(task.APICalls)
	if err != nil {
		return fmt.Errorf("failed to marshal api calls: %w", err)
	}
	stepsJSON, err := json.Marshal(task.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	statsJSON, err := json.Marshal(task.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	query := `
		INSERT INTO collection_tasks (
			id, city_name, data_type,
			temporal_workflow_id, temporal_run_id, status, progress,
			request_payload, response_payload, api_calls, steps,
			error_message, parse_error, stats,
			created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17
		)`

	_, err = r.db.Exec(ctx, query,
		task.ID, task.CityName, task.DataType,
		nullString(task.TemporalWorkflowID), nullString(task.TemporalRunID), task.Status, task.Progress,
		requestJSON, responseJSON, callsJSON, stepsJSON,
		nullString(task.ErrorMessage), nullString(task.ParseError), statsJSON,
		task.CreatedAt, task.UpdatedAt, task.CompletedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("task", task.ID.String())
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// Get retrieves a collection task by ID.
func (r *PgTaskRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CollectionTask, error) {
	query := fmt.Sprintf(`SELECT %s FROM collection_tasks WHERE id = $1`, taskColumns)

	row := r.db.QueryRow(ctx, query, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("task", id.String())
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// GetByWorkflowID retrieves a collection task by its Temporal workflow ID.
func (r *PgTaskRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.CollectionTask, error) {
	if workflowID == "" {
		return nil, domain.NewValidationError("workflow_id", "workflow ID is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM collection_tasks WHERE temporal_workflow_id = $1`, taskColumns)

	row := r.db.QueryRow(ctx, query, workflowID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("task", workflowID)
		}
		return nil, fmt.Errorf("failed to get task by workflow ID: %w", err)
	}

	return task, nil
}

// Update performs an optimistic update using SELECT FOR UPDATE. When the
// underlying DBTX is a pool, the lock and write are wrapped in an explicit
// transaction; inside an existing transaction it executes directly.
func (r *PgTaskRepository) Update(ctx context.Context, id uuid.UUID, fn func(*domain.CollectionTask) error) error {
	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for update: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgTaskRepository{db: tx}
		if err := txRepo.updateInTx(ctx, id, fn); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	return r.updateInTx(ctx, id, fn)
}

// updateInTx performs the SELECT FOR UPDATE + UPDATE within the current
// DBTX. Must run inside a transaction for correct row locking.
func (r *PgTaskRepository) updateInTx(ctx context.Context, id uuid.UUID, fn func(*domain.CollectionTask) error) error {
	selectQuery := fmt.Sprintf(`SELECT %s FROM collection_tasks WHERE id = $1 FOR UPDATE`, taskColumns)

	rows, err := r.db.Query(ctx, selectQuery, id)
	if err != nil {
		return fmt.Errorf("failed to query task for update: %w", err)
	}

	task, err := scanTaskRows(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("task", id.String())
		}
		return fmt.Errorf("failed to scan task: %w", err)
	}

	if err := fn(task); err != nil {
		return err
	}

	task.UpdatedAt = time.Now().UTC()

	requestJSON, err := json.Marshal(task.RequestPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}
	responseJSON, err := json.Marshal(task.ResponsePayload)
	if err != nil {
		return fmt.Errorf("failed to marshal response payload: %w", err)
	}
	callsJSON, err := json.Marshal(task.APICalls)
	if err != nil {
		return fmt.Errorf("failed to marshal api calls: %w", err)
	}
	stepsJSON, err := json.Marshal(task.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	statsJSON, err := json.Marshal(task.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	updateQuery := `
		UPDATE collection_tasks SET
			temporal_workflow_id = $1,
			temporal_run_id = $2,
			status = $3,
			progress = $4,
			request_payload = $5,
			response_payload = $6,
			api_calls = $7,
			steps = $8,
			error_message = $9,
			parse_error = $10,
			stats = $11,
			updated_at = $12,
			completed_at = $13
		WHERE id = $14`

	_, err = r.db.Exec(ctx, updateQuery,
		nullString(task.TemporalWorkflowID),
		nullString(task.TemporalRunID),
		task.Status,
		task.Progress,
		requestJSON,
		responseJSON,
		callsJSON,
		stepsJSON,
		nullString(task.ErrorMessage),
		nullString(task.ParseError),
		statsJSON,
		task.UpdatedAt,
		task.CompletedAt,
		id,
	)

	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	return nil
}

// AppendStep appends one entry to the task's JSONB step log without
// rewriting the rest of the row.
func (r *PgTaskRepository) AppendStep(ctx context.Context, id uuid.UUID, entry domain.StepEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal step entry: %w", err)
	}

	query := `
		UPDATE collection_tasks
		SET steps = steps || $1::jsonb,
			updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, entryJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to append step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("task", id.String())
	}

	return nil
}

// RecordAPICalls appends call records to the task's JSONB call log.
func (r *PgTaskRepository) RecordAPICalls(ctx context.Context, id uuid.UUID, calls []domain.APICallRecord) error {
	if len(calls) == 0 {
		return nil
	}

	callsJSON, err := json.Marshal(calls)
	if err != nil {
		return fmt.Errorf("failed to marshal api calls: %w", err)
	}

	query := `
		UPDATE collection_tasks
		SET api_calls = api_calls || $1::jsonb,
			updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, callsJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record api calls: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("task", id.String())
	}

	return nil
}

// SetProgress updates the task's progress percentage.
func (r *PgTaskRepository) SetProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if progress < 0 || progress > 100 {
		return domain.NewValidationError("progress", "progress must be between 0 and 100")
	}

	query := `
		UPDATE collection_tasks
		SET progress = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, progress, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("task", id.String())
	}

	return nil
}

// SetWorkflow records the Temporal workflow and run IDs.
func (r *PgTaskRepository) SetWorkflow(ctx context.Context, id uuid.UUID, workflowID, runID string) error {
	query := `
		UPDATE collection_tasks
		SET temporal_workflow_id = $1, temporal_run_id = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(ctx, query, nullString(workflowID), nullString(runID), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set workflow ids: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("task", id.String())
	}

	return nil
}

// SetResponsePayload stores the raw workflow output on the task.
func (r *PgTaskRepository) SetResponsePayload(ctx context.Context, id uuid.UUID, payload map[string]interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal response payload: %w", err)
	}

	query := `
		UPDATE collection_tasks
		SET response_payload = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, payloadJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set response payload: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("task", id.String())
	}

	return nil
}

// Complete transitions the task to completed with final stats.
func (r *PgTaskRepository) Complete(ctx context.Context, id uuid.UUID, stats domain.TaskStats, parseError string) error {
	return r.Update(ctx, id, func(task *domain.CollectionTask) error {
		if !isValidTaskTransition(task.Status, domain.TaskStatusCompleted) {
			return fmt.Errorf("invalid status transition from %s to %s: %w",
				task.Status, domain.TaskStatusCompleted, domain.ErrInvalidInput)
		}

		now := time.Now().UTC()
		task.Status = domain.TaskStatusCompleted
		task.Progress = domain.ProgressDone
		task.Stats = &stats
		task.ParseError = parseError
		task.CompletedAt = &now
		return nil
	})
}

// Fail transitions the task to failed, preserving accumulated logs.
func (r *PgTaskRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.Update(ctx, id, func(task *domain.CollectionTask) error {
		if !isValidTaskTransition(task.Status, domain.TaskStatusFailed) {
			return fmt.Errorf("invalid status transition from %s to %s: %w",
				task.Status, domain.TaskStatusFailed, domain.ErrInvalidInput)
		}

		now := time.Now().UTC()
		task.Status = domain.TaskStatusFailed
		task.ErrorMessage = errorMessage
		task.CompletedAt = &now
		return nil
	})
}

// List retrieves collection tasks matching the filter.
func (r *PgTaskRepository) List(ctx context.Context, filter TaskFilter) ([]*domain.CollectionTask, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	conditions := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, s)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.DataType != "" {
		conditions = append(conditions, fmt.Sprintf("data_type = $%d", argIndex))
		args = append(args, filter.DataType)
		argIndex++
	}

	if filter.CityName != "" {
		conditions = append(conditions, fmt.Sprintf("city_name = $%d", argIndex))
		args = append(args, filter.CityName)
		argIndex++
	}

	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argIndex))
		args = append(args, *filter.CreatedAfter)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM collection_tasks WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM collection_tasks
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		taskColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*domain.CollectionTask, 0, filter.Limit)
	for rows.Next() {
		task, err := scanTaskFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, totalCount, nil
}

// isValidTaskTransition validates a status transition.
func isValidTaskTransition(from, to domain.TaskStatus) bool {
	if from.IsTerminal() {
		return false
	}

	allowed, ok := validTaskTransitions[from]
	if !ok {
		return false
	}

	for _, s := range allowed {
		if s == to {
			return true
		}
	}

	return false
}

// taskScanDest holds the destination pointers for scanning a CollectionTask
// row, shared between pgx.Row and pgx.Rows scanning.
type taskScanDest struct {
	task               domain.CollectionTask
	requestJSON        []byte
	responseJSON       []byte
	callsJSON          []byte
	stepsJSON          []byte
	statsJSON          []byte
	temporalWorkflowID *string
	temporalRunID      *string
	errorMessage       *string
	parseError         *string
}

func (d *taskScanDest) destinations() []interface{} {
	return []interface{}{
		&d.task.ID, &d.task.CityName, &d.task.DataType,
		&d.temporalWorkflowID, &d.temporalRunID, &d.task.Status, &d.task.Progress,
		&d.requestJSON, &d.responseJSON, &d.callsJSON, &d.stepsJSON,
		&d.errorMessage, &d.parseError, &d.statsJSON,
		&d.task.CreatedAt, &d.task.UpdatedAt, &d.task.CompletedAt,
	}
}

// finalize resolves nullable columns and unmarshals the JSONB payloads.
func (d *taskScanDest) finalize() (*domain.CollectionTask, error) {
	if d.temporalWorkflowID != nil {
		d.task.TemporalWorkflowID = *d.temporalWorkflowID
	}
	if d.temporalRunID != nil {
		d.task.TemporalRunID = *d.temporalRunID
	}
	if d.errorMessage != nil {
		d.task.ErrorMessage = *d.errorMessage
	}
	if d.parseError != nil {
		d.task.ParseError = *d.parseError
	}

	if len(d.requestJSON) > 0 && string(d.requestJSON) != "null" {
		if err := json.Unmarshal(d.requestJSON, &d.task.RequestPayload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal request payload: %w", err)
		}
	}
	if len(d.responseJSON) > 0 && string(d.responseJSON) != "null" {
		if err := json.Unmarshal(d.responseJSON, &d.task.ResponsePayload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response payload: %w", err)
		}
	}
	if len(d.callsJSON) > 0 && string(d.callsJSON) != "null" {
		if err := json.Unmarshal(d.callsJSON, &d.task.APICalls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal api calls: %w", err)
		}
	}
	if len(d.stepsJSON) > 0 && string(d.stepsJSON) != "null" {
		if err := json.Unmarshal(d.stepsJSON, &d.task.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}
	if len(d.statsJSON) > 0 && string(d.statsJSON) != "null" {
		if err := json.Unmarshal(d.statsJSON, &d.task.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
	}

	return &d.task, nil
}

func scanTask(row pgx.Row) (*domain.CollectionTask, error) {
	var dest taskScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanTaskRows scans a single row from pgx.Rows, as returned by SELECT FOR
// UPDATE.
func scanTaskRows(rows pgx.Rows) (*domain.CollectionTask, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	return scanTaskFromRows(rows)
}

func scanTaskFromRows(rows pgx.Rows) (*domain.CollectionTask, error) {
	var dest taskScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
