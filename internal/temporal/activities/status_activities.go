package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/observability"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
)

// StatusActivities provides Temporal activities for collection task state:
// the step log, progress checkpoints, payloads, the API call log, and the
// terminal transitions.
//
// Methods on this struct are registered as Temporal activities via the worker.
type StatusActivities struct {
	tasks   repository.TaskRepository
	metrics *observability.Metrics
}

// NewStatusActivities creates a new StatusActivities instance with the given
// dependencies. The metrics parameter may be nil (metrics recording will be
// skipped).
func NewStatusActivities(tasks repository.TaskRepository, metrics *observability.Metrics) *StatusActivities {
	return &StatusActivities{
		tasks:   tasks,
		metrics: metrics,
	}
}

// RecordStep appends one entry to the task's append-only step log.
func (a *StatusActivities) RecordStep(ctx context.Context, input RecordStepInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("recording pipeline step",
		"taskID", input.TaskID,
		"step", input.Step,
	)

	entry := domain.StepEntry{
		Step:        input.Step,
		Timestamp:   time.Now().UTC(),
		Description: input.Description,
		Data:        input.Data,
	}
	if err := a.tasks.AppendStep(ctx, input.TaskID, entry); err != nil {
		logger.Error("failed to record pipeline step",
			"taskID", input.TaskID,
			"step", input.Step,
			"error", err,
		)
		return fmt.Errorf("append step %s: %w", input.Step, err)
	}

	return nil
}

// SetProgress updates the task's progress percentage.
func (a *StatusActivities) SetProgress(ctx context.Context, input SetProgressInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("updating task progress",
		"taskID", input.TaskID,
		"progress", input.Progress,
	)

	if err := a.tasks.SetProgress(ctx, input.TaskID, input.Progress); err != nil {
		logger.Error("failed to update task progress",
			"taskID", input.TaskID,
			"error", err,
		)
		return fmt.Errorf("set progress to %d: %w", input.Progress, err)
	}

	return nil
}

// SetResponsePayload stores the raw workflow output on the task so the
// original content survives even when parsing later fails.
func (a *StatusActivities) SetResponsePayload(ctx context.Context, input SetResponsePayloadInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("storing response payload",
		"taskID", input.TaskID,
	)

	if err := a.tasks.SetResponsePayload(ctx, input.TaskID, input.Payload); err != nil {
		logger.Error("failed to store response payload",
			"taskID", input.TaskID,
			"error", err,
		)
		return fmt.Errorf("set response payload: %w", err)
	}

	return nil
}

// RecordAPICalls appends outbound call records, including failed attempts,
// to the task's API call log.
//
// If the input calls slice is empty, the method returns without calling the
// repository.
func (a *StatusActivities) RecordAPICalls(ctx context.Context, input RecordAPICallsInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("recording API calls",
		"taskID", input.TaskID,
		"callCount", len(input.Calls),
	)

	if len(input.Calls) == 0 {
		return nil
	}

	if err := a.tasks.RecordAPICalls(ctx, input.TaskID, input.Calls); err != nil {
		logger.Error("failed to record API calls",
			"taskID", input.TaskID,
			"error", err,
		)
		return fmt.Errorf("record api calls: %w", err)
	}

	return nil
}

// CompleteTask transitions the task to completed with final stats, stamping
// completed_at and progress 100. A parse error is stored alongside the stats
// without failing the task.
func (a *StatusActivities) CompleteTask(ctx context.Context, input CompleteTaskInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("completing task",
		"taskID", input.TaskID,
		"recordCount", input.Stats.RecordCount,
		"hasParseError", input.ParseError != "",
	)

	if err := a.tasks.Complete(ctx, input.TaskID, input.Stats, input.ParseError); err != nil {
		logger.Error("failed to complete task",
			"taskID", input.TaskID,
			"error", err,
		)
		return fmt.Errorf("complete task: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordTaskCompleted(input.Stats.DurationSeconds)
	}

	logger.Info("task completed",
		"taskID", input.TaskID,
	)

	return nil
}

// FailTask transitions the task to failed with the terminal error message,
// stamping completed_at. Accumulated step and call logs are preserved.
func (a *StatusActivities) FailTask(ctx context.Context, input FailTaskInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("failing task",
		"taskID", input.TaskID,
		"reason", input.Error,
	)

	if err := a.tasks.Fail(ctx, input.TaskID, input.Error); err != nil {
		logger.Error("failed to mark task failed",
			"taskID", input.TaskID,
			"error", err,
		)
		return fmt.Errorf("fail task: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordTaskFailed(input.DurationSeconds)
	}

	logger.Info("task failed",
		"taskID", input.TaskID,
	)

	return nil
}
