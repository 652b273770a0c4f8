// Package workflows defines Temporal workflow implementations for the travel
// data collection pipeline.
package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	citemporal "github.com/hgj2025/cityinfo-sub001/internal/temporal"
	"github.com/hgj2025/cityinfo-sub001/internal/temporal/activities"
)

// QueryProgress re-exports the query name constant from the parent temporal
// package. It is defined there so the server layer can query progress without
// depending on workflow code.
const QueryProgress = citemporal.QueryProgress

// Activity timeout constants.
const (
	// cozeActivityTimeout bounds a full workflow run including the
	// runner's internal retry delays.
	cozeActivityTimeout = 15 * time.Minute

	parseActivityTimeout  = 1 * time.Minute
	statusActivityTimeout = 30 * time.Second
	saveActivityTimeout   = 2 * time.Minute
)

// CollectionWorkflowInput is an alias for the shared request type defined in
// the parent temporal package, so the server layer can start workflows
// without importing this package.
type CollectionWorkflowInput = citemporal.CollectionWorkflowRequest

// CollectionWorkflowResult contains the final results of a collection
// workflow run.
type CollectionWorkflowResult struct {
	// TaskID is the collection task identifier.
	TaskID uuid.UUID

	// Status is the final task status.
	Status string

	// RecordCount is the number of records parsed and saved.
	RecordCount int

	// ReviewCount is the number of pending review items created.
	ReviewCount int

	// ParseError holds parser diagnostics when the run completed with
	// unparseable output.
	ParseError string

	// Duration is the total workflow execution time in seconds.
	Duration float64
}

// CollectionWorkflow orchestrates one data-collection run for a city.
//
// The workflow proceeds through the following phases:
//  1. Record the dispatch step and move progress to 10
//  2. Run the external Coze workflow (the runner owns the retry budget)
//  3. On workflow failure: fail the task, publish task.failed, return error
//  4. Store the raw response, move progress to 50, and parse the content
//  5. Create pending review items and save classified records
//  6. Complete the task with final stats and publish task.completed
//
// A parse failure alone never fails the run: the task completes with zero
// records and the parse diagnostics recorded. Progress is exposed via the
// "progress" query; there is no cancellation path.
func CollectionWorkflow(ctx workflow.Context, input CollectionWorkflowInput) (*CollectionWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)

	progress := domain.ProgressCreated
	stepCount := 0

	err := workflow.SetQueryHandler(ctx, QueryProgress, func() (int, error) {
		return progress, nil
	})
	if err != nil {
		logger.Error("failed to register progress query handler", "error", err)
		return nil, fmt.Errorf("register query handler: %w", err)
	}

	// Activity nil-pointer variables for method references.
	var cozeAct *activities.CozeActivities
	var parseAct *activities.ParseActivities
	var statusAct *activities.StatusActivities
	var saveAct *activities.SaveActivities
	var eventAct *activities.EventActivities

	// The runner retries the external call itself, so the activity must not
	// add a second retry loop on top.
	cozeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: cozeActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	parseCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: parseActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})

	statusCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: statusActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	})

	saveCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: saveActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	eventCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: statusActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})

	recordStep := func(step, description string, data map[string]interface{}) {
		stepCount++
		if err := workflow.ExecuteActivity(statusCtx, statusAct.RecordStep, activities.RecordStepInput{
			TaskID:      input.TaskID,
			Step:        step,
			Description: description,
			Data:        data,
		}).Get(ctx, nil); err != nil {
			// The step log is diagnostic; losing an entry must not fail
			// the run.
			logger.Warn("failed to record step", "step", step, "error", err)
		}
	}

	setProgress := func(pct int) error {
		progress = pct
		return workflow.ExecuteActivity(statusCtx, statusAct.SetProgress, activities.SetProgressInput{
			TaskID:   input.TaskID,
			Progress: pct,
		}).Get(ctx, nil)
	}

	// handleFailure marks the task failed, publishes task.failed, and
	// returns the original error.
	handleFailure := func(step string, originalErr error) (*CollectionWorkflowResult, error) {
		logger.Error("collection workflow failed", "step", step, "error", originalErr)

		_ = workflow.ExecuteActivity(statusCtx, statusAct.FailTask, activities.FailTaskInput{
			TaskID:          input.TaskID,
			Error:           originalErr.Error(),
			DurationSeconds: workflow.Now(ctx).Sub(startTime).Seconds(),
		}).Get(ctx, nil)

		// Fire-and-forget: publish task.failed.
		_ = workflow.ExecuteActivity(eventCtx, eventAct.PublishEvent, activities.PublishEventInput{
			EventType: domain.EventTypeTaskFailed,
			TaskID:    input.TaskID,
			Payload: map[string]interface{}{
				"city_name": input.CityName,
				"error":     originalErr.Error(),
				"step":      step,
			},
		}).Get(ctx, nil)

		return nil, originalErr
	}

	// =========================================================================
	// Phase 1: Dispatch
	// =========================================================================

	logger.Info("starting collection workflow",
		"taskID", input.TaskID,
		"cityName", input.CityName,
		"dataType", input.DataType,
	)

	recordStep("workflow_dispatched", "collection workflow started", map[string]interface{}{
		"city_name": input.CityName,
		"data_type": input.DataType,
	})
	if err := setProgress(domain.ProgressDispatched); err != nil {
		return handleFailure("dispatch", fmt.Errorf("set dispatch progress: %w", err))
	}

	// =========================================================================
	// Phase 2: Run the external workflow
	// =========================================================================

	var runOutput activities.RunCozeOutput
	err = workflow.ExecuteActivity(cozeCtx, cozeAct.RunCoze, activities.RunCozeInput{
		TaskID:   input.TaskID,
		CityName: input.CityName,
	}).Get(ctx, &runOutput)
	if err != nil {
		return handleFailure("run_workflow", fmt.Errorf("run collection workflow: %w", err))
	}

	// Persist the per-attempt call log whether or not the run succeeded.
	if len(runOutput.APICalls) > 0 {
		if err := workflow.ExecuteActivity(statusCtx, statusAct.RecordAPICalls, activities.RecordAPICallsInput{
			TaskID: input.TaskID,
			Calls:  runOutput.APICalls,
		}).Get(ctx, nil); err != nil {
			logger.Warn("failed to record API calls", "error", err)
		}
	}

	if !runOutput.Success {
		recordStep("workflow_failed", "external workflow did not produce data", map[string]interface{}{
			"error":    runOutput.Error,
			"attempts": len(runOutput.APICalls),
		})
		return handleFailure("run_workflow", fmt.Errorf("collection workflow failed: %s", runOutput.Error))
	}

	recordStep("content_received", "external workflow returned content", map[string]interface{}{
		"content_bytes": len(runOutput.Content),
		"attempts":      len(runOutput.APICalls),
	})

	// =========================================================================
	// Phase 3: Store the raw response and parse
	// =========================================================================

	responsePayload := map[string]interface{}{
		"content": runOutput.Content,
	}
	if runOutput.DebugURL != "" {
		responsePayload["debug_url"] = runOutput.DebugURL
	}
	if err := workflow.ExecuteActivity(statusCtx, statusAct.SetResponsePayload, activities.SetResponsePayloadInput{
		TaskID:  input.TaskID,
		Payload: responsePayload,
	}).Get(ctx, nil); err != nil {
		return handleFailure("store_response", fmt.Errorf("store response payload: %w", err))
	}
	if err := setProgress(domain.ProgressParsing); err != nil {
		return handleFailure("parse", fmt.Errorf("set parsing progress: %w", err))
	}

	var parseOutput activities.ParseContentOutput
	err = workflow.ExecuteActivity(parseCtx, parseAct.ParseContent, activities.ParseContentInput{
		TaskID:  input.TaskID,
		Content: runOutput.Content,
	}).Get(ctx, &parseOutput)
	if err != nil {
		return handleFailure("parse", fmt.Errorf("parse content: %w", err))
	}

	if parseOutput.ParseError != "" {
		// A parse failure is recorded but never fails the run.
		recordStep("parse_failed", "workflow content could not be parsed", map[string]interface{}{
			"parse_error": parseOutput.ParseError,
		})
	} else {
		recordStep("content_parsed", "workflow content parsed", map[string]interface{}{
			"record_count": len(parseOutput.Records),
		})
	}

	// =========================================================================
	// Phase 4: Submit for review and save
	// =========================================================================

	var saveOutput activities.SaveRecordsOutput
	if len(parseOutput.Records) > 0 {
		err = workflow.ExecuteActivity(saveCtx, saveAct.SaveRecords, activities.SaveRecordsInput{
			TaskID:   input.TaskID,
			CityName: input.CityName,
			DataType: domain.DataType(input.DataType),
			Records:  parseOutput.Records,
		}).Get(ctx, &saveOutput)
		if err != nil {
			return handleFailure("save_records", fmt.Errorf("save records: %w", err))
		}

		recordStep("records_saved", "records submitted for review and saved", map[string]interface{}{
			"record_count": saveOutput.RecordCount,
			"review_count": saveOutput.ReviewCount,
		})
	}

	// =========================================================================
	// Phase 5: Complete
	// =========================================================================

	duration := workflow.Now(ctx).Sub(startTime).Seconds()
	stats := domain.TaskStats{
		RecordCount:     saveOutput.RecordCount,
		ReviewCount:     saveOutput.ReviewCount,
		DurationSeconds: duration,
		StepCount:       stepCount,
	}

	if err := workflow.ExecuteActivity(statusCtx, statusAct.CompleteTask, activities.CompleteTaskInput{
		TaskID:     input.TaskID,
		Stats:      stats,
		ParseError: parseOutput.ParseError,
	}).Get(ctx, nil); err != nil {
		return handleFailure("complete", fmt.Errorf("complete task: %w", err))
	}
	progress = domain.ProgressDone

	// Fire-and-forget: publish task.completed.
	_ = workflow.ExecuteActivity(eventCtx, eventAct.PublishEvent, activities.PublishEventInput{
		EventType: domain.EventTypeTaskCompleted,
		TaskID:    input.TaskID,
		Payload: map[string]interface{}{
			"city_name":        input.CityName,
			"record_count":     stats.RecordCount,
			"review_count":     stats.ReviewCount,
			"duration_seconds": stats.DurationSeconds,
		},
	}).Get(ctx, nil)

	logger.Info("collection workflow completed",
		"taskID", input.TaskID,
		"cityName", input.CityName,
		"recordCount", stats.RecordCount,
		"reviewCount", stats.ReviewCount,
		"parseError", parseOutput.ParseError != "",
		"duration", duration,
	)

	return &CollectionWorkflowResult{
		TaskID:      input.TaskID,
		Status:      string(domain.TaskStatusCompleted),
		RecordCount: stats.RecordCount,
		ReviewCount: stats.ReviewCount,
		ParseError:  parseOutput.ParseError,
		Duration:    duration,
	}, nil
}
