package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/hgj2025/cityinfo-sub001/internal/coze"
)

// WorkflowRunner is the interface used by CozeActivities to execute the
// external collection workflow. This decouples the activity from the
// concrete coze.Runner implementation, enabling straightforward testing
// with mock implementations.
type WorkflowRunner interface {
	Run(ctx context.Context, cityName string) (*coze.RunResult, error)
}

// CozeActivities provides the Temporal activity that runs the external
// Coze workflow for a city. The runner owns the retry budget, so this
// activity must be registered with retries disabled (MaximumAttempts: 1);
// a second activity attempt would double up on the runner's own retries.
//
// Methods on this struct are registered as Temporal activities via the worker.
type CozeActivities struct {
	runner WorkflowRunner
}

// NewCozeActivities creates a new CozeActivities with the given runner.
func NewCozeActivities(runner WorkflowRunner) *CozeActivities {
	return &CozeActivities{runner: runner}
}

// RunCoze executes the external workflow for the task's city.
//
// Workflow-level failures (exhausted retries, empty output) are reported
// through the output's Success and Error fields rather than as activity
// errors, so the workflow can persist the outcome including the per-attempt
// call log. An activity error means the run itself could not proceed, which
// in practice is context cancellation.
func (a *CozeActivities) RunCoze(ctx context.Context, input RunCozeInput) (*RunCozeOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("running collection workflow",
		"taskID", input.TaskID,
		"cityName", input.CityName,
	)

	result, err := a.runner.Run(ctx, input.CityName)
	if err != nil {
		logger.Error("workflow run aborted",
			"taskID", input.TaskID,
			"error", err,
		)
		return nil, fmt.Errorf("run collection workflow: %w", err)
	}

	logger.Info("collection workflow finished",
		"taskID", input.TaskID,
		"success", result.Success,
		"attempts", len(result.APICalls),
	)

	return &RunCozeOutput{
		Success:  result.Success,
		Content:  result.Content,
		Error:    result.Error,
		DebugURL: result.DebugURL,
		APICalls: result.APICalls,
	}, nil
}
