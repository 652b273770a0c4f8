package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/hgj2025/cityinfo-sub001/internal/observability"
	"github.com/hgj2025/cityinfo-sub001/internal/parser"
)

// ParseActivities provides the Temporal activity that normalizes raw
// workflow output into record lists.
//
// Methods on this struct are registered as Temporal activities via the worker.
type ParseActivities struct {
	metrics *observability.Metrics
}

// NewParseActivities creates a new ParseActivities instance.
// The metrics parameter may be nil (metrics recording will be skipped).
func NewParseActivities(metrics *observability.Metrics) *ParseActivities {
	return &ParseActivities{metrics: metrics}
}

// ParseContent normalizes the raw workflow content into records.
//
// Parsing is best-effort and never returns an activity error: malformed
// content yields an empty record list with diagnostics, and the workflow
// decides how to proceed.
func (a *ParseActivities) ParseContent(ctx context.Context, input ParseContentInput) (*ParseContentOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("parsing workflow content",
		"taskID", input.TaskID,
		"contentBytes", len(input.Content),
	)

	result := parser.Parse(input.Content)

	if a.metrics != nil {
		outcome := "ok"
		if !result.OK() {
			outcome = "error"
		}
		a.metrics.RecordParseResult(outcome, len(result.Data))
	}

	if !result.OK() {
		logger.Warn("workflow content could not be parsed",
			"taskID", input.TaskID,
			"parseError", result.ParseError,
		)
	} else {
		logger.Info("workflow content parsed",
			"taskID", input.TaskID,
			"recordCount", len(result.Data),
		)
	}

	return &ParseContentOutput{
		Records:    result.Data,
		ParseError: result.ParseError,
	}, nil
}
