package observability

import (
	"context"
)

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	taskIDKey     contextKey = "task_id"
	workflowIDKey contextKey = "workflow_id"
	runIDKey      contextKey = "workflow_run_id"
)

func stringValue(ctx context.Context, key contextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID, or "" if absent.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithTaskID adds a collection task ID to the context.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// TaskIDFromContext retrieves the collection task ID, or "" if absent.
func TaskIDFromContext(ctx context.Context) string {
	return stringValue(ctx, taskIDKey)
}

// WithWorkflow adds workflow ID and run ID to the context.
func WithWorkflow(ctx context.Context, workflowID, runID string) context.Context {
	ctx = context.WithValue(ctx, workflowIDKey, workflowID)
	return context.WithValue(ctx, runIDKey, runID)
}

// WorkflowFromContext retrieves workflow ID and run ID, or "" if absent.
func WorkflowFromContext(ctx context.Context) (workflowID, runID string) {
	return stringValue(ctx, workflowIDKey), stringValue(ctx, runIDKey)
}

// TaskContext bundles the identifiers attached to a collection run.
type TaskContext struct {
	RequestID  string
	TaskID     string
	WorkflowID string
	RunID      string
}

// WithTaskContextFull attaches every non-empty TaskContext field.
func WithTaskContextFull(ctx context.Context, tc TaskContext) context.Context {
	if tc.RequestID != "" {
		ctx = WithRequestID(ctx, tc.RequestID)
	}
	if tc.TaskID != "" {
		ctx = WithTaskID(ctx, tc.TaskID)
	}
	if tc.WorkflowID != "" || tc.RunID != "" {
		ctx = WithWorkflow(ctx, tc.WorkflowID, tc.RunID)
	}
	return ctx
}

// TaskContextFromContext extracts the collection run identifiers.
func TaskContextFromContext(ctx context.Context) TaskContext {
	workflowID, runID := WorkflowFromContext(ctx)
	return TaskContext{
		RequestID:  RequestIDFromContext(ctx),
		TaskID:     TaskIDFromContext(ctx),
		WorkflowID: workflowID,
		RunID:      runID,
	}
}
