// Package domain provides domain models and business logic for the Travel Data Service.
package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   TaskStatus
		terminal bool
	}{
		{name: "running is not terminal", status: TaskStatusRunning, terminal: false},
		{name: "completed is terminal", status: TaskStatusCompleted, terminal: true},
		{name: "failed is terminal", status: TaskStatusFailed, terminal: true},
		{name: "unknown is not terminal", status: TaskStatus("bogus"), terminal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestReviewStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   ReviewStatus
		terminal bool
	}{
		{name: "pending is not terminal", status: ReviewStatusPending, terminal: false},
		{name: "approved is terminal", status: ReviewStatusApproved, terminal: true},
		{name: "rejected is terminal", status: ReviewStatusRejected, terminal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestReviewAction_Valid(t *testing.T) {
	assert.True(t, ReviewActionApprove.Valid())
	assert.True(t, ReviewActionReject.Valid())
	assert.False(t, ReviewAction("defer").Valid())
	assert.False(t, ReviewAction("").Valid())
}

func TestRecord_StringField(t *testing.T) {
	rec := Record{
		"name":        "West Lake",
		"ticketPrice": 80.0,
		"nothing":     nil,
	}

	assert.Equal(t, "West Lake", rec.StringField("name"))
	assert.Equal(t, "", rec.StringField("ticketPrice"), "non-string values read as empty")
	assert.Equal(t, "", rec.StringField("missing"))
}

func TestRecord_HasField(t *testing.T) {
	rec := Record{
		"category": "景点",
		"cuisine":  nil,
	}

	assert.True(t, rec.HasField("category"))
	assert.False(t, rec.HasField("cuisine"), "nil values are treated as absent")
	assert.False(t, rec.HasField("starRating"))
}

func TestCollectionTask_Duration(t *testing.T) {
	t.Run("running task measures from creation", func(t *testing.T) {
		task := &CollectionTask{
			Status:    TaskStatusRunning,
			CreatedAt: time.Now().Add(-2 * time.Second),
		}

		assert.GreaterOrEqual(t, task.Duration(), 2*time.Second)
	})

	t.Run("finished task measures to completion", func(t *testing.T) {
		created := time.Now().Add(-10 * time.Minute)
		completed := created.Add(90 * time.Second)
		task := &CollectionTask{
			Status:      TaskStatusCompleted,
			CreatedAt:   created,
			CompletedAt: &completed,
		}

		assert.Equal(t, 90*time.Second, task.Duration())
	})
}

func TestCollectionTask_AppendStep(t *testing.T) {
	task := &CollectionTask{}

	task.AppendStep("task_created", "collection task created", nil)
	task.AppendStep("workflow_dispatched", "external workflow invoked", map[string]interface{}{
		"attempt": 1,
	})

	require.Len(t, task.Steps, 2)
	assert.Equal(t, "task_created", task.Steps[0].Step)
	assert.Equal(t, "workflow_dispatched", task.Steps[1].Step)
	assert.Equal(t, 1, task.Steps[1].Data["attempt"])
	assert.False(t, task.Steps[0].Timestamp.IsZero())
}

func TestReviewItem_IsPending(t *testing.T) {
	item := &ReviewItem{Status: ReviewStatusPending}
	assert.True(t, item.IsPending())

	item.Status = ReviewStatusApproved
	assert.False(t, item.IsPending())
}

func TestDomainErrors_Unwrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "not found", err: NewNotFoundError("review item", "abc"), sentinel: ErrNotFound},
		{name: "already exists", err: NewAlreadyExistsError("city", "Hangzhou"), sentinel: ErrAlreadyExists},
		{name: "conflict", err: NewConflictError("review item", "abc", "already decided"), sentinel: ErrConflict},
		{name: "validation", err: NewValidationError("city_name", "must not be empty"), sentinel: ErrInvalidInput},
		{name: "rate limited", err: NewRateLimitError("coze", 5*time.Second), sentinel: ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestExternalAPIError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewExternalAPIError("coze", 502, "bad gateway", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "coze")
	assert.Contains(t, err.Error(), "502")
}
