package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
)

func postJSON(t *testing.T, path string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestCreateCollectionTask(t *testing.T) {
	f := newTestFixture(t)
	f.workflowClient.workflowID = "collection-test"
	f.workflowClient.runID = "run-1"

	var created *domain.CollectionTask
	f.tasks.On("Create", mock.Anything, mock.MatchedBy(func(task *domain.CollectionTask) bool {
		created = task
		return task.CityName == "杭州" &&
			task.DataType == domain.DataTypeAttraction &&
			task.Status == domain.TaskStatusRunning &&
			task.Progress == domain.ProgressCreated
	})).Return(nil)
	f.tasks.On("SetWorkflow", mock.Anything, mock.Anything, "collection-test", "run-1").Return(nil)

	rec := f.do(postJSON(t, "/api/v1/collection/tasks", map[string]string{
		"city_name": "杭州",
		"data_type": "attraction",
	}))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp createTaskResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, created)
	assert.Equal(t, created.ID.String(), resp.TaskID)
	assert.Equal(t, "collection-test", resp.WorkflowID)
	assert.Equal(t, "running", resp.Status)

	require.Len(t, f.workflowClient.startedReqs, 1)
	assert.Equal(t, created.ID, f.workflowClient.startedReqs[0].TaskID)
	assert.Equal(t, "杭州", f.workflowClient.startedReqs[0].CityName)
	f.tasks.AssertExpectations(t)
}

func TestCreateCollectionTask_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing city name", map[string]string{"data_type": "attraction"}},
		{"blank city name", map[string]string{"city_name": "   ", "data_type": "attraction"}},
		{"missing data type", map[string]string{"city_name": "杭州"}},
		{"unknown data type", map[string]string{"city_name": "杭州", "data_type": "museum"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFixture(t)

			rec := f.do(postJSON(t, "/api/v1/collection/tasks", tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			f.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			assert.Empty(t, f.workflowClient.startedReqs)
		})
	}
}

func TestCreateCollectionTask_InvalidJSON(t *testing.T) {
	f := newTestFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/collection/tasks", bytes.NewReader([]byte("{not json")))
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCollectionTask_WorkflowStartFailureFailsTask(t *testing.T) {
	f := newTestFixture(t)
	f.workflowClient.startErr = domain.ErrServiceUnavailable

	f.tasks.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.tasks.On("Fail", mock.Anything, mock.Anything, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "failed to start workflow")
	})).Return(nil)

	rec := f.do(postJSON(t, "/api/v1/collection/tasks", map[string]string{
		"city_name": "杭州",
		"data_type": "general",
	}))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	f.tasks.AssertExpectations(t)
}

func TestListCollectionTasks(t *testing.T) {
	f := newTestFixture(t)

	now := time.Now().UTC()
	tasks := []*domain.CollectionTask{
		{ID: uuid.New(), CityName: "北京", DataType: domain.DataTypeHotel, Status: domain.TaskStatusCompleted, Progress: 100, CreatedAt: now},
		{ID: uuid.New(), CityName: "上海", DataType: domain.DataTypeGeneral, Status: domain.TaskStatusRunning, Progress: 50, CreatedAt: now},
	}

	f.tasks.On("List", mock.Anything, mock.MatchedBy(func(filter repository.TaskFilter) bool {
		return filter.Limit == 10 && filter.Offset == 20 &&
			len(filter.Status) == 1 && filter.Status[0] == domain.TaskStatusRunning
	})).Return(tasks, int64(42), nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/collection/tasks?page=3&limit=10&status=running", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp listTasksResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, int64(42), resp.TotalCount)
	assert.Equal(t, 3, resp.Page)
	assert.Equal(t, 10, resp.Limit)
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "北京", resp.Tasks[0].CityName)
	assert.Equal(t, "hotel", resp.Tasks[0].DataType)
}

func TestListCollectionTasks_LimitCapped(t *testing.T) {
	f := newTestFixture(t)

	f.tasks.On("List", mock.Anything, mock.MatchedBy(func(filter repository.TaskFilter) bool {
		return filter.Limit == maxPageSize && filter.Offset == 0
	})).Return([]*domain.CollectionTask{}, int64(0), nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/collection/tasks?limit=5000", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	f.tasks.AssertExpectations(t)
}

func TestGetCollectionTask(t *testing.T) {
	f := newTestFixture(t)

	taskID := uuid.New()
	task := &domain.CollectionTask{
		ID:                 taskID,
		CityName:           "杭州",
		DataType:           domain.DataTypeGeneral,
		Status:             domain.TaskStatusCompleted,
		Progress:           100,
		TemporalWorkflowID: "collection-" + taskID.String(),
		ParseError:         "",
		Stats:              &domain.TaskStats{RecordCount: 5, ReviewCount: 5},
		CreatedAt:          time.Now().UTC(),
	}
	f.tasks.On("Get", mock.Anything, taskID).Return(task, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/collection/tasks/"+taskID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp taskStatusResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, taskID.String(), resp.ID)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 100, resp.Progress)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 5, resp.Stats.RecordCount)
}

func TestGetCollectionTask_NotFound(t *testing.T) {
	f := newTestFixture(t)

	taskID := uuid.New()
	f.tasks.On("Get", mock.Anything, taskID).Return(nil, domain.ErrNotFound)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/collection/tasks/"+taskID.String(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCollectionTask_InvalidUUID(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/collection/tasks/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.tasks.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetCollectionTaskDetails(t *testing.T) {
	f := newTestFixture(t)

	taskID := uuid.New()
	task := &domain.CollectionTask{
		ID:       taskID,
		CityName: "杭州",
		DataType: domain.DataTypeGeneral,
		Status:   domain.TaskStatusFailed,
		Progress: 10,
		RequestPayload: map[string]interface{}{
			"city": "杭州",
		},
		APICalls: []domain.APICallRecord{
			{Name: "coze_workflow_run", Attempt: 1, Success: false, Error: "rate limited"},
			{Name: "coze_workflow_run", Attempt: 2, Success: false, Error: "rate limited"},
		},
		Steps: []domain.StepEntry{
			{Step: "workflow_dispatched", Timestamp: time.Now().UTC()},
			{Step: "workflow_failed", Timestamp: time.Now().UTC()},
		},
		ErrorMessage: "collection workflow failed: rate limited",
		CreatedAt:    time.Now().UTC(),
	}
	f.tasks.On("Get", mock.Anything, taskID).Return(task, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/collection/tasks/"+taskID.String()+"/details", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp taskDetailsResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "collection workflow failed: rate limited", resp.ErrorMessage)
	assert.Len(t, resp.APICalls, 2)
	assert.Equal(t, 2, resp.APICalls[1].Attempt)
	require.Len(t, resp.Steps, 2)
	assert.Equal(t, "workflow_dispatched", resp.Steps[0].Step)
	assert.Equal(t, "杭州", resp.RequestPayload["city"])
}

func TestGetCollectionTaskDetails_EmptyLogsSerializeAsArrays(t *testing.T) {
	f := newTestFixture(t)

	taskID := uuid.New()
	f.tasks.On("Get", mock.Anything, taskID).Return(&domain.CollectionTask{
		ID:       taskID,
		CityName: "杭州",
		Status:   domain.TaskStatusRunning,
	}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/collection/tasks/"+taskID.String()+"/details", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	decodeBody(t, rec, &raw)
	assert.Equal(t, "[]", string(raw["steps"]))
	assert.Equal(t, "[]", string(raw["api_calls"]))
}
