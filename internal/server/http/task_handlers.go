package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
	"github.com/hgj2025/cityinfo-sub001/internal/temporal"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 20
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// createTaskRequest is the JSON request body for starting a collection run.
type createTaskRequest struct {
	CityName string `json:"city_name" validate:"required,max=200"`
	DataType string `json:"data_type" validate:"required,oneof=attraction restaurant hotel city_overview general"`
}

// createCollectionTask handles POST /api/v1/collection/tasks.
// It creates a collection task and starts the Temporal workflow, returning
// 202 while collection continues in the background.
func (s *Server) createCollectionTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req createTaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	req.CityName = strings.TrimSpace(req.CityName)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	taskID := uuid.New()
	now := time.Now().UTC()
	task := &domain.CollectionTask{
		ID:       taskID,
		CityName: req.CityName,
		DataType: domain.DataType(req.DataType),
		Status:   domain.TaskStatusRunning,
		Progress: domain.ProgressCreated,
		RequestPayload: map[string]interface{}{
			"city":      req.CityName,
			"data_type": req.DataType,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		writeDomainError(w, err)
		return
	}

	wfReq := temporal.CollectionWorkflowRequest{
		TaskID:   taskID,
		CityName: req.CityName,
		DataType: req.DataType,
	}
	workflowID, runID, err := s.workflowClient.StartCollectionWorkflow(ctx, wfReq, s.workflowFunc, wfReq)
	if err != nil {
		// The task row exists but nothing will drive it; fail it so it
		// does not sit at running forever.
		_ = s.tasks.Fail(ctx, taskID, fmt.Sprintf("failed to start workflow: %v", err))
		writeDomainError(w, err)
		return
	}

	// Best-effort update of workflow tracking IDs on the task.
	_ = s.tasks.SetWorkflow(ctx, taskID, workflowID, runID)

	if s.metrics != nil {
		s.metrics.RecordTaskStarted()
	}
	s.logger.Info().
		Str("task_id", taskID.String()).
		Str("city_name", req.CityName).
		Str("workflow_id", workflowID).
		Msg("collection task started")

	writeJSON(w, http.StatusAccepted, createTaskResponse{
		TaskID:     taskID.String(),
		WorkflowID: workflowID,
		Status:     string(domain.TaskStatusRunning),
		CreatedAt:  now,
	})
}

// listCollectionTasks handles GET /api/v1/collection/tasks.
// It returns a paginated list of task summaries with optional filters.
func (s *Server) listCollectionTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := parsePageParams(r)
	filter := repository.TaskFilter{
		Limit:  limit,
		Offset: offset,
	}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		filter.Status = []domain.TaskStatus{domain.TaskStatus(statusParam)}
	}
	if dataType := r.URL.Query().Get("data_type"); dataType != "" {
		filter.DataType = domain.DataType(dataType)
	}
	if cityName := r.URL.Query().Get("city_name"); cityName != "" {
		filter.CityName = cityName
	}

	tasks, totalCount, err := s.tasks.List(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	summaries := make([]taskSummaryResponse, len(tasks))
	for i, task := range tasks {
		summaries[i] = taskToSummary(task)
	}

	writeJSON(w, http.StatusOK, listTasksResponse{
		Tasks:      summaries,
		TotalCount: totalCount,
		Page:       pageFromOffset(offset, limit),
		Limit:      limit,
	})
}

// getCollectionTask handles GET /api/v1/collection/tasks/{taskID}.
// It returns the task's status view without the detailed logs.
func (s *Server) getCollectionTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseUUID(w, chi.URLParam(r, "taskID"), "task_id")
	if !ok {
		return
	}

	task, err := s.tasks.Get(r.Context(), taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, taskToStatusResponse(task))
}

// getCollectionTaskDetails handles GET /api/v1/collection/tasks/{taskID}/details.
// It returns the full task record including the step log, the API call log,
// both payloads, and parse diagnostics.
func (s *Server) getCollectionTaskDetails(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseUUID(w, chi.URLParam(r, "taskID"), "task_id")
	if !ok {
		return
	}

	task, err := s.tasks.Get(r.Context(), taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, taskToDetailsResponse(task))
}

// writeDomainError maps domain and temporal errors to HTTP status codes and
// writes a JSON error response. Internal error details are not leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "resource already decided")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, temporal.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeError(w, http.StatusConflict, "workflow already started")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationMessage renders the first validator failure as a client-facing
// message without exposing struct internals.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if
// invalid. The parse error details are not echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePageParams extracts page and limit query parameters, applying
// defaults and maximum bounds.
func parsePageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}

	return limit, (page - 1) * limit
}

// pageFromOffset converts an offset back to a 1-based page number.
func pageFromOffset(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}
