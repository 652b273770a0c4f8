package httpserver

import (
	"time"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// Response types decouple the JSON surface from the domain models so the
// API contract can evolve independently of storage.

// errorResponse is the uniform error body returned by all handlers.
type errorResponse struct {
	Error string `json:"error"`
}

// createTaskResponse acknowledges a started collection run.
type createTaskResponse struct {
	TaskID     string    `json:"task_id"`
	WorkflowID string    `json:"workflow_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// taskSummaryResponse is the compact task view returned by list endpoints.
type taskSummaryResponse struct {
	ID          string     `json:"id"`
	CityName    string     `json:"city_name"`
	DataType    string     `json:"data_type"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// listTasksResponse is the paginated envelope for task listings.
type listTasksResponse struct {
	Tasks      []taskSummaryResponse `json:"tasks"`
	TotalCount int64                 `json:"total_count"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
}

// taskStatusResponse is the polling view of one task: status and progress
// without the bulky logs.
type taskStatusResponse struct {
	ID           string            `json:"id"`
	CityName     string            `json:"city_name"`
	DataType     string            `json:"data_type"`
	Status       string            `json:"status"`
	Progress     int               `json:"progress"`
	WorkflowID   string            `json:"workflow_id,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	ParseError   string            `json:"parse_error,omitempty"`
	Stats        *domain.TaskStats `json:"stats,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// taskDetailsResponse is the full diagnostic view of one task, including
// the step log, the API call log, and both payloads.
type taskDetailsResponse struct {
	taskStatusResponse

	RequestPayload  map[string]interface{} `json:"request_payload,omitempty"`
	ResponsePayload map[string]interface{} `json:"response_payload,omitempty"`
	Steps           []domain.StepEntry     `json:"steps"`
	APICalls        []domain.APICallRecord `json:"api_calls"`
}

func taskToSummary(task *domain.CollectionTask) taskSummaryResponse {
	return taskSummaryResponse{
		ID:          task.ID.String(),
		CityName:    task.CityName,
		DataType:    string(task.DataType),
		Status:      string(task.Status),
		Progress:    task.Progress,
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.CompletedAt,
	}
}

func taskToStatusResponse(task *domain.CollectionTask) taskStatusResponse {
	return taskStatusResponse{
		ID:           task.ID.String(),
		CityName:     task.CityName,
		DataType:     string(task.DataType),
		Status:       string(task.Status),
		Progress:     task.Progress,
		WorkflowID:   task.TemporalWorkflowID,
		ErrorMessage: task.ErrorMessage,
		ParseError:   task.ParseError,
		Stats:        task.Stats,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
		CompletedAt:  task.CompletedAt,
	}
}

func taskToDetailsResponse(task *domain.CollectionTask) taskDetailsResponse {
	steps := task.Steps
	if steps == nil {
		steps = []domain.StepEntry{}
	}
	calls := task.APICalls
	if calls == nil {
		calls = []domain.APICallRecord{}
	}
	return taskDetailsResponse{
		taskStatusResponse: taskToStatusResponse(task),
		RequestPayload:     task.RequestPayload,
		ResponsePayload:    task.ResponsePayload,
		Steps:              steps,
		APICalls:           calls,
	}
}

// reviewItemResponse is the JSON view of one review queue item.
type reviewItemResponse struct {
	ID             string        `json:"id"`
	TaskID         string        `json:"task_id,omitempty"`
	DataType       string        `json:"data_type"`
	Source         string        `json:"source"`
	CityName       string        `json:"city_name"`
	Status         string        `json:"status"`
	Payload        domain.Record `json:"payload"`
	SelectedImages []string      `json:"selected_images,omitempty"`
	ReviewerID     string        `json:"reviewer_id,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	ReviewedAt     *time.Time    `json:"reviewed_at,omitempty"`
}

// listReviewsResponse is the paginated envelope for review listings.
type listReviewsResponse struct {
	Items      []reviewItemResponse `json:"items"`
	TotalCount int64                `json:"total_count"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
}

func reviewToResponse(item *domain.ReviewItem) reviewItemResponse {
	resp := reviewItemResponse{
		ID:             item.ID.String(),
		DataType:       string(item.DataType),
		Source:         string(item.Source),
		CityName:       item.CityName,
		Status:         string(item.Status),
		Payload:        item.Payload,
		SelectedImages: item.SelectedImages,
		ReviewerID:     item.ReviewerID,
		Notes:          item.Notes,
		SubmittedAt:    item.SubmittedAt,
		ReviewedAt:     item.ReviewedAt,
	}
	if item.TaskID != nil {
		resp.TaskID = item.TaskID.String()
	}
	return resp
}

// cityResponse is the JSON view of a city row.
type cityResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	NameEN      string    `json:"name_en,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// listCitiesResponse is the paginated envelope for city listings.
type listCitiesResponse struct {
	Cities     []cityResponse `json:"cities"`
	TotalCount int64          `json:"total_count"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
}

func cityToResponse(c *domain.City) cityResponse {
	return cityResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		NameEN:      c.NameEN,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		Location:    c.Location,
		CreatedAt:   c.CreatedAt,
	}
}
