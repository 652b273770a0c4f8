package httpserver

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
)

// decideReviewRequest is the JSON request body for deciding a pending item.
type decideReviewRequest struct {
	Action         string   `json:"action" validate:"required,oneof=approve reject"`
	ReviewerID     string   `json:"reviewer_id" validate:"max=200"`
	Notes          string   `json:"notes" validate:"max=2000"`
	SelectedImages []string `json:"selected_images" validate:"max=50,dive,url"`
}

// listReviews handles GET /api/v1/reviews.
// The queue defaults to pending items; status=all disables the filter.
func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := parsePageParams(r)
	filter := repository.ItemFilter{
		Status: domain.ReviewStatusPending,
		Limit:  limit,
		Offset: offset,
	}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		if statusParam == "all" {
			filter.Status = ""
		} else {
			filter.Status = domain.ReviewStatus(statusParam)
		}
	}
	if dataType := r.URL.Query().Get("data_type"); dataType != "" {
		filter.DataType = domain.DataType(dataType)
	}
	if cityName := r.URL.Query().Get("city_name"); cityName != "" {
		filter.CityName = cityName
	}
	if taskIDParam := r.URL.Query().Get("task_id"); taskIDParam != "" {
		taskID, ok := parseUUID(w, taskIDParam, "task_id")
		if !ok {
			return
		}
		filter.TaskID = &taskID
	}

	items, totalCount, err := s.reviews.List(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]reviewItemResponse, len(items))
	for i, item := range items {
		responses[i] = reviewToResponse(item)
	}

	writeJSON(w, http.StatusOK, listReviewsResponse{
		Items:      responses,
		TotalCount: totalCount,
		Page:       pageFromOffset(offset, limit),
		Limit:      limit,
	})
}

// getReview handles GET /api/v1/reviews/{reviewID}.
func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := parseUUID(w, chi.URLParam(r, "reviewID"), "review_id")
	if !ok {
		return
	}

	item, err := s.reviews.Get(r.Context(), reviewID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewToResponse(item))
}

// decideReview handles POST /api/v1/reviews/{reviewID}.
// Approval commits the record to its destination table in the same
// transaction as the status flip; rejection only flips the status.
func (s *Server) decideReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reviewID, ok := parseUUID(w, chi.URLParam(r, "reviewID"), "review_id")
	if !ok {
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req decideReviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	item, err := s.reviews.Decide(ctx, reviewID, domain.ReviewDecision{
		Action:         domain.ReviewAction(req.Action),
		ReviewerID:     req.ReviewerID,
		Notes:          req.Notes,
		SelectedImages: req.SelectedImages,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info().
		Str("review_id", reviewID.String()).
		Str("action", req.Action).
		Str("data_type", string(item.DataType)).
		Msg("review item decided")

	writeJSON(w, http.StatusOK, reviewToResponse(item))
}
