// Package review implements the human moderation queue. Collected records
// wait here as pending items; approval is what commits a record to its
// destination table.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hgj2025/cityinfo-sub001/internal/classifier"
	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/events"
	"github.com/hgj2025/cityinfo-sub001/internal/observability"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
)

// TxRunner runs a function inside a database transaction. Satisfied by
// *database.DB.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Service coordinates review decisions. Approval updates the review row and
// commits the payload to its destination table inside one transaction, so a
// failed save rolls the approval back.
type Service struct {
	db        TxRunner
	reviews   repository.ReviewRepository
	publisher events.Publisher
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewService creates a review service. The reviews repository is used for
// reads; decisions construct transaction-scoped repositories internally.
func NewService(
	db TxRunner,
	reviews repository.ReviewRepository,
	publisher events.Publisher,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		db:        db,
		reviews:   reviews,
		publisher: publisher,
		logger:    logger.With().Str("component", "review_service").Logger(),
		metrics:   metrics,
	}
}

// List retrieves review items matching the filter with a total count.
func (s *Service) List(ctx context.Context, filter repository.ItemFilter) ([]*domain.ReviewItem, int64, error) {
	return s.reviews.List(ctx, filter)
}

// Get retrieves one review item.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.ReviewItem, error) {
	return s.reviews.Get(ctx, id)
}

// Decide applies an operator decision. Reject only records reviewer
// metadata. Approve additionally classifies and saves the payload; the
// status update and the save share one transaction.
func (s *Service) Decide(ctx context.Context, id uuid.UUID, decision domain.ReviewDecision) (*domain.ReviewItem, error) {
	if !decision.Action.Valid() {
		return nil, domain.NewValidationError("action", fmt.Sprintf("unknown review action %q", decision.Action))
	}

	var decided *domain.ReviewItem
	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		txReviews := repository.NewPgReviewRepository(tx)

		item, err := txReviews.Decide(ctx, id, decision)
		if err != nil {
			return err
		}

		if decision.Action == domain.ReviewActionApprove {
			if err := s.commitPayload(ctx, tx, item); err != nil {
				return fmt.Errorf("failed to commit approved payload: %w", err)
			}
		}

		decided = item
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			s.logger.Error().Err(err).Str("review_id", id.String()).Msg("review decision failed")
		}
		return nil, err
	}

	s.logger.Info().
		Str("review_id", id.String()).
		Str("action", string(decision.Action)).
		Str("city", decided.CityName).
		Str("data_type", string(decided.DataType)).
		Msg("review decided")
	if s.metrics != nil {
		s.metrics.RecordReviewDecided(string(decision.Action))
	}

	s.publishDecision(ctx, decided)

	return decided, nil
}

// commitPayload saves the approved payload through a transaction-scoped
// classifier, so the write rolls back with the approval.
func (s *Service) commitPayload(ctx context.Context, tx pgx.Tx, item *domain.ReviewItem) error {
	saver := classifier.NewSaver(repository.NewPgPlaceRepository(tx), s.logger)

	payload := item.Payload
	if len(item.SelectedImages) > 0 {
		// Reviewer-curated images replace whatever the collection brought.
		payload = make(domain.Record, len(item.Payload)+1)
		for k, v := range item.Payload {
			payload[k] = v
		}
		payload["images"] = item.SelectedImages
	}

	if item.DataType == domain.DataTypeCityOverview {
		return saver.SaveOverview(ctx, payload, item.CityName)
	}
	return saver.Save(ctx, []domain.Record{payload}, item.CityName)
}

// publishDecision emits the review.approved or review.rejected event.
// Delivery is best-effort.
func (s *Service) publishDecision(ctx context.Context, item *domain.ReviewItem) {
	eventType := domain.EventTypeReviewRejected
	if item.Status == domain.ReviewStatusApproved {
		eventType = domain.EventTypeReviewApproved
	}

	event, err := domain.NewEvent(eventType, item.ID.String(), "review_item", domain.ReviewDecidedPayload{
		ReviewID:   item.ID,
		TaskID:     item.TaskID,
		DataType:   item.DataType,
		CityName:   item.CityName,
		Status:     item.Status,
		ReviewerID: item.ReviewerID,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build review event")
		return
	}

	events.PublishLogged(ctx, s.publisher, event, s.logger)
}

// isClientError reports whether the error is the caller's fault rather than
// an internal failure worth an error log.
func isClientError(err error) bool {
	var validationErr *domain.ValidationError
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.As(err, &validationErr)
}
