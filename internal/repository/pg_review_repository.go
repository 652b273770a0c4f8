package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// Compile-time interface verification.
var _ ReviewRepository = (*PgReviewRepository)(nil)

// PgReviewRepository is a PostgreSQL implementation of ReviewRepository.
type PgReviewRepository struct {
	db DBTX
}

// NewPgReviewRepository creates a new PostgreSQL review repository.
func NewPgReviewRepository(db DBTX) *PgReviewRepository {
	return &PgReviewRepository{db: db}
}

const reviewColumns = `id, task_id, data_type, source, city_name, status,
	payload, selected_images, reviewer_id, notes,
	submitted_at, reviewed_at`

const reviewInsertQuery = `
	INSERT INTO review_items (
		id, task_id, data_type, source, city_name, status,
		payload, selected_images, reviewer_id, notes,
		submitted_at, reviewed_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12
	)`

// Create inserts a new review item.
func (r *PgReviewRepository) Create(ctx context.Context, item *domain.ReviewItem) error {
	if err := validateReviewItem(item); err != nil {
		return err
	}

	args, err := reviewInsertArgs(item)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, reviewInsertQuery, args...); err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("review item", item.ID.String())
		}
		return fmt.Errorf("failed to create review item: %w", err)
	}

	return nil
}

// CreateBatch inserts review items in one batch round trip.
func (r *PgReviewRepository) CreateBatch(ctx context.Context, items []*domain.ReviewItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		if err := validateReviewItem(item); err != nil {
			return err
		}
		args, err := reviewInsertArgs(item)
		if err != nil {
			return err
		}
		batch.Queue(reviewInsertQuery, args...)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i, item := range items {
		if _, err := results.Exec(); err != nil {
			if isPgUniqueViolation(err) {
				return domain.NewAlreadyExistsError("review item", item.ID.String())
			}
			return fmt.Errorf("failed to create review item %d of %d: %w", i+1, len(items), err)
		}
	}

	return nil
}

// Get retrieves a review item by ID.
func (r *PgReviewRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ReviewItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM review_items WHERE id = $1`, reviewColumns)

	row := r.db.QueryRow(ctx, query, id)
	item, err := scanReviewItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("review item", id.String())
		}
		return nil, fmt.Errorf("failed to get review item: %w", err)
	}

	return item, nil
}

// List retrieves review items matching the filter.
func (r *PgReviewRepository) List(ctx context.Context, filter ItemFilter) ([]*domain.ReviewItem, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	conditions := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.DataType != "" {
		conditions = append(conditions, fmt.Sprintf("data_type = $%d", argIndex))
		args = append(args, filter.DataType)
		argIndex++
	}

	if filter.CityName != "" {
		conditions = append(conditions, fmt.Sprintf("city_name = $%d", argIndex))
		args = append(args, filter.CityName)
		argIndex++
	}

	if filter.TaskID != nil {
		conditions = append(conditions, fmt.Sprintf("task_id = $%d", argIndex))
		args = append(args, *filter.TaskID)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM review_items WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count review items: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM review_items
		WHERE %s
		ORDER BY submitted_at DESC
		LIMIT $%d OFFSET $%d`,
		reviewColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list review items: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.ReviewItem, 0, filter.Limit)
	for rows.Next() {
		item, err := scanReviewItemFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan review item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating review items: %w", err)
	}

	return items, totalCount, nil
}

// Decide applies a decision to a pending item. The row is locked with
// SELECT FOR UPDATE so concurrent decisions serialize; the loser sees a
// non-pending status and gets a conflict.
func (r *PgReviewRepository) Decide(ctx context.Context, id uuid.UUID, decision domain.ReviewDecision) (*domain.ReviewItem, error) {
	if !decision.Action.Valid() {
		return nil, domain.NewValidationError("action", "action must be approve or reject")
	}

	selectQuery := fmt.Sprintf(`SELECT %s FROM review_items WHERE id = $1 FOR UPDATE`, reviewColumns)

	rows, err := r.db.Query(ctx, selectQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query review item for decision: %w", err)
	}

	item, err := scanReviewItemRows(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("review item", id.String())
		}
		return nil, fmt.Errorf("failed to scan review item: %w", err)
	}

	if !item.IsPending() {
		return nil, domain.NewConflictError("review item", id.String(),
			fmt.Sprintf("already %s", item.Status))
	}

	now := time.Now().UTC()
	switch decision.Action {
	case domain.ReviewActionApprove:
		item.Status = domain.ReviewStatusApproved
	case domain.ReviewActionReject:
		item.Status = domain.ReviewStatusRejected
	}
	item.ReviewerID = decision.ReviewerID
	item.Notes = decision.Notes
	if len(decision.SelectedImages) > 0 {
		item.SelectedImages = decision.SelectedImages
	}
	item.ReviewedAt = &now

	imagesJSON, err := json.Marshal(item.SelectedImages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal selected images: %w", err)
	}

	updateQuery := `
		UPDATE review_items SET
			status = $1,
			reviewer_id = $2,
			notes = $3,
			selected_images = $4,
			reviewed_at = $5
		WHERE id = $6`

	_, err = r.db.Exec(ctx, updateQuery,
		item.Status,
		nullString(item.ReviewerID),
		nullString(item.Notes),
		imagesJSON,
		item.ReviewedAt,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update review item: %w", err)
	}

	return item, nil
}

// validateReviewItem checks required fields before insert.
func validateReviewItem(item *domain.ReviewItem) error {
	if item == nil {
		return domain.NewValidationError("item", "review item cannot be nil")
	}
	if item.ID == uuid.Nil {
		return domain.NewValidationError("id", "review item ID is required")
	}
	if item.CityName == "" {
		return domain.NewValidationError("city_name", "city name is required")
	}
	if item.DataType == "" {
		return domain.NewValidationError("data_type", "data type is required")
	}
	if item.Source == "" {
		return domain.NewValidationError("source", "source is required")
	}
	return nil
}

// reviewInsertArgs marshals the item's JSONB columns and assembles the
// insert argument list.
func reviewInsertArgs(item *domain.ReviewItem) ([]interface{}, error) {
	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	imagesJSON, err := json.Marshal(item.SelectedImages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal selected images: %w", err)
	}

	return []interface{}{
		item.ID, item.TaskID, item.DataType, item.Source, item.CityName, item.Status,
		payloadJSON, imagesJSON, nullString(item.ReviewerID), nullString(item.Notes),
		item.SubmittedAt, item.ReviewedAt,
	}, nil
}

// reviewScanDest holds the destination pointers for scanning a ReviewItem
// row.
type reviewScanDest struct {
	item        domain.ReviewItem
	payloadJSON []byte
	imagesJSON  []byte
	reviewerID  *string
	notes       *string
}

func (d *reviewScanDest) destinations() []interface{} {
	return []interface{}{
		&d.item.ID, &d.item.TaskID, &d.item.DataType, &d.item.Source, &d.item.CityName, &d.item.Status,
		&d.payloadJSON, &d.imagesJSON, &d.reviewerID, &d.notes,
		&d.item.SubmittedAt, &d.item.ReviewedAt,
	}
}

func (d *reviewScanDest) finalize() (*domain.ReviewItem, error) {
	if d.reviewerID != nil {
		d.item.ReviewerID = *d.reviewerID
	}
	if d.notes != nil {
		d.item.Notes = *d.notes
	}

	if len(d.payloadJSON) > 0 && string(d.payloadJSON) != "null" {
		if err := json.Unmarshal(d.payloadJSON, &d.item.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	if len(d.imagesJSON) > 0 && string(d.imagesJSON) != "null" {
		if err := json.Unmarshal(d.imagesJSON, &d.item.SelectedImages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal selected images: %w", err)
		}
	}

	return &d.item, nil
}

func scanReviewItem(row pgx.Row) (*domain.ReviewItem, error) {
	var dest reviewScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanReviewItemRows scans a single row from pgx.Rows, as returned by
// SELECT FOR UPDATE.
func scanReviewItemRows(rows pgx.Rows) (*domain.ReviewItem, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	return scanReviewItemFromRows(rows)
}

func scanReviewItemFromRows(rows pgx.Rows) (*domain.ReviewItem, error) {
	var dest reviewScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
