package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// ReviewRepository handles review item persistence. Items enter pending and
// accept exactly one decision; a second decision is a conflict.
type ReviewRepository interface {
	// Create inserts a new review item.
	// Returns domain.ErrAlreadyExists if an item with the same ID exists.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, item *domain.ReviewItem) error

	// CreateBatch inserts review items in a single batch round trip. All
	// inserts share the failure mode of Create.
	CreateBatch(ctx context.Context, items []*domain.ReviewItem) error

	// Get retrieves a review item by ID.
	// Returns domain.ErrNotFound if no matching item exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.ReviewItem, error)

	// List retrieves review items matching the filter with a total count.
	List(ctx context.Context, filter ItemFilter) ([]*domain.ReviewItem, int64, error)

	// Decide applies an operator decision to a pending item, locking the
	// row first. Returns domain.ErrNotFound if the item does not exist and
	// domain.ErrConflict if it has already been decided. On success the
	// updated item is returned.
	//
	// Decide runs against the repository's DBTX as-is: wrap it in a
	// transaction when the approval must be atomic with downstream writes.
	Decide(ctx context.Context, id uuid.UUID, decision domain.ReviewDecision) (*domain.ReviewItem, error)
}

// ItemFilter specifies criteria for listing review items.
type ItemFilter struct {
	// Status filters by review status (optional). The HTTP layer defaults
	// this to pending.
	Status domain.ReviewStatus

	// DataType filters by classified data type (optional).
	DataType domain.DataType

	// CityName filters by exact city name (optional).
	CityName string

	// TaskID filters to items produced by one collection task (optional).
	TaskID *uuid.UUID

	// Limit specifies maximum number of results (default: 50, max: 500).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate normalizes pagination values.
func (f *ItemFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
