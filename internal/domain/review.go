package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewItem is a collected record awaiting an operator decision. Every
// record produced by a collection run lands here as pending; approval is
// what commits the record to its destination table.
type ReviewItem struct {
	ID uuid.UUID `json:"id"`

	// TaskID references the collection task that produced this record.
	// Nil for manually submitted items.
	TaskID *uuid.UUID `json:"task_id,omitempty"`

	// DataType is the classified kind of the payload.
	DataType DataType `json:"data_type"`

	// Source identifies the pipeline that submitted the item.
	Source ReviewSource `json:"source"`

	// CityName is the city the record belongs to.
	CityName string `json:"city_name"`

	// Status is the moderation state. Pending items accept exactly one
	// decision; a second decision is a conflict.
	Status ReviewStatus `json:"status"`

	// Payload is the parsed record as produced by the content parser.
	Payload Record `json:"payload"`

	// SelectedImages holds operator-curated image URLs, set at approval time.
	SelectedImages []string `json:"selected_images,omitempty"`

	// ReviewerID identifies who decided the item.
	ReviewerID string `json:"reviewer_id,omitempty"`

	// Notes holds free-form reviewer commentary.
	Notes string `json:"notes,omitempty"`

	// Timestamps
	SubmittedAt time.Time  `json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

// IsPending returns true if the item still accepts a decision.
func (r *ReviewItem) IsPending() bool {
	return r.Status == ReviewStatusPending
}

// ReviewDecision captures an operator's verdict on a pending item.
type ReviewDecision struct {
	Action         ReviewAction `json:"action"`
	ReviewerID     string       `json:"reviewer_id,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	SelectedImages []string     `json:"selected_images,omitempty"`
}
