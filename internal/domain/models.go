// Package domain provides domain models and business logic for the Travel Data Service.
package domain

// TaskStatus represents the lifecycle states of a collection task.
// These values must match the database enum task_status.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// ReviewStatus represents the moderation state of a collected record.
// These values must match the database enum review_status.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s ReviewStatus) IsTerminal() bool {
	switch s {
	case ReviewStatusApproved, ReviewStatusRejected:
		return true
	default:
		return false
	}
}

// DataType represents the kind of travel data a collection run targets.
type DataType string

const (
	DataTypeAttraction   DataType = "attraction"
	DataTypeRestaurant   DataType = "restaurant"
	DataTypeHotel        DataType = "hotel"
	DataTypeCityOverview DataType = "city_overview"
	DataTypeGeneral      DataType = "general"
)

// ReviewSource identifies the pipeline that submitted a record for review.
// These values must match the database enum review_source.
type ReviewSource string

const (
	ReviewSourceCollection ReviewSource = "collection"
	ReviewSourceManual     ReviewSource = "manual"
)

// ReviewAction is an operator decision on a pending review item.
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "approve"
	ReviewActionReject  ReviewAction = "reject"
)

// Valid reports whether the action is one of the accepted decision verbs.
func (a ReviewAction) Valid() bool {
	return a == ReviewActionApprove || a == ReviewActionReject
}

// Record is a single loosely-structured record produced by the content
// parser. Keys come straight from the external workflow output, so callers
// must treat every field as optional.
type Record map[string]interface{}

// StringField returns the string value for key, or "" when the key is
// missing or holds a non-string value.
func (r Record) StringField(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// HasField reports whether key is present with a non-nil value.
func (r Record) HasField(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}
