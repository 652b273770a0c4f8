package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/observability"
)

// EventPublisher is the interface used by EventActivities to publish
// lifecycle events. This decouples the activity from the concrete Kafka
// publisher, enabling straightforward testing with mock implementations.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.Event) error
}

// EventActivities provides the Temporal activity that publishes task
// lifecycle events to Kafka. Delivery is best-effort: the workflow invokes
// this activity with fire-and-forget semantics, so a publish failure never
// fails a collection run.
//
// Methods on this struct are registered as Temporal activities via the worker.
type EventActivities struct {
	publisher EventPublisher
	metrics   *observability.Metrics
}

// NewEventActivities creates a new EventActivities instance with the given
// dependencies. The metrics parameter may be nil (metrics recording will be
// skipped).
func NewEventActivities(publisher EventPublisher, metrics *observability.Metrics) *EventActivities {
	return &EventActivities{
		publisher: publisher,
		metrics:   metrics,
	}
}

// PublishEvent publishes a task lifecycle event keyed by the task ID.
func (a *EventActivities) PublishEvent(ctx context.Context, input PublishEventInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("publishing event",
		"eventType", input.EventType,
		"taskID", input.TaskID,
	)

	event, err := domain.NewEvent(input.EventType, input.TaskID.String(), "collection_task", input.Payload)
	if err != nil {
		logger.Error("failed to build event",
			"eventType", input.EventType,
			"taskID", input.TaskID,
			"error", err,
		)
		return fmt.Errorf("build event %s: %w", input.EventType, err)
	}

	if err := a.publisher.Publish(ctx, event); err != nil {
		if a.metrics != nil {
			a.metrics.RecordEventFailed()
		}
		logger.Error("failed to publish event",
			"eventType", input.EventType,
			"taskID", input.TaskID,
			"error", err,
		)
		return fmt.Errorf("publish event %s: %w", input.EventType, err)
	}

	if a.metrics != nil {
		a.metrics.RecordEventPublished(input.EventType)
	}

	logger.Info("event published",
		"eventType", input.EventType,
		"taskID", input.TaskID,
	)

	return nil
}
