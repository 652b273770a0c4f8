package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/hgj2025/cityinfo-sub001/internal/classifier"
	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/observability"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
)

// RecordSaver is the interface used by SaveActivities to persist classified
// records. Satisfied by classifier.Saver.
type RecordSaver interface {
	Save(ctx context.Context, records []domain.Record, cityName string) error
	SaveOverview(ctx context.Context, rec domain.Record, cityName string) error
}

// SaveActivities provides the Temporal activity that submits parsed records
// for review and saves them into the place tables.
//
// Methods on this struct are registered as Temporal activities via the worker.
type SaveActivities struct {
	reviews repository.ReviewRepository
	saver   RecordSaver
	metrics *observability.Metrics
}

// NewSaveActivities creates a new SaveActivities instance with the given
// dependencies. The metrics parameter may be nil (metrics recording will be
// skipped).
func NewSaveActivities(reviews repository.ReviewRepository, saver RecordSaver, metrics *observability.Metrics) *SaveActivities {
	return &SaveActivities{
		reviews: reviews,
		saver:   saver,
		metrics: metrics,
	}
}

// SaveRecords creates one pending review item per record and saves the
// classified records into the place tables. City overview runs route the
// records to the overview upsert instead.
//
// Review items are inserted first in a single batch; the direct save then
// runs per record, so a mid-batch save failure leaves earlier writes and the
// full review queue in place.
//
// If the input records slice is empty, the method returns zero counts
// without calling any repository methods.
func (a *SaveActivities) SaveRecords(ctx context.Context, input SaveRecordsInput) (*SaveRecordsOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("saving collected records",
		"taskID", input.TaskID,
		"cityName", input.CityName,
		"dataType", input.DataType,
		"recordCount", len(input.Records),
	)

	if len(input.Records) == 0 {
		logger.Info("no records to save, skipping",
			"taskID", input.TaskID,
		)
		return &SaveRecordsOutput{}, nil
	}

	items := a.buildReviewItems(input)
	if err := a.reviews.CreateBatch(ctx, items); err != nil {
		logger.Error("failed to create review items",
			"taskID", input.TaskID,
			"error", err,
		)
		return nil, fmt.Errorf("create review items: %w", err)
	}

	if a.metrics != nil {
		for _, item := range items {
			a.metrics.RecordReviewSubmitted(string(item.DataType))
		}
	}

	if err := a.saveClassified(ctx, input); err != nil {
		logger.Error("failed to save records",
			"taskID", input.TaskID,
			"error", err,
		)
		return nil, err
	}

	if a.metrics != nil {
		for _, item := range items {
			a.metrics.RecordRecordSaved(string(item.DataType))
		}
	}

	logger.Info("records saved",
		"taskID", input.TaskID,
		"recordCount", len(input.Records),
		"reviewCount", len(items),
	)

	return &SaveRecordsOutput{
		RecordCount: len(input.Records),
		ReviewCount: len(items),
	}, nil
}

// buildReviewItems assembles one pending review item per record. Items from
// an overview run keep the task's data type; everything else is classified
// per record.
func (a *SaveActivities) buildReviewItems(input SaveRecordsInput) []*domain.ReviewItem {
	now := time.Now().UTC()
	taskID := input.TaskID

	items := make([]*domain.ReviewItem, 0, len(input.Records))
	for _, rec := range input.Records {
		dataType := input.DataType
		if dataType != domain.DataTypeCityOverview {
			dataType = classifiedDataType(rec)
		}
		items = append(items, &domain.ReviewItem{
			ID:          uuid.New(),
			TaskID:      &taskID,
			DataType:    dataType,
			Source:      domain.ReviewSourceCollection,
			CityName:    input.CityName,
			Status:      domain.ReviewStatusPending,
			Payload:     rec,
			SubmittedAt: now,
		})
	}
	return items
}

// saveClassified routes records to the place tables, or to the overview
// upsert for city overview runs.
func (a *SaveActivities) saveClassified(ctx context.Context, input SaveRecordsInput) error {
	if input.DataType == domain.DataTypeCityOverview {
		for i, rec := range input.Records {
			if err := a.saver.SaveOverview(ctx, rec, input.CityName); err != nil {
				return fmt.Errorf("save overview record %d: %w", i, err)
			}
		}
		return nil
	}
	return a.saver.Save(ctx, input.Records, input.CityName)
}

// classifiedDataType maps a record's classification to the review data type.
func classifiedDataType(rec domain.Record) domain.DataType {
	switch classifier.Classify(rec) {
	case classifier.CategoryRestaurant:
		return domain.DataTypeRestaurant
	case classifier.CategoryHotel:
		return domain.DataTypeHotel
	default:
		return domain.DataTypeAttraction
	}
}
