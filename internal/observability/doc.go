// Package observability provides logging and metrics support for the travel
// data service.
//
// Loggers come from NewLogger and are enriched with collection identifiers
// through the With*Context helpers:
//
//	logger := observability.NewLogger(observability.DefaultLoggingConfig())
//	logger = observability.WithTaskContext(logger, taskID, cityName)
//	logger.Info().Msg("collection started")
//
// Prometheus metrics live on a single Metrics value created once per
// process:
//
//	metrics := observability.NewMetrics("traveldata")
//	metrics.RecordTaskStarted()
//	metrics.RecordRecordSaved("attraction")
//
// Context helpers (WithRequestID, WithTaskID, WithWorkflow) carry request
// and workflow identifiers across API and activity boundaries so log lines
// from the same collection run can be correlated. The conventional field
// names are task_id, city_name, review_id, data_type and workflow_id.
//
// All components are safe for concurrent use.
package observability
