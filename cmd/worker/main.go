// Package main provides the entry point for the travel data Temporal worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hgj2025/cityinfo-sub001/internal/classifier"
	"github.com/hgj2025/cityinfo-sub001/internal/config"
	"github.com/hgj2025/cityinfo-sub001/internal/coze"
	"github.com/hgj2025/cityinfo-sub001/internal/database"
	"github.com/hgj2025/cityinfo-sub001/internal/events"
	"github.com/hgj2025/cityinfo-sub001/internal/observability"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
	"github.com/hgj2025/cityinfo-sub001/internal/temporal"
	"github.com/hgj2025/cityinfo-sub001/internal/temporal/activities"
	"github.com/hgj2025/cityinfo-sub001/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("travel-data-service worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("traveldata")
	}

	// Create repositories.
	taskRepo := repository.NewPgTaskRepository(db)
	reviewRepo := repository.NewPgReviewRepository(db)
	placeRepo := repository.NewPgPlaceRepository(db)

	// Create the Coze streaming client and runner. The runner owns the retry
	// budget; activity-level retries stay disabled.
	cozeClient := coze.NewClient(cfg.Coze)
	runner := coze.NewRunner(
		cozeClient,
		cfg.Coze.WorkflowID,
		cfg.Coze.MaxAttempts,
		cfg.Coze.RetryDelay,
		logger,
		metrics,
	)
	logger.Info().
		Str("base_url", cfg.Coze.BaseURL).
		Str("workflow_id", cfg.Coze.WorkflowID).
		Int("max_attempts", cfg.Coze.MaxAttempts).
		Msg("coze workflow runner created")

	// Create the record saver used by the save activity.
	saver := classifier.NewSaver(placeRepo, logger)

	// Create the lifecycle event publisher.
	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
		defer func() {
			if closeErr := kafkaPublisher.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close kafka publisher")
			}
		}()
		publisher = kafkaPublisher
		logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka event publisher created")
	} else {
		publisher = events.NopPublisher{}
	}

	// Create Temporal client.
	temporalClient, err := temporal.NewClient(temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	// Create WorkerManager.
	workerConfig := temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue)
	manager, err := temporal.NewWorkerManager(temporalClient, workerConfig)
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}

	// Register workflows.
	manager.RegisterWorkflow(workflows.CollectionWorkflow)

	// Create and register all activity structs.
	cozeActivities := activities.NewCozeActivities(runner)
	parseActivities := activities.NewParseActivities(metrics)
	statusActivities := activities.NewStatusActivities(taskRepo, metrics)
	saveActivities := activities.NewSaveActivities(reviewRepo, saver, metrics)
	eventActivities := activities.NewEventActivities(publisher, metrics)

	manager.RegisterActivity(cozeActivities)
	manager.RegisterActivity(parseActivities)
	manager.RegisterActivity(statusActivities)
	manager.RegisterActivity(saveActivities)
	manager.RegisterActivity(eventActivities)

	logger.Info().
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("starting temporal worker")

	// Start the worker and block until context is cancelled.
	if err := manager.Start(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("worker stopped via signal")
			return nil
		}
		return fmt.Errorf("worker error: %w", err)
	}

	return nil
}
