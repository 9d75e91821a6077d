package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thep200/github-tracker/cfg"
	"github.com/thep200/github-tracker/internal/model"
	"github.com/thep200/github-tracker/pkg/db"
	"github.com/thep200/github-tracker/pkg/kafka"
	"github.com/thep200/github-tracker/pkg/log"
)

func main() {
	// Load configuration
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, _ := log.NewCslLogger()

	// Setup database
	mysql, _ := db.NewMysql(config)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create models
	eventModel, _ := model.NewSyncEvent(config, logger, mysql)
	if err := mysql.Migrate(eventModel); err != nil {
		logger.Error(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	startSyncEventConsumer(ctx, config, logger, eventModel)

	// Wait for termination signal
	<-sigCh
	logger.Info(ctx, "Received shutdown signal, gracefully shutting down...")
	cancel()
}

func startSyncEventConsumer(ctx context.Context, config *cfg.Config, logger log.Logger, eventModel *model.SyncEvent) {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicSyncEvent, "sync-event-consumer-group")

	batchSize := 100
	batchTimeout := 5 * time.Second

	// Channel to collect messages for batch processing
	messages := make(chan model.RepoEventMessage, batchSize*2)

	// Batch processor
	go processBatchedEvents(ctx, messages, batchSize, batchTimeout, logger, eventModel)

	// Register handler for sync event messages
	consumer.RegisterHandler("sync_event", func(data []byte) error {
		var eventMsg model.RepoEventMessage
		if err := json.Unmarshal(data, &eventMsg); err != nil {
			return fmt.Errorf("failed to unmarshal sync event message: %w", err)
		}

		// Send to batch channel instead of processing individually
		select {
		case messages <- eventMsg:
			// Message added to batch
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})

	// Start consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Sync event consumer error: %v", err)
		}
	}()

	logger.Info(ctx, "Sync event consumer started successfully")
}

func processBatchedEvents(ctx context.Context, messages <-chan model.RepoEventMessage, batchSize int,
	batchTimeout time.Duration, logger log.Logger, eventModel *model.SyncEvent) {

	var batch []model.RepoEventMessage
	timer := time.NewTimer(batchTimeout)

	for {
		select {
		case <-ctx.Done():
			// Process remaining messages before exiting
			if len(batch) > 0 {
				processSingleBatch(ctx, batch, logger, eventModel)
			}
			return

		case msg := <-messages:
			batch = append(batch, msg)

			// Process batch when it reaches the desired size
			if len(batch) >= batchSize {
				processSingleBatch(ctx, batch, logger, eventModel)
				batch = nil // Reset batch
				timer.Reset(batchTimeout)
			}

		case <-timer.C:
			// Process batch on timeout if there are any messages
			if len(batch) > 0 {
				processSingleBatch(ctx, batch, logger, eventModel)
				batch = nil // Reset batch
			}
			timer.Reset(batchTimeout)
		}
	}
}

func processSingleBatch(ctx context.Context, batch []model.RepoEventMessage, logger log.Logger, eventModel *model.SyncEvent) {
	if len(batch) == 0 {
		return
	}

	logger.Info(ctx, "Processing batch of %d sync events", len(batch))

	err := eventModel.CreateBatch(batch)
	if err != nil {
		logger.Error(ctx, "Failed to save batch of sync events: %v", err)
	} else {
		logger.Info(ctx, "Successfully saved batch of %d sync events", len(batch))
	}
}
