package main

import (
	"context"
	"os"

	"github.com/thep200/github-tracker/cfg"
	githubapi "github.com/thep200/github-tracker/internal/github_api"
	"github.com/thep200/github-tracker/internal/model"
	"github.com/thep200/github-tracker/internal/syncer"
	"github.com/thep200/github-tracker/pkg/db"
	"github.com/thep200/github-tracker/pkg/kafka"
	"github.com/thep200/github-tracker/pkg/log"
)

func main() {
	ctx := context.Background()
	// loader, _ := cfg.NewMockLoader()
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, _ := log.NewCslLogger()
	mysql, _ := db.NewMysql(config)

	repoMd, _ := model.NewRepo(config, logger, mysql)
	activityMd, _ := model.NewActivity(config, logger, mysql)
	rankMd, _ := model.NewRankSnapshot(config, logger, mysql)
	eventMd, _ := model.NewSyncEvent(config, logger, mysql)

	// Migrate database
	if err := mysql.Migrate(repoMd, activityMd, rankMd, eventMd); err != nil {
		logger.Error(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	caller := githubapi.NewCaller(logger, config)
	store, err := model.NewStore(config, logger, mysql)
	if err != nil {
		logger.Error(ctx, "Failed to create store: %v", err)
		os.Exit(1)
	}

	// Sync event stream (tùy chọn)
	var events syncer.Publisher
	if config.Kafka.Enabled {
		producer := kafka.NewProducer(config, logger, config.Kafka.Producer.TopicSyncEvent)
		defer producer.Close()
		events = producer
	}

	sc, err := syncer.NewSyncer(logger, config, caller, store, events)
	if err != nil {
		logger.Error(ctx, "Failed to create syncer: %v", err)
		os.Exit(1)
	}

	//
	logger.Info(ctx, "Starting Github repository sync")
	report, err := sc.Run(ctx)
	if err != nil {
		logger.Error(ctx, "Sync failed: %v", err)
		os.Exit(1)
	}
	report.Log(ctx, logger)
	logger.Info(ctx, "Successfully!")
}
