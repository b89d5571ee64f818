package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/credential"
	"github.com/thep200/github-syncer/internal/executor"
	"github.com/thep200/github-syncer/internal/fetcher"
	"github.com/thep200/github-syncer/internal/githubql"
	"github.com/thep200/github-syncer/internal/ingest"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/internal/reconciler"
	"github.com/thep200/github-syncer/internal/scheduler"
	"github.com/thep200/github-syncer/internal/syncer"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/kafka"
	"github.com/thep200/github-syncer/pkg/log"
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
	if err := mysql.Migrate(model.All()...); err != nil {
		logger.Error(context.Background(), "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Dựng syncer cho các fetch job nhận từ topic
	appTokens, _ := credential.NewAppTokenManager(config, logger)
	pool, _ := credential.NewPool(config, logger, mysql, appTokens)
	transport, _ := githubql.NewClient(config)
	exec, _ := executor.NewExecutor(config, logger, mysql, pool, transport)
	fetch, _ := fetcher.NewFetcher(config, logger, exec)
	sched, _ := scheduler.NewKafkaScheduler(config, logger)
	pipe, _ := ingest.NewPipeline(config, logger, mysql, sched, ingest.NewLabelCache(), ingest.NewTopicCache())
	recon, _ := reconciler.NewReconciler(config, logger, mysql, sched)
	sync, _ := syncer.NewSyncer(config, logger, mysql, fetch, pipe, recon)

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	startFetchConsumer(ctx, config, logger, sync)

	// Wait for termination signal
	<-sigCh
	logger.Info(ctx, "Received shutdown signal, gracefully shutting down...")
	cancel()
}

func startFetchConsumer(ctx context.Context, config *cfg.Config, logger log.Logger, sync *syncer.Syncer) {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicFetch, config.Kafka.Consumer.GroupID)
	retry := scheduler.RetryPolicyFromConfig(config)

	// Register handler for full repository fetches
	consumer.RegisterHandler(scheduler.MsgKeyFetchRepo, func(data []byte) error {
		var msg model.FetchRepoMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("failed to unmarshal fetch repo message: %w", err)
		}

		return retry.Run(ctx, logger, "backfill "+msg.NaturalKey, func(ctx context.Context) error {
			return sync.BackfillRepo(ctx, msg.NaturalKey)
		})
	})

	// Register handler for targeted item fetches
	consumer.RegisterHandler(scheduler.MsgKeyFetchItem, func(data []byte) error {
		var msg model.FetchItemMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("failed to unmarshal fetch item message: %w", err)
		}

		name := fmt.Sprintf("fetch %s %s#%d", msg.Kind, msg.NaturalKey, msg.Number)
		return retry.Run(ctx, logger, name, func(ctx context.Context) error {
			return sync.TargetedFetch(ctx, msg.NaturalKey, msg.Kind, msg.Number)
		})
	})

	// Start consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Fetch consumer error: %v", err)
		}
	}()

	logger.Info(ctx, "Fetch consumer started successfully")
}
