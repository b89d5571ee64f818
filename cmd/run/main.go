package main

import (
	"context"

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
	"github.com/thep200/github-syncer/pkg/log"
)

func main() {
	ctx := context.Background()
	// loader, _ := cfg.NewMockLoader()
	loader, _ := cfg.NewViperLoader()
	config, _ := loader.Load()
	mysql, _ := db.NewMysql(config)
	logger, _ := log.NewCslLogger()

	// Migrate database
	mysql.Migrate(model.All()...)

	appTokens, _ := credential.NewAppTokenManager(config, logger)
	pool, _ := credential.NewPool(config, logger, mysql, appTokens)
	transport, _ := githubql.NewClient(config)
	exec, _ := executor.NewExecutor(config, logger, mysql, pool, transport)
	fetch, _ := fetcher.NewFetcher(config, logger, exec)
	sched, _ := scheduler.NewKafkaScheduler(config, logger)
	pipe, _ := ingest.NewPipeline(config, logger, mysql, sched, ingest.NewLabelCache(), ingest.NewTopicCache())
	recon, _ := reconciler.NewReconciler(config, logger, mysql, sched)
	sync, _ := syncer.NewSyncer(config, logger, mysql, fetch, pipe, recon)

	//
	logger.Info(ctx, "Starting Github syncer")
	if err := sync.Run(ctx); err != nil {
		logger.Error(ctx, "Failed! %v", err)
		return
	}
	logger.Info(ctx, "Successfully!")
}
