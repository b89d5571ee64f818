// Package api cung cấp các API public để tương tác với GitHub syncer
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

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

// SyncStats chứa thống kê về lượt sync đang chạy hoặc vừa xong
type SyncStats struct {
	IsRunning     bool      `json:"isRunning"`
	StartTime     time.Time `json:"startTime"`
	Duration      string    `json:"duration"`
	QueriesLogged int64     `json:"queriesLogged"`
	LastError     string    `json:"lastError"`
}

// SyncAPI cung cấp các API để tương tác với GitHub syncer
type SyncAPI struct {
	ctx         context.Context
	config      *cfg.Config
	logger      log.Logger
	mysql       *db.Mysql
	syncer      *syncer.Syncer
	reconciler  *reconciler.Reconciler
	usageMd     *model.UsageLog
	syncing     bool
	syncStatsMu sync.RWMutex
	syncStats   *SyncStats
}

// NewSyncAPI tạo một instance mới của SyncAPI
func NewSyncAPI() *SyncAPI {
	return &SyncAPI{
		syncStats: &SyncStats{},
	}
}

// Initialize khởi tạo toàn bộ thành phần của syncer
func (a *SyncAPI) Initialize(ctx context.Context) error {
	a.ctx = ctx

	var err error

	// Load configuration
	loader, _ := cfg.NewViperLoader()
	a.config, err = loader.Load()
	if err != nil {
		a.logger, _ = log.NewCslLogger()
		a.logger.Error(a.ctx, "Failed to load configuration: %v", err)
		return err
	}

	// Set up logger
	a.logger, err = log.NewCslLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	// Set up database
	a.mysql, err = db.NewMysql(a.config)
	if err != nil {
		a.logger.Error(a.ctx, "Failed to connect to database: %v", err)
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := a.mysql.Migrate(model.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Credential pool với app token làm fallback
	appTokens, err := credential.NewAppTokenManager(a.config, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create app token manager: %w", err)
	}
	pool, err := credential.NewPool(a.config, a.logger, a.mysql, appTokens)
	if err != nil {
		return fmt.Errorf("failed to create credential pool: %w", err)
	}

	// Executor và fetcher
	transport, err := githubql.NewClient(a.config)
	if err != nil {
		return fmt.Errorf("failed to create graphql client: %w", err)
	}
	exec, err := executor.NewExecutor(a.config, a.logger, a.mysql, pool, transport)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}
	fetch, err := fetcher.NewFetcher(a.config, a.logger, exec)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	// Pipeline và reconciler chia sẻ cùng scheduler
	sched, err := scheduler.NewKafkaScheduler(a.config, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	pipe, err := ingest.NewPipeline(a.config, a.logger, a.mysql, sched, ingest.NewLabelCache(), ingest.NewTopicCache())
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	a.reconciler, err = reconciler.NewReconciler(a.config, a.logger, a.mysql, sched)
	if err != nil {
		return fmt.Errorf("failed to create reconciler: %w", err)
	}

	a.syncer, err = syncer.NewSyncer(a.config, a.logger, a.mysql, fetch, pipe, a.reconciler)
	if err != nil {
		return fmt.Errorf("failed to create syncer: %w", err)
	}

	a.usageMd, err = model.NewUsageLog(a.config, a.logger, a.mysql)
	if err != nil {
		return fmt.Errorf("failed to create usage log model: %w", err)
	}

	return nil
}

// StartSync bắt đầu một lượt sync đầy đủ chạy nền
func (a *SyncAPI) StartSync() (string, error) {
	a.syncStatsMu.RLock()
	isSyncing := a.syncing
	a.syncStatsMu.RUnlock()

	if isSyncing {
		return "Sync is already in progress", nil
	}
	if a.syncer == nil {
		return "", errors.New("syncer is not initialized")
	}

	a.syncStatsMu.Lock()
	a.syncing = true
	a.syncStats = &SyncStats{
		IsRunning: true,
		StartTime: time.Now(),
	}
	a.syncStatsMu.Unlock()

	go func() {
		err := a.syncer.Run(a.ctx)

		a.updateSyncStats(func(stats *SyncStats) {
			stats.IsRunning = false
			stats.Duration = time.Since(stats.StartTime).String()
			if err != nil {
				stats.LastError = err.Error()
			}
		})

		a.syncStatsMu.Lock()
		a.syncing = false
		a.syncStatsMu.Unlock()
	}()

	return "Started sync run", nil
}

// BackfillRepository mirror một repo mới theo natural key "owner/name"
func (a *SyncAPI) BackfillRepository(naturalKey string) (string, error) {
	if a.syncer == nil {
		return "", errors.New("syncer is not initialized")
	}
	if err := a.syncer.BackfillRepo(a.ctx, naturalKey); err != nil {
		return "", err
	}
	return "Backfilled repository " + naturalKey, nil
}

// CrawlUser gom hoạt động gần đây của một user
func (a *SyncAPI) CrawlUser(username string) (string, error) {
	if a.syncer == nil {
		return "", errors.New("syncer is not initialized")
	}
	if err := a.syncer.CrawlUser(a.ctx, username); err != nil {
		return "", err
	}
	return "Crawled user " + username, nil
}

// Reconcile chạy một lượt reconcile thủ công
func (a *SyncAPI) Reconcile() (reconciler.Stats, error) {
	if a.reconciler == nil {
		return reconciler.Stats{}, errors.New("reconciler is not initialized")
	}
	return a.reconciler.Reconcile(a.ctx, a.config.Sync.ReconcileBatchSize)
}

// GetSyncStats trả về thống kê của lượt sync gần nhất
func (a *SyncAPI) GetSyncStats() (*SyncStats, error) {
	a.syncStatsMu.RLock()
	defer a.syncStatsMu.RUnlock()

	if a.syncStats == nil {
		return &SyncStats{}, nil
	}

	stats := *a.syncStats
	if stats.IsRunning {
		stats.Duration = time.Since(stats.StartTime).String()
	}

	// Số query đã log trong 24h là thước đo tiêu thụ rate limit
	if a.usageMd != nil {
		count, err := a.usageMd.CountSince(a.ctx, time.Now().Add(-24*time.Hour))
		if err == nil {
			stats.QueriesLogged = count
		}
	}

	return &stats, nil
}

// updateSyncStats cập nhật thống kê một cách an toàn
func (a *SyncAPI) updateSyncStats(updateFn func(*SyncStats)) {
	a.syncStatsMu.Lock()
	defer a.syncStatsMu.Unlock()

	if a.syncStats == nil {
		a.syncStats = &SyncStats{}
	}

	updateFn(a.syncStats)
}

// GetDatabaseStatus kiểm tra trạng thái kết nối cơ sở dữ liệu
func (a *SyncAPI) GetDatabaseStatus() (string, error) {
	if a.mysql == nil {
		return "Database not initialized", nil
	}

	db, err := a.mysql.Db()
	if err != nil {
		return "Database error: " + err.Error(), err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return "Database error: " + err.Error(), err
	}

	if err := sqlDB.Ping(); err != nil {
		return "Database not connected: " + err.Error(), err
	}

	return "Database connected", nil
}
