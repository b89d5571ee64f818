// Gói syncer ghép fetcher, pipeline và reconciler thành các job hoàn chỉnh.
// Backfill cho repo mới, search incremental cho repo đã có watermark, crawl
// theo user, và targeted fetch phục vụ consumer. Cursor chỉ tiến khi job
// chạy trọn vẹn để lượt sau không bỏ sót khoảng fail.

package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/fetcher"
	"github.com/thep200/github-syncer/internal/githubql"
	"github.com/thep200/github-syncer/internal/ingest"
	"github.com/thep200/github-syncer/internal/limiter"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/internal/reconciler"
	"github.com/thep200/github-syncer/internal/scheduler"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
)

type Syncer struct {
	Config   *cfg.Config
	Logger   log.Logger
	Fetch    *fetcher.Fetcher
	Pipe     *ingest.Pipeline
	Recon    *reconciler.Reconciler
	RepoMd   *model.Repo
	CursorMd *model.SyncCursor
	Limiter  *limiter.RateLimiter
	now      func() time.Time
}

func NewSyncer(config *cfg.Config, logger log.Logger, provider db.Provider, fetch *fetcher.Fetcher, pipe *ingest.Pipeline, recon *reconciler.Reconciler) (*Syncer, error) {
	repoMd, err := model.NewRepo(config, logger, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create repo model: %w", err)
	}
	cursorMd, err := model.NewSyncCursor(config, logger, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync cursor model: %w", err)
	}

	return &Syncer{
		Config:   config,
		Logger:   logger,
		Fetch:    fetch,
		Pipe:     pipe,
		Recon:    recon,
		RepoMd:   repoMd,
		CursorMd: cursorMd,
		Limiter:  limiter.NewRateLimiter(config.Github.RequestsPerSecond),
		now:      time.Now,
	}, nil
}

// BackfillRepo mirror một repo từ đầu: metadata, rồi toàn bộ PR và issue
// đang mở qua cursor. startedAt lấy trước khi fetch nên cursor mới không
// che mất update xảy ra trong lúc backfill chạy.
func (s *Syncer) BackfillRepo(ctx context.Context, naturalKey string) error {
	startedAt := s.now()

	node, err := s.Fetch.RepoByKey(ctx, naturalKey)
	if err != nil {
		return err
	}
	if node == nil {
		s.Logger.Warn(ctx, "Backfill skipped, cannot fetch repository %s", naturalKey)
		return nil
	}

	repoBatch := fetcher.NewBatch()
	repoBatch.SeeRepo(naturalKey, node)
	if err := s.Pipe.Process(ctx, repoBatch); err != nil {
		return fmt.Errorf("failed to ingest repository %s: %w", naturalKey, err)
	}

	owner, name, err := model.SplitNaturalKey(naturalKey)
	if err != nil {
		return err
	}
	repo, err := s.RepoMd.FindByNaturalKey(ctx, owner, name)
	if err != nil {
		return err
	}
	if repo == nil {
		return fmt.Errorf("repository %s not found after ingest", naturalKey)
	}

	if err := s.Limiter.Wait(ctx); err != nil {
		return err
	}
	pulls, pullErr := s.Fetch.RepoPulls(ctx, repo)

	var issues []githubql.IssueNode
	var issueErr error
	if pullErr == nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return err
		}
		issues, issueErr = s.Fetch.RepoIssues(ctx, repo)
	}

	// Phần đã gom được vẫn ghi dù pagination đứt giữa chừng
	itemBatch := fetcher.NewBatch()
	itemBatch.SeeRepo(naturalKey, nil)
	for i := range pulls {
		itemBatch.Classify(githubql.Node{PullRequest: &pulls[i]})
	}
	for i := range issues {
		itemBatch.Classify(githubql.Node{Issue: &issues[i]})
	}
	if err := s.Pipe.Process(ctx, itemBatch); err != nil {
		return fmt.Errorf("failed to ingest items for %s: %w", naturalKey, err)
	}

	if pullErr != nil {
		return pullErr
	}
	if issueErr != nil {
		return issueErr
	}

	s.Logger.Info(ctx, "Backfilled %s with %d pull requests and %d issues", naturalKey, len(pulls), len(issues))
	return s.CursorMd.Touch(ctx, repo.ID, startedAt)
}

// IncrementalRepo sync phần thay đổi từ watermark gần nhất. Repo chưa có
// cursor rơi về backfill đầy đủ.
func (s *Syncer) IncrementalRepo(ctx context.Context, repo *model.Repo) error {
	cursor, err := s.CursorMd.Get(ctx, repo.ID)
	if err != nil {
		return err
	}
	if cursor == nil {
		return s.BackfillRepo(ctx, repo.NaturalKey())
	}

	startedAt := s.now()
	watermark := cursor.LastSyncedAt

	if err := s.Limiter.Wait(ctx); err != nil {
		return err
	}
	batch, searchErr := s.Fetch.Search(ctx, fetcher.Scope{Repo: repo.NaturalKey()}, &watermark, repo, "")
	if err := s.Pipe.Process(ctx, batch); err != nil {
		return fmt.Errorf("failed to ingest incremental batch for %s: %w", repo.NaturalKey(), err)
	}
	if searchErr != nil {
		return searchErr
	}

	s.Logger.Info(ctx, "Incremental sync for %s ingested %d items", repo.NaturalKey(), batch.Size())
	return s.CursorMd.Touch(ctx, repo.ID, startedAt)
}

// CrawlUser gom hoạt động gần đây của một user xuyên repo. Username cũng là
// hint để pool chọn đúng personal token nếu user đã lend.
func (s *Syncer) CrawlUser(ctx context.Context, username string) error {
	if err := s.Limiter.Wait(ctx); err != nil {
		return err
	}
	batch, searchErr := s.Fetch.Search(ctx, fetcher.Scope{Author: username}, nil, nil, username)
	if err := s.Pipe.Process(ctx, batch); err != nil {
		return fmt.Errorf("failed to ingest user batch for %s: %w", username, err)
	}
	if searchErr != nil {
		return searchErr
	}

	s.Logger.Info(ctx, "Crawled user %s, ingested %d items", username, batch.Size())
	return nil
}

// TargetedFetch lấy đúng một PR hoặc issue theo số. Repo chưa mirror thì
// backfill cả repo luôn vì đằng nào cũng phải có row repo trước.
func (s *Syncer) TargetedFetch(ctx context.Context, naturalKey, kind string, number int) error {
	owner, name, err := model.SplitNaturalKey(naturalKey)
	if err != nil {
		return err
	}
	repo, err := s.RepoMd.FindByNaturalKey(ctx, owner, name)
	if err != nil {
		return err
	}
	if repo == nil {
		return s.BackfillRepo(ctx, naturalKey)
	}

	if err := s.Limiter.Wait(ctx); err != nil {
		return err
	}

	batch := fetcher.NewBatch()
	batch.SeeRepo(naturalKey, nil)
	switch kind {
	case scheduler.KindPullRequest:
		node, err := s.Fetch.PullByNumber(ctx, repo, number)
		if err != nil {
			return err
		}
		if node == nil {
			s.Logger.Warn(ctx, "Targeted fetch skipped, cannot fetch pull %s#%d", naturalKey, number)
			return nil
		}
		batch.Classify(githubql.Node{PullRequest: node})
	case scheduler.KindIssue:
		node, err := s.Fetch.IssueByNumber(ctx, repo, number)
		if err != nil {
			return err
		}
		if node == nil {
			s.Logger.Warn(ctx, "Targeted fetch skipped, cannot fetch issue %s#%d", naturalKey, number)
			return nil
		}
		batch.Classify(githubql.Node{Issue: node})
	default:
		return fmt.Errorf("unknown fetch kind %q", kind)
	}

	return s.Pipe.Process(ctx, batch)
}

// Run là một lượt sync trọn vẹn: incremental cho mọi repo đang mirror rồi
// một lượt reconcile. Cạn credential thì dừng sớm, các job còn lại chờ
// lượt sau.
func (s *Syncer) Run(ctx context.Context) error {
	repos, err := s.RepoMd.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mirrored repositories: %w", err)
	}

	synced := 0
	failed := 0
	for i := range repos {
		if err := s.IncrementalRepo(ctx, &repos[i]); err != nil {
			failed++
			s.Logger.Alert(ctx, "Stopping sync run at %s: %v", repos[i].NaturalKey(), err)
			break
		}
		synced++
	}

	stats, err := s.Recon.Reconcile(ctx, s.Config.Sync.ReconcileBatchSize)
	if err != nil {
		s.Logger.Error(ctx, "Reconcile failed: %v", err)
	}

	s.Logger.Info(ctx, "Sync run finished: %d repositories synced, %d failed, %d claims processed", synced, failed, stats.Processed)
	return nil
}
