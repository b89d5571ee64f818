package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/executor"
	"github.com/thep200/github-syncer/internal/fetcher"
	"github.com/thep200/github-syncer/internal/githubql"
	"github.com/thep200/github-syncer/internal/ingest"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/internal/reconciler"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
	"gorm.io/gorm"
)

// fakeExec trả lời mọi query bằng fixture tĩnh của repo tea/pot
type fakeExec struct {
	searchQueries []string
}

func (f *fakeExec) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	switch q := req.Query.(type) {
	case *githubql.RepoQuery:
		q.Repository = githubql.RepoNode{
			ID:             "R_1",
			Name:           "pot",
			NameWithOwner:  "tea/pot",
			StargazerCount: 10,
			ForkCount:      2,
		}
		q.Repository.Owner.Login = "tea"
	case *githubql.RepoPullsQuery:
		pull := githubql.PullNode{ID: "PR_1", Number: 4, Title: "a pull", State: "OPEN"}
		pull.Repository.NameWithOwner = "tea/pot"
		q.Repository.PullRequests.Nodes = []githubql.PullNode{pull}
	case *githubql.RepoIssuesQuery:
		issue := githubql.IssueNode{ID: "I_1", Number: 9, Title: "an issue", State: "OPEN"}
		issue.Repository.NameWithOwner = "tea/pot"
		q.Repository.Issues.Nodes = []githubql.IssueNode{issue}
	case *githubql.SearchQuery:
		f.searchQueries = append(f.searchQueries, string(req.Variables["query"].(githubv4.String)))
	case *githubql.IssueQuery:
		q.Repository.Issue = githubql.IssueNode{ID: "I_2", Number: 12, Title: "targeted", State: "OPEN"}
		q.Repository.Issue.Repository.NameWithOwner = "tea/pot"
	case *githubql.PullQuery:
		q.Repository.PullRequest = githubql.PullNode{ID: "PR_2", Number: 8, Title: "targeted", State: "OPEN"}
		q.Repository.PullRequest.Repository.NameWithOwner = "tea/pot"
	}
	return &executor.Result{}, nil
}

type noopScheduler struct{}

func (noopScheduler) ScheduleFetch(ctx context.Context, naturalKey string) error { return nil }
func (noopScheduler) ScheduleTargetedFetch(ctx context.Context, naturalKey, kind string, number int) error {
	return nil
}

func newSyncerFixture(t *testing.T, name string) (*Syncer, *gorm.DB, *fakeExec) {
	t.Helper()

	loader, _ := cfg.NewMockLoader()
	config, err := loader.Load()
	require.NoError(t, err)
	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	provider, err := db.NewSqlite("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, provider.Migrate(model.All()...))

	exec := &fakeExec{}
	fetch, err := fetcher.NewFetcher(config, logger, exec)
	require.NoError(t, err)
	pipe, err := ingest.NewPipeline(config, logger, provider, noopScheduler{}, ingest.NewLabelCache(), ingest.NewTopicCache())
	require.NoError(t, err)
	recon, err := reconciler.NewReconciler(config, logger, provider, noopScheduler{})
	require.NoError(t, err)

	sync, err := NewSyncer(config, logger, provider, fetch, pipe, recon)
	require.NoError(t, err)

	gormDb, err := provider.Db()
	require.NoError(t, err)
	return sync, gormDb, exec
}

func TestBackfillRepoMirrorsRepoAndItems(t *testing.T) {
	sync, gormDb, _ := newSyncerFixture(t, "syncer_backfill")
	ctx := context.Background()

	require.NoError(t, sync.BackfillRepo(ctx, "tea/pot"))

	var repo model.Repo
	require.NoError(t, gormDb.Where("owner = ? AND name = ?", "tea", "pot").First(&repo).Error)

	var pullCount, issueCount int64
	require.NoError(t, gormDb.Model(&model.PullRequest{}).Where("repo_id = ?", repo.ID).Count(&pullCount).Error)
	require.NoError(t, gormDb.Model(&model.Issue{}).Where("repo_id = ?", repo.ID).Count(&issueCount).Error)
	assert.EqualValues(t, 1, pullCount)
	assert.EqualValues(t, 1, issueCount)

	// Backfill xong thì cursor phải được set
	cursor, err := sync.CursorMd.Get(ctx, repo.ID)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.False(t, cursor.LastSyncedAt.IsZero())
}

func TestIncrementalFallsBackToBackfillWithoutCursor(t *testing.T) {
	sync, gormDb, exec := newSyncerFixture(t, "syncer_fallback")
	ctx := context.Background()

	require.NoError(t, gormDb.Create(&model.Repo{GithubID: "R_1", Owner: "tea", Name: "pot"}).Error)

	var repo model.Repo
	require.NoError(t, gormDb.Where("owner = ?", "tea").First(&repo).Error)

	require.NoError(t, sync.IncrementalRepo(ctx, &repo))

	// Chưa có watermark thì không được đi đường search
	assert.Empty(t, exec.searchQueries)

	var pullCount int64
	require.NoError(t, gormDb.Model(&model.PullRequest{}).Count(&pullCount).Error)
	assert.EqualValues(t, 1, pullCount)
}

func TestIncrementalSearchesFromWatermark(t *testing.T) {
	sync, gormDb, exec := newSyncerFixture(t, "syncer_incremental")
	ctx := context.Background()

	require.NoError(t, gormDb.Create(&model.Repo{GithubID: "R_1", Owner: "tea", Name: "pot"}).Error)
	var repo model.Repo
	require.NoError(t, gormDb.Where("owner = ?", "tea").First(&repo).Error)

	watermark := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, sync.CursorMd.Touch(ctx, repo.ID, watermark))

	require.NoError(t, sync.IncrementalRepo(ctx, &repo))

	require.Len(t, exec.searchQueries, 1)
	assert.Contains(t, exec.searchQueries[0], "repo:tea/pot")
	assert.Contains(t, exec.searchQueries[0], "updated:>=2025-05-01T00:00:00Z")

	// Watermark phải tiến lên sau lượt sync thành công
	cursor, err := sync.CursorMd.Get(ctx, repo.ID)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, cursor.LastSyncedAt.After(watermark))
}

func TestTargetedFetchIngestsSingleItem(t *testing.T) {
	sync, gormDb, _ := newSyncerFixture(t, "syncer_targeted")
	ctx := context.Background()

	require.NoError(t, gormDb.Create(&model.Repo{GithubID: "R_1", Owner: "tea", Name: "pot"}).Error)

	require.NoError(t, sync.TargetedFetch(ctx, "tea/pot", "issue", 12))

	var issue model.Issue
	require.NoError(t, gormDb.Where("github_id = ?", "I_2").First(&issue).Error)
	assert.Equal(t, 12, issue.Number)

	require.NoError(t, sync.TargetedFetch(ctx, "tea/pot", "pull_request", 8))
	var pull model.PullRequest
	require.NoError(t, gormDb.Where("github_id = ?", "PR_2").First(&pull).Error)
	assert.Equal(t, 8, pull.Number)
}

func TestTargetedFetchUnknownKind(t *testing.T) {
	sync, gormDb, _ := newSyncerFixture(t, "syncer_badkind")
	require.NoError(t, gormDb.Create(&model.Repo{GithubID: "R_1", Owner: "tea", Name: "pot"}).Error)

	err := sync.TargetedFetch(context.Background(), "tea/pot", "release", 1)
	assert.Error(t, err)
}
