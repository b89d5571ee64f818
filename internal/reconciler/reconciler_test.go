package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
	"gorm.io/gorm"
)

type fakeScheduler struct {
	fetched  []string
	targeted []targetedCall
}

type targetedCall struct {
	naturalKey string
	kind       string
	number     int
}

func (f *fakeScheduler) ScheduleFetch(ctx context.Context, naturalKey string) error {
	f.fetched = append(f.fetched, naturalKey)
	return nil
}

func (f *fakeScheduler) ScheduleTargetedFetch(ctx context.Context, naturalKey, kind string, number int) error {
	f.targeted = append(f.targeted, targetedCall{naturalKey: naturalKey, kind: kind, number: number})
	return nil
}

func newReconcilerFixture(t *testing.T, name string) (*Reconciler, *gorm.DB, *fakeScheduler) {
	t.Helper()

	loader, _ := cfg.NewMockLoader()
	config, err := loader.Load()
	require.NoError(t, err)
	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	provider, err := db.NewSqlite("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, provider.Migrate(model.All()...))

	sched := &fakeScheduler{}
	recon, err := NewReconciler(config, logger, provider, sched)
	require.NoError(t, err)

	gormDb, err := provider.Db()
	require.NoError(t, err)
	return recon, gormDb, sched
}

func seedClaim(t *testing.T, gormDb *gorm.DB, prRepo string, prNumber int, issueRepo string, issueNumber int) {
	t.Helper()
	require.NoError(t, gormDb.Create(&model.CrossReference{
		PrRepo:      prRepo,
		PrNumber:    prNumber,
		IssueRepo:   issueRepo,
		IssueNumber: issueNumber,
		ClosesIssue: true,
	}).Error)
}

func TestReconcileSchedulesFetchForMissingRepo(t *testing.T) {
	recon, gormDb, sched := newReconcilerFixture(t, "recon_missing_repo")
	ctx := context.Background()

	require.NoError(t, gormDb.Create(&model.Repo{GithubID: "R1", Owner: "tea", Name: "pot"}).Error)
	require.NoError(t, gormDb.Create(&model.PullRequest{GithubID: "PR1", RepoID: 1, Number: 4, State: "OPEN"}).Error)

	seedClaim(t, gormDb, "tea/pot", 4, "ghost/repo", 9)

	stats, err := recon.Reconcile(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RepositoriesScheduled)
	assert.Zero(t, stats.Processed)
	assert.Equal(t, []string{"ghost/repo"}, sched.fetched)

	// Claim chưa đủ điều kiện nằm lại cho lượt sau
	count, err := recon.CrossMd.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestReconcileSchedulesTargetedFetchForMissingItem(t *testing.T) {
	recon, gormDb, sched := newReconcilerFixture(t, "recon_missing_item")
	ctx := context.Background()

	require.NoError(t, gormDb.Create(&model.Repo{GithubID: "R1", Owner: "tea", Name: "pot"}).Error)
	require.NoError(t, gormDb.Create(&model.PullRequest{GithubID: "PR1", RepoID: 1, Number: 4, State: "OPEN"}).Error)

	// Repo đã mirror nhưng issue 9 chưa có local
	seedClaim(t, gormDb, "tea/pot", 4, "tea/pot", 9)

	stats, err := recon.Reconcile(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, stats.RepositoriesScheduled)
	assert.Zero(t, stats.Processed)
	assert.Equal(t, 1, stats.ItemsScheduled)
	require.Len(t, sched.targeted, 1)
	assert.Equal(t, "tea/pot", sched.targeted[0].naturalKey)
	assert.Equal(t, "issue", sched.targeted[0].kind)
	assert.Equal(t, 9, sched.targeted[0].number)
}

func TestReconcileProcessesCompleteClaims(t *testing.T) {
	recon, gormDb, sched := newReconcilerFixture(t, "recon_complete")
	ctx := context.Background()

	require.NoError(t, gormDb.Create(&model.Repo{GithubID: "R1", Owner: "tea", Name: "pot"}).Error)
	require.NoError(t, gormDb.Create(&model.PullRequest{GithubID: "PR1", RepoID: 1, Number: 4, State: "OPEN"}).Error)
	require.NoError(t, gormDb.Create(&model.Issue{GithubID: "I1", RepoID: 1, Number: 9, State: "OPEN"}).Error)

	seedClaim(t, gormDb, "tea/pot", 4, "tea/pot", 9)

	stats, err := recon.Reconcile(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Empty(t, sched.fetched)
	assert.Empty(t, sched.targeted)

	// Lượt hai không còn gì để xử lý
	stats, err = recon.Reconcile(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Zero(t, stats.ItemsScheduled)
}

func TestReconcileBecomesEligibleAfterItemArrives(t *testing.T) {
	recon, gormDb, _ := newReconcilerFixture(t, "recon_converges")
	ctx := context.Background()

	require.NoError(t, gormDb.Create(&model.Repo{GithubID: "R1", Owner: "tea", Name: "pot"}).Error)
	require.NoError(t, gormDb.Create(&model.PullRequest{GithubID: "PR1", RepoID: 1, Number: 4, State: "OPEN"}).Error)

	seedClaim(t, gormDb, "tea/pot", 4, "tea/pot", 9)

	stats, err := recon.Reconcile(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Equal(t, 1, stats.ItemsScheduled)

	// Targeted fetch về đích, issue đã có local
	require.NoError(t, gormDb.Create(&model.Issue{GithubID: "I1", RepoID: 1, Number: 9, State: "OPEN"}).Error)

	stats, err = recon.Reconcile(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
}

func TestReconcileDedupesTargetedFetches(t *testing.T) {
	recon, gormDb, sched := newReconcilerFixture(t, "recon_dedupe")
	ctx := context.Background()

	require.NoError(t, gormDb.Create(&model.Repo{GithubID: "R1", Owner: "tea", Name: "pot"}).Error)

	// Hai claim cùng trỏ tới pull tea/pot#4 còn thiếu
	seedClaim(t, gormDb, "tea/pot", 4, "a/x", 1)
	seedClaim(t, gormDb, "tea/pot", 4, "b/y", 2)

	stats, err := recon.Reconcile(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RepositoriesScheduled)

	pullFetches := 0
	for _, call := range sched.targeted {
		if call.kind == "pull_request" && call.number == 4 {
			pullFetches++
		}
	}
	assert.Equal(t, 1, pullFetches)
}
