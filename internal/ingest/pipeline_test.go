package ingest

import (
	"context"
	"testing"

	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/fetcher"
	"github.com/thep200/github-syncer/internal/githubql"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
	"gorm.io/gorm"
)

type fakeScheduler struct {
	fetched  []string
	targeted []string
}

func (f *fakeScheduler) ScheduleFetch(ctx context.Context, naturalKey string) error {
	f.fetched = append(f.fetched, naturalKey)
	return nil
}

func (f *fakeScheduler) ScheduleTargetedFetch(ctx context.Context, naturalKey, kind string, number int) error {
	f.targeted = append(f.targeted, naturalKey)
	return nil
}

func newPipelineFixture(t *testing.T, name string) (*Pipeline, *gorm.DB, *fakeScheduler) {
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
	pipe, err := NewPipeline(config, logger, provider, sched, NewLabelCache(), NewTopicCache())
	require.NoError(t, err)

	gormDb, err := provider.Db()
	require.NoError(t, err)
	return pipe, gormDb, sched
}

func fullRepoNode(id, owner, name string, topics ...string) *githubql.RepoNode {
	node := &githubql.RepoNode{
		ID:             id,
		Name:           githubv4.String(name),
		NameWithOwner:  githubv4.String(owner + "/" + name),
		StargazerCount: 10,
		ForkCount:      2,
	}
	node.Owner.Login = githubv4.String(owner)
	node.Issues.TotalCount = 3
	node.RepositoryTopics.Nodes = make([]struct {
		Topic struct {
			Name githubv4.String
		}
	}, len(topics))
	for i, topic := range topics {
		node.RepositoryTopics.Nodes[i].Topic.Name = githubv4.String(topic)
	}
	return node
}

func pullNode(id string, number int, repoKey string, labels ...string) githubql.PullNode {
	node := githubql.PullNode{
		ID:     id,
		Number: githubv4.Int(number),
		Title:  "pull title",
		State:  "OPEN",
	}
	node.Author.Login = "someone"
	node.Repository.NameWithOwner = githubv4.String(repoKey)
	for _, label := range labels {
		node.Labels.Nodes = append(node.Labels.Nodes, githubql.LabelNode{
			Name:  githubv4.String(label),
			Color: "ededed",
		})
	}
	return node
}

func issueNode(id string, number int, repoKey string) githubql.IssueNode {
	node := githubql.IssueNode{
		ID:     id,
		Number: githubv4.Int(number),
		Title:  "issue title",
		State:  "OPEN",
	}
	node.Author.Login = "someone"
	node.Repository.NameWithOwner = githubv4.String(repoKey)
	return node
}

func TestProcessUpsertsFullRepoWithTopics(t *testing.T) {
	pipe, gormDb, _ := newPipelineFixture(t, "pipe_repo")
	ctx := context.Background()

	batch := fetcher.NewBatch()
	batch.SeeRepo("tea/pot", fullRepoNode("R_1", "tea", "pot", "go", "sync"))

	require.NoError(t, pipe.Process(ctx, batch))

	var repo model.Repo
	require.NoError(t, gormDb.Where("owner = ? AND name = ?", "tea", "pot").First(&repo).Error)
	assert.Equal(t, "R_1", repo.GithubID)
	assert.Equal(t, 10, repo.StarCount)
	assert.Equal(t, 3, repo.IssueCount)

	var topicCount int64
	require.NoError(t, gormDb.Table("repo_topics").Where("repo_id = ?", repo.ID).Count(&topicCount).Error)
	assert.EqualValues(t, 2, topicCount)
}

func TestProcessSchedulesFetchForIdentityOnlyRepo(t *testing.T) {
	pipe, gormDb, sched := newPipelineFixture(t, "pipe_missing")
	ctx := context.Background()

	batch := fetcher.NewBatch()
	batch.Classify(githubql.Node{PullRequest: func() *githubql.PullNode {
		node := pullNode("PR_1", 4, "ghost/repo")
		return &node
	}()})

	require.NoError(t, pipe.Process(ctx, batch))

	assert.Equal(t, []string{"ghost/repo"}, sched.fetched)

	// Item của repo chưa mirror không được ghi
	var count int64
	require.NoError(t, gormDb.Model(&model.PullRequest{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessUpsertsItemsWithLabels(t *testing.T) {
	pipe, gormDb, _ := newPipelineFixture(t, "pipe_items")
	ctx := context.Background()

	batch := fetcher.NewBatch()
	batch.SeeRepo("tea/pot", fullRepoNode("R_1", "tea", "pot"))
	batch.Classify(githubql.Node{PullRequest: func() *githubql.PullNode {
		node := pullNode("PR_1", 4, "tea/pot", "bug", "help wanted")
		return &node
	}()})
	batch.Classify(githubql.Node{Issue: func() *githubql.IssueNode {
		node := issueNode("I_1", 9, "tea/pot")
		return &node
	}()})

	require.NoError(t, pipe.Process(ctx, batch))

	var pull model.PullRequest
	require.NoError(t, gormDb.Where("github_id = ?", "PR_1").First(&pull).Error)
	assert.Equal(t, 4, pull.Number)

	var issue model.Issue
	require.NoError(t, gormDb.Where("github_id = ?", "I_1").First(&issue).Error)
	assert.Equal(t, 9, issue.Number)

	var labelCount int64
	require.NoError(t, gormDb.Model(&model.Label{}).Count(&labelCount).Error)
	assert.EqualValues(t, 2, labelCount)

	var joinCount int64
	require.NoError(t, gormDb.Table("pull_request_labels").Where("pull_request_id = ?", pull.ID).Count(&joinCount).Error)
	assert.EqualValues(t, 2, joinCount)
}

func TestProcessIsIdempotentAcrossRuns(t *testing.T) {
	pipe, gormDb, _ := newPipelineFixture(t, "pipe_idempotent")
	ctx := context.Background()

	build := func() *fetcher.Batch {
		batch := fetcher.NewBatch()
		batch.SeeRepo("tea/pot", fullRepoNode("R_1", "tea", "pot", "go"))
		batch.Classify(githubql.Node{PullRequest: func() *githubql.PullNode {
			node := pullNode("PR_1", 4, "tea/pot", "bug")
			return &node
		}()})
		return batch
	}

	require.NoError(t, pipe.Process(ctx, build()))
	require.NoError(t, pipe.Process(ctx, build()))

	var repoCount, pullCount, labelCount int64
	require.NoError(t, gormDb.Model(&model.Repo{}).Count(&repoCount).Error)
	require.NoError(t, gormDb.Model(&model.PullRequest{}).Count(&pullCount).Error)
	require.NoError(t, gormDb.Model(&model.Label{}).Count(&labelCount).Error)
	assert.EqualValues(t, 1, repoCount)
	assert.EqualValues(t, 1, pullCount)
	assert.EqualValues(t, 1, labelCount)
}

func TestProcessRecordsCrossReferenceClaims(t *testing.T) {
	pipe, gormDb, _ := newPipelineFixture(t, "pipe_claims")
	ctx := context.Background()

	pull := pullNode("PR_1", 4, "tea/pot")
	pull.ClosingIssuesReferences.Nodes = []githubql.IssueRefNode{{Number: 9}}
	pull.ClosingIssuesReferences.Nodes[0].Repository.NameWithOwner = "other/repo"

	batch := fetcher.NewBatch()
	batch.SeeRepo("tea/pot", fullRepoNode("R_1", "tea", "pot"))
	batch.Classify(githubql.Node{PullRequest: &pull})

	require.NoError(t, pipe.Process(ctx, batch))

	var claims []model.CrossReference
	require.NoError(t, gormDb.Find(&claims).Error)
	require.Len(t, claims, 1)
	assert.Equal(t, "tea/pot", claims[0].PrRepo)
	assert.Equal(t, 4, claims[0].PrNumber)
	assert.Equal(t, "other/repo", claims[0].IssueRepo)
	assert.Equal(t, 9, claims[0].IssueNumber)
	assert.Nil(t, claims[0].ProcessedAt)
}

func TestCollectClaimsDedupesBothSides(t *testing.T) {
	pull := pullNode("PR_1", 4, "tea/pot")
	pull.ClosingIssuesReferences.Nodes = []githubql.IssueRefNode{{Number: 9}}
	pull.ClosingIssuesReferences.Nodes[0].Repository.NameWithOwner = "tea/pot"

	// Cùng một claim nhìn từ phía issue
	issue := issueNode("I_1", 9, "tea/pot")
	issue.ClosedByPullRequestsReferences.Nodes = []githubql.PullRefNode{{Number: 4}}
	issue.ClosedByPullRequestsReferences.Nodes[0].Repository.NameWithOwner = "tea/pot"

	batch := fetcher.NewBatch()
	batch.Classify(githubql.Node{PullRequest: &pull})
	batch.Classify(githubql.Node{Issue: &issue})

	claims := CollectClaims(batch)
	require.Len(t, claims, 1)
	assert.True(t, claims[0].ClosesIssue)
}
