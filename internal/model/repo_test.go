package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitNaturalKey(t *testing.T) {
	owner, name, err := SplitNaturalKey("tea/pot")
	require.NoError(t, err)
	assert.Equal(t, "tea", owner)
	assert.Equal(t, "pot", name)

	_, _, err = SplitNaturalKey("not-a-key")
	assert.Error(t, err)
}

func TestIDsByNaturalKeys(t *testing.T) {
	config, logger, provider := newModelFixture(t, "model_repo_keys")
	repoMd, err := NewRepo(config, logger, provider)
	require.NoError(t, err)
	ctx := context.Background()

	gormDb, err := provider.Db()
	require.NoError(t, err)
	require.NoError(t, gormDb.Create(&Repo{GithubID: "R1", Owner: "tea", Name: "pot"}).Error)
	require.NoError(t, gormDb.Create(&Repo{GithubID: "R2", Owner: "other", Name: "repo"}).Error)

	ids, err := repoMd.IDsByNaturalKeys(ctx, []string{"tea/pot", "ghost/repo", "other/repo"})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "tea/pot")
	assert.Contains(t, ids, "other/repo")
	assert.NotContains(t, ids, "ghost/repo")
}

func TestRepoUpsertBatchUpdatesCounters(t *testing.T) {
	config, logger, provider := newModelFixture(t, "model_repo_upsert")
	repoMd, err := NewRepo(config, logger, provider)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repoMd.UpsertBatch(ctx, []Repo{
		{GithubID: "R1", Owner: "tea", Name: "pot", StarCount: 1},
	}))
	require.NoError(t, repoMd.UpsertBatch(ctx, []Repo{
		{GithubID: "R1", Owner: "tea", Name: "pot", StarCount: 7},
	}))

	found, err := repoMd.FindByNaturalKey(ctx, "tea", "pot")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 7, found.StarCount)

	gormDb, err := provider.Db()
	require.NoError(t, err)
	var count int64
	require.NoError(t, gormDb.Model(&Repo{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPullRequestExistingNumbers(t *testing.T) {
	config, logger, provider := newModelFixture(t, "model_pull_numbers")
	pullMd, err := NewPullRequest(config, logger, provider)
	require.NoError(t, err)
	ctx := context.Background()

	saved, err := pullMd.UpsertBatch(ctx, []PullRequest{
		{GithubID: "PR1", RepoID: 1, Number: 4, Title: "one", State: "OPEN"},
		{GithubID: "PR2", RepoID: 1, Number: 9, Title: "two", State: "OPEN"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotZero(t, saved[0].ID)

	existing, err := pullMd.ExistingNumbers(ctx, 1, []int{4, 9, 15})
	require.NoError(t, err)
	assert.True(t, existing[4])
	assert.True(t, existing[9])
	assert.False(t, existing[15])
}
