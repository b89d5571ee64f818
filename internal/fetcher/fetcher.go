// Gói fetcher gom các trang kết quả thành một lần fetch logic. Hai chế độ:
// phân trang cursor trong một repo và search incremental xuyên repo. Executor
// fail giữa chừng thì trả về phần đã gom được, không raise.

package fetcher

import (
	"context"

	"github.com/shurcooL/githubv4"
	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/executor"
	"github.com/thep200/github-syncer/internal/githubql"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/pkg/log"
)

// Executor là contract của rate-limited query executor
type Executor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Result, error)
}

type Fetcher struct {
	Config *cfg.Config
	Logger log.Logger
	Exec   Executor
}

func NewFetcher(config *cfg.Config, logger log.Logger, exec Executor) (*Fetcher, error) {
	return &Fetcher{
		Config: config,
		Logger: logger,
		Exec:   exec,
	}, nil
}

func (f *Fetcher) perPage() int {
	if f.Config.Github.PerPage <= 0 {
		return 50
	}
	return f.Config.Github.PerPage
}

// RepoPulls lấy toàn bộ pull request đang mở của một repo qua cursor.
// Lỗi executor giữa vòng lặp trả về accumulator một phần và error nil,
// error khác nil chỉ khi cạn credential.
func (f *Fetcher) RepoPulls(ctx context.Context, repo *model.Repo) ([]githubql.PullNode, error) {
	var all []githubql.PullNode
	var cursor *githubv4.String

	for {
		query := &githubql.RepoPullsQuery{}
		variables := map[string]interface{}{
			"owner":   githubv4.String(repo.Owner),
			"name":    githubv4.String(repo.Name),
			"perPage": githubv4.Int(f.perPage()),
			"cursor":  cursor,
		}

		result, err := f.Exec.Execute(ctx, executor.Request{
			Name:      "repo_pulls",
			Query:     query,
			Variables: variables,
			Repo:      repo,
		})
		if err != nil {
			return all, err
		}
		if result == nil {
			f.Logger.Warn(ctx, "Aborting pull pagination for %s with %d nodes collected", repo.NaturalKey(), len(all))
			return all, nil
		}

		all = append(all, query.Repository.PullRequests.Nodes...)

		page := query.Repository.PullRequests.PageInfo
		if !bool(page.HasNextPage) {
			break
		}
		next := page.EndCursor
		cursor = &next
	}

	return all, nil
}

// RepoIssues lấy toàn bộ issue đang mở của một repo, cùng kỷ luật với RepoPulls
func (f *Fetcher) RepoIssues(ctx context.Context, repo *model.Repo) ([]githubql.IssueNode, error) {
	var all []githubql.IssueNode
	var cursor *githubv4.String

	for {
		query := &githubql.RepoIssuesQuery{}
		variables := map[string]interface{}{
			"owner":   githubv4.String(repo.Owner),
			"name":    githubv4.String(repo.Name),
			"perPage": githubv4.Int(f.perPage()),
			"cursor":  cursor,
		}

		result, err := f.Exec.Execute(ctx, executor.Request{
			Name:      "repo_issues",
			Query:     query,
			Variables: variables,
			Repo:      repo,
		})
		if err != nil {
			return all, err
		}
		if result == nil {
			f.Logger.Warn(ctx, "Aborting issue pagination for %s with %d nodes collected", repo.NaturalKey(), len(all))
			return all, nil
		}

		all = append(all, query.Repository.Issues.Nodes...)

		page := query.Repository.Issues.PageInfo
		if !bool(page.HasNextPage) {
			break
		}
		next := page.EndCursor
		cursor = &next
	}

	return all, nil
}

// RepoByKey lấy metadata một repo theo natural key, nil nếu call thất bại
func (f *Fetcher) RepoByKey(ctx context.Context, naturalKey string) (*githubql.RepoNode, error) {
	owner, name, err := model.SplitNaturalKey(naturalKey)
	if err != nil {
		return nil, err
	}

	query := &githubql.RepoQuery{}
	result, err := f.Exec.Execute(ctx, executor.Request{
		Name:  "repo_by_key",
		Query: query,
		Variables: map[string]interface{}{
			"owner": githubv4.String(owner),
			"name":  githubv4.String(name),
		},
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return &query.Repository, nil
}

// PullByNumber là targeted fetch cho đúng một pull request
func (f *Fetcher) PullByNumber(ctx context.Context, repo *model.Repo, number int) (*githubql.PullNode, error) {
	query := &githubql.PullQuery{}
	result, err := f.Exec.Execute(ctx, executor.Request{
		Name:  "pull_by_number",
		Query: query,
		Variables: map[string]interface{}{
			"owner":  githubv4.String(repo.Owner),
			"name":   githubv4.String(repo.Name),
			"number": githubv4.Int(number),
		},
		Repo: repo,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return &query.Repository.PullRequest, nil
}

// IssueByNumber là targeted fetch cho đúng một issue
func (f *Fetcher) IssueByNumber(ctx context.Context, repo *model.Repo, number int) (*githubql.IssueNode, error) {
	query := &githubql.IssueQuery{}
	result, err := f.Exec.Execute(ctx, executor.Request{
		Name:  "issue_by_number",
		Query: query,
		Variables: map[string]interface{}{
			"owner":  githubv4.String(repo.Owner),
			"name":   githubv4.String(repo.Name),
			"number": githubv4.Int(number),
		},
		Repo: repo,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return &query.Repository.Issue, nil
}
