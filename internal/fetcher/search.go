package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/thep200/github-syncer/internal/executor"
	"github.com/thep200/github-syncer/internal/githubql"
	"github.com/thep200/github-syncer/internal/model"
)

// Scope giới hạn search theo repo hoặc theo author
type Scope struct {
	Repo   string
	Author string
}

// BuildSearchQuery dựng chuỗi search từ scope và watermark incremental
func BuildSearchQuery(scope Scope, watermark *time.Time) string {
	parts := make([]string, 0, 4)
	if scope.Repo != "" {
		parts = append(parts, "repo:"+scope.Repo)
	}
	if scope.Author != "" {
		parts = append(parts, "author:"+scope.Author)
	}
	if watermark != nil {
		parts = append(parts, "updated:>="+watermark.UTC().Format(time.RFC3339))
	}
	parts = append(parts, "sort:updated-asc")
	return strings.Join(parts, " ")
}

// Search chạy search incremental và phân loại từng node qua Batch.Classify.
// repo và username là hint chọn credential, có thể nil/rỗng.
func (f *Fetcher) Search(ctx context.Context, scope Scope, watermark *time.Time, repo *model.Repo, username string) (*Batch, error) {
	batch := NewBatch()
	searchQuery := BuildSearchQuery(scope, watermark)
	var cursor *githubv4.String

	for {
		query := &githubql.SearchQuery{}
		variables := map[string]interface{}{
			"query":   githubv4.String(searchQuery),
			"perPage": githubv4.Int(f.perPage()),
			"cursor":  cursor,
		}

		result, err := f.Exec.Execute(ctx, executor.Request{
			Name:      "search",
			Query:     query,
			Variables: variables,
			Repo:      repo,
			Username:  username,
		})
		if err != nil {
			return batch, err
		}
		if result == nil {
			f.Logger.Warn(ctx, "Aborting search pagination for %q with %d items collected", searchQuery, batch.Size())
			return batch, nil
		}

		for _, raw := range query.Search.Nodes {
			batch.Classify(raw.Node())
		}

		page := query.Search.PageInfo
		if !bool(page.HasNextPage) {
			break
		}
		next := page.EndCursor
		cursor = &next
	}

	return batch, nil
}
