package model

import (
	"context"
	"fmt"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PullRequest là một pull request đã mirror, khóa upsert là github_id
type PullRequest struct {
	Model
	ID          uint       `json:"id" gorm:"primaryKey"`
	GithubID    string     `json:"github_id" gorm:"column:github_id;type:varchar(255);uniqueIndex"`
	RepoID      uint       `json:"repo_id" gorm:"column:repo_id;not null;uniqueIndex:idx_pull_requests_repo_number"`
	Number      int        `json:"number" gorm:"column:number;not null;uniqueIndex:idx_pull_requests_repo_number"`
	Title       string     `json:"title" gorm:"column:title;type:varchar(512)"`
	State       string     `json:"state" gorm:"column:state;type:varchar(32)"`
	AuthorLogin string     `json:"author_login" gorm:"column:author_login;type:varchar(255)"`
	MergedAt    *time.Time `json:"merged_at" gorm:"column:merged_at"`
	ClosedAt    *time.Time `json:"closed_at" gorm:"column:closed_at"`
}

func NewPullRequest(config *cfg.Config, logger log.Logger, provider db.Provider) (*PullRequest, error) {
	return &PullRequest{
		Model: Model{
			Config: config,
			Logger: logger,
			Db:     provider,
		},
	}, nil
}

func (p *PullRequest) TableName() string {
	return "pull_requests"
}

// UpsertBatch ghi một lô pull request của cùng một repo
func (p *PullRequest) UpsertBatch(ctx context.Context, pulls []PullRequest) ([]PullRequest, error) {
	if len(pulls) == 0 {
		return nil, nil
	}

	db, err := p.Db.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	now := time.Now()
	for i := range pulls {
		pulls[i].Title = TruncateString(pulls[i].Title, 500)
		pulls[i].CreatedAt = now
		pulls[i].UpdatedAt = now
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "github_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "state", "author_login", "merged_at", "closed_at", "updated_at"}),
		}).CreateInBatches(pulls, 100)
		if result.Error != nil {
			return fmt.Errorf("failed to batch upsert pull requests: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Đọc lại để lấy local id cho các bảng join
	ids := make([]string, 0, len(pulls))
	for _, pull := range pulls {
		ids = append(ids, pull.GithubID)
	}
	var saved []PullRequest
	if err := db.WithContext(ctx).Where("github_id IN ?", ids).Find(&saved).Error; err != nil {
		return nil, err
	}
	return saved, nil
}

// ExistingNumbers trả về tập các number đã tồn tại local cho một repo
func (p *PullRequest) ExistingNumbers(ctx context.Context, repoID uint, numbers []int) (map[int]bool, error) {
	existing := make(map[int]bool, len(numbers))
	if len(numbers) == 0 {
		return existing, nil
	}

	db, err := p.Db.Db()
	if err != nil {
		return nil, err
	}

	var found []int
	result := db.WithContext(ctx).Model(&PullRequest{}).
		Where("repo_id = ? AND number IN ?", repoID, numbers).
		Pluck("number", &found)
	if result.Error != nil {
		return nil, result.Error
	}
	for _, number := range found {
		existing[number] = true
	}
	return existing, nil
}
