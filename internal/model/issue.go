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

// Issue là một issue đã mirror, khóa upsert là github_id
type Issue struct {
	Model
	ID          uint       `json:"id" gorm:"primaryKey"`
	GithubID    string     `json:"github_id" gorm:"column:github_id;type:varchar(255);uniqueIndex"`
	RepoID      uint       `json:"repo_id" gorm:"column:repo_id;not null;uniqueIndex:idx_issues_repo_number"`
	Number      int        `json:"number" gorm:"column:number;not null;uniqueIndex:idx_issues_repo_number"`
	Title       string     `json:"title" gorm:"column:title;type:varchar(512)"`
	State       string     `json:"state" gorm:"column:state;type:varchar(32)"`
	AuthorLogin string     `json:"author_login" gorm:"column:author_login;type:varchar(255)"`
	ClosedAt    *time.Time `json:"closed_at" gorm:"column:closed_at"`
}

func NewIssue(config *cfg.Config, logger log.Logger, provider db.Provider) (*Issue, error) {
	return &Issue{
		Model: Model{
			Config: config,
			Logger: logger,
			Db:     provider,
		},
	}, nil
}

func (i *Issue) TableName() string {
	return "issues"
}

// UpsertBatch ghi một lô issue của cùng một repo
func (i *Issue) UpsertBatch(ctx context.Context, issues []Issue) ([]Issue, error) {
	if len(issues) == 0 {
		return nil, nil
	}

	db, err := i.Db.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	now := time.Now()
	for idx := range issues {
		issues[idx].Title = TruncateString(issues[idx].Title, 500)
		issues[idx].CreatedAt = now
		issues[idx].UpdatedAt = now
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "github_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "state", "author_login", "closed_at", "updated_at"}),
		}).CreateInBatches(issues, 100)
		if result.Error != nil {
			return fmt.Errorf("failed to batch upsert issues: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.GithubID)
	}
	var saved []Issue
	if err := db.WithContext(ctx).Where("github_id IN ?", ids).Find(&saved).Error; err != nil {
		return nil, err
	}
	return saved, nil
}

// ExistingNumbers trả về tập các number đã tồn tại local cho một repo
func (i *Issue) ExistingNumbers(ctx context.Context, repoID uint, numbers []int) (map[int]bool, error) {
	existing := make(map[int]bool, len(numbers))
	if len(numbers) == 0 {
		return existing, nil
	}

	db, err := i.Db.Db()
	if err != nil {
		return nil, err
	}

	var found []int
	result := db.WithContext(ctx).Model(&Issue{}).
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
