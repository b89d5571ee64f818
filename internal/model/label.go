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

// Label thuộc về một repo, khóa tự nhiên là (repo_id, name)
type Label struct {
	Model
	ID     uint   `json:"id" gorm:"primaryKey"`
	RepoID uint   `json:"repo_id" gorm:"column:repo_id;not null;uniqueIndex:idx_labels_repo_name"`
	Name   string `json:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex:idx_labels_repo_name"`
	Color  string `json:"color" gorm:"column:color;type:varchar(32)"`
}

func NewLabel(config *cfg.Config, logger log.Logger, provider db.Provider) (*Label, error) {
	return &Label{
		Model: Model{
			Config: config,
			Logger: logger,
			Db:     provider,
		},
	}, nil
}

func (l *Label) TableName() string {
	return "labels"
}

// FindByNames tra một lượt các label đã tồn tại của repo
func (l *Label) FindByNames(ctx context.Context, repoID uint, names []string) (map[string]uint, error) {
	found := make(map[string]uint, len(names))
	if len(names) == 0 {
		return found, nil
	}

	db, err := l.Db.Db()
	if err != nil {
		return nil, err
	}

	var labels []Label
	result := db.WithContext(ctx).Where("repo_id = ? AND name IN ?", repoID, names).Find(&labels)
	if result.Error != nil {
		return nil, result.Error
	}
	for _, label := range labels {
		found[label.Name] = label.ID
	}
	return found, nil
}

// CreateBatch tạo một lượt các label còn thiếu, bỏ qua bản ghi trùng
func (l *Label) CreateBatch(ctx context.Context, labels []Label) error {
	if len(labels) == 0 {
		return nil
	}

	db, err := l.Db.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	now := time.Now()
	for i := range labels {
		labels[i].Name = TruncateString(labels[i].Name, 250)
		labels[i].CreatedAt = now
		labels[i].UpdatedAt = now
	}

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repo_id"}, {Name: "name"}},
		DoNothing: true,
	}).CreateInBatches(labels, 100).Error
}

// PullRequestLabel là bảng join giữa pull request và label
type PullRequestLabel struct {
	ID            uint `gorm:"primaryKey"`
	PullRequestID uint `gorm:"column:pull_request_id;not null;uniqueIndex:idx_pr_labels_pr_label"`
	LabelID       uint `gorm:"column:label_id;not null;uniqueIndex:idx_pr_labels_pr_label"`
}

func (pl *PullRequestLabel) TableName() string {
	return "pull_request_labels"
}

// IssueLabel là bảng join giữa issue và label
type IssueLabel struct {
	ID      uint `gorm:"primaryKey"`
	IssueID uint `gorm:"column:issue_id;not null;uniqueIndex:idx_issue_labels_issue_label"`
	LabelID uint `gorm:"column:label_id;not null;uniqueIndex:idx_issue_labels_issue_label"`
}

func (il *IssueLabel) TableName() string {
	return "issue_labels"
}

// ReplacePullRequestLabels ghi lại toàn bộ label của một pull request
func (l *Label) ReplacePullRequestLabels(ctx context.Context, pullRequestID uint, labelIDs []uint) error {
	db, err := l.Db.Db()
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pull_request_id = ?", pullRequestID).Delete(&PullRequestLabel{}).Error; err != nil {
			return err
		}
		if len(labelIDs) == 0 {
			return nil
		}
		joins := make([]PullRequestLabel, 0, len(labelIDs))
		for _, labelID := range labelIDs {
			joins = append(joins, PullRequestLabel{PullRequestID: pullRequestID, LabelID: labelID})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&joins).Error
	})
}

// ReplaceIssueLabels ghi lại toàn bộ label của một issue
func (l *Label) ReplaceIssueLabels(ctx context.Context, issueID uint, labelIDs []uint) error {
	db, err := l.Db.Db()
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", issueID).Delete(&IssueLabel{}).Error; err != nil {
			return err
		}
		if len(labelIDs) == 0 {
			return nil
		}
		joins := make([]IssueLabel, 0, len(labelIDs))
		for _, labelID := range labelIDs {
			joins = append(joins, IssueLabel{IssueID: issueID, LabelID: labelID})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&joins).Error
	})
}
