package model

import (
	"context"
	"fmt"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
	"gorm.io/gorm/clause"
)

// CrossReference là một claim "PR đóng Issue", hai phía có thể thuộc hai repo
// khác nhau và có thể chưa được mirror. Khóa duy nhất là bộ bốn
// (pr_repo, pr_number, issue_repo, issue_number). ProcessedAt chỉ được set
// một lần khi cả hai phía đã tồn tại local, không bao giờ quay lại nil.
type CrossReference struct {
	Model
	ID          uint       `json:"id" gorm:"primaryKey"`
	PrRepo      string     `json:"pr_repo" gorm:"column:pr_repo;type:varchar(512);not null;uniqueIndex:idx_cross_references_claim"`
	PrNumber    int        `json:"pr_number" gorm:"column:pr_number;not null;uniqueIndex:idx_cross_references_claim"`
	IssueRepo   string     `json:"issue_repo" gorm:"column:issue_repo;type:varchar(512);not null;uniqueIndex:idx_cross_references_claim"`
	IssueNumber int        `json:"issue_number" gorm:"column:issue_number;not null;uniqueIndex:idx_cross_references_claim"`
	ClosesIssue bool       `json:"closes_issue" gorm:"column:closes_issue;default:true"`
	ProcessedAt *time.Time `json:"processed_at" gorm:"column:processed_at;index"`
}

func NewCrossReference(config *cfg.Config, logger log.Logger, provider db.Provider) (*CrossReference, error) {
	return &CrossReference{
		Model: Model{
			Config: config,
			Logger: logger,
			Db:     provider,
		},
	}, nil
}

func (c *CrossReference) TableName() string {
	return "cross_references"
}

// UpsertClaims ghi các claim mới, claim trùng bộ bốn là no-op để không
// ghi đè processed_at đã set
func (c *CrossReference) UpsertClaims(ctx context.Context, claims []CrossReference) error {
	if len(claims) == 0 {
		return nil
	}

	db, err := c.Db.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	now := time.Now()
	for i := range claims {
		claims[i].CreatedAt = now
		claims[i].UpdatedAt = now
	}

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "pr_repo"}, {Name: "pr_number"},
			{Name: "issue_repo"}, {Name: "issue_number"},
		},
		DoNothing: true,
	}).CreateInBatches(claims, 100).Error
}

// Unprocessed lấy tối đa limit claim chưa xử lý, cũ trước
func (c *CrossReference) Unprocessed(ctx context.Context, limit int) ([]CrossReference, error) {
	db, err := c.Db.Db()
	if err != nil {
		return nil, err
	}

	var claims []CrossReference
	result := db.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&claims)
	if result.Error != nil {
		return nil, result.Error
	}
	return claims, nil
}

// MarkProcessed chuyển một lô claim sang processed trong một update duy nhất.
// Điều kiện processed_at IS NULL giữ cho chuyển trạng thái chỉ xảy ra một lần.
func (c *CrossReference) MarkProcessed(ctx context.Context, ids []uint, processedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	db, err := c.Db.Db()
	if err != nil {
		return 0, err
	}

	result := db.WithContext(ctx).Model(&CrossReference{}).
		Where("id IN ? AND processed_at IS NULL", ids).
		Updates(map[string]interface{}{
			"processed_at": processedAt,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountUnprocessed phục vụ facade thống kê
func (c *CrossReference) CountUnprocessed(ctx context.Context) (int64, error) {
	db, err := c.Db.Db()
	if err != nil {
		return 0, err
	}

	var count int64
	result := db.WithContext(ctx).Model(&CrossReference{}).Where("processed_at IS NULL").Count(&count)
	return count, result.Error
}
