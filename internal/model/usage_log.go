package model

import (
	"context"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
)

// UsageLog là bản ghi append-only cho mỗi query đã trích được rate limit.
// Không bao giờ update hay delete từ phía syncer.
type UsageLog struct {
	Model
	ID              uint    `json:"id" gorm:"primaryKey"`
	OwnerID         *uint   `json:"owner_id" gorm:"column:owner_id;index"`
	RepoID          *uint   `json:"repo_id" gorm:"column:repo_id;index"`
	QueryName       string  `json:"query_name" gorm:"column:query_name;type:varchar(255)"`
	Variables       string  `json:"variables" gorm:"column:variables;type:text"`
	Tier            string  `json:"tier" gorm:"column:tier;type:varchar(32)"`
	PointsUsed      int     `json:"points_used" gorm:"column:points_used"`
	PointsRemaining int     `json:"points_remaining" gorm:"column:points_remaining"`
	PercentageUsed  float64 `json:"percentage_used" gorm:"column:percentage_used"`
}

func NewUsageLog(config *cfg.Config, logger log.Logger, provider db.Provider) (*UsageLog, error) {
	return &UsageLog{
		Model: Model{
			Config: config,
			Logger: logger,
			Db:     provider,
		},
	}, nil
}

func (u *UsageLog) TableName() string {
	return "usage_logs"
}

// Record ghi một dòng usage mới
func (u *UsageLog) Record(ctx context.Context, entry *UsageLog) error {
	db, err := u.Db.Db()
	if err != nil {
		return err
	}

	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	return db.WithContext(ctx).Create(entry).Error
}

// CountSince đếm số dòng usage kể từ một thời điểm, phục vụ facade thống kê
func (u *UsageLog) CountSince(ctx context.Context, since time.Time) (int64, error) {
	db, err := u.Db.Db()
	if err != nil {
		return 0, err
	}

	var count int64
	result := db.WithContext(ctx).Model(&UsageLog{}).Where("created_at >= ?", since).Count(&count)
	return count, result.Error
}
