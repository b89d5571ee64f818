package model

import (
	"context"
	"errors"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncCursor là watermark incremental theo repo. Chỉ ghi sau khi một
// chu kỳ fetch của repo đó kết thúc, và là thao tác cuối cùng của job.
type SyncCursor struct {
	Model
	ID           uint      `json:"id" gorm:"primaryKey"`
	RepoID       uint      `json:"repo_id" gorm:"column:repo_id;not null;uniqueIndex"`
	LastSyncedAt time.Time `json:"last_synced_at" gorm:"column:last_synced_at"`
}

func NewSyncCursor(config *cfg.Config, logger log.Logger, provider db.Provider) (*SyncCursor, error) {
	return &SyncCursor{
		Model: Model{
			Config: config,
			Logger: logger,
			Db:     provider,
		},
	}, nil
}

func (s *SyncCursor) TableName() string {
	return "sync_cursors"
}

// Get trả về nil nếu repo chưa từng sync
func (s *SyncCursor) Get(ctx context.Context, repoID uint) (*SyncCursor, error) {
	db, err := s.Db.Db()
	if err != nil {
		return nil, err
	}

	var cursor SyncCursor
	result := db.WithContext(ctx).Where("repo_id = ?", repoID).First(&cursor)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &cursor, nil
}

// Touch ghi watermark mới cho repo
func (s *SyncCursor) Touch(ctx context.Context, repoID uint, syncedAt time.Time) error {
	db, err := s.Db.Db()
	if err != nil {
		return err
	}

	now := time.Now()
	cursor := SyncCursor{
		RepoID:       repoID,
		LastSyncedAt: syncedAt,
	}
	cursor.CreatedAt = now
	cursor.UpdatedAt = now

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repo_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_synced_at", "updated_at"}),
	}).Create(&cursor).Error
}
