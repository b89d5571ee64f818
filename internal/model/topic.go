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

// Topic là chủ đề gắn trên repo, dùng chung toàn hệ thống
type Topic struct {
	Model
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex"`
}

func NewTopic(config *cfg.Config, logger log.Logger, provider db.Provider) (*Topic, error) {
	return &Topic{
		Model: Model{
			Config: config,
			Logger: logger,
			Db:     provider,
		},
	}, nil
}

func (t *Topic) TableName() string {
	return "topics"
}

// FindByNames tra một lượt các topic đã tồn tại
func (t *Topic) FindByNames(ctx context.Context, names []string) (map[string]uint, error) {
	found := make(map[string]uint, len(names))
	if len(names) == 0 {
		return found, nil
	}

	db, err := t.Db.Db()
	if err != nil {
		return nil, err
	}

	var topics []Topic
	result := db.WithContext(ctx).Where("name IN ?", names).Find(&topics)
	if result.Error != nil {
		return nil, result.Error
	}
	for _, topic := range topics {
		found[topic.Name] = topic.ID
	}
	return found, nil
}

// CreateBatch tạo một lượt các topic còn thiếu
func (t *Topic) CreateBatch(ctx context.Context, topics []Topic) error {
	if len(topics) == 0 {
		return nil
	}

	db, err := t.Db.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	now := time.Now()
	for i := range topics {
		topics[i].Name = TruncateString(topics[i].Name, 250)
		topics[i].CreatedAt = now
		topics[i].UpdatedAt = now
	}

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).CreateInBatches(topics, 100).Error
}

// RepoTopic là bảng join giữa repo và topic
type RepoTopic struct {
	ID      uint `gorm:"primaryKey"`
	RepoID  uint `gorm:"column:repo_id;not null;uniqueIndex:idx_repo_topics_repo_topic"`
	TopicID uint `gorm:"column:topic_id;not null;uniqueIndex:idx_repo_topics_repo_topic"`
}

func (rt *RepoTopic) TableName() string {
	return "repo_topics"
}

// ReplaceRepoTopics ghi lại toàn bộ topic của một repo
func (t *Topic) ReplaceRepoTopics(ctx context.Context, repoID uint, topicIDs []uint) error {
	db, err := t.Db.Db()
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("repo_id = ?", repoID).Delete(&RepoTopic{}).Error; err != nil {
			return err
		}
		if len(topicIDs) == 0 {
			return nil
		}
		joins := make([]RepoTopic, 0, len(topicIDs))
		for _, topicID := range topicIDs {
			joins = append(joins, RepoTopic{RepoID: repoID, TopicID: topicID})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&joins).Error
	})
}
