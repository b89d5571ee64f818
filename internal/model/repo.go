package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo là một repository đã mirror. Natural key là owner/name, GithubID là
// node id ổn định phía GitHub.
type Repo struct {
	Model
	ID         uint   `json:"id" gorm:"primaryKey"`
	GithubID   string `json:"github_id" gorm:"column:github_id;type:varchar(255);uniqueIndex"`
	Owner      string `json:"owner" gorm:"column:owner;type:varchar(255);not null;uniqueIndex:idx_repos_owner_name"`
	Name       string `json:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex:idx_repos_owner_name"`
	AuthorID   *uint  `json:"author_id" gorm:"column:author_id"`
	StarCount  int    `json:"star_count" gorm:"column:star_count;default:0"`
	ForkCount  int    `json:"fork_count" gorm:"column:fork_count;default:0"`
	IssueCount int    `json:"issue_count" gorm:"column:issue_count;default:0"`
}

func NewRepo(config *cfg.Config, logger log.Logger, provider db.Provider) (*Repo, error) {
	return &Repo{
		Model: Model{
			Config: config,
			Logger: logger,
			Db:     provider,
		},
	}, nil
}

func (r *Repo) TableName() string {
	return "repos"
}

// NaturalKey là định danh owner/name
func (r *Repo) NaturalKey() string {
	return r.Owner + "/" + r.Name
}

// SplitNaturalKey tách chuỗi owner/name
func SplitNaturalKey(key string) (string, string, error) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository natural key: %q", key)
	}
	return parts[0], parts[1], nil
}

// FindByNaturalKey trả về nil nếu repo chưa tồn tại local
func (r *Repo) FindByNaturalKey(ctx context.Context, owner, name string) (*Repo, error) {
	db, err := r.Db.Db()
	if err != nil {
		return nil, err
	}

	var found Repo
	result := db.WithContext(ctx).Where("owner = ? AND name = ?", owner, name).First(&found)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &found, nil
}

// All trả về toàn bộ repo đang được mirror, theo thứ tự id
func (r *Repo) All(ctx context.Context) ([]Repo, error) {
	db, err := r.Db.Db()
	if err != nil {
		return nil, err
	}

	var repos []Repo
	if err := db.WithContext(ctx).Order("id ASC").Find(&repos).Error; err != nil {
		return nil, err
	}
	return repos, nil
}

// IDsByNaturalKeys trả về map naturalKey -> local id cho các repo đã tồn tại
func (r *Repo) IDsByNaturalKeys(ctx context.Context, keys []string) (map[string]uint, error) {
	found := make(map[string]uint, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	db, err := r.Db.Db()
	if err != nil {
		return nil, err
	}

	pairs := make([][]interface{}, 0, len(keys))
	for _, key := range keys {
		owner, name, err := SplitNaturalKey(key)
		if err != nil {
			continue
		}
		pairs = append(pairs, []interface{}{owner, name})
	}
	if len(pairs) == 0 {
		return found, nil
	}

	var repos []Repo
	if err := db.WithContext(ctx).Where("(owner, name) IN ?", pairs).Find(&repos).Error; err != nil {
		return nil, err
	}
	for _, repo := range repos {
		found[repo.NaturalKey()] = repo.ID
	}
	return found, nil
}

// Upsert ghi một repo theo github_id, trùng thì cập nhật số liệu
func (r *Repo) Upsert(ctx context.Context, repo *Repo) error {
	db, err := r.Db.Db()
	if err != nil {
		return err
	}

	repo.Owner = TruncateString(repo.Owner, 250)
	repo.Name = TruncateString(repo.Name, 250)
	now := time.Now()
	repo.CreatedAt = now
	repo.UpdatedAt = now

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "github_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner", "name", "star_count", "fork_count", "issue_count", "updated_at"}),
	}).Create(repo).Error
}

// UpsertBatch ghi nhiều repo trong một transaction
func (r *Repo) UpsertBatch(ctx context.Context, repos []Repo) error {
	if len(repos) == 0 {
		return nil
	}

	db, err := r.Db.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	now := time.Now()
	for i := range repos {
		repos[i].Owner = TruncateString(repos[i].Owner, 250)
		repos[i].Name = TruncateString(repos[i].Name, 250)
		repos[i].CreatedAt = now
		repos[i].UpdatedAt = now
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "github_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner", "name", "star_count", "fork_count", "issue_count", "updated_at"}),
		}).CreateInBatches(repos, 100)
		if result.Error != nil {
			return fmt.Errorf("failed to batch upsert repositories: %w", result.Error)
		}
		return nil
	})
}
