package model

import (
	"context"
	"errors"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
	"gorm.io/gorm"
)

// User là tài khoản local đã kết nối GitHub. AccessToken là credential cá nhân,
// mỗi user giữ đúng một token. LendContributed và LendGlobal là cờ cho phép
// mượn token cho các repo đã đóng góp hoặc cho toàn hệ thống.
type User struct {
	Model
	ID              uint   `json:"id" gorm:"primaryKey"`
	Login           string `json:"login" gorm:"column:login;type:varchar(255);not null;uniqueIndex"`
	GithubID        int64  `json:"github_id" gorm:"column:github_id"`
	AccessToken     string `json:"-" gorm:"column:access_token;type:varchar(255)"`
	LendContributed bool   `json:"lend_contributed" gorm:"column:lend_contributed;default:false"`
	LendGlobal      bool   `json:"lend_global" gorm:"column:lend_global;default:false"`
}

func NewUser(config *cfg.Config, logger log.Logger, provider db.Provider) (*User, error) {
	return &User{
		Model: Model{
			Config: config,
			Logger: logger,
			Db:     provider,
		},
	}, nil
}

func (u *User) TableName() string {
	return "users"
}

// FindByLogin trả về nil nếu không có user nào với login đó
func (u *User) FindByLogin(ctx context.Context, login string) (*User, error) {
	db, err := u.Db.Db()
	if err != nil {
		return nil, err
	}

	var found User
	result := db.WithContext(ctx).Where("login = ?", login).First(&found)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &found, nil
}

// FindByID trả về nil nếu không tồn tại
func (u *User) FindByID(ctx context.Context, id uint) (*User, error) {
	db, err := u.Db.Db()
	if err != nil {
		return nil, err
	}

	var found User
	result := db.WithContext(ctx).First(&found, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &found, nil
}

// ContributorsWithToken liệt kê các user cho mượn token theo repo đã đóng góp
func (u *User) ContributorsWithToken(ctx context.Context, repoID uint) ([]User, error) {
	db, err := u.Db.Db()
	if err != nil {
		return nil, err
	}

	var users []User
	result := db.WithContext(ctx).
		Joins("JOIN repo_contributors ON repo_contributors.user_id = users.id").
		Where("repo_contributors.repo_id = ?", repoID).
		Where("users.lend_contributed = ?", true).
		Where("users.access_token <> ''").
		Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// GlobalLendersWithToken liệt kê các user cho mượn token toàn hệ thống
func (u *User) GlobalLendersWithToken(ctx context.Context) ([]User, error) {
	db, err := u.Db.Db()
	if err != nil {
		return nil, err
	}

	var users []User
	result := db.WithContext(ctx).
		Where("lend_global = ?", true).
		Where("access_token <> ''").
		Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// RepoContributor đánh dấu user đã đóng góp vào repo
type RepoContributor struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"column:user_id;not null;uniqueIndex:idx_repo_contributors_user_repo"`
	RepoID uint `gorm:"column:repo_id;not null;uniqueIndex:idx_repo_contributors_user_repo"`
}

func (rc *RepoContributor) TableName() string {
	return "repo_contributors"
}
