package model

import (
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
)

type Model struct {
	Config    *cfg.Config `gorm:"-" json:"-"`
	Logger    log.Logger  `gorm:"-" json:"-"`
	Db        db.Provider `gorm:"-" json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// All liệt kê tất cả các model để migrate
func All() []interface{} {
	return []interface{}{
		&User{},
		&Repo{},
		&RepoContributor{},
		&PullRequest{},
		&Issue{},
		&Label{},
		&PullRequestLabel{},
		&IssueLabel{},
		&Topic{},
		&RepoTopic{},
		&UsageLog{},
		&SyncCursor{},
		&CrossReference{},
	}
}
