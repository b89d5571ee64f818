package db

import (
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Sqlite dùng cho môi trường local và test, không cần mysql server
type Sqlite struct {
	Path string
	once sync.Once
	db   *gorm.DB
	err  error
}

func NewSqlite(path string) (*Sqlite, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	return &Sqlite{Path: path}, nil
}

func (s *Sqlite) Db() (*gorm.DB, error) {
	s.once.Do(func() {
		s.db, s.err = gorm.Open(sqlite.Open(s.Path), &gorm.Config{})
	})
	return s.db, s.err
}

func (s *Sqlite) Migrate(models ...interface{}) error {
	db, err := s.Db()
	if err != nil {
		return err
	}
	return db.AutoMigrate(models...)
}
