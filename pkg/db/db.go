package db

import "gorm.io/gorm"

// Provider cung cấp kết nối gorm cho các thành phần khác
type Provider interface {
	Db() (*gorm.DB, error)
}
