package store

import "gorm.io/gorm"

// Store 持有 agent 域所有存储操作共享的数据库句柄。
type Store struct {
	DB *gorm.DB
}

// NewStore 创建一个新的 Store 实例。
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}
