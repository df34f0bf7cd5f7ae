// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"

	"gorm.io/gorm"

	"tikitaka-go/internal/model"
)

// SessionRepository 接口定义了匿名会话的持久化操作。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	Exists(ctx context.Context, sessionID string) (bool, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Create 插入一条新的会话记录。
func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// Exists 判断会话是否已存在。
func (r *sessionRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", sessionID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
