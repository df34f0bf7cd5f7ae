package repository

import (
	"context"

	"gorm.io/gorm"

	"tikitaka-go/internal/model"
)

// FeedbackRepository 接口定义了用户反馈的持久化操作。
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *model.Feedback) error
	FindBySessionID(ctx context.Context, sessionID string) (*model.Feedback, error)
	FindWithPagination(ctx context.Context, offset, limit int) ([]model.Feedback, int64, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository 创建一个新的 FeedbackRepository 实例。
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

// Create 插入一条反馈。feedback.session_id 上有唯一索引。
func (r *feedbackRepository) Create(ctx context.Context, feedback *model.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

// FindBySessionID 查找会话的反馈，没有记录时返回 (nil, nil)。
func (r *feedbackRepository) FindBySessionID(ctx context.Context, sessionID string) (*model.Feedback, error) {
	var feedback model.Feedback
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&feedback).Error
	return nilIfNotFound(&feedback, err)
}

// FindWithPagination 按时间倒序分页返回反馈，以及总记录数。
func (r *feedbackRepository) FindWithPagination(ctx context.Context, offset, limit int) ([]model.Feedback, int64, error) {
	var list []model.Feedback
	var total int64

	// 首先计算总记录数
	if err := r.db.WithContext(ctx).Model(&model.Feedback{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
