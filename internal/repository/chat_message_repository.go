package repository

import (
	"context"

	"gorm.io/gorm"

	"tikitaka-go/internal/model"
)

// ChatMessageRepository 接口定义了聊天记录的持久化操作。记录只追加。
type ChatMessageRepository interface {
	Create(ctx context.Context, msg *model.ChatMessage) error
	ListBySessionAndPet(ctx context.Context, sessionID, petID string) ([]model.ChatMessage, error)
	CountBySender(ctx context.Context, sessionID, petID string, sender model.Sender) (int64, error)
}

type chatMessageRepository struct {
	db *gorm.DB
}

// NewChatMessageRepository 创建一个新的 ChatMessageRepository 实例。
func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

// Create 追加一条消息。
func (r *chatMessageRepository) Create(ctx context.Context, msg *model.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListBySessionAndPet 按创建时间升序返回某个会话与宠物之间的全部消息，时间相同时按 ID 排序。
func (r *chatMessageRepository) ListBySessionAndPet(ctx context.Context, sessionID, petID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND pet_id = ?", sessionID, petID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// CountBySender 统计某一方发出的消息条数，用于消息上限判断。
func (r *chatMessageRepository) CountBySender(ctx context.Context, sessionID, petID string, sender model.Sender) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where("session_id = ? AND pet_id = ? AND sender = ?", sessionID, petID, sender).
		Count(&count).Error
	return count, err
}
