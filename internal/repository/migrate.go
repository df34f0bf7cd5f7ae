package repository

import (
	"gorm.io/gorm"

	"tikitaka-go/internal/model"
)

// AutoMigrate 创建或更新 sessions、pets、chat_messages、feedback 四张表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Session{},
		&model.Pet{},
		&model.ChatMessage{},
		&model.Feedback{},
	)
}
