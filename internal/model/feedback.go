package model

import "time"

// Feedback 对应 feedback 表，每个会话最多一条。
type Feedback struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"session_id"`
	PetID     string    `gorm:"type:varchar(36)" json:"pet_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   *string   `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Feedback) TableName() string {
	return "feedback"
}
