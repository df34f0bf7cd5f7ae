package model

import "time"

// Sender 标记一条消息由谁发出。
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage 对应 chat_messages 表。消息只追加，不修改也不删除。
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(36);not null;index:idx_chat_session_pet" json:"session_id"`
	PetID     string    `gorm:"type:varchar(36);not null;index:idx_chat_session_pet" json:"pet_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Sender    Sender    `gorm:"type:varchar(10);not null" json:"sender"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// Turn 是返回给前端的单条对话。ID 为消息主键，开场问候没有对应记录，ID 为 0。
type Turn struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Image     string    `json:"image,omitempty"`
	CreatedAt LocalTime `json:"createdAt"`
}

// ToTurn 把持久化的消息转换为前端展示用的对话。
func (m ChatMessage) ToTurn() Turn {
	return Turn{
		ID:        int(m.ID),
		Text:      m.Content,
		Sender:    m.Sender,
		CreatedAt: LocalTime(m.CreatedAt),
	}
}
