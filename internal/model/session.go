// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Session 对应 sessions 表，是浏览器级别的匿名会话标识。
// 它是宠物档案与聊天记录之间的关联键，创建后不会过期或轮换。
type Session struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Session) TableName() string {
	return "sessions"
}
