package model

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultOwnerName 是落地页未填写主人名字时使用的称呼。
const DefaultOwnerName = "주인"

// Pet 对应 pets 表，即由引导问答收集到的宠物档案。
// 档案创建后不再修改；每个会话最多拥有一份档案。
type Pet struct {
	ID          string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID   string                      `gorm:"type:varchar(36);not null;uniqueIndex" json:"session_id"`
	Name        string                      `gorm:"type:varchar(100);not null" json:"name"`
	Type        string                      `gorm:"type:varchar(100)" json:"type"`
	Breed       string                      `gorm:"type:varchar(100)" json:"breed"`
	Age         int                         `gorm:"not null;default:0" json:"age"`
	Gender      string                      `gorm:"type:varchar(20)" json:"gender"`
	Personality datatypes.JSONSlice[string] `gorm:"type:json" json:"personality"`
	Friend      datatypes.JSONSlice[string] `gorm:"type:json" json:"friend"`
	Favorite    string                      `gorm:"type:text" json:"favorite"`
	Dislike     string                      `gorm:"type:text" json:"dislike"`
	Description string                      `gorm:"type:text" json:"description"`
	Image       string                      `gorm:"type:varchar(512)" json:"image"`
	OwnerName   string                      `gorm:"type:varchar(100)" json:"owner_name"`
	CreatedAt   time.Time                   `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Pet) TableName() string {
	return "pets"
}
