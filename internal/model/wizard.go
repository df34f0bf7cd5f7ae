package model

import "time"

// WizardTurn 是引导问答中的一条对话（机器人提问或用户回答）。
type WizardTurn struct {
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
	Image  string `json:"image,omitempty"`
}

// WizardDraft 是尚未提交的宠物档案草稿，保存在 Redis 中。
type WizardDraft struct {
	SessionID  string       `json:"session_id"`
	Step       string       `json:"step"`
	Pet        Pet          `json:"pet"`
	Transcript []WizardTurn `json:"transcript"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
