package model

// TranscriptDoc 代表索引到 Elasticsearch 中的一条对话。
type TranscriptDoc struct {
	MessageID uint   `json:"message_id"`
	SessionID string `json:"session_id"`
	PetID     string `json:"pet_id"`
	PetName   string `json:"pet_name"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// TranscriptHit 是运维检索返回的单条结果。
type TranscriptHit struct {
	TranscriptDoc
	Score float64 `json:"score"`
}
