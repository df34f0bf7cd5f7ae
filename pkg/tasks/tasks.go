// Package tasks defines the events that are sent to Kafka.
package tasks

import "tikitaka-go/internal/model"

// EventType 区分事件种类。
type EventType string

const (
	EventTurn     EventType = "turn"
	EventFeedback EventType = "feedback"
)

// ChatEvent 是写入 Kafka 的消息体。Turn 与 Feedback 按 Type 二选一。
type ChatEvent struct {
	Type     EventType            `json:"type"`
	Turn     *model.TranscriptDoc `json:"turn,omitempty"`
	Feedback *model.Feedback      `json:"feedback,omitempty"`
}

// Key 返回用于分区的键，同一会话的事件落在同一分区。
func (e ChatEvent) Key() string {
	switch {
	case e.Turn != nil:
		return e.Turn.SessionID
	case e.Feedback != nil:
		return e.Feedback.SessionID
	}
	return ""
}
