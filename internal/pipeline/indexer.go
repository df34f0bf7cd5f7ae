// Package pipeline 定义了聊天事件的后台处理流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"tikitaka-go/pkg/es"
	"tikitaka-go/pkg/log"
	"tikitaka-go/pkg/tasks"
)

// Indexer 把 Kafka 中的聊天事件写入 Elasticsearch，供运维检索。
type Indexer struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewIndexer 创建一个新的 Indexer 实例。
func NewIndexer(esClient *elasticsearch.Client, indexName string) *Indexer {
	return &Indexer{esClient: esClient, indexName: indexName}
}

// Process 处理单个事件。对话事件写入索引，反馈事件只记录日志，未知事件被忽略。
func (p *Indexer) Process(ctx context.Context, event tasks.ChatEvent) error {
	switch event.Type {
	case tasks.EventTurn:
		if event.Turn == nil {
			return errors.New("turn 事件缺少内容")
		}
		if err := es.IndexTranscript(ctx, p.esClient, p.indexName, *event.Turn); err != nil {
			return fmt.Errorf("索引对话失败: %w", err)
		}
		log.Debugf("[Indexer] 对话已索引, session=%s, message=%d", event.Turn.SessionID, event.Turn.MessageID)
		return nil
	case tasks.EventFeedback:
		if event.Feedback != nil {
			log.Infow("[Indexer] 收到反馈事件", "sessionId", event.Feedback.SessionID, "petId", event.Feedback.PetID, "rating", event.Feedback.Rating)
		}
		return nil
	default:
		log.Warnf("[Indexer] 忽略未知事件类型: %s", event.Type)
		return nil
	}
}
