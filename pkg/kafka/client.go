// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"tikitaka-go/internal/config"
	"tikitaka-go/pkg/log"
	"tikitaka-go/pkg/tasks"
)

// maxAttempts 是单条消息处理失败后的最大尝试次数，超过后提交 offset 跳过。
const maxAttempts = 3

// EventProcessor 处理从 Kafka 读取的事件，使消费者与具体的索引实现解耦。
type EventProcessor interface {
	Process(ctx context.Context, event tasks.ChatEvent) error
}

// Publisher 发布聊天事件。
type Publisher interface {
	Publish(ctx context.Context, event tasks.ChatEvent) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewPublisher 创建 Kafka 生产者。未配置 brokers 时返回不做任何事的实现。
func NewPublisher(cfg config.KafkaConfig) Publisher {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		log.Info("未配置 Kafka brokers，聊天事件不会被发布")
		return NopPublisher{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		// 异步写入，聊天请求不等待 broker 确认
		Async: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Errorf("[Kafka] 异步写入 %d 条消息失败: %v", len(messages), err)
			}
		},
	}
	log.Info("Kafka 生产者初始化成功")
	return &kafkaPublisher{writer: w}
}

// Publish 将事件序列化为 JSON 并写入主题。
func (p *kafkaPublisher) Publish(ctx context.Context, event tasks.ChatEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 丢弃所有事件。
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, tasks.ChatEvent) error { return nil }
func (NopPublisher) Close() error                                   { return nil }

// StartConsumer 启动一个 Kafka 消费者处理聊天事件，ctx 结束后返回。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor) {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		log.Info("未配置 Kafka brokers，跳过启动消费者")
		return
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}

		handleMessage(ctx, m.Value, m.Offset, processor)

		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// handleMessage 解析并处理单条消息。格式错误的消息直接跳过；处理失败时最多尝试 maxAttempts 次。
func handleMessage(ctx context.Context, value []byte, offset int64, processor EventProcessor) {
	var event tasks.ChatEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := processor.Process(ctx, event)
		if err == nil {
			return
		}
		log.Warnf("处理聊天事件失败: offset=%d, type=%s, attempt=%d, err=%v", offset, event.Type, attempt, err)
		if ctx.Err() != nil || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
	}
	log.Errorf("聊天事件多次处理失败(>=%d)，跳过: offset=%d", maxAttempts, offset)
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
