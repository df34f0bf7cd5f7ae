package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"tikitaka-go/internal/model"
	"tikitaka-go/pkg/log"
)

// TurnFeed 把新写入的聊天消息广播给正在查看同一对话的连接。
type TurnFeed interface {
	Publish(ctx context.Context, msg model.ChatMessage) error
	// Subscribe 返回消息通道与取消订阅函数。通道在取消订阅或 ctx 结束后关闭。
	Subscribe(ctx context.Context, sessionID, petID string) (<-chan model.ChatMessage, func(), error)
}

type redisTurnFeed struct {
	redisClient *redis.Client
}

// NewTurnFeed 创建一个基于 Redis 发布订阅的 TurnFeed 实例。
func NewTurnFeed(redisClient *redis.Client) TurnFeed {
	return &redisTurnFeed{redisClient: redisClient}
}

// FeedChannel 返回对话的发布订阅频道名。
func FeedChannel(sessionID, petID string) string {
	return fmt.Sprintf("chat:feed:%s:%s", sessionID, petID)
}

func (f *redisTurnFeed) Publish(ctx context.Context, msg model.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}
	return f.redisClient.Publish(ctx, FeedChannel(msg.SessionID, msg.PetID), data).Err()
}

func (f *redisTurnFeed) Subscribe(ctx context.Context, sessionID, petID string) (<-chan model.ChatMessage, func(), error) {
	pubsub := f.redisClient.Subscribe(ctx, FeedChannel(sessionID, petID))
	// 等待订阅确认，确保之后发布的消息不会丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe turn feed: %w", err)
	}

	ch := pubsub.Channel()
	out := make(chan model.ChatMessage, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg model.ChatMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					log.Warnf("[TurnFeed] 无法解析消息: %v", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, func() { _ = pubsub.Close() }, nil
}
