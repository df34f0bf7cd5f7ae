package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// NoncePending 是会话 ID 尚未写入前占位键的值。
const NoncePending = "pending"

// SessionNonceRepository 用客户端提交的随机数合并并发的会话创建请求。
type SessionNonceRepository interface {
	// Claim 写入占位值，已被其他请求占用时返回 false。
	Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
	// Bind 把占位值替换为真实的会话 ID。
	Bind(ctx context.Context, nonce, sessionID string, ttl time.Duration) error
	// Resolve 返回占位键当前的值，不存在时返回空串。
	Resolve(ctx context.Context, nonce string) (string, error)
	Release(ctx context.Context, nonce string) error
}

type redisSessionNonceRepository struct {
	redisClient *redis.Client
}

// NewSessionNonceRepository 创建一个基于 Redis 的 SessionNonceRepository 实例。
func NewSessionNonceRepository(redisClient *redis.Client) SessionNonceRepository {
	return &redisSessionNonceRepository{redisClient: redisClient}
}

// NonceKey 返回占位键。
func NonceKey(nonce string) string {
	return "session:nonce:" + nonce
}

func (r *redisSessionNonceRepository) Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	ok, err := r.redisClient.SetNX(ctx, NonceKey(nonce), NoncePending, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim session nonce: %w", err)
	}
	return ok, nil
}

func (r *redisSessionNonceRepository) Bind(ctx context.Context, nonce, sessionID string, ttl time.Duration) error {
	return r.redisClient.Set(ctx, NonceKey(nonce), sessionID, ttl).Err()
}

func (r *redisSessionNonceRepository) Resolve(ctx context.Context, nonce string) (string, error) {
	v, err := r.redisClient.Get(ctx, NonceKey(nonce)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve session nonce: %w", err)
	}
	return v, nil
}

func (r *redisSessionNonceRepository) Release(ctx context.Context, nonce string) error {
	return r.redisClient.Del(ctx, NonceKey(nonce)).Err()
}
