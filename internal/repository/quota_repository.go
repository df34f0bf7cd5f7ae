package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ChatQuotaRepository 保存广告观看次数与发送互斥锁。
type ChatQuotaRepository interface {
	AdViews(ctx context.Context, sessionID, petID string) (int, error)
	IncrAdViews(ctx context.Context, sessionID, petID string) (int, error)
	// AcquireSendLock 在 (session, pet) 上没有进行中的发送时加锁，返回持有者令牌。
	// 锁已被占用时 ok 为 false。
	AcquireSendLock(ctx context.Context, sessionID, petID string, ttl time.Duration) (token string, ok bool, err error)
	// RefreshSendLock 仅当锁仍由 token 持有时续期，返回是否仍持有。
	RefreshSendLock(ctx context.Context, sessionID, petID, token string, ttl time.Duration) (bool, error)
	// ReleaseSendLock 仅当锁仍由 token 持有时删除。
	ReleaseSendLock(ctx context.Context, sessionID, petID, token string) error
}

// 只有持有者才能续期或释放锁。
var (
	refreshLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

type redisChatQuotaRepository struct {
	redisClient *redis.Client
}

// NewChatQuotaRepository 创建一个基于 Redis 的 ChatQuotaRepository 实例。
func NewChatQuotaRepository(redisClient *redis.Client) ChatQuotaRepository {
	return &redisChatQuotaRepository{redisClient: redisClient}
}

// AdViewsKey 返回广告观看计数的键。
func AdViewsKey(sessionID, petID string) string {
	return fmt.Sprintf("chat:ads:%s:%s", sessionID, petID)
}

// SendLockKey 返回发送互斥锁的键。
func SendLockKey(sessionID, petID string) string {
	return fmt.Sprintf("chat:sending:%s:%s", sessionID, petID)
}

func (r *redisChatQuotaRepository) AdViews(ctx context.Context, sessionID, petID string) (int, error) {
	n, err := r.redisClient.Get(ctx, AdViewsKey(sessionID, petID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get ad views: %w", err)
	}
	return n, nil
}

func (r *redisChatQuotaRepository) IncrAdViews(ctx context.Context, sessionID, petID string) (int, error) {
	n, err := r.redisClient.Incr(ctx, AdViewsKey(sessionID, petID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment ad views: %w", err)
	}
	return int(n), nil
}

func (r *redisChatQuotaRepository) AcquireSendLock(ctx context.Context, sessionID, petID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.redisClient.SetNX(ctx, SendLockKey(sessionID, petID), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire send lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *redisChatQuotaRepository) RefreshSendLock(ctx context.Context, sessionID, petID, token string, ttl time.Duration) (bool, error) {
	n, err := refreshLockScript.Run(ctx, r.redisClient, []string{SendLockKey(sessionID, petID)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to refresh send lock: %w", err)
	}
	return n == 1, nil
}

func (r *redisChatQuotaRepository) ReleaseSendLock(ctx context.Context, sessionID, petID, token string) error {
	if err := releaseLockScript.Run(ctx, r.redisClient, []string{SendLockKey(sessionID, petID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release send lock: %w", err)
	}
	return nil
}
