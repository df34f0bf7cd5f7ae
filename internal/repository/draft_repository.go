package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"tikitaka-go/internal/model"
)

// DraftTTL 是引导问答草稿的保留时间。
const DraftTTL = 24 * time.Hour

// DraftRepository 接口定义了引导问答草稿的存取操作。
// Get 在草稿不存在时返回 (nil, nil)。
type DraftRepository interface {
	Get(ctx context.Context, sessionID string) (*model.WizardDraft, error)
	Save(ctx context.Context, draft *model.WizardDraft) error
	Delete(ctx context.Context, sessionID string) error
}

type redisDraftRepository struct {
	redisClient *redis.Client
}

// NewDraftRepository 创建一个基于 Redis 的 DraftRepository 实例。
func NewDraftRepository(redisClient *redis.Client) DraftRepository {
	return &redisDraftRepository{redisClient: redisClient}
}

// DraftKey 返回草稿在 Redis 中的键。
func DraftKey(sessionID string) string {
	return "wizard:draft:" + sessionID
}

// Get 读取草稿。
func (r *redisDraftRepository) Get(ctx context.Context, sessionID string) (*model.WizardDraft, error) {
	data, err := r.redisClient.Get(ctx, DraftKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wizard draft: %w", err)
	}
	var draft model.WizardDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wizard draft: %w", err)
	}
	return &draft, nil
}

// Save 覆盖写入草稿并刷新过期时间。
func (r *redisDraftRepository) Save(ctx context.Context, draft *model.WizardDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard draft: %w", err)
	}
	if err := r.redisClient.Set(ctx, DraftKey(draft.SessionID), data, DraftTTL).Err(); err != nil {
		return fmt.Errorf("failed to save wizard draft: %w", err)
	}
	return nil
}

// Delete 删除草稿。
func (r *redisDraftRepository) Delete(ctx context.Context, sessionID string) error {
	return r.redisClient.Del(ctx, DraftKey(sessionID)).Err()
}
