// Package memory 提供 Redis 存储的进程内实现，用于未配置 Redis 的单实例开发环境和测试。
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"tikitaka-go/internal/model"
	"tikitaka-go/internal/repository"
)

type draftRepo struct {
	mu     sync.RWMutex
	drafts map[string][]byte
}

// NewDraftRepo 返回进程内的 DraftRepository。草稿以 JSON 保存，读写双方互不共享内存。
func NewDraftRepo() repository.DraftRepository {
	return &draftRepo{drafts: make(map[string][]byte)}
}

func (r *draftRepo) Get(ctx context.Context, sessionID string) (*model.WizardDraft, error) {
	r.mu.RLock()
	data, ok := r.drafts[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var draft model.WizardDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepo) Save(ctx context.Context, draft *model.WizardDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[draft.SessionID] = data
	return nil
}

func (r *draftRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, sessionID)
	return nil
}

type expiring struct {
	value     string
	expiresAt time.Time
}

func (e expiring) alive(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

type quotaRepo struct {
	mu    sync.Mutex
	ads   map[string]int
	locks map[string]expiring
	now   func() time.Time
}

// NewChatQuotaRepo 返回进程内的 ChatQuotaRepository。
func NewChatQuotaRepo() repository.ChatQuotaRepository {
	return &quotaRepo{
		ads:   make(map[string]int),
		locks: make(map[string]expiring),
		now:   time.Now,
	}
}

func (r *quotaRepo) AdViews(ctx context.Context, sessionID, petID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ads[repository.AdViewsKey(sessionID, petID)], nil
}

func (r *quotaRepo) IncrAdViews(ctx context.Context, sessionID, petID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := repository.AdViewsKey(sessionID, petID)
	r.ads[key]++
	return r.ads[key], nil
}

func (r *quotaRepo) AcquireSendLock(ctx context.Context, sessionID, petID string, ttl time.Duration) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := repository.SendLockKey(sessionID, petID)
	now := r.now()
	if l, ok := r.locks[key]; ok && l.alive(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	r.locks[key] = expiring{value: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (r *quotaRepo) RefreshSendLock(ctx context.Context, sessionID, petID, token string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := repository.SendLockKey(sessionID, petID)
	now := r.now()
	l, ok := r.locks[key]
	if !ok || !l.alive(now) || l.value != token {
		return false, nil
	}
	r.locks[key] = expiring{value: token, expiresAt: now.Add(ttl)}
	return true, nil
}

func (r *quotaRepo) ReleaseSendLock(ctx context.Context, sessionID, petID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := repository.SendLockKey(sessionID, petID)
	if l, ok := r.locks[key]; ok && l.value == token {
		delete(r.locks, key)
	}
	return nil
}

type nonceRepo struct {
	mu     sync.Mutex
	nonces map[string]expiring
	now    func() time.Time
}

// NewSessionNonceRepo 返回进程内的 SessionNonceRepository。
func NewSessionNonceRepo() repository.SessionNonceRepository {
	return &nonceRepo{nonces: make(map[string]expiring), now: time.Now}
}

func (r *nonceRepo) Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e, ok := r.nonces[nonce]; ok && e.alive(now) {
		return false, nil
	}
	r.nonces[nonce] = expiring{value: repository.NoncePending, expiresAt: now.Add(ttl)}
	return true, nil
}

func (r *nonceRepo) Bind(ctx context.Context, nonce, sessionID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonces[nonce] = expiring{value: sessionID, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *nonceRepo) Resolve(ctx context.Context, nonce string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.nonces[nonce]
	if !ok || !e.alive(r.now()) {
		return "", nil
	}
	return e.value, nil
}

func (r *nonceRepo) Release(ctx context.Context, nonce string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nonces, nonce)
	return nil
}
