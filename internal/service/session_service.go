package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tikitaka-go/internal/model"
	"tikitaka-go/internal/repository"
	"tikitaka-go/pkg/log"
)

const (
	nonceTTL      = 5 * time.Minute
	nonceWait     = 2 * time.Second
	noncePollStep = 50 * time.Millisecond
)

// SessionService 负责发放浏览器级别的匿名会话。
type SessionService interface {
	// Ensure 返回 existingID 对应的会话；它为空或未知时创建新会话。
	// created 表示本次调用是否新建了会话。
	Ensure(ctx context.Context, existingID, nonce string) (session *model.Session, created bool, err error)
}

type sessionService struct {
	sessionRepo repository.SessionRepository
	nonceRepo   repository.SessionNonceRepository
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(sessionRepo repository.SessionRepository, nonceRepo repository.SessionNonceRepository) SessionService {
	return &sessionService{sessionRepo: sessionRepo, nonceRepo: nonceRepo}
}

func (s *sessionService) Ensure(ctx context.Context, existingID, nonce string) (*model.Session, bool, error) {
	existingID = strings.TrimSpace(existingID)
	if existingID != "" {
		ok, err := s.sessionRepo.Exists(ctx, existingID)
		if err != nil {
			return nil, false, fmt.Errorf("查询会话失败: %w", err)
		}
		if ok {
			return &model.Session{ID: existingID}, false, nil
		}
	}

	nonce = strings.TrimSpace(nonce)
	if nonce == "" {
		sess, err := s.create(ctx)
		return sess, err == nil, err
	}

	// 同一随机数的并发请求中只有一个会真正创建会话，其余等待其结果
	claimed, err := s.nonceRepo.Claim(ctx, nonce, nonceTTL)
	if err != nil {
		log.Warnf("[SessionService] 写入会话占位失败，直接创建: %v", err)
		sess, err := s.create(ctx)
		return sess, err == nil, err
	}
	if claimed {
		sess, err := s.create(ctx)
		if err != nil {
			_ = s.nonceRepo.Release(ctx, nonce)
			return nil, false, err
		}
		if err := s.nonceRepo.Bind(ctx, nonce, sess.ID, nonceTTL); err != nil {
			log.Warnf("[SessionService] 绑定会话占位失败: %v", err)
		}
		return sess, true, nil
	}

	if id := s.waitForNonce(ctx, nonce); id != "" {
		return &model.Session{ID: id}, false, nil
	}
	log.Warnf("[SessionService] 等待会话占位超时，创建新会话: nonce=%s", nonce)
	sess, err := s.create(ctx)
	return sess, err == nil, err
}

func (s *sessionService) waitForNonce(ctx context.Context, nonce string) string {
	deadline := time.NewTimer(nonceWait)
	defer deadline.Stop()
	ticker := time.NewTicker(noncePollStep)
	defer ticker.Stop()
	for {
		v, err := s.nonceRepo.Resolve(ctx, nonce)
		if err == nil && v != "" && v != repository.NoncePending {
			return v
		}
		select {
		case <-ctx.Done():
			return ""
		case <-deadline.C:
			return ""
		case <-ticker.C:
		}
	}
}

func (s *sessionService) create(ctx context.Context) (*model.Session, error) {
	sess := &model.Session{ID: uuid.NewString()}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}
	log.Infow("新会话已创建", "sessionId", sess.ID)
	return sess, nil
}
