package service

import (
	"context"
	"fmt"
	"strings"

	"tikitaka-go/internal/model"
	"tikitaka-go/internal/repository"
	"tikitaka-go/pkg/kafka"
	"tikitaka-go/pkg/log"
	"tikitaka-go/pkg/tasks"
)

// FeedbackService 定义了用户反馈相关的业务操作。每个会话最多一条反馈。
type FeedbackService interface {
	// Get 返回会话的反馈，没有时返回 (nil, nil)。
	Get(ctx context.Context, sessionID string) (*model.Feedback, error)
	Submit(ctx context.Context, sessionID, petID string, rating int, comment string) (*model.Feedback, error)
	// ShouldPrompt 判断离开聊天时是否应弹出反馈表单。查询失败时也返回 true。
	ShouldPrompt(ctx context.Context, sessionID string) bool
	List(ctx context.Context, page, size int) ([]model.Feedback, int64, error)
}

type feedbackService struct {
	feedbackRepo repository.FeedbackRepository
	publisher    kafka.Publisher
}

// NewFeedbackService 创建一个新的 FeedbackService 实例。
func NewFeedbackService(feedbackRepo repository.FeedbackRepository, publisher kafka.Publisher) FeedbackService {
	return &feedbackService{feedbackRepo: feedbackRepo, publisher: publisher}
}

func (s *feedbackService) Get(ctx context.Context, sessionID string) (*model.Feedback, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	fb, err := s.feedbackRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("查询反馈失败: %w", err)
	}
	return fb, nil
}

func (s *feedbackService) Submit(ctx context.Context, sessionID, petID string, rating int, comment string) (*model.Feedback, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	existing, err := s.feedbackRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("查询反馈失败: %w", err)
	}
	if existing != nil {
		return nil, ErrFeedbackExists
	}

	fb := &model.Feedback{SessionID: sessionID, PetID: petID, Rating: rating}
	if c := strings.TrimSpace(comment); c != "" {
		fb.Comment = &c
	}
	if err := s.feedbackRepo.Create(ctx, fb); err != nil {
		// 唯一索引冲突说明并发提交已经成功
		if again, ferr := s.feedbackRepo.FindBySessionID(ctx, sessionID); ferr == nil && again != nil {
			return nil, ErrFeedbackExists
		}
		return nil, fmt.Errorf("保存反馈失败: %w", err)
	}
	log.Infow("收到反馈", "sessionId", sessionID, "rating", rating)

	if err := s.publisher.Publish(ctx, tasks.ChatEvent{Type: tasks.EventFeedback, Feedback: fb}); err != nil {
		log.Warnf("[FeedbackService] 发布反馈事件失败: %v", err)
	}
	return fb, nil
}

func (s *feedbackService) ShouldPrompt(ctx context.Context, sessionID string) bool {
	fb, err := s.Get(ctx, sessionID)
	if err != nil {
		log.Warnf("[FeedbackService] 查询反馈失败，仍然弹出反馈表单: %v", err)
		return true
	}
	return fb == nil
}

func (s *feedbackService) List(ctx context.Context, page, size int) ([]model.Feedback, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return s.feedbackRepo.FindWithPagination(ctx, (page-1)*size, size)
}
