package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/model"
	"tikitaka-go/internal/persona"
	"tikitaka-go/internal/repository"
	"tikitaka-go/pkg/kafka"
	"tikitaka-go/pkg/llm"
	"tikitaka-go/pkg/log"
	"tikitaka-go/pkg/tasks"
)

// 空回复策略。
const (
	EmptyReplySkip     = "skip"
	EmptyReplyFallback = "fallback"
)

// ChatStatus 描述一段对话的发送额度。
type ChatStatus struct {
	Count        int  `json:"count"`
	Cap          int  `json:"cap"`
	Limit        int  `json:"limit"`
	Remaining    int  `json:"remaining"`
	AdGate       bool `json:"adGate"`
	AdViews      int  `json:"adViews"`
	AdRequired   bool `json:"adRequired"`
	LimitReached bool `json:"limitReached"`
	ReadOnly     bool `json:"readOnly"`
}

// Conversation 是一段对话的完整视图。
type Conversation struct {
	SessionID string       `json:"sessionId"`
	Pet       model.Pet    `json:"pet"`
	Turns     []model.Turn `json:"turns"`
	Status    ChatStatus   `json:"status"`
}

// SendResult 是一次发送的结果。
type SendResult struct {
	UserTurn model.Turn `json:"userTurn"`
	Reply    model.Turn `json:"reply"`
	Status   ChatStatus `json:"status"`
}

// ChatService 定义了聊天操作的接口。
// viewerSession 是请求方的会话；targetSession 是被查看对话所属的会话，为空时等于 viewerSession。
// 两者不同时对话是只读的分享视图。
type ChatService interface {
	Transcript(ctx context.Context, viewerSession, targetSession, petID string) (*Conversation, error)
	Send(ctx context.Context, viewerSession, targetSession, petID, text string) (*SendResult, error)
	WatchAd(ctx context.Context, sessionID, petID string) (*ChatStatus, error)
	Watch(ctx context.Context, viewerSession, targetSession, petID string) (<-chan model.Turn, func(), error)
}

type chatService struct {
	petRepo     repository.PetRepository
	messageRepo repository.ChatMessageRepository
	quotaRepo   repository.ChatQuotaRepository
	feed        repository.TurnFeed
	publisher   kafka.Publisher
	llmClient   llm.Client
	renderer    *persona.Renderer
	cfg         config.ChatConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	petRepo repository.PetRepository,
	messageRepo repository.ChatMessageRepository,
	quotaRepo repository.ChatQuotaRepository,
	feed repository.TurnFeed,
	publisher kafka.Publisher,
	llmClient llm.Client,
	renderer *persona.Renderer,
	cfg config.ChatConfig,
) ChatService {
	return &chatService{
		petRepo:     petRepo,
		messageRepo: messageRepo,
		quotaRepo:   quotaRepo,
		feed:        feed,
		publisher:   publisher,
		llmClient:   llmClient,
		renderer:    renderer,
		cfg:         cfg,
	}
}

// Greeting 返回对话开头宠物的问候语。
func Greeting(pet model.Pet) string {
	owner := pet.OwnerName
	if owner == "" {
		owner = model.DefaultOwnerName
	}
	return fmt.Sprintf("안녕, 나 %s! 이렇게 보니 신기해 %s! 잘 지냈어?", pet.Name, owner)
}

// EvaluateGate 根据已发送条数与广告观看次数计算额度。
// 未开启广告门槛时 count < cap 才允许发送；开启后每观看一次广告额外解锁 interval 条。
func EvaluateGate(cfg config.ChatConfig, count, adViews int) ChatStatus {
	limit := cfg.MessageCap
	if cfg.AdGate.Enabled {
		limit += adViews * cfg.AdGate.Interval
	}
	st := ChatStatus{
		Count:   count,
		Cap:     cfg.MessageCap,
		Limit:   limit,
		AdGate:  cfg.AdGate.Enabled,
		AdViews: adViews,
	}
	if count < limit {
		st.Remaining = limit - count
	} else {
		st.LimitReached = true
		st.AdRequired = cfg.AdGate.Enabled
	}
	return st
}

func (s *chatService) Transcript(ctx context.Context, viewerSession, targetSession, petID string) (*Conversation, error) {
	target, readOnly := resolveTarget(viewerSession, targetSession)
	pet, err := s.resolvePet(ctx, target, petID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListBySessionAndPet(ctx, target, pet.ID)
	if err != nil {
		return nil, fmt.Errorf("查询聊天记录失败: %w", err)
	}

	turns := make([]model.Turn, 0, len(messages)+1)
	turns = append(turns, model.Turn{Text: Greeting(*pet), Sender: model.SenderBot, Image: pet.Image, CreatedAt: model.LocalTime(pet.CreatedAt)})
	count := 0
	for _, m := range messages {
		if m.Sender == model.SenderUser {
			count++
		}
		turns = append(turns, m.ToTurn())
	}

	status, err := s.status(ctx, target, pet.ID, count)
	if err != nil {
		return nil, err
	}
	status.ReadOnly = readOnly
	return &Conversation{SessionID: target, Pet: *pet, Turns: turns, Status: status}, nil
}

// Send 发送一条用户消息并返回宠物的回复。
// 聊天接口只接收系统提示词与本次输入，不带历史记录。
func (s *chatService) Send(ctx context.Context, viewerSession, targetSession, petID, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if viewerSession == "" {
		return nil, ErrSessionRequired
	}
	target, readOnly := resolveTarget(viewerSession, targetSession)
	if readOnly {
		return nil, ErrReadOnlyChat
	}
	pet, err := s.resolvePet(ctx, target, petID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.holdSendLock(ctx, target, pet.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	count, err := s.messageRepo.CountBySender(ctx, target, pet.ID, model.SenderUser)
	if err != nil {
		return nil, fmt.Errorf("统计消息条数失败: %w", err)
	}
	status, err := s.status(ctx, target, pet.ID, int(count))
	if err != nil {
		return nil, err
	}
	if status.LimitReached {
		if status.AdRequired {
			return nil, ErrAdRequired
		}
		return nil, ErrMessageLimit
	}

	userMsg := &model.ChatMessage{SessionID: target, PetID: pet.ID, Content: text, Sender: model.SenderUser}
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("保存用户消息失败: %w", err)
	}
	s.broadcast(ctx, *pet, *userMsg)

	reply, err := s.complete(ctx, *pet, text)
	if err != nil {
		return nil, err
	}

	botMsg := &model.ChatMessage{SessionID: target, PetID: pet.ID, Content: reply, Sender: model.SenderBot}
	if err := s.messageRepo.Create(ctx, botMsg); err != nil {
		return nil, fmt.Errorf("保存回复失败: %w", err)
	}
	s.broadcast(ctx, *pet, *botMsg)

	return &SendResult{
		UserTurn: userMsg.ToTurn(),
		Reply:    botMsg.ToTurn(),
		Status:   EvaluateGate(s.cfg, int(count)+1, status.AdViews),
	}, nil
}

// complete 调用聊天接口，并按空回复策略处理 null 或空白的内容。
func (s *chatService) complete(ctx context.Context, pet model.Pet, text string) (string, error) {
	system, err := s.renderer.Render(pet)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	content, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: text},
	}, nil)
	if err != nil {
		log.Errorf("[ChatService] 调用聊天接口失败: pet=%s, err=%v", pet.ID, err)
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	if content != nil && strings.TrimSpace(*content) != "" {
		return *content, nil
	}
	if s.cfg.EmptyReplyPolicy == EmptyReplySkip || s.cfg.EmptyReplyFallback == "" {
		log.Warnf("[ChatService] 聊天接口返回空内容，未保存回复: pet=%s", pet.ID)
		return "", ErrEmptyCompletion
	}
	return s.cfg.EmptyReplyFallback, nil
}

func (s *chatService) WatchAd(ctx context.Context, sessionID, petID string) (*ChatStatus, error) {
	if !s.cfg.AdGate.Enabled {
		return nil, ErrAdGateDisabled
	}
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	pet, err := s.resolvePet(ctx, sessionID, petID)
	if err != nil {
		return nil, err
	}
	views, err := s.quotaRepo.IncrAdViews(ctx, sessionID, pet.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.messageRepo.CountBySender(ctx, sessionID, pet.ID, model.SenderUser)
	if err != nil {
		return nil, fmt.Errorf("统计消息条数失败: %w", err)
	}
	st := EvaluateGate(s.cfg, int(count), views)
	return &st, nil
}

func (s *chatService) Watch(ctx context.Context, viewerSession, targetSession, petID string) (<-chan model.Turn, func(), error) {
	target, _ := resolveTarget(viewerSession, targetSession)
	pet, err := s.resolvePet(ctx, target, petID)
	if err != nil {
		return nil, nil, err
	}
	msgs, cancel, err := s.feed.Subscribe(ctx, target, pet.ID)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan model.Turn)
	go func() {
		defer close(out)
		for m := range msgs {
			select {
			case out <- m.ToTurn():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel, nil
}

func (s *chatService) status(ctx context.Context, sessionID, petID string, count int) (ChatStatus, error) {
	adViews := 0
	if s.cfg.AdGate.Enabled {
		n, err := s.quotaRepo.AdViews(ctx, sessionID, petID)
		if err != nil {
			return ChatStatus{}, err
		}
		adViews = n
	}
	return EvaluateGate(s.cfg, count, adViews), nil
}

// resolvePet 查找对话所属的宠物。petID 为空时使用会话自己的档案；
// 指定 petID 时档案必须属于 sessionID。
func (s *chatService) resolvePet(ctx context.Context, sessionID, petID string) (*model.Pet, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	var (
		pet *model.Pet
		err error
	)
	if petID == "" {
		pet, err = s.petRepo.FindBySessionID(ctx, sessionID)
	} else {
		pet, err = s.petRepo.FindByID(ctx, petID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询宠物档案失败: %w", err)
	}
	if pet == nil || pet.SessionID != sessionID {
		return nil, ErrPetNotFound
	}
	return pet, nil
}

// broadcast 把新消息推送给正在查看的连接并发布到 Kafka。失败只记录日志。
func (s *chatService) broadcast(ctx context.Context, pet model.Pet, msg model.ChatMessage) {
	if err := s.feed.Publish(ctx, msg); err != nil {
		log.Warnf("[ChatService] 推送消息失败: %v", err)
	}
	event := tasks.ChatEvent{
		Type: tasks.EventTurn,
		Turn: &model.TranscriptDoc{
			MessageID: msg.ID,
			SessionID: msg.SessionID,
			PetID:     msg.PetID,
			PetName:   pet.Name,
			Sender:    string(msg.Sender),
			Content:   msg.Content,
			CreatedAt: model.LocalTime(msg.CreatedAt).String(),
		},
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warnf("[ChatService] 发布聊天事件失败: %v", err)
	}
}

func (s *chatService) lockTTL() time.Duration {
	if s.cfg.SendLockSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.cfg.SendLockSeconds) * time.Second
}

// holdSendLock 获取 (session, pet) 的发送锁，并在释放前每隔 ttl/3 续期一次，
// 保证聊天接口耗时超过 ttl 时锁仍然有效。返回的函数停止续期并释放锁。
func (s *chatService) holdSendLock(ctx context.Context, sessionID, petID string) (func(), error) {
	ttl := s.lockTTL()
	token, ok, err := s.quotaRepo.AcquireSendLock(ctx, sessionID, petID, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSendInFlight
	}

	bg := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				held, err := s.quotaRepo.RefreshSendLock(bg, sessionID, petID, token, ttl)
				if err != nil {
					log.Warnw("[ChatService] 发送锁续期失败", "sessionId", sessionID, "petId", petID, "error", err)
					continue
				}
				if !held {
					log.Warnw("[ChatService] 发送锁已失效", "sessionId", sessionID, "petId", petID)
					return
				}
			}
		}
	}()

	return func() {
		close(stop)
		<-done
		if err := s.quotaRepo.ReleaseSendLock(bg, sessionID, petID, token); err != nil {
			log.Warnf("[ChatService] 释放发送锁失败: %v", err)
		}
	}, nil
}

func resolveTarget(viewerSession, targetSession string) (string, bool) {
	if targetSession == "" || targetSession == viewerSession {
		return viewerSession, false
	}
	return targetSession, true
}
