package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/model"
	"tikitaka-go/internal/persona"
	"tikitaka-go/internal/repository"
	"tikitaka-go/internal/repository/memory"
	"tikitaka-go/pkg/llm"
	"tikitaka-go/pkg/storage"
	"tikitaka-go/pkg/tasks"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeLLM 返回预设的回复并记录收到的消息。delay 不为零时模拟慢接口，peak 记录最大并发调用数。
type fakeLLM struct {
	mu      sync.Mutex
	reply   *string
	err     error
	delay   time.Duration
	calls   int
	active  int
	peak    int
	lastMsg []llm.Message
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (*string, error) {
	f.mu.Lock()
	f.calls++
	f.active++
	f.peak = max(f.peak, f.active)
	f.lastMsg = messages
	reply, err, delay := f.reply, f.err, f.delay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return reply, err
}

func replyOf(s string) *string { return &s }

// recordingPublisher 记录发布的事件。
type recordingPublisher struct {
	mu     sync.Mutex
	events []tasks.ChatEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event tasks.ChatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(t tasks.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// failingPhotoStore 总是上传失败。
type failingPhotoStore struct{}

func (failingPhotoStore) PutPhoto(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", errors.New("minio down")
}

type fixture struct {
	db        *gorm.DB
	sessions  repository.SessionRepository
	pets      repository.PetRepository
	messages  repository.ChatMessageRepository
	feedbacks repository.FeedbackRepository
	drafts    repository.DraftRepository
	quota     repository.ChatQuotaRepository
	feed      repository.TurnFeed
	photos    *storage.MemoryPhotoStore
	publisher *recordingPublisher
	llm       *fakeLLM
	chatCfg   config.ChatConfig
	uploadCfg config.UploadConfig
	renderer  *persona.Renderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	renderer, err := persona.NewRenderer("")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	return &fixture{
		db:        db,
		sessions:  repository.NewSessionRepository(db),
		pets:      repository.NewPetRepository(db),
		messages:  repository.NewChatMessageRepository(db),
		feedbacks: repository.NewFeedbackRepository(db),
		drafts:    memory.NewDraftRepo(),
		quota:     memory.NewChatQuotaRepo(),
		feed:      memory.NewTurnFeed(),
		photos:    storage.NewMemoryPhotoStore("http://cdn.test"),
		publisher: &recordingPublisher{},
		llm:       &fakeLLM{reply: replyOf("멍멍! 반가워")},
		chatCfg: config.ChatConfig{
			MessageCap:         10,
			AdGate:             config.AdGateConfig{Enabled: false, Interval: 5},
			EmptyReplyPolicy:   EmptyReplyFallback,
			EmptyReplyFallback: "음... 다시 말해줄래?",
			SendLockSeconds:    60,
		},
		uploadCfg: config.UploadConfig{MaxPhotoBytes: 5 * 1024 * 1024, PathPrefix: "pet_images"},
		renderer:  renderer,
	}
}

func (f *fixture) chatService() ChatService {
	return NewChatService(f.pets, f.messages, f.quota, f.feed, f.publisher, f.llm, f.renderer, f.chatCfg)
}

func (f *fixture) onboardingService() OnboardingService {
	return NewOnboardingService(f.sessions, f.pets, f.drafts, f.photos, f.uploadCfg)
}

func (f *fixture) mustSession(t *testing.T, id string) {
	t.Helper()
	if err := f.sessions.Create(context.Background(), &model.Session{ID: id}); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func (f *fixture) mustPet(t *testing.T, sessionID, petID string) *model.Pet {
	t.Helper()
	f.mustSession(t, sessionID)
	pet := &model.Pet{ID: petID, SessionID: sessionID, Name: "토토", Age: 3, Type: "강아지", OwnerName: "민지"}
	if err := f.pets.Create(context.Background(), pet); err != nil {
		t.Fatalf("create pet: %v", err)
	}
	return pet
}

// seedUserTurns 直接写入 n 条用户消息。
func (f *fixture) seedUserTurns(t *testing.T, sessionID, petID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		msg := &model.ChatMessage{SessionID: sessionID, PetID: petID, Content: "hi", Sender: model.SenderUser}
		if err := f.messages.Create(context.Background(), msg); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}
