package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/persona"
	"tikitaka-go/internal/repository"
	"tikitaka-go/internal/repository/memory"
	"tikitaka-go/internal/service"
	"tikitaka-go/pkg/kafka"
	"tikitaka-go/pkg/llm"
	"tikitaka-go/pkg/storage"
	"tikitaka-go/pkg/token"
)

type stubLLM struct{ reply *string }

func (s stubLLM) Complete(context.Context, []llm.Message, *llm.GenerationParams) (*string, error) {
	return s.reply, nil
}

type testEnv struct {
	router     *gin.Engine
	jwtManager *token.JWTManager
	pets       repository.PetRepository
	photos     *storage.MemoryPhotoStore
}

// newTestEnv 按 main 中的方式注册全部路由，存储使用 SQLite 与进程内实现。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	renderer, err := persona.NewRenderer("")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	reply := "멍멍! 반가워"
	chatCfg := config.ChatConfig{MessageCap: 10, AdGate: config.AdGateConfig{Interval: 5}, EmptyReplyPolicy: service.EmptyReplyFallback, EmptyReplyFallback: "음?"}
	uploadCfg := config.UploadConfig{MaxPhotoBytes: 1 << 20, PathPrefix: "pet_images"}
	jwtManager := token.NewJWTManager("test-secret", 24, 1)

	sessionRepo := repository.NewSessionRepository(db)
	petRepo := repository.NewPetRepository(db)
	messageRepo := repository.NewChatMessageRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	photos := storage.NewMemoryPhotoStore("http://cdn.test")
	publisher := kafka.NopPublisher{}

	sessionService := service.NewSessionService(sessionRepo, memory.NewSessionNonceRepo())
	onboardingService := service.NewOnboardingService(sessionRepo, petRepo, memory.NewDraftRepo(), photos, uploadCfg)
	petService := service.NewPetService(petRepo)
	chatService := service.NewChatService(petRepo, messageRepo, memory.NewChatQuotaRepo(), memory.NewTurnFeed(), publisher, stubLLM{reply: &reply}, renderer, chatCfg)
	feedbackService := service.NewFeedbackService(feedbackRepo, publisher)
	shareService := service.NewShareService(chatService, jwtManager, config.ServerConfig{BaseURL: "https://tikitaka.test"}, config.ShareConfig{ContactEmail: "hi@tikitaka.test"})
	searchService := service.NewSearchService(nil, "transcripts")

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Session())
	api.POST("/sessions", NewSessionHandler(sessionService).Create)
	onboarding := NewOnboardingHandler(onboardingService, uploadCfg)
	api.POST("/onboarding/start", onboarding.Start)
	api.GET("/onboarding", onboarding.Get)
	api.POST("/onboarding/answer", onboarding.Answer)
	api.POST("/onboarding/photo", onboarding.UploadPhoto)
	api.POST("/onboarding/photo/skip", onboarding.SkipPhoto)
	api.POST("/onboarding/photo/keep", onboarding.KeepPhoto)
	api.POST("/onboarding/edit", onboarding.Edit)
	api.POST("/onboarding/complete", onboarding.Complete)
	api.GET("/pets/me", NewPetHandler(petService).Me)
	api.GET("/pets/:petId", NewPetHandler(petService).Get)
	chat := NewChatHandler(chatService, chatCfg)
	api.GET("/chat", chat.Transcript)
	api.POST("/chat/messages", chat.Send)
	api.POST("/chat/ads", chat.WatchAd)
	api.GET("/chat/ws", chat.Watch)
	share := NewShareHandler(shareService)
	api.GET("/chat/share", share.Share)
	api.GET("/chat/export", share.Export)
	api.GET("/shared/:token", share.Shared)
	feedback := NewFeedbackHandler(feedbackService)
	api.GET("/feedback", feedback.Get)
	api.GET("/feedback/prompt", feedback.Prompt)
	api.POST("/feedback", feedback.Submit)
	ops := api.Group("/ops", middleware.OpsAuth(jwtManager))
	opsHandler := NewOpsHandler(searchService, feedbackService)
	ops.GET("/transcripts/search", opsHandler.SearchTranscripts)
	ops.GET("/feedback", opsHandler.ListFeedback)

	return &testEnv{router: r, jwtManager: jwtManager, pets: petRepo, photos: photos}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, sessionID string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(middleware.SessionHeader, sessionID)
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
		}
	}
	return w, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, raw)
	}
}

// newSession 通过接口创建会话并返回其 ID。
func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	w, env := e.do(t, http.MethodPost, "/api/v1/sessions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	var data struct {
		SessionID string `json:"sessionId"`
	}
	decode(t, env.Data, &data)
	return data.SessionID
}
