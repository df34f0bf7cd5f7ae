// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/handler"
	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/persona"
	"tikitaka-go/internal/pipeline"
	"tikitaka-go/internal/repository"
	"tikitaka-go/internal/repository/memory"
	"tikitaka-go/internal/service"
	"tikitaka-go/pkg/database"
	"tikitaka-go/pkg/es"
	"tikitaka-go/pkg/kafka"
	"tikitaka-go/pkg/llm"
	"tikitaka-go/pkg/log"
	"tikitaka-go/pkg/storage"
	"tikitaka-go/pkg/token"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("TIKITAKA_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	if err := log.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	// 3. 初始化数据库和 Redis
	db := database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	rdb := database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 4. 初始化 Repository；未配置 Redis 时使用进程内实现
	sessionRepo := repository.NewSessionRepository(db)
	petRepo := repository.NewPetRepository(db)
	messageRepo := repository.NewChatMessageRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	var (
		draftRepo repository.DraftRepository
		quotaRepo repository.ChatQuotaRepository
		nonceRepo repository.SessionNonceRepository
		turnFeed  repository.TurnFeed
	)
	if rdb != nil {
		draftRepo = repository.NewDraftRepository(rdb)
		quotaRepo = repository.NewChatQuotaRepository(rdb)
		nonceRepo = repository.NewSessionNonceRepository(rdb)
		turnFeed = repository.NewTurnFeed(rdb)
	} else {
		draftRepo = memory.NewDraftRepo()
		quotaRepo = memory.NewChatQuotaRepo()
		nonceRepo = memory.NewSessionNonceRepo()
		turnFeed = memory.NewTurnFeed()
	}

	// 5. 初始化外部依赖
	var (
		photoStore  storage.PhotoStore
		memoryStore *storage.MemoryPhotoStore
	)
	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewMinIOPhotoStore(bgCtx, cfg.MinIO, cfg.Upload.PathPrefix)
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		photoStore = store
	} else {
		log.Warnf("未配置 MinIO，照片将保存在进程内存中")
		memoryStore = storage.NewMemoryPhotoStore(fmt.Sprintf("http://localhost:%s", cfg.Server.Port))
		photoStore = memoryStore
	}

	var esClient *elasticsearch.Client
	if cfg.Elasticsearch.Addresses != "" {
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			log.Errorf("es 初始化失败，对话检索不可用: %v", err)
		} else {
			esClient = client
		}
	}

	publisher := kafka.NewPublisher(cfg.Kafka)
	defer publisher.Close()

	renderer, err := persona.NewRenderer(cfg.LLM.Prompt.TemplatePath)
	if err != nil {
		log.Fatal("加载人设提示词模板失败", err)
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ShareTokenTTLHours, cfg.JWT.OpsTokenExpireHours)
	llmClient := llm.NewClient(cfg.LLM)
	sessionService := service.NewSessionService(sessionRepo, nonceRepo)
	onboardingService := service.NewOnboardingService(sessionRepo, petRepo, draftRepo, photoStore, cfg.Upload)
	petService := service.NewPetService(petRepo)
	chatService := service.NewChatService(petRepo, messageRepo, quotaRepo, turnFeed, publisher, llmClient, renderer, cfg.Chat)
	feedbackService := service.NewFeedbackService(feedbackRepo, publisher)
	shareService := service.NewShareService(chatService, jwtManager, cfg.Server, cfg.Share)
	searchService := service.NewSearchService(esClient, cfg.Elasticsearch.IndexName)

	// 7. 启动后台 Kafka 消费者，把对话写入检索索引
	if esClient != nil && cfg.Kafka.Brokers != "" {
		go kafka.StartConsumer(bgCtx, cfg.Kafka, pipeline.NewIndexer(esClient, cfg.Elasticsearch.IndexName))
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	if memoryStore != nil {
		r.GET("/memory/*object", handler.NewPhotoHandler(memoryStore).Serve)
	}
	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.Session())
	{
		apiV1.POST("/sessions", handler.NewSessionHandler(sessionService).Create)

		onboarding := apiV1.Group("/onboarding")
		{
			onboardingHandler := handler.NewOnboardingHandler(onboardingService, cfg.Upload)
			onboarding.GET("", onboardingHandler.Get)
			onboarding.POST("/start", onboardingHandler.Start)
			onboarding.POST("/answer", onboardingHandler.Answer)
			onboarding.POST("/photo", onboardingHandler.UploadPhoto)
			onboarding.POST("/photo/skip", onboardingHandler.SkipPhoto)
			onboarding.POST("/photo/keep", onboardingHandler.KeepPhoto)
			onboarding.POST("/edit", onboardingHandler.Edit)
			onboarding.POST("/complete", onboardingHandler.Complete)
		}

		pets := apiV1.Group("/pets")
		{
			pets.GET("/me", handler.NewPetHandler(petService).Me)
			pets.GET("/:petId", handler.NewPetHandler(petService).Get)
		}

		chat := apiV1.Group("/chat")
		{
			chatHandler := handler.NewChatHandler(chatService, cfg.Chat)
			shareHandler := handler.NewShareHandler(shareService)
			chat.GET("", chatHandler.Transcript)
			chat.POST("/messages", chatHandler.Send)
			chat.POST("/ads", chatHandler.WatchAd)
			chat.GET("/ws", chatHandler.Watch)
			chat.GET("/share", shareHandler.Share)
			chat.GET("/export", shareHandler.Export)
			chat.GET("/contact", shareHandler.Contact)
		}
		apiV1.GET("/shared/:token", handler.NewShareHandler(shareService).Shared)

		feedback := apiV1.Group("/feedback")
		{
			feedbackHandler := handler.NewFeedbackHandler(feedbackService)
			feedback.GET("", feedbackHandler.Get)
			feedback.GET("/prompt", feedbackHandler.Prompt)
			feedback.POST("", feedbackHandler.Submit)
		}

		// 运维路由组，需要 OPS 令牌
		ops := apiV1.Group("/ops")
		ops.Use(middleware.OpsAuth(jwtManager))
		{
			opsHandler := handler.NewOpsHandler(searchService, feedbackService)
			ops.GET("/transcripts/search", opsHandler.SearchTranscripts)
			ops.GET("/feedback", opsHandler.ListFeedback)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 停止 Kafka 消费者与后台订阅
	cancelBg()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
