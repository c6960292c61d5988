package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"vita-ops/internal/config"
	"vita-ops/internal/db"
	"vita-ops/internal/email"
	apihttp "vita-ops/internal/http"
	"vita-ops/internal/llm"
	"vita-ops/internal/repository"
	"vita-ops/internal/service"
	"vita-ops/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	issueRepo := repository.NewPgIssueRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	vectorIndex := repository.NewPgVectorIndex(pool)

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMEmbeddingModel, logger)
	classifier := service.NewClassifierService(llmClient, logger)
	summarizer := service.NewSummaryService(llmClient, logger, cfg.SummaryMaxLen)

	linkerCfg := service.LinkerConfig{
		SimilarityThreshold: cfg.SimilarityThreshold,
		ReopenWindow:        time.Duration(cfg.ReopenWindowMinutes) * time.Minute,
		RecentTitleScan:     cfg.RecentTitleScan,
		TitleMaxLen:         cfg.TitleMaxLen,
		SearchTopK:          cfg.SearchTopK,
		IssueSource:         cfg.IssueSource,
	}
	linkerSvc := service.NewLinkerService(issueRepo, messageRepo, vectorIndex, classifier, llmClient, summarizer, linkerCfg, logger)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}
	if cfg.AlertEmail != "" {
		linkerSvc = linkerSvc.WithAlerts(emailSender, cfg.AlertEmail)
	}

	var (
		eventLimiter service.EventRateLimiter
		tokenStore   service.RefreshTokenStore
		chatTokens   service.ChatTokenStore
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			eventLimiter = service.NewRedisEventRateLimiter(redisClient, time.Minute, 30)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			chatTokens = service.NewRedisChatTokenStore(redisClient)
		}
		cancel()
	}
	if chatTokens == nil {
		chatTokens = service.NewMemoryChatTokenStore()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	objectStore := storage.ObjectStore(storage.NewDisabledStore())
	if cfg.BucketURL != "" {
		objectStore = storage.NewHTTPObjectStore(cfg.BucketURL, cfg.BucketToken)
	}
	attachmentSvc := service.NewAttachmentService(objectStore, llmClient, service.NewPlainTextOCR(), logger)

	commandSvc := service.NewCommandService(issueRepo, messageRepo, vectorIndex, llmClient, summarizer, cfg.SearchTopK, logger)

	webhookHandler := apihttp.NewWebhookHandler(linkerSvc, attachmentSvc, eventLimiter, cfg.EventQueueURL, cfg.BotName, logger)
	commandHandler := apihttp.NewCommandHandler(commandSvc, logger)
	oauthHandler := apihttp.NewOAuthHandler(cfg.Chat(), chatTokens, logger)
	adminHandler := apihttp.NewAdminHandler(jwtSvc, cfg.AdminPasswordHash, messageRepo, vectorIndex, llmClient, logger)
	router := apihttp.NewRouter(logger, webhookHandler, commandHandler, oauthHandler, adminHandler, jwtSvc)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
