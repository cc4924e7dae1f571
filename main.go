package main

import (
	"context"
	"log"

	api "design-assistant-backend/cmd/api"
	authDelivery "design-assistant-backend/internal/auth/delivery"
	authdomain "design-assistant-backend/internal/auth/domain"
	authRepo "design-assistant-backend/internal/auth/repository"
	authUsecase "design-assistant-backend/internal/auth/usecase"
	chatDelivery "design-assistant-backend/internal/chat/delivery"
	chatUsecase "design-assistant-backend/internal/chat/usecase"
	"design-assistant-backend/internal/extract"
	"design-assistant-backend/internal/notification"
	taskDelivery "design-assistant-backend/internal/task/delivery"
	taskdomain "design-assistant-backend/internal/task/domain"
	taskRepo "design-assistant-backend/internal/task/repository"
	taskUsecase "design-assistant-backend/internal/task/usecase"
	"design-assistant-backend/pkg/chroma"
	"design-assistant-backend/pkg/config"
	"design-assistant-backend/pkg/database"
	"design-assistant-backend/pkg/gemini"
	"design-assistant-backend/pkg/memguard"
	"design-assistant-backend/pkg/monday"
	"design-assistant-backend/pkg/ratelimit"
	"design-assistant-backend/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&taskdomain.Task{}, &taskdomain.TaskSnapshot{}, &taskdomain.TaskFile{},
		&authdomain.MondayLink{}, &authdomain.HandoffCode{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	taskRepository := taskRepo.NewGormTaskRepository(db)
	snapshotRepository := taskRepo.NewGormSnapshotRepository(db)
	fileRepository := taskRepo.NewGormFileRepository(db)
	linkRepository := authRepo.NewGormMondayLinkRepository(db)
	codeRepository := authRepo.NewGormHandoffCodeRepository(db)

	// Shared Gemini budget: one limiter for extraction, embedding and chat
	limiter := ratelimit.NewLimiter(cfg.RateLimitRPM, cfg.RateLimitConcurrent)
	geminiService := gemini.NewService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbeddingModel, limiter, cfg.RateLimitTimeout)

	// Vector index
	chromaClient, err := chroma.NewChromaClient(cfg)
	if err != nil {
		log.Fatal("Failed to initialize Chroma client:", err)
	}

	// Raw object storage
	store, err := storage.NewGCSStore(context.Background(), cfg.StorageBucket, cfg.FirebaseCredentials)
	if err != nil {
		log.Fatal("Failed to initialize object storage:", err)
	}

	mondayClient := monday.NewClient()
	extractService := extract.NewService(geminiService, cfg.RateLimitConcurrent)
	memoryGovernor := memguard.NewGovernor(cfg.MemorySoftLimitMB, cfg.MemoryHardLimitMB, nil)

	// Initialize use cases (dependency injection)
	// Auth implements the task pipeline's token provider, so the task
	// usecase is built first and the provider is attached after.
	taskUsecaseInstance := taskUsecase.NewTaskUsecase(
		db,
		taskRepository, snapshotRepository, fileRepository,
		mondayClient, extractService, nil,
		store, cfg.StorageBucket,
		geminiService, chromaClient, memoryGovernor,
		cfg.EmbedBatchSize,
	)
	authUsecaseInstance := authUsecase.NewAuthUsecase(linkRepository, codeRepository, taskUsecaseInstance, mondayClient, cfg)
	taskUsecaseInstance.SetTokenProvider(authUsecaseInstance)

	chatUsecaseInstance := chatUsecase.NewChatUsecase(geminiService, taskUsecaseInstance)

	// Initialize Notification Service (Pub/Sub)
	// Only start if project ID is configured
	if cfg.GoogleProjectID != "" {
		notifService, err := notification.NewService(cfg.GoogleProjectID, cfg.PubSubTopic, cfg.FirebaseCredentials, taskUsecaseInstance)
		if err != nil {
			log.Printf("[PubSub] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[PubSub] GOOGLE_PROJECT_ID not configured, resync listener disabled")
	}

	// Initialize HTTP handlers
	authHandler := authDelivery.NewAuthHandler(authUsecaseInstance)
	taskHandler := taskDelivery.NewTaskHandler(taskUsecaseInstance)
	chatHandler := chatDelivery.NewChatHandler(chatUsecaseInstance)

	r := gin.Default()
	api.SetupRoutes(r, authUsecaseInstance, authHandler, taskHandler, chatHandler)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
