package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"marketchat/config"
	"marketchat/internal/auth"
	"marketchat/internal/domain/chat"
	"marketchat/internal/handler"
	"marketchat/internal/presence"
	"marketchat/internal/repository"
	"marketchat/internal/server"
	"marketchat/internal/services"
	"marketchat/internal/storage"
	"marketchat/pkg/database"
	"marketchat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	zap.ReplaceGlobals(l.Logger)

	database.Connect(cfg)

	if err := database.DB.AutoMigrate(
		&chat.Conversation{},
		&chat.Message{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}
	if err := database.ApplyRawMigrations("migrations"); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}

	var presenceStore presence.Store
	if cfg.PresenceBackend == "redis" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		presenceStore = presence.NewRedisStore(redisClient, 5*time.Minute)
	} else {
		presenceStore = presence.NewMemoryStore()
	}

	chatRepo := repository.NewChatRepository(database.DB)
	chatService := services.NewChatService(chatRepo, l)

	hub := server.NewHub(chatService, presenceStore)
	go hub.Run()
	defer hub.Stop()

	var verifier auth.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewJWTVerifier(cfg.JWTSecret)
	} else {
		l.Warnf("JWT_SECRET not set, token verification disabled")
	}

	var s3Client *storage.S3Client
	if cfg.S3Bucket != "" {
		var err error
		s3Client, err = storage.NewS3Client(context.Background(), storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
		})
		if err != nil {
			log.Fatalf("Failed to configure attachment storage: %v", err)
		}
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Chat:     handler.NewChatHandler(chatService),
		Presence: handler.NewPresenceHandler(hub),
		Upload:   handler.NewUploadHandler(s3Client),
		WS:       server.NewWebSocketHandler(hub, verifier),
	}, verifier)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
