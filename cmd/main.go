package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/danikhandev/serve-u/internal/api/handler"
	"github.com/danikhandev/serve-u/internal/chathub"
	"github.com/danikhandev/serve-u/internal/config"
	"github.com/danikhandev/serve-u/internal/logger"
	"github.com/danikhandev/serve-u/internal/media"
	"github.com/danikhandev/serve-u/internal/models"
	"github.com/danikhandev/serve-u/internal/storage"
	"github.com/danikhandev/serve-u/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config, zlog *zap.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		zlog.Fatal("failed to connect PostgreSQL", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		zlog.Fatal("failed to connect Redis", zap.Error(err))
	}

	err = db.AutoMigrate(
		&models.Identity{},
		&models.Conversation{},
		&models.Message{},
		&models.Attachment{},
	)
	if err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}

	zlog.Info("database and redis ready, migrations complete")
	return db, rdb
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("warning: no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Dev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("starting serve-u chat backend", zap.String("addr", cfg.HTTPAddr))

	db, rdb := setupDependencies(cfg, zlog)
	store := storage.NewService(db, rdb)

	mediaStore, err := media.NewS3Store(context.Background(),
		cfg.S3Region, cfg.S3Bucket, cfg.S3Endpoint, cfg.S3PublicRead, cfg.PresignTTL)
	if err != nil {
		zlog.Fatal("failed to init media store", zap.Error(err))
	}

	producer := stream.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	archiver := stream.NewArchiver(cfg.KafkaBrokers, cfg.KafkaTopic, "chat-archiver", store, zlog)
	go func() {
		if err := archiver.Run(context.Background()); err != nil {
			zlog.Error("archiver stopped", zap.Error(err))
		}
	}()

	hub := chathub.NewHub(store, producer, zlog)
	go hub.Run()

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	h := handler.NewHandler(hub, store, mediaStore, cfg, zlog)

	r.GET("/ws", h.ServeWebSocket)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", h.AuthMiddleware())
	{
		api.GET("/conversations", h.ListConversations)
		api.POST("/conversations", h.StartConversation)
		api.GET("/conversations/:id/messages", h.GetHistory)
		api.POST("/conversations/:id/messages", h.PostMessage)
		api.POST("/conversations/:id/read", h.MarkRead)
		api.GET("/limits", h.Limits)
		api.POST("/uploads", h.Upload)
		api.GET("/uploads/download", h.DownloadURL)
	}

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	zlog.Fatal("server exited", zap.Error(server.ListenAndServe()))
}
