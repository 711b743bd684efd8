package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"astroconnect/backend/internal/api/handler"
	"astroconnect/backend/internal/chatsync"
	"astroconnect/backend/internal/config"
	"astroconnect/backend/internal/notify"
	"astroconnect/backend/internal/oracle"
	"astroconnect/backend/internal/payment"
	"astroconnect/backend/internal/storage"
	"astroconnect/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupRedis(cfg config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("WARNING: Redis unavailable (%v); cross-process signals disabled", err)
		return nil
	}
	return rdb
}

func setupKV(cfg config.Config, rdb *redis.Client) storage.KV {
	switch cfg.StorageBackend {
	case "memory":
		log.Println("WARNING: Using in-memory storage; conversations will not survive a restart")
		return storage.NewMemoryKV()
	case "redis":
		if rdb == nil {
			log.Fatal("STORAGE_BACKEND=redis but Redis is unreachable")
		}
		return storage.NewRedisKV(rdb)
	default:
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect PostgreSQL: %v", err)
		}
		kv, err := storage.NewGormKV(db)
		if err != nil {
			log.Fatalf("Failed to run records migration: %v", err)
		}
		return kv
	}
}

func main() {
	log.Println("Starting AstroConnect Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	rdb := setupRedis(cfg)
	store := storage.NewService(setupKV(cfg, rdb))

	broker := notify.NewBroker(store, rdb)
	broker.StartListener()
	defer broker.Close()

	// The concrete gateway is an external decision; the mock provider
	// confirms every order and is what local development runs on.
	provider := &payment.MockProvider{}
	payments, err := payment.NewCoordinator(provider, store, broker, cfg.PaymentAmount)
	if err != nil {
		log.Fatalf("Failed to wire payment coordinator: %v", err)
	}

	var oracleClient *oracle.Client
	if cfg.OpenAIAPIKey != "" {
		oracleClient = oracle.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	} else {
		log.Println("INFO: OPENAI_API_KEY not set; AI reply drafting disabled")
	}

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		notifier, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatalf("Failed to start Telegram notifier: %v", err)
		}
		watcher := chatsync.NewInboxWatcher(store, broker, cfg.PollInterval, notifier.HandleCount)
		go watcher.Run(context.Background())
		defer watcher.Stop()
	}

	r := gin.Default()
	h := handler.NewHandler(store, broker, payments, oracleClient, cfg.JWTSecret)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
