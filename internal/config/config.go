package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"astroconnect/backend/internal/chatsync"
	"astroconnect/backend/internal/payment"
)

// Config collects everything main needs from the environment. Load the
// .env file with godotenv before calling Load.
type Config struct {
	ListenAddr  string
	// StorageBackend selects where conversation records live:
	// "postgres" (default), "redis" or "memory".
	StorageBackend string
	PostgresDSN    string
	RedisAddr      string
	RedisPass      string

	JWTSecret string

	PaymentAmount int64

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	TelegramBotToken string
	TelegramChatID   int64

	PollInterval time.Duration
}

// Load reads the environment, falling back to development defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		StorageBackend:   getenv("STORAGE_BACKEND", "postgres"),
		PostgresDSN:      getenv("POSTGRES_DSN", "host=localhost user=user password=password dbname=astroconnectdb port=5432 sslmode=disable"),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPass:        os.Getenv("REDIS_PASSWORD"),
		JWTSecret:        getenv("JWT_SECRET", "dev-only-secret"),
		PaymentAmount:    payment.DefaultAmount,
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		PollInterval:     chatsync.DefaultInterval,
	}

	if raw := os.Getenv("PAYMENT_AMOUNT"); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || amount <= 0 {
			log.Printf("WARNING: Ignoring invalid PAYMENT_AMOUNT %q", raw)
		} else {
			cfg.PaymentAmount = amount
		}
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("WARNING: Ignoring invalid TELEGRAM_CHAT_ID %q", raw)
		} else {
			cfg.TelegramChatID = chatID
		}
	}
	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			log.Printf("WARNING: Ignoring invalid POLL_INTERVAL %q", raw)
		} else {
			cfg.PollInterval = interval
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
