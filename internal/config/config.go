// Package config loads runtime settings from the environment (and an optional
// .env file) and provides the defaults used when a variable is not set.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultHTTPAddr   = ":8080"
	DefaultRedisAddr  = "localhost:6379"
	DefaultAITimeout  = 30 * time.Second
	DefaultLocale     = "en"
	DefaultSendBuffer = 256
)

// Config holds every setting the server and the admin CLI need.
type Config struct {
	HTTPAddr       string
	DatabaseDSN    string
	AllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LLMAPIURL string
	LLMModel  string
	AITimeout time.Duration
	Locale    string

	// AuthSecret is the HMAC key of the upstream gate. Empty disables verification.
	AuthSecret string

	SendBuffer int

	TelegramBotToken string
	// TelegramBridges maps a chat room id to the Telegram chat it is mirrored to.
	TelegramBridges map[string]int64
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", DefaultHTTPAddr),
		DatabaseDSN:      getEnv("DATABASE_DSN", "host=localhost user=user password=password dbname=projecthub port=5432 sslmode=disable"),
		AllowedOrigins:   splitList(os.Getenv("ALLOWED_ORIGINS")),
		RedisAddr:        getEnv("REDIS_ADDR", DefaultRedisAddr),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		LLMAPIURL:        strings.TrimSpace(os.Getenv("LLM_API_URL")),
		LLMModel:         strings.TrimSpace(os.Getenv("LLM_MODEL")),
		AITimeout:        DefaultAITimeout,
		Locale:           getEnv("LOCALE", DefaultLocale),
		AuthSecret:       os.Getenv("AUTH_SECRET"),
		SendBuffer:       DefaultSendBuffer,
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramBridges:  map[string]int64{},
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		cfg.RedisDB = db
	}

	if v := os.Getenv("AI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AI_TIMEOUT %q: %w", v, err)
		}
		if d > 0 {
			cfg.AITimeout = d
		}
	}

	if v := os.Getenv("SEND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SEND_BUFFER %q: %w", v, err)
		}
		if n > 0 {
			cfg.SendBuffer = n
		}
	}

	bridges, err := ParseBridges(os.Getenv("TELEGRAM_BRIDGES"))
	if err != nil {
		return nil, err
	}
	cfg.TelegramBridges = bridges

	return cfg, nil
}

// ParseBridges parses "room:chat,room:chat" into a room -> Telegram chat map.
func ParseBridges(raw string) (map[string]int64, error) {
	bridges := make(map[string]int64)
	for _, item := range splitList(raw) {
		room, chat, ok := strings.Cut(item, ":")
		if !ok || room == "" {
			return nil, fmt.Errorf("invalid TELEGRAM_BRIDGES entry %q", item)
		}
		chatID, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram chat id in %q: %w", item, err)
		}
		bridges[room] = chatID
	}
	return bridges, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
