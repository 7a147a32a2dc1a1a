package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Environment string
	LogLevel    string
	DBDSN       string
	Store       string
	SeedFile    string // JSON со справочниками для STORE=memory

	HTTPHost  string
	HTTPPort  int
	JWTSecret string
	Timezone  *time.Location

	BookingMaxRetries uint64
	SweepInterval     time.Duration
	NotifyBuffer      int

	TelegramToken  string
	TelegramChatID int64
	NATSURL        string
	NATSSubject    string
}

// Load читает конфигурацию из окружения, предварительно подгрузив .env
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv собирает конфиг из функции чтения переменных
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Environment:   withDefault(getenv("ENV"), "development"),
		LogLevel:      getenv("LOG_LEVEL"),
		DBDSN:         getenv("DB_DSN"),
		Store:         withDefault(getenv("STORE"), StorePostgres),
		SeedFile:      getenv("SEED_FILE"),
		HTTPHost:      withDefault(getenv("HTTP_HOST"), "0.0.0.0"),
		JWTSecret:     getenv("JWT_SECRET"),
		TelegramToken: getenv("TELEGRAM_TOKEN"),
		NATSURL:       getenv("NATS_URL"),
		NATSSubject:   withDefault(getenv("NATS_SUBJECT"), "review_scheduler.activity"),
	}

	var err error

	if cfg.HTTPPort, err = intVar(getenv, "HTTP_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.NotifyBuffer, err = intVar(getenv, "NOTIFY_BUFFER", 256); err != nil {
		return nil, err
	}

	retries, err := intVar(getenv, "BOOKING_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		return nil, fmt.Errorf("BOOKING_MAX_RETRIES must not be negative")
	}
	cfg.BookingMaxRetries = uint64(retries)

	if cfg.SweepInterval, err = durationVar(getenv, "SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	if cfg.Timezone, err = time.LoadLocation(withDefault(getenv("TIMEZONE"), "UTC")); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if raw := getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}

	return nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationVar(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
