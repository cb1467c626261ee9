package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	DBDSN               string
	Environment         string
	LogLevel            string
	HTTPAddr            string
	TelegramToken       string
	Storage             string
	MigrationsDir       string
	Timezone            *time.Location
	ReopenSlotsOnReject bool
	SweepInterval       time.Duration
	InitialCoins        int
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:         os.Getenv("DB_DSN"),
		Environment:   getEnv("ENV", "development"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		Storage:       getEnv("STORAGE", StoragePostgres),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
	}

	tz, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	if cfg.ReopenSlotsOnReject, err = strconv.ParseBool(getEnv("REOPEN_SLOTS_ON_REJECT", "false")); err != nil {
		return nil, fmt.Errorf("REOPEN_SLOTS_ON_REJECT: %w", err)
	}
	if cfg.SweepInterval, err = time.ParseDuration(getEnv("SWEEP_INTERVAL", "1m")); err != nil {
		return nil, fmt.Errorf("SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if cfg.InitialCoins, err = strconv.Atoi(getEnv("INITIAL_COINS", "10")); err != nil {
		return nil, fmt.Errorf("INITIAL_COINS: %w", err)
	}

	// Проверяем обязательные поля
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
