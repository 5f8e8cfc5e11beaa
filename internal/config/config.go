// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Task store backends.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds all runtime configuration for the import service.
type Config struct {
	Port           string
	GRPCPort       string
	DatabaseURL    string
	RedisURL       string
	TaskStore      string        // "redis" or "memory"
	TaskTTL        time.Duration // retention window of staged extraction results
	TaskMaxEntries int           // memory backend only
	SweepSchedule  string        // cron spec for the memory backend sweep
	AutoMigrate    bool
	LogLevel       string
	LogFormat      string // "json" or "text"
}

// Load reads .env (if present) and the environment and returns a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("IMPORT_PORT", "8083")
	v.SetDefault("GRPC_PORT", "9093")
	v.SetDefault("TASK_STORE", StoreRedis)
	v.SetDefault("TASK_TTL", time.Hour)
	v.SetDefault("TASK_MAX_ENTRIES", 256)
	v.SetDefault("SWEEP_SCHEDULE", "@every 5m")
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetString("IMPORT_PORT"),
		GRPCPort:       v.GetString("GRPC_PORT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisURL:       v.GetString("REDIS_URL"),
		TaskStore:      v.GetString("TASK_STORE"),
		TaskTTL:        v.GetDuration("TASK_TTL"),
		TaskMaxEntries: v.GetInt("TASK_MAX_ENTRIES"),
		SweepSchedule:  v.GetString("SWEEP_SCHEDULE"),
		AutoMigrate:    v.GetBool("AUTO_MIGRATE"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.TaskStore {
	case StoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when TASK_STORE=%s", StoreRedis)
		}
	case StoreMemory:
		if cfg.TaskMaxEntries < 1 {
			return nil, fmt.Errorf("TASK_MAX_ENTRIES must be a positive integer, got %d", cfg.TaskMaxEntries)
		}
	default:
		return nil, fmt.Errorf("TASK_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, cfg.TaskStore)
	}

	if cfg.TaskTTL <= 0 {
		return nil, fmt.Errorf("TASK_TTL must be a positive duration, got %s", cfg.TaskTTL)
	}

	return cfg, nil
}
