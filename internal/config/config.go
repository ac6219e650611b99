package config

import (
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv       string
	DBPath       string
	DBDriver     string
	HTTPPort     int
	RedisAddr    string
	CacheEnabled bool

	// External subject API (per-year faculty/evaluation records).
	APIBaseURL  string
	APISemester string
	APICacheDir string

	PlanCode  string
	OutputDir string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	portStr := getEnv("HTTP_PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 8080
	}

	cacheStr := getEnv("CACHE_ENABLED", "false")
	cacheEnabled, err := strconv.ParseBool(cacheStr)
	if err != nil {
		cacheEnabled = false
	}

	return &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		DBPath:       getEnv("DB_PATH", "./data/academic_data.db"),
		DBDriver:     getEnv("DB_DRIVER", "sqlite3"),
		HTTPPort:     port,
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		CacheEnabled: cacheEnabled,
		APIBaseURL:   getEnv("API_BASE_URL", "https://www.upm.es/comun_gauss/publico/api"),
		APISemester:  getEnv("API_SEMESTER", "2S"),
		APICacheDir:  getEnv("API_CACHE_DIR", "./api_cache"),
		PlanCode:     getEnv("PLAN_CODE", "10II"),
		OutputDir:    getEnv("OUTPUT_DIR", "./output"),
	}
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
