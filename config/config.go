package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration values.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	// Vector store (Redis + RediSearch)
	RedisURL        string
	EmbeddingDim    int
	EvictionPolicy  string

	// Backend (opaque LLM generator)
	BackendModel   string
	BackendBaseURL string
	BackendAPIKey  string
	BackendTimeout time.Duration

	// Embedding
	EmbeddingWorkers int

	// Circuit breakers
	StoreBreakerFailureThreshold   int
	StoreBreakerRecoveryTimeout    time.Duration
	BackendBreakerFailureThreshold int
	BackendBreakerRecoveryTimeout  time.Duration

	// Body limits
	MaxBodyBytes int64

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("CACHE_GRACEFUL_TIMEOUT_SEC", 15)
	backendTimeoutSec := getEnvInt("BACKEND_TIMEOUT_SEC", 30)

	cfg := &Config{
		Addr:            getEnv("CACHE_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		EmbeddingDim:    getEnvInt("EMBEDDING_DIM", 384),
		EvictionPolicy:  getEnv("REDIS_EVICTION_POLICY", "volatile-ttl"),
		BackendModel:    getEnv("BACKEND_MODEL", "gpt-4o-mini"),
		BackendBaseURL:  getEnv("BACKEND_BASE_URL", "https://api.openai.com/v1"),
		BackendAPIKey:   getEnv("BACKEND_API_KEY", ""),
		BackendTimeout:  time.Duration(backendTimeoutSec) * time.Second,

		EmbeddingWorkers: getEnvInt("EMBEDDING_WORKERS", 4),

		StoreBreakerFailureThreshold:   getEnvInt("STORE_BREAKER_FAILURE_THRESHOLD", 3),
		StoreBreakerRecoveryTimeout:    time.Duration(getEnvInt("STORE_BREAKER_RECOVERY_TIMEOUT_SEC", 10)) * time.Second,
		BackendBreakerFailureThreshold: getEnvInt("BACKEND_BREAKER_FAILURE_THRESHOLD", 3),
		BackendBreakerRecoveryTimeout:  time.Duration(getEnvInt("BACKEND_BREAKER_RECOVERY_TIMEOUT_SEC", 30)) * time.Second,

		MaxBodyBytes: int64(getEnvInt("CACHE_MAX_BODY_BYTES", 64*1024)),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
