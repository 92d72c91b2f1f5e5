package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/micic-mihajlo/semantic-cache/config"
)

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("REDIS_URL", "redis://localhost:6380")
	os.Setenv("ENV", "test")
	os.Setenv("BACKEND_MODEL", "gpt-5-mini")
	defer func() {
		os.Unsetenv("REDIS_URL")
		os.Unsetenv("ENV")
		os.Unsetenv("BACKEND_MODEL")
	}()

	cfg := config.Load()
	if cfg.RedisURL != "redis://localhost:6380" {
		t.Fatalf("expected REDIS_URL to be loaded, got %s", cfg.RedisURL)
	}
	if cfg.Env != "test" {
		t.Fatalf("expected ENV=test, got %s", cfg.Env)
	}
	if cfg.BackendModel != "gpt-5-mini" {
		t.Fatalf("expected BACKEND_MODEL to be loaded, got %s", cfg.BackendModel)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("REDIS_URL")
	os.Unsetenv("EMBEDDING_DIM")

	cfg := config.Load()
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Fatalf("expected default REDIS_URL, got %s", cfg.RedisURL)
	}
	if cfg.EmbeddingDim != 384 {
		t.Fatalf("expected default EmbeddingDim 384, got %d", cfg.EmbeddingDim)
	}
	if cfg.StoreBreakerRecoveryTimeout != 10*time.Second {
		t.Fatalf("expected default store breaker recovery of 10s, got %s", cfg.StoreBreakerRecoveryTimeout)
	}
}
