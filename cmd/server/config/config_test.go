package config

import (
	"testing"
	"time"
)

func clearRemoteEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"IDENTITY_GRPC_ADDR", "CATALOG_GRPC_ADDR",
		"IDENTITY_BREAKER_FAIL_MAX", "IDENTITY_BREAKER_RESET_TIMEOUT",
		"IDENTITY_RETRY_ATTEMPTS", "IDENTITY_RETRY_MIN_WAIT", "IDENTITY_RETRY_MAX_WAIT",
		"IDENTITY_CALL_TIMEOUT",
		"CATALOG_BREAKER_FAIL_MAX", "CATALOG_BREAKER_RESET_TIMEOUT",
		"CATALOG_RETRY_ATTEMPTS", "CATALOG_RETRY_MIN_WAIT", "CATALOG_RETRY_MAX_WAIT",
		"CATALOG_CALL_TIMEOUT",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadRemotes_RequiresAddresses(t *testing.T) {
	clearRemoteEnv(t)

	if _, err := LoadRemotes(); err == nil {
		t.Fatal("expected error when IDENTITY_GRPC_ADDR is missing")
	}

	t.Setenv("IDENTITY_GRPC_ADDR", "identity:50051")
	if _, err := LoadRemotes(); err == nil {
		t.Fatal("expected error when CATALOG_GRPC_ADDR is missing")
	}
}

func TestLoadRemotes_Defaults(t *testing.T) {
	clearRemoteEnv(t)
	t.Setenv("IDENTITY_GRPC_ADDR", "identity:50051")
	t.Setenv("CATALOG_GRPC_ADDR", "catalog:50051")

	cfg, err := LoadRemotes()
	if err != nil {
		t.Fatalf("LoadRemotes: %v", err)
	}

	want := DefaultResilience()
	if cfg.Identity != want {
		t.Fatalf("expected identity defaults %+v, got %+v", want, cfg.Identity)
	}
	if cfg.Catalog != want {
		t.Fatalf("expected catalog defaults %+v, got %+v", want, cfg.Catalog)
	}
	if want.FailMax != 5 || want.ResetTimeout != 30*time.Second {
		t.Fatalf("unexpected breaker defaults: %+v", want)
	}
	if want.MaxAttempts != 3 || want.MinWait != time.Second || want.MaxWait != 10*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", want)
	}
}

func TestLoadRemotes_PerServiceOverrides(t *testing.T) {
	clearRemoteEnv(t)
	t.Setenv("IDENTITY_GRPC_ADDR", "identity:50051")
	t.Setenv("CATALOG_GRPC_ADDR", "catalog:50051")
	t.Setenv("CATALOG_BREAKER_FAIL_MAX", "2")
	t.Setenv("CATALOG_RETRY_ATTEMPTS", "5")
	t.Setenv("CATALOG_RETRY_MAX_WAIT", "20s")

	cfg, err := LoadRemotes()
	if err != nil {
		t.Fatalf("LoadRemotes: %v", err)
	}

	if cfg.Catalog.FailMax != 2 || cfg.Catalog.MaxAttempts != 5 || cfg.Catalog.MaxWait != 20*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg.Catalog)
	}
	// Overriding the catalog must leave identity on defaults.
	if cfg.Identity != DefaultResilience() {
		t.Fatalf("expected identity defaults, got %+v", cfg.Identity)
	}
}

func TestLoadRemotes_RejectsInvalidTuning(t *testing.T) {
	clearRemoteEnv(t)
	t.Setenv("IDENTITY_GRPC_ADDR", "identity:50051")
	t.Setenv("CATALOG_GRPC_ADDR", "catalog:50051")
	t.Setenv("IDENTITY_RETRY_ATTEMPTS", "0")

	if _, err := LoadRemotes(); err == nil {
		t.Fatal("expected error for zero retry attempts")
	}

	t.Setenv("IDENTITY_RETRY_ATTEMPTS", "3")
	t.Setenv("IDENTITY_RETRY_MIN_WAIT", "10s")
	t.Setenv("IDENTITY_RETRY_MAX_WAIT", "1s")
	if _, err := LoadRemotes(); err == nil {
		t.Fatal("expected error when max wait is below min wait")
	}
}

func TestLoadRedis_DefaultsWithoutURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "")
	t.Setenv("IDEMPOTENCY_TTL", "")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("LoadRedis: %v", err)
	}
	if cfg.URL != "" {
		t.Fatalf("expected empty URL, got %q", cfg.URL)
	}
	if cfg.HealthcheckTimeout != 2*time.Second {
		t.Fatalf("expected 2s healthcheck, got %v", cfg.HealthcheckTimeout)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("expected 24h TTL, got %v", cfg.IdempotencyTTL)
	}
}

func TestLoadRedis_ParsesOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_DIAL_TIMEOUT", "3s")
	t.Setenv("REDIS_POOL_SIZE", "10")
	t.Setenv("IDEMPOTENCY_TTL", "1h")
	t.Setenv("REDIS_OTEL", "true")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("LoadRedis: %v", err)
	}
	if cfg.DialTimeout == nil || *cfg.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected dial timeout: %v", cfg.DialTimeout)
	}
	if cfg.PoolSize == nil || *cfg.PoolSize != 10 {
		t.Fatalf("unexpected pool size: %v", cfg.PoolSize)
	}
	if cfg.IdempotencyTTL != time.Hour {
		t.Fatalf("unexpected TTL: %v", cfg.IdempotencyTTL)
	}
	if !cfg.EnableOTel {
		t.Fatal("expected OTel enabled")
	}
}

func TestLoadGRPC_Required(t *testing.T) {
	t.Setenv("GRPC_RATE_LIMIT_INTERVAL", "")
	t.Setenv("GRPC_RATE_LIMIT_BURST", "")

	if _, err := LoadGRPC(); err == nil {
		t.Fatal("expected error when rate limit settings are missing")
	}

	t.Setenv("GRPC_RATE_LIMIT_INTERVAL", "100ms")
	t.Setenv("GRPC_RATE_LIMIT_BURST", "5")
	cfg, err := LoadGRPC()
	if err != nil {
		t.Fatalf("LoadGRPC: %v", err)
	}
	if cfg.RateLimitInterval != 100*time.Millisecond || cfg.RateLimitBurst != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadObservability_Required(t *testing.T) {
	t.Setenv("OBS_ADDR", "")
	if _, err := LoadObservability(); err == nil {
		t.Fatal("expected error when OBS_ADDR is missing")
	}

	t.Setenv("OBS_ADDR", ":8081")
	cfg, err := LoadObservability()
	if err != nil {
		t.Fatalf("LoadObservability: %v", err)
	}
	if cfg.Addr != ":8081" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
}
