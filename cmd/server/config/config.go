package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ResilienceConfig tunes the breaker and retry policy for one remote service.
type ResilienceConfig struct {
	FailMax      int
	ResetTimeout time.Duration
	MaxAttempts  int
	MinWait      time.Duration
	MaxWait      time.Duration
	CallTimeout  time.Duration
}

// DefaultResilience returns the tuning used when env leaves a knob unset.
func DefaultResilience() ResilienceConfig {
	return ResilienceConfig{
		FailMax:      5,
		ResetTimeout: 30 * time.Second,
		MaxAttempts:  3,
		MinWait:      time.Second,
		MaxWait:      10 * time.Second,
		CallTimeout:  5 * time.Second,
	}
}

// RemotesConfig holds the addresses and resilience tuning of the upstream
// identity and catalog services. Each remote gets its own knobs so a flaky
// catalog does not change how the identity service is called.
type RemotesConfig struct {
	IdentityAddr string
	CatalogAddr  string
	Identity     ResilienceConfig
	Catalog      ResilienceConfig
}

// RedisConfig holds connection settings for the idempotency store. URL empty
// means idempotency keys are not enforced.
type RedisConfig struct {
	URL                string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	IdempotencyTTL     time.Duration
	EnableOTel         bool
}

// GRPCConfig holds ingress rate limiting settings.
type GRPCConfig struct {
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// ObservabilityConfig holds the HTTP address for metrics and the order feed.
type ObservabilityConfig struct {
	Addr string
}

// LoadRemotes reads remote service addresses and resilience tuning from env.
func LoadRemotes() (RemotesConfig, error) {
	cfg := RemotesConfig{}

	var err error
	if cfg.IdentityAddr, err = requiredString("IDENTITY_GRPC_ADDR"); err != nil {
		return cfg, err
	}
	if cfg.CatalogAddr, err = requiredString("CATALOG_GRPC_ADDR"); err != nil {
		return cfg, err
	}
	if cfg.Identity, err = loadResilience("IDENTITY"); err != nil {
		return cfg, err
	}
	if cfg.Catalog, err = loadResilience("CATALOG"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadResilience(prefix string) (ResilienceConfig, error) {
	cfg := DefaultResilience()
	var err error

	if cfg.FailMax, err = intOr(prefix+"_BREAKER_FAIL_MAX", cfg.FailMax); err != nil {
		return cfg, err
	}
	if cfg.ResetTimeout, err = durationOr(prefix+"_BREAKER_RESET_TIMEOUT", cfg.ResetTimeout); err != nil {
		return cfg, err
	}
	if cfg.MaxAttempts, err = intOr(prefix+"_RETRY_ATTEMPTS", cfg.MaxAttempts); err != nil {
		return cfg, err
	}
	if cfg.MinWait, err = durationOr(prefix+"_RETRY_MIN_WAIT", cfg.MinWait); err != nil {
		return cfg, err
	}
	if cfg.MaxWait, err = durationOr(prefix+"_RETRY_MAX_WAIT", cfg.MaxWait); err != nil {
		return cfg, err
	}
	if cfg.CallTimeout, err = durationOr(prefix+"_CALL_TIMEOUT", cfg.CallTimeout); err != nil {
		return cfg, err
	}

	if cfg.MaxAttempts < 1 {
		return cfg, fmt.Errorf("%s_RETRY_ATTEMPTS must be >= 1", prefix)
	}
	if cfg.MaxWait < cfg.MinWait {
		return cfg, fmt.Errorf("%s_RETRY_MAX_WAIT must be >= %s_RETRY_MIN_WAIT", prefix, prefix)
	}
	return cfg, nil
}

// LoadRedis reads idempotency store settings from env.
func LoadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		URL: strings.TrimSpace(os.Getenv("REDIS_URL")),
	}

	var err error
	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, err
	}
	if cfg.HealthcheckTimeout, err = durationOr("REDIS_HEALTHCHECK_TIMEOUT", 2*time.Second); err != nil {
		return cfg, err
	}
	if cfg.IdempotencyTTL, err = durationOr("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadGRPC reads gRPC ingress rate limit settings from env.
func LoadGRPC() (GRPCConfig, error) {
	interval, err := requiredDuration("GRPC_RATE_LIMIT_INTERVAL")
	if err != nil {
		return GRPCConfig{}, err
	}
	burst, err := requiredInt("GRPC_RATE_LIMIT_BURST")
	if err != nil {
		return GRPCConfig{}, err
	}
	return GRPCConfig{
		RateLimitInterval: interval,
		RateLimitBurst:    burst,
	}, nil
}

// LoadObservability reads the metrics HTTP server address from env.
func LoadObservability() (ObservabilityConfig, error) {
	addr, err := requiredString("OBS_ADDR")
	if err != nil {
		return ObservabilityConfig{}, err
	}
	return ObservabilityConfig{Addr: addr}, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}

func durationOr(name string, def time.Duration) (time.Duration, error) {
	val, err := optionalDuration(name)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return def, nil
	}
	return *val, nil
}

func intOr(name string, def int) (int, error) {
	val, err := optionalInt(name)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return def, nil
	}
	return *val, nil
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}

func requiredInt(name string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func requiredDuration(name string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}
