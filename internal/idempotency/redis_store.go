package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the minimal client surface used by RedisStore.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisStore reserves order-creation idempotency keys in Redis. The first
// request with a key claims it; replays get back the order id the first
// request created, so validation never re-runs against drifted prices.
type RedisStore struct {
	client    RedisClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore constructs a Redis-backed idempotency store.
func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: "order:idem:",
		ttl:       ttl,
	}
}

// Begin claims the key for orderID. If the key is already claimed it returns
// the claiming order's id with created=false.
func (s *RedisStore) Begin(ctx context.Context, key, orderID string) (string, bool, error) {
	redisKey := s.keyPrefix + key

	created, err := s.client.SetNX(ctx, redisKey, orderID, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if created {
		return orderID, true, nil
	}

	existing, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Key expired between SetNX and Get; claim it fresh.
		created, err = s.client.SetNX(ctx, redisKey, orderID, s.ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("reclaim idempotency key: %w", err)
		}
		if created {
			return orderID, true, nil
		}
		existing, err = s.client.Get(ctx, redisKey).Result()
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	return existing, false, nil
}

// Lua compare-and-delete so a claim is only released by the request that made
// it; a fresh claim by a concurrent request is never clobbered.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Abort releases the claim Begin made for orderID. Claims held by a
// different order id are left alone.
func (s *RedisStore) Abort(ctx context.Context, key, orderID string) error {
	if err := s.client.Eval(ctx, releaseScript, []string{s.keyPrefix + key}, orderID).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
