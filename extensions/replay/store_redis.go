package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is the part of a redis client the store uses.
// *redis.Client and *redis.ClusterClient satisfy it.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore is a Store shared by every gateway instance pointing at the
// same Redis.
type RedisStore struct {
	client Client
	ttl    time.Duration
}

// NewRedisStore creates a store that remembers claims for ttl.
func NewRedisStore(client Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Claim uses SET NX so concurrent gateways race on a single key.
func (s *RedisStore) Claim(ctx context.Context, txHash string) (bool, error) {
	ok, err := s.client.SetNX(ctx, Key(txHash), time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim: %w", err)
	}
	return ok, nil
}

// Release deletes the claim key.
func (s *RedisStore) Release(ctx context.Context, txHash string) error {
	if err := s.client.Del(ctx, Key(txHash)).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

// OpenRedis parses a redis:// URL, connects and pings.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 800 * time.Millisecond
	opts.ReadTimeout = 500 * time.Millisecond
	opts.WriteTimeout = 500 * time.Millisecond

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

var _ Store = (*RedisStore)(nil)
