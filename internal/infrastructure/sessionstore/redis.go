package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis. Suitable for deployments with
// more than one storefront instance behind a load balancer, where the
// session that initiated a checkout may not be the one that handles the
// return from the payment gateway.
type RedisStore struct {
	client     *redis.Client
	keyPrefix  string
	sessionTTL time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host       string
	Port       int
	Password   string
	DB         int
	SessionTTL time.Duration
}

// NewRedisStore creates a Redis-backed session store and verifies the
// connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	return &RedisStore{
		client:     client,
		keyPrefix:  "storefront:session:",
		sessionTTL: ttl,
	}, nil
}

// NewRedisStoreWithClient creates a store with an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, sessionTTL time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "storefront:session:"
	}
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, sessionTTL: sessionTTL}
}

func (s *RedisStore) key(sid, key string) string {
	return s.keyPrefix + sid + ":" + key
}

// Get returns the value for the key within the session.
func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(sid, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session key: %w", err)
	}
	return val, true, nil
}

// Set stores the value for the key, refreshing the session TTL.
func (s *RedisStore) Set(ctx context.Context, sid, key, value string) error {
	if err := s.client.Set(ctx, s.key(sid, key), value, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to write session key: %w", err)
	}
	return nil
}

// Delete removes the key from the session.
func (s *RedisStore) Delete(ctx context.Context, sid, key string) error {
	if err := s.client.Del(ctx, s.key(sid, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete session key: %w", err)
	}
	return nil
}

// SetNX stores the value only if the key is absent, atomically.
func (s *RedisStore) SetNX(ctx context.Context, sid, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.sessionTTL
	}
	ok, err := s.client.SetNX(ctx, s.key(sid, key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set session marker: %w", err)
	}
	return ok, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
