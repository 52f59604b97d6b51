// Package cache holds the Redis-backed run lock that keeps two backfills of the
// same season and resource kind from running at once.
package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrLockHeld is returned when another run owns the lock
var ErrLockHeld = errors.New("lock held by another run")

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config holds Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache wraps a Redis client
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return &RedisCache{client: client}, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// LockKey returns the run lock key for a resource kind and season
func LockKey(kind, season string) string {
	return fmt.Sprintf("backfill:lock:%s:%s", kind, season)
}

// Lock is a held run lock
type Lock struct {
	cache *RedisCache
	key   string
	token string
}

// Key returns the locked key
func (l *Lock) Key() string {
	return l.key
}

// AcquireLock takes the lock at key for ttl. ErrLockHeld means another run has it.
func (c *RedisCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrLockHeld)
	}

	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Run lock acquired")
	return &Lock{cache: c, key: key, token: token}, nil
}

// Release frees the lock if it is still ours. An expired or stolen lock is not an error.
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.cache.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if n == 0 {
		log.Warn().Str("key", l.key).Msg("Run lock expired before release")
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
