// Package nonce provides the anti-replay nonce stores.
package nonce

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is an atomic insert-if-absent set of (agent, nonce) pairs with expiry.
type Store interface {
	// Consume returns true when the pair was not present and has now been
	// recorded for ttl, false when it was already recorded.
	Consume(ctx context.Context, agentID, nonce string, ttl time.Duration) (bool, error)
	Close() error
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and configures a store.
type Config struct {
	Backend         string
	CleanupInterval time.Duration
	Redis           RedisConfig
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates the store named by cfg.Backend. The redis backend is pinged
// before it is returned.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(cfg.CleanupInterval), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return NewRedisStore(client, cfg.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown nonce backend %q", cfg.Backend)
	}
}

func key(agentID, nonce string) string {
	return agentID + ":" + nonce
}
