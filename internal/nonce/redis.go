package nonce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces nonce keys in a shared redis.
const DefaultKeyPrefix = "trustbook:nonce:v1:"

// RedisStore keeps nonces in redis so every server replica shares one
// replay window. SET NX with an expiry makes Consume atomic.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	closeOnce sync.Once
}

// NewRedisStore wraps client. An empty keyPrefix selects DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Consume sets the key only if absent.
func (r *RedisStore) Consume(ctx context.Context, agentID, nonce string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.keyPrefix+key(agentID, nonce), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record nonce: %w", err)
	}
	return ok, nil
}

// Close closes the redis connection. Safe to call multiple times.
func (r *RedisStore) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.client.Close()
	})
	return err
}
