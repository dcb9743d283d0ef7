package mfa

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisCooldownPrefix = "artkit:mfa:cooldown:"

// RedisCooldownStore is a CooldownStore backed by redis key TTLs, for
// deployments where several app instances must share cooldown state.
type RedisCooldownStore struct {
	client redis.UniversalClient
}

// NewRedisCooldownStore creates a redis-backed cooldown store.
func NewRedisCooldownStore(client redis.UniversalClient) *RedisCooldownStore {
	return &RedisCooldownStore{client: client}
}

func (s *RedisCooldownStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisCooldownPrefix+key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to arm cooldown: %w", err)
	}
	return nil
}

func (s *RedisCooldownStore) Remaining(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, redisCooldownPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read cooldown: %w", err)
	}
	// PTTL reports negative durations for missing keys and keys
	// without expiry.
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisCooldownStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisCooldownPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to clear cooldown: %w", err)
	}
	return nil
}

var _ CooldownStore = (*RedisCooldownStore)(nil)
