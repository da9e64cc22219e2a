package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const allowListKey = "relayguard:allowlist"

// redisStore keeps the allow-list in a single Redis key so multiple relay
// instances can share one registry. The value format matches the file store
// (JSON array of CIDR strings).
type redisStore struct {
	client *redis.Client
}

func newRedisStore(addr, password string, db int) (*redisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &redisStore{client: rdb}, nil
}

var _ Store = (*redisStore)(nil)

func (s *redisStore) Load() ([]string, error) {
	ctx := context.Background()
	val, err := s.client.Get(ctx, allowListKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var entries []string
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		return nil, fmt.Errorf("parse allow-list key %s: %w", allowListKey, err)
	}
	return entries, nil
}

func (s *redisStore) Save(entries []string) error {
	if entries == nil {
		entries = []string{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal allow-list: %w", err)
	}
	if err := s.client.Set(context.Background(), allowListKey, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
