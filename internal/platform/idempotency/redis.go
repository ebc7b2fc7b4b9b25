package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idempotency:"

// RedisStore keeps reservations in Redis so retries are recognised across instances.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	return &RedisStore{client: client}, nil
}

// Reserve claims key with SETNX. An existing entry is classified against fingerprint.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Record, error) {
	pending := Record{Fingerprint: fingerprint, CreatedAt: now.UTC()}
	payload, err := json.Marshal(pending)
	if err != nil {
		return StatePending, Record{}, fmt.Errorf("idempotency: encode reservation: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey(key), payload, ttl).Result()
	if err != nil {
		return StatePending, Record{}, fmt.Errorf("idempotency: reserve: %w", err)
	}
	if ok {
		return StateNew, pending, nil
	}

	existing, err := s.load(ctx, key)
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as held and let the client retry
		return StatePending, Record{}, nil
	}
	if err != nil {
		return StatePending, Record{}, err
	}
	state, err := classify(existing, fingerprint)
	return state, existing, err
}

// Complete stores the final response under key.
func (s *RedisStore) Complete(ctx context.Context, key string, record Record, ttl time.Duration) error {
	record.Completed = true
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("idempotency: encode record: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: complete: %w", err)
	}
	return nil
}

// Release drops a pending reservation owned by fingerprint so the request may be retried.
func (s *RedisStore) Release(ctx context.Context, key, fingerprint string) error {
	existing, err := s.load(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.Fingerprint != fingerprint || existing.Completed {
		return nil
	}
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, key string) (Record, error) {
	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("idempotency: load: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, nil
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}
