package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix        = "agriloan:lock:"
	idempotencyKeyPrefix = "agriloan:payment:"
	pendingMarker        = "pending"
)

// deletes the key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisPaymentLock struct {
	client *redis.Client
}

func NewRedisPaymentLock(client *redis.Client) PaymentLock {
	return &redisPaymentLock{client: client}
}

func (l *redisPaymentLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", customError.WrapCacheError(err)
	}
	if !ok {
		return "", customError.WrapPaymentInProgress(key)
	}
	return token, nil
}

func (l *redisPaymentLock) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + key}, token).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

type redisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) IdempotencyStore {
	return &redisIdempotencyStore{client: client}
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, customError.WrapCacheError(err)
	}
	return ok, nil
}

func (s *redisIdempotencyStore) Complete(ctx context.Context, key string, result *domain.AllocationResult, ttl time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, idempotencyKeyPrefix+key, payload, ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (s *redisIdempotencyStore) Lookup(ctx context.Context, key string) (*domain.AllocationResult, error) {
	val, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}
	if val == pendingMarker {
		return nil, nil
	}

	var result domain.AllocationResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}
