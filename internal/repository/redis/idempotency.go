package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockValue    = "LOCK"
	resultPrefix = "RES:"
)

type ClaimState int

const (
	// Claimed means the caller owns the key and must SaveResult or Release it.
	Claimed ClaimState = iota
	// Done means a result was already recorded under the key.
	Done
	// InFlight means another caller holds the key and has not finished.
	InFlight
)

// IdempotencyStore records one result per key. It backs the webhook ledger.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Claim looks up key and takes the lock when nothing is recorded yet.
func (s *IdempotencyStore) Claim(ctx context.Context, key string, lockTTL time.Duration) (ClaimState, string, error) {
	if res, ok, err := s.GetResult(ctx, key); err != nil || ok {
		return Done, res, err
	}

	locked, err := s.AcquireLock(ctx, key, lockTTL)
	if err != nil {
		return InFlight, "", err
	}
	if locked {
		return Claimed, "", nil
	}

	// lost the race; the winner may have finished already
	if res, ok, err := s.GetResult(ctx, key); err != nil || ok {
		return Done, res, err
	}

	return InFlight, "", nil
}

func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, lockValue, lockTTL).Result()
}

func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, payload string) error {
	return s.rdb.Set(ctx, key, resultPrefix+payload, s.ttl).Err()
}

func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if strings.HasPrefix(v, resultPrefix) {
		return strings.TrimPrefix(v, resultPrefix), true, nil
	}

	return "", false, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
