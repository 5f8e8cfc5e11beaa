package taskstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Task kinds staged by the extractor.
const (
	KindSchedule  = "schedule"
	KindDocuments = "documents"
)

// Key prefixes of the two task kinds.
const (
	PrefixSchedule  = "import:schedule:"
	PrefixDocuments = "import:documents:"
)

// Redis is a Store backed by Redis string keys with a TTL. Write-once
// semantics come from SET NX, expiry from the key TTL.
type Redis[T any] struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis returns a Redis store writing keys under prefix.
func NewRedis[T any](rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis[T] {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis[T]{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Put stores value under taskID unless the key already exists.
func (r *Redis[T]) Put(ctx context.Context, taskID string, value T) error {
	if taskID == "" {
		return ErrInvalidID
	}
	payload, err := encode(value)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, r.prefix+taskID, payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis SETNX %s: %w", r.prefix+taskID, err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

// Get loads and decodes the value stored under taskID.
func (r *Redis[T]) Get(ctx context.Context, taskID string) (T, error) {
	var zero T
	if taskID == "" {
		return zero, ErrNotFound
	}
	payload, err := r.rdb.Get(ctx, r.prefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("redis GET %s: %w", r.prefix+taskID, err)
	}
	return decode[T](payload)
}
