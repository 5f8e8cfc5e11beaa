// Package taskstore holds extraction results keyed by an opaque task id
// until the operator reviews them.
//
// Entries are write-once and expire after a retention window. An id that
// was never written and one that has expired are indistinguishable: both
// yield ErrNotFound.
package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown, empty and expired task ids.
	ErrNotFound = errors.New("task results not found")
	// ErrExists is returned when a live task id is written twice.
	ErrExists = errors.New("task results already stored")
	// ErrInvalidID is returned when Put is called with an empty task id.
	ErrInvalidID = errors.New("task id is required")
)

// Store is a task-id keyed result store.
type Store[T any] interface {
	Put(ctx context.Context, taskID string, value T) error
	Get(ctx context.Context, taskID string) (T, error)
}

func encode[T any](value T) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode task results: %w", err)
	}
	return b, nil
}

func decode[T any](b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode task results: %w", err)
	}
	return v, nil
}
