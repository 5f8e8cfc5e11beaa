package taskstore

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Memory is an in-process Store bounded by a retention window and an entry
// count. When the count is exceeded the oldest entry is evicted.
type Memory[T any] struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	ttl     time.Duration
	max     int
	order   *list.List               // oldest at back
	entries map[string]*list.Element // taskID -> element holding *memEntry
}

type memEntry struct {
	taskID  string
	payload []byte
	expires time.Time
}

// NewMemory returns a Memory store. Non-positive limits fall back to one
// hour and 256 entries.
func NewMemory[T any](clock clockwork.Clock, ttl time.Duration, maxEntries int) *Memory[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Memory[T]{
		clock:   clock,
		ttl:     ttl,
		max:     maxEntries,
		order:   list.New(),
		entries: make(map[string]*list.Element, maxEntries),
	}
}

// Put stores value under taskID. A live entry is never overwritten.
func (m *Memory[T]) Put(_ context.Context, taskID string, value T) error {
	if taskID == "" {
		return ErrInvalidID
	}
	payload, err := encode(value)
	if err != nil {
		return err
	}

	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[taskID]; ok {
		if now.Before(el.Value.(*memEntry).expires) {
			return ErrExists
		}
		m.removeLocked(el)
	}

	el := m.order.PushFront(&memEntry{taskID: taskID, payload: payload, expires: now.Add(m.ttl)})
	m.entries[taskID] = el

	for m.order.Len() > m.max {
		m.removeLocked(m.order.Back())
	}
	return nil
}

// Get returns a private copy of the value stored under taskID.
func (m *Memory[T]) Get(_ context.Context, taskID string) (T, error) {
	var zero T
	if taskID == "" {
		return zero, ErrNotFound
	}

	m.mu.RLock()
	el, ok := m.entries[taskID]
	var e memEntry
	if ok {
		e = *el.Value.(*memEntry)
	}
	m.mu.RUnlock()

	if !ok || !m.clock.Now().Before(e.expires) {
		return zero, ErrNotFound
	}
	return decode[T](e.payload)
}

// Sweep drops every expired entry and returns how many were removed.
func (m *Memory[T]) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*memEntry).expires) {
			m.removeLocked(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len reports the number of entries held, expired ones included until swept.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.order.Len()
}

func (m *Memory[T]) removeLocked(el *list.Element) {
	m.order.Remove(el)
	delete(m.entries, el.Value.(*memEntry).taskID)
}
