// Package events publishes import notifications on Redis pub/sub so the
// gateway can forward them to connected admin sessions.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Channels published by the import service.
const (
	ChannelScheduleImported  = "EVENT_SCHEDULE_IMPORTED"
	ChannelDocumentsAttached = "EVENT_DOCUMENTS_ATTACHED"
)

// Publisher sends a JSON payload on a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Redis publishes on Redis pub/sub.
type Redis struct {
	rdb redis.UniversalClient
}

// NewRedis returns a Publisher backed by rdb.
func NewRedis(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Publish(ctx context.Context, channel string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", channel, err)
	}
	if err := r.rdb.Publish(ctx, channel, b).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Nop drops every event. Used when the service runs without Redis.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// ScheduleImported is the payload of ChannelScheduleImported.
type ScheduleImported struct {
	Type       string   `json:"type"`
	OperatorID string   `json:"operatorId"`
	RegattaIDs []string `json:"regattaIds"`
	Imported   int      `json:"imported"`
	Skipped    int      `json:"skipped"`
	Documents  int      `json:"documents"`
}

// DocumentsAttached is the payload of ChannelDocumentsAttached.
type DocumentsAttached struct {
	Type       string   `json:"type"`
	OperatorID string   `json:"operatorId"`
	RegattaIDs []string `json:"regattaIds"`
	Attached   int      `json:"attached"`
}
