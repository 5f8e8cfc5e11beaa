package scheduler_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"racecrew/import-service/internal/model"
	"racecrew/import-service/internal/scheduler"
	"racecrew/import-service/internal/taskstore"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestRunOnce_SweepsExpiredTasks(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	schedules := taskstore.NewMemory[[]model.CandidateRecord](clock, time.Hour, 10)
	discoveries := taskstore.NewMemory[[]model.DiscoveredRegatta](clock, time.Hour, 10)

	schedules.Put(ctx, "old-1", nil)
	schedules.Put(ctx, "old-2", nil)
	discoveries.Put(ctx, "old-3", nil)
	clock.Advance(45 * time.Minute)
	schedules.Put(ctx, "fresh", nil)
	clock.Advance(30 * time.Minute)

	s := scheduler.New("@every 5m", map[string]scheduler.Sweeper{
		"schedule":  schedules,
		"documents": discoveries,
	}, quietLog())

	if n := s.RunOnce(); n != 3 {
		t.Errorf("RunOnce evicted %d, want 3", n)
	}
	if schedules.Len() != 1 || discoveries.Len() != 0 {
		t.Errorf("remaining = %d/%d, want 1/0", schedules.Len(), discoveries.Len())
	}
	if _, err := schedules.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh task swept: %v", err)
	}
	if n := s.RunOnce(); n != 0 {
		t.Errorf("second RunOnce evicted %d, want 0", n)
	}
}

func TestStart_InvalidSpec(t *testing.T) {
	s := scheduler.New("every now and then", nil, quietLog())
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestStartStop(t *testing.T) {
	s := scheduler.New("@every 1h", map[string]scheduler.Sweeper{}, quietLog())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
