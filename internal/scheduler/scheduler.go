// Package scheduler wires up the cron job that periodically evicts expired
// entries from the in-process task stores.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper drops expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// Scheduler wraps robfig/cron and manages the sweep loop.
type Scheduler struct {
	cron     *cron.Cron
	sweepers map[string]Sweeper
	spec     string // cron spec, e.g. "@every 5m"
	log      *logrus.Entry
}

// New creates a Scheduler that sweeps every named store on spec.
func New(spec string, sweepers map[string]Sweeper, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLogger{log})),
		sweepers: sweepers,
		spec:     spec,
		log:      log,
	}
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("sweep cron started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("sweep cron stopped")
}

// RunOnce sweeps every store and returns the total number of evicted entries.
func (s *Scheduler) RunOnce() int {
	names := make([]string, 0, len(s.sweepers))
	for name := range s.sweepers {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		n := s.sweepers[name].Sweep()
		if n > 0 {
			s.log.WithFields(logrus.Fields{"store": name, "evicted": n}).Debug("expired tasks swept")
		}
		total += n
	}
	return total
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(kv []any) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
