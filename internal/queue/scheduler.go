package queue

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/northmedia/searchsync/internal/logger"
)

// Scheduler owns the recurring schedules. Registration is explicit, named,
// and idempotent: registering the same name again replaces the previous
// entry, so restarts never accumulate duplicate schedules.
type Scheduler struct {
	cron    *cron.Cron
	logger  logger.Logger
	entries map[string]cron.EntryID
	mu      sync.Mutex
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  log,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds a named recurring job with a cron schedule expression.
func (s *Scheduler) Register(name, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.entries[name]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, name)
	}

	entryID, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("register schedule %q (%s): %w", name, spec, err)
	}
	s.entries[name] = entryID

	s.logger.Info("recurring job registered",
		logger.String("name", name),
		logger.String("schedule", spec))
	return nil
}

// Start begins running registered schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
