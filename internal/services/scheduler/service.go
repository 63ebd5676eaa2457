package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
)

// Service drives periodic auto-sync on a coarse global tick. Each tick lists
// the auto-sync users and runs the ones whose per-user interval has elapsed,
// one at a time.
type Service struct {
	users  interfaces.UserStorage
	sync   interfaces.SyncService
	logger arbor.ILogger

	cron    *cron.Cron
	now     func() time.Time
	timeout time.Duration

	mu      sync.Mutex
	running bool
	ticking bool // A tick is in flight
}

// NewService creates the scheduler service
func NewService(users interfaces.UserStorage, syncService interfaces.SyncService, logger arbor.ILogger) *Service {
	return &Service{
		users:   users,
		sync:    syncService,
		logger:  logger,
		cron:    cron.New(),
		now:     time.Now,
		timeout: 10 * time.Minute,
	}
}

// Start begins the scheduler with the given cron expression
func (s *Service) Start(tickSpec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if tickSpec == "" {
		tickSpec = "* * * * *" // Default: every minute
	}

	// A panicking sync must not take the process down with it
	if _, err := s.cron.AddFunc(tickSpec, func() {
		common.SafeGo(s.logger, "scheduler-tick", s.tick)
	}); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Str("tick_spec", tickSpec).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler. The call returns once the running tick, if any,
// has been handed its stop signal; cron waits for it internally.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerUserNow runs a sync for one user outside the schedule
func (s *Service) TriggerUserNow(ctx context.Context, userID string) (*interfaces.SyncResult, error) {
	s.logger.Info().Str("user_id", userID).Msg("Manual sync triggered")
	return s.sync.SyncUser(ctx, userID, nil)
}

// tick runs one scheduler pass. Overlapping ticks are skipped so a slow
// browser login cannot pile up runs.
func (s *Service) tick() {
	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous tick still running, skipping")
		return
	}
	s.ticking = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.runDue(ctx)
}

// runDue syncs every auto-sync user whose interval has elapsed. Per-user
// failures are logged and the queue continues.
func (s *Service) runDue(ctx context.Context) {
	users, err := s.users.ListAutoSync(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list auto-sync users")
		return
	}

	now := s.now()
	for _, user := range users {
		if due := user.NextDue(); now.Before(due) {
			continue
		}

		result, err := s.sync.SyncUser(ctx, user.ID, nil)
		if err != nil {
			s.logger.Warn().
				Str("user_id", user.ID).
				Err(err).
				Msg("Scheduled sync failed")
			continue
		}

		s.logger.Info().
			Str("user_id", user.ID).
			Int("total", result.Stats.Total).
			Int("new", result.Stats.New).
			Int("updated", result.Stats.Updated).
			Msg("Scheduled sync complete")
	}
}
