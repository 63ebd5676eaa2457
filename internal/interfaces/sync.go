package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vigilo/internal/models"
)

// ProgressFunc reports sync milestones to an observer.
// Observational only; implementations must never drive control flow from it.
type ProgressFunc func(percent int, message string)

// SyncResult is the structured success payload of one sync run
type SyncResult struct {
	Stats    models.SyncStats `json:"stats"`
	LastSync time.Time        `json:"last_sync"`
}

// SyncService runs one full synchronization for a user
type SyncService interface {
	// SyncUser acquires a session (REST fast path or browser login), crawls the
	// portal, reconciles against stored tickets, applies the changeset and
	// notifies the user's device. One attempt: fully succeeds or fully fails.
	SyncUser(ctx context.Context, userID string, progress ProgressFunc) (*SyncResult, error)
}

// SchedulerService drives periodic auto-sync on a fixed global tick
type SchedulerService interface {
	// Start begins the scheduler with a cron tick spec. Starting twice is an error.
	Start(tickSpec string) error

	// Stop halts the scheduler
	Stop() error

	// IsRunning returns true if the scheduler is active
	IsRunning() bool

	// TriggerUserNow runs a sync for one user outside the schedule
	TriggerUserNow(ctx context.Context, userID string) (*SyncResult, error)
}
