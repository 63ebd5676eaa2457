package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

type fakeUserList struct {
	users   []models.UserAccount
	listErr error
}

func (f *fakeUserList) Get(ctx context.Context, id string) (*models.UserAccount, error) {
	return nil, nil
}
func (f *fakeUserList) GetByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	return nil, nil
}
func (f *fakeUserList) Upsert(ctx context.Context, user *models.UserAccount) error { return nil }
func (f *fakeUserList) Delete(ctx context.Context, id string) error                { return nil }
func (f *fakeUserList) ListAutoSync(ctx context.Context) ([]models.UserAccount, error) {
	return f.users, f.listErr
}

type fakeSync struct {
	synced []string
	errFor map[string]error
}

func (f *fakeSync) SyncUser(ctx context.Context, userID string, progress interfaces.ProgressFunc) (*interfaces.SyncResult, error) {
	f.synced = append(f.synced, userID)
	if err, ok := f.errFor[userID]; ok {
		return nil, err
	}
	return &interfaces.SyncResult{LastSync: time.Now()}, nil
}

func autoSyncUser(id string, lastSync *time.Time, intervalMinutes int) models.UserAccount {
	return models.UserAccount{
		ID:                  id,
		AutoSyncEnabled:     true,
		SyncIntervalMinutes: intervalMinutes,
		LastSyncAt:          lastSync,
	}
}

func newTestService(users *fakeUserList, syncService *fakeSync) *Service {
	return NewService(users, syncService, arbor.NewLogger())
}

func TestService_DueTimeBoundary(t *testing.T) {
	lastSync := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		{"one minute early", lastSync.Add(4 * time.Minute), false},
		{"exactly due", lastSync.Add(5 * time.Minute), true},
		{"past due", lastSync.Add(6 * time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncService := &fakeSync{}
			service := newTestService(&fakeUserList{
				users: []models.UserAccount{autoSyncUser("user-1", &lastSync, 5)},
			}, syncService)
			service.now = func() time.Time { return tt.now }

			service.runDue(context.Background())

			if tt.expected {
				assert.Equal(t, []string{"user-1"}, syncService.synced)
			} else {
				assert.Empty(t, syncService.synced)
			}
		})
	}
}

func TestService_NeverSyncedIsDueImmediately(t *testing.T) {
	syncService := &fakeSync{}
	service := newTestService(&fakeUserList{
		users: []models.UserAccount{autoSyncUser("user-1", nil, 60)},
	}, syncService)

	service.runDue(context.Background())
	assert.Equal(t, []string{"user-1"}, syncService.synced)
}

func TestService_FailureDoesNotStopQueue(t *testing.T) {
	lastSync := time.Now().Add(-time.Hour)
	syncService := &fakeSync{errFor: map[string]error{"user-1": errors.New("login failed")}}
	service := newTestService(&fakeUserList{
		users: []models.UserAccount{
			autoSyncUser("user-1", &lastSync, 5),
			autoSyncUser("user-2", &lastSync, 5),
		},
	}, syncService)

	service.runDue(context.Background())

	assert.Equal(t, []string{"user-1", "user-2"}, syncService.synced,
		"user-2 still syncs after user-1 fails")
}

func TestService_StartTwiceErrors(t *testing.T) {
	service := newTestService(&fakeUserList{}, &fakeSync{})

	require.NoError(t, service.Start("* * * * *"))
	defer service.Stop()

	err := service.Start("* * * * *")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestService_StartStopLifecycle(t *testing.T) {
	service := newTestService(&fakeUserList{}, &fakeSync{})

	assert.False(t, service.IsRunning())
	require.NoError(t, service.Start(""))
	assert.True(t, service.IsRunning())
	require.NoError(t, service.Stop())
	assert.False(t, service.IsRunning())

	// Stopping an idle scheduler is a no-op
	require.NoError(t, service.Stop())
}

func TestService_InvalidTickSpec(t *testing.T) {
	service := newTestService(&fakeUserList{}, &fakeSync{})
	err := service.Start("not a cron spec")
	require.Error(t, err)
	assert.False(t, service.IsRunning())
}

type panickySync struct {
	calls chan string
}

func (f *panickySync) SyncUser(ctx context.Context, userID string, progress interfaces.ProgressFunc) (*interfaces.SyncResult, error) {
	f.calls <- userID
	panic("sync exploded")
}

func TestService_SurvivesPanickingSync(t *testing.T) {
	syncService := &panickySync{calls: make(chan string, 8)}
	service := NewService(&fakeUserList{
		users: []models.UserAccount{autoSyncUser("user-1", nil, 5)},
	}, syncService, arbor.NewLogger())

	require.NoError(t, service.Start("@every 50ms"))
	defer service.Stop()

	// The first tick panics inside the sync; later ticks still fire
	for i := 0; i < 2; i++ {
		select {
		case <-syncService.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d never ran", i+1)
		}
	}
	assert.True(t, service.IsRunning())
}

func TestService_TriggerUserNow(t *testing.T) {
	syncService := &fakeSync{}
	service := newTestService(&fakeUserList{}, syncService)

	result, err := service.TriggerUserNow(context.Background(), "user-9")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"user-9"}, syncService.synced)
}
