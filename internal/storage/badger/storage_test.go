package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: t.TempDir() + "/vigilo-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestTicketStorage_UpsertAndByOwner(t *testing.T) {
	manager := newTestManager(t)
	store := manager.TicketStorage()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &models.Ticket{OwnerID: "u1", TicketID: "10", Situation: "Em Andamento"}))
	require.NoError(t, store.Upsert(ctx, &models.Ticket{OwnerID: "u1", TicketID: "11", Situation: "Fechada"}))
	require.NoError(t, store.Upsert(ctx, &models.Ticket{OwnerID: "u2", TicketID: "10", Situation: "Resolvida"}))

	tickets, err := store.ByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)

	count, err := store.CountByOwner(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTicketStorage_SameTicketIDDistinctOwners(t *testing.T) {
	manager := newTestManager(t)
	store := manager.TicketStorage()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &models.Ticket{OwnerID: "u1", TicketID: "10", Situation: "Em Andamento"}))
	require.NoError(t, store.Upsert(ctx, &models.Ticket{OwnerID: "u2", TicketID: "10", Situation: "Resolvida"}))

	u1, err := store.ByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, u1, 1)
	assert.Equal(t, "Em Andamento", u1[0].Situation)

	// Deleting u1's copy leaves u2's untouched
	require.NoError(t, store.Delete(ctx, "u1", "10"))
	u2, err := store.ByOwner(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, u2, 1)
}

func TestTicketStorage_UpsertReplaces(t *testing.T) {
	manager := newTestManager(t)
	store := manager.TicketStorage()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &models.Ticket{OwnerID: "u1", TicketID: "10", Situation: "Em Andamento"}))
	require.NoError(t, store.Upsert(ctx, &models.Ticket{OwnerID: "u1", TicketID: "10", Situation: "Resolvida"}))

	tickets, err := store.ByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Resolvida", tickets[0].Situation)
}

func TestTicketStorage_DeleteMissingIsNoError(t *testing.T) {
	manager := newTestManager(t)
	assert.NoError(t, manager.TicketStorage().Delete(context.Background(), "u1", "missing"))
}

func TestTicketStorage_RequiresKeyFields(t *testing.T) {
	manager := newTestManager(t)
	err := manager.TicketStorage().Upsert(context.Background(), &models.Ticket{TicketID: "10"})
	assert.Error(t, err)
}

func TestUserStorage_CRUD(t *testing.T) {
	manager := newTestManager(t)
	store := manager.UserStorage()
	ctx := context.Background()

	user := &models.UserAccount{
		ID:          "u1",
		Name:        "Ana",
		Email:       "ana@example.com",
		PortalEmail: "ciphertext-email",
	}
	require.NoError(t, store.Upsert(ctx, user))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana", got.Name)

	byEmail, err := store.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u1", byEmail.ID)

	require.NoError(t, store.Delete(ctx, "u1"))
	gone, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestUserStorage_GetMissingReturnsNil(t *testing.T) {
	manager := newTestManager(t)

	user, err := manager.UserStorage().Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, user)

	byEmail, err := manager.UserStorage().GetByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, byEmail)
}

func TestUserStorage_ListAutoSync(t *testing.T) {
	manager := newTestManager(t)
	store := manager.UserStorage()
	ctx := context.Background()

	lastSync := time.Now()
	require.NoError(t, store.Upsert(ctx, &models.UserAccount{
		ID: "b", Email: "b@example.com", AutoSyncEnabled: true,
		PortalEmail: "c1", PortalPassword: "c2", LastSyncAt: &lastSync,
	}))
	require.NoError(t, store.Upsert(ctx, &models.UserAccount{
		ID: "a", Email: "a@example.com", AutoSyncEnabled: true,
		PortalSessionCookie: "c3", PortalAuthToken: "c4",
	}))
	// Enabled but no credentials: excluded
	require.NoError(t, store.Upsert(ctx, &models.UserAccount{
		ID: "c", Email: "c@example.com", AutoSyncEnabled: true,
	}))
	// Credentials but disabled: excluded
	require.NoError(t, store.Upsert(ctx, &models.UserAccount{
		ID: "d", Email: "d@example.com",
		PortalEmail: "c5", PortalPassword: "c6",
	}))

	users, err := store.ListAutoSync(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a", users[0].ID, "stable order by id")
	assert.Equal(t, "b", users[1].ID)
}
