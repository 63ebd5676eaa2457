package interfaces

import (
	"context"

	"github.com/ternarybob/vigilo/internal/models"
)

// TicketStorage persists the local ticket mirror, keyed by (ownerID, ticketID)
type TicketStorage interface {
	// ByOwner returns all tickets stored for one owner
	ByOwner(ctx context.Context, ownerID string) ([]models.Ticket, error)

	// Upsert inserts or replaces a ticket by its (ownerID, ticketID) key
	Upsert(ctx context.Context, ticket *models.Ticket) error

	// Delete removes a ticket by key. Deleting a missing ticket is not an error.
	Delete(ctx context.Context, ownerID, ticketID string) error

	// CountByOwner returns the number of stored tickets for one owner
	CountByOwner(ctx context.Context, ownerID string) (int, error)
}

// UserStorage persists user accounts, their encrypted credentials and sync policy
type UserStorage interface {
	Get(ctx context.Context, id string) (*models.UserAccount, error)
	GetByEmail(ctx context.Context, email string) (*models.UserAccount, error)
	Upsert(ctx context.Context, user *models.UserAccount) error
	Delete(ctx context.Context, id string) error

	// ListAutoSync returns users with auto-sync enabled and at least one usable
	// credential pair, in stable order
	ListAutoSync(ctx context.Context) ([]models.UserAccount, error)
}

// StorageManager owns the shared database connection and hands out typed stores
type StorageManager interface {
	TicketStorage() TicketStorage
	UserStorage() UserStorage
	Close() error
}
