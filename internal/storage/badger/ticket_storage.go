package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// TicketStorage implements the TicketStorage interface for Badger
type TicketStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTicketStorage creates a new TicketStorage instance
func NewTicketStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TicketStorage {
	return &TicketStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TicketStorage) ByOwner(ctx context.Context, ownerID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := s.db.Store().Find(&tickets, badgerhold.Where("OwnerID").Eq(ownerID)); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (s *TicketStorage) Upsert(ctx context.Context, ticket *models.Ticket) error {
	if ticket.OwnerID == "" || ticket.TicketID == "" {
		return fmt.Errorf("ticket owner and id are required")
	}

	if err := s.db.Store().Upsert(ticket.Key(), ticket); err != nil {
		return fmt.Errorf("failed to store ticket %s: %w", ticket.TicketID, err)
	}
	return nil
}

func (s *TicketStorage) Delete(ctx context.Context, ownerID, ticketID string) error {
	if err := s.db.Store().Delete(models.TicketKey(ownerID, ticketID), &models.Ticket{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete ticket %s: %w", ticketID, err)
	}
	return nil
}

func (s *TicketStorage) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	count, err := s.db.Store().Count(&models.Ticket{}, badgerhold.Where("OwnerID").Eq(ownerID))
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return int(count), nil
}
