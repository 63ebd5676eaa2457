package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
)

// Manager owns the shared Badger connection and the typed stores on top of it
type Manager struct {
	db      *BadgerDB
	tickets interfaces.TicketStorage
	users   interfaces.UserStorage
}

// NewManager opens the database and wires the stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:      db,
		tickets: NewTicketStorage(db, logger),
		users:   NewUserStorage(db, logger),
	}, nil
}

func (m *Manager) TicketStorage() interfaces.TicketStorage {
	return m.tickets
}

func (m *Manager) UserStorage() interfaces.UserStorage {
	return m.users
}

func (m *Manager) Close() error {
	return m.db.Close()
}
