package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// UserStorage implements the UserStorage interface for Badger
type UserStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewUserStorage creates a new UserStorage instance
func NewUserStorage(db *BadgerDB, logger arbor.ILogger) interfaces.UserStorage {
	return &UserStorage{
		db:     db,
		logger: logger,
	}
}

// Get returns the user with the given id, or nil if none exists
func (s *UserStorage) Get(ctx context.Context, id string) (*models.UserAccount, error) {
	var user models.UserAccount
	if err := s.db.Store().Get(id, &user); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByEmail returns the user with the given email, or nil if none exists
func (s *UserStorage) GetByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	var users []models.UserAccount
	if err := s.db.Store().Find(&users, badgerhold.Where("Email").Eq(email)); err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (s *UserStorage) Upsert(ctx context.Context, user *models.UserAccount) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required")
	}

	if err := s.db.Store().Upsert(user.ID, user); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

func (s *UserStorage) Delete(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.UserAccount{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// ListAutoSync returns users with auto-sync enabled and usable credentials,
// ordered by id so scheduler passes are stable
func (s *UserStorage) ListAutoSync(ctx context.Context) ([]models.UserAccount, error) {
	var users []models.UserAccount
	if err := s.db.Store().Find(&users, badgerhold.Where("AutoSyncEnabled").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list auto-sync users: %w", err)
	}

	eligible := users[:0]
	for _, user := range users {
		if user.HasUsableCredentials() {
			eligible = append(eligible, user)
		}
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible, nil
}
