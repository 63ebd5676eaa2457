package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"github.com/ternarybob/vigilo/internal/services/vault"
)

// RegisterInput holds the plaintext details of a new account. Credentials are
// encrypted before anything touches storage.
type RegisterInput struct {
	Name           string
	Email          string
	PortalEmail    string
	PortalPassword string

	AutoSync            bool
	SyncIntervalMinutes int
}

// Service manages user accounts and keeps their portal secrets encrypted
type Service struct {
	storage interfaces.UserStorage
	vault   *vault.Vault
	logger  arbor.ILogger
	now     func() time.Time
}

// NewService creates the user account service
func NewService(storage interfaces.UserStorage, v *vault.Vault, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		vault:   v,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates a new account with encrypted portal credentials
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.UserAccount, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	existing, err := s.storage.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("account already exists for %s", email)
	}

	portalEmail, err := s.vault.Encrypt(input.PortalEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt portal email: %w", err)
	}
	portalPassword, err := s.vault.Encrypt(input.PortalPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt portal password: %w", err)
	}

	interval := input.SyncIntervalMinutes
	if interval < 1 {
		interval = 5
	}

	now := s.now()
	user := &models.UserAccount{
		ID:                  uuid.NewString(),
		Name:                input.Name,
		Email:               email,
		PortalEmail:         portalEmail,
		PortalPassword:      portalPassword,
		AutoSyncEnabled:     input.AutoSync,
		SyncIntervalMinutes: interval,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.storage.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Bool("auto_sync", user.AutoSyncEnabled).
		Msg("Account registered")
	return user, nil
}

// SetRESTTokens stores an encrypted REST token pair on the account, enabling
// the crawl fast path that skips browser logins entirely
func (s *Service) SetRESTTokens(ctx context.Context, userID, sessionID, authToken string) error {
	user, err := s.storage.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if user == nil {
		return fmt.Errorf("no account with id %s", userID)
	}

	sessionCiphertext, err := s.vault.Encrypt(sessionID)
	if err != nil {
		return fmt.Errorf("failed to encrypt session cookie: %w", err)
	}
	tokenCiphertext, err := s.vault.Encrypt(authToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt auth token: %w", err)
	}

	user.PortalSessionCookie = sessionCiphertext
	user.PortalAuthToken = tokenCiphertext
	user.UpdatedAt = s.now()
	return s.storage.Upsert(ctx, user)
}

// SetSubscription attaches a push subscription to the account
func (s *Service) SetSubscription(ctx context.Context, userID string, sub *models.PushSubscription) error {
	user, err := s.storage.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if user == nil {
		return fmt.Errorf("no account with id %s", userID)
	}

	user.Subscription = sub
	user.UpdatedAt = s.now()
	return s.storage.Upsert(ctx, user)
}
