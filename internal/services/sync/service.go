package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"github.com/ternarybob/vigilo/internal/services/portal"
	"github.com/ternarybob/vigilo/internal/services/vault"
)

// TicketFetcher pulls the full ticket listing through the portal's REST API
type TicketFetcher interface {
	FetchAll(ctx context.Context, tokens portal.SessionTokens) ([]portal.RawTicket, error)
}

// SessionAcquirer performs a browser login and returns the captured session
type SessionAcquirer interface {
	Login(ctx context.Context, creds portal.Credentials, progress interfaces.ProgressFunc) (*portal.LoginResult, error)
}

// Config holds the orchestrator's tunables
type Config struct {
	// SessionTTL is how long a captured browser session is trusted before the
	// next sync logs in again
	SessionTTL time.Duration
}

// DefaultConfig returns the standard orchestrator settings
func DefaultConfig() Config {
	return Config{SessionTTL: 8 * time.Hour}
}

// Service orchestrates one full synchronization per user: acquire a session,
// crawl, reconcile, apply, notify.
type Service struct {
	config   Config
	users    interfaces.UserStorage
	tickets  interfaces.TicketStorage
	vault    *vault.Vault
	acquirer SessionAcquirer
	fetcher  TicketFetcher
	notifier interfaces.Notifier
	logger   arbor.ILogger

	now func() time.Time

	mu    stdsync.Mutex
	locks map[string]*stdsync.Mutex
}

// NewService wires the sync orchestrator
func NewService(config Config, storage interfaces.StorageManager, v *vault.Vault, acquirer SessionAcquirer, fetcher TicketFetcher, notifier interfaces.Notifier, logger arbor.ILogger) *Service {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultConfig().SessionTTL
	}
	return &Service{
		config:   config,
		users:    storage.UserStorage(),
		tickets:  storage.TicketStorage(),
		vault:    v,
		acquirer: acquirer,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*stdsync.Mutex),
	}
}

// userLock returns the mutex serializing syncs for one user, so a manual
// trigger cannot race a scheduled run
func (s *Service) userLock(userID string) *stdsync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &stdsync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// SyncUser runs one full synchronization for the user. The run either fully
// succeeds with stats or fails with a stage-typed error and no side effects
// on LastSyncAt.
func (s *Service) SyncUser(ctx context.Context, userID string, progress interfaces.ProgressFunc) (*interfaces.SyncResult, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	report := func(percent int, message string) {
		if progress != nil {
			progress(percent, message)
		}
	}

	report(2, "Loading account")
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, stageErr(StageStorage, userID, err)
	}
	if user == nil {
		return nil, stageErr(StageCredentials, userID, ErrUserNotFound)
	}
	if !user.HasUsableCredentials() {
		return nil, stageErr(StageCredentials, userID, ErrNoCredentials)
	}

	now := s.now()
	fresh, syncErr := s.fetchTickets(ctx, user, now, report)
	if syncErr != nil {
		return nil, syncErr
	}

	report(80, "Reconciling tickets")
	existing, err := s.tickets.ByOwner(ctx, userID)
	if err != nil {
		return nil, stageErr(StageStorage, userID, err)
	}
	changes := Compare(existing, fresh)

	report(90, "Applying changes")
	if err := s.apply(ctx, userID, &changes); err != nil {
		return nil, stageErr(StageStorage, userID, err)
	}

	s.notifyChanges(ctx, user, &changes)

	user.LastSyncAt = &now
	user.UpdatedAt = now
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, stageErr(StageStorage, userID, err)
	}

	stats := changes.Stats()
	s.logger.Info().
		Str("user_id", userID).
		Int("total", stats.Total).
		Int("new", stats.New).
		Int("updated", stats.Updated).
		Int("removed", stats.Removed).
		Msg("Sync complete")

	report(100, "Sync complete")
	return &interfaces.SyncResult{Stats: stats, LastSync: now}, nil
}

// fetchTickets produces the fresh snapshot. REST tokens are the fast path,
// then a still-valid cached browser session, then a full browser login.
func (s *Service) fetchTickets(ctx context.Context, user *models.UserAccount, now time.Time, report interfaces.ProgressFunc) ([]models.Ticket, *Error) {
	if user.HasRESTCredentials() {
		report(10, "Using stored session tokens")
		tokens, err := s.decryptTokens(user.PortalSessionCookie, user.PortalAuthToken)
		if err != nil {
			return nil, stageErr(StageDecryption, user.ID, err)
		}

		raw, err := s.fetcher.FetchAll(ctx, tokens)
		if err == nil {
			return s.organize(user.ID, raw, now), nil
		}
		if !user.HasLoginCredentials() {
			return nil, stageErr(StageCrawl, user.ID, err)
		}
		s.logger.Warn().Str("user_id", user.ID).Err(err).
			Msg("Stored tokens rejected, falling back to browser login")
	}

	if user.SessionCacheValid(now) {
		report(15, "Reusing cached session")
		cookieString, err := s.vault.Decrypt(user.SessionCache)
		if err != nil {
			return nil, stageErr(StageDecryption, user.ID, err)
		}

		if tokens := portal.ParseSessionTokens(cookieString); tokens.Valid() {
			raw, err := s.fetcher.FetchAll(ctx, tokens)
			if err == nil {
				return s.organize(user.ID, raw, now), nil
			}
			s.logger.Warn().Str("user_id", user.ID).Err(err).
				Msg("Cached session rejected, logging in again")
		}
	}

	return s.loginAndFetch(ctx, user, now, report)
}

// loginAndFetch runs the browser login, persists the refreshed session cache
// and crawls with the captured tokens. The cache is persisted before the
// crawl result is trusted, so the next run can skip the login even if this
// crawl fails downstream.
func (s *Service) loginAndFetch(ctx context.Context, user *models.UserAccount, now time.Time, report interfaces.ProgressFunc) ([]models.Ticket, *Error) {
	report(20, "Logging in to portal")

	email, err := s.vault.Decrypt(user.PortalEmail)
	if err != nil {
		return nil, stageErr(StageDecryption, user.ID, err)
	}
	password, err := s.vault.Decrypt(user.PortalPassword)
	if err != nil {
		return nil, stageErr(StageDecryption, user.ID, err)
	}

	// Login progress maps onto the 20..70 band of the overall run
	loginProgress := func(percent int, message string) {
		report(20+percent/2, message)
	}

	result, err := s.acquirer.Login(ctx, portal.Credentials{Email: email, Password: password}, loginProgress)
	if err != nil {
		return nil, stageErr(StageLogin, user.ID, err)
	}

	if err := s.persistSessionCache(ctx, user, result.CookieString, now); err != nil {
		return nil, stageErr(StageStorage, user.ID, err)
	}

	tokens := portal.ParseSessionTokens(result.CookieString)
	if !tokens.Valid() {
		// No REST tokens in the jar; the rendered listing is all we have
		s.logger.Warn().Str("user_id", user.ID).
			Msg("Session cookies carry no API tokens, using scraped listing")
		return s.adoptScraped(user.ID, result.Scraped, now), nil
	}

	report(75, "Crawling ticket listing")
	raw, err := s.fetcher.FetchAll(ctx, tokens)
	if err != nil {
		return nil, stageErr(StageCrawl, user.ID, err)
	}
	return s.organize(user.ID, raw, now), nil
}

func (s *Service) persistSessionCache(ctx context.Context, user *models.UserAccount, cookieString string, now time.Time) error {
	encrypted, err := s.vault.Encrypt(cookieString)
	if err != nil {
		return fmt.Errorf("failed to encrypt session cache: %w", err)
	}
	expiry := now.Add(s.config.SessionTTL)
	user.SessionCache = encrypted
	user.SessionCacheExpiry = &expiry
	user.UpdatedAt = now
	return s.users.Upsert(ctx, user)
}

func (s *Service) decryptTokens(sessionCiphertext, tokenCiphertext string) (portal.SessionTokens, error) {
	sessionID, err := s.vault.Decrypt(sessionCiphertext)
	if err != nil {
		return portal.SessionTokens{}, fmt.Errorf("failed to decrypt session cookie: %w", err)
	}
	authToken, err := s.vault.Decrypt(tokenCiphertext)
	if err != nil {
		return portal.SessionTokens{}, fmt.Errorf("failed to decrypt auth token: %w", err)
	}
	return portal.SessionTokens{SessionID: sessionID, AuthToken: authToken}, nil
}

func (s *Service) organize(ownerID string, raw []portal.RawTicket, now time.Time) []models.Ticket {
	tickets := make([]models.Ticket, 0, len(raw))
	for _, r := range raw {
		tickets = append(tickets, portal.Organize(ownerID, r, now))
	}
	return tickets
}

// adoptScraped stamps ownership and timestamps onto rows scraped from the
// rendered listing
func (s *Service) adoptScraped(ownerID string, scraped []models.Ticket, now time.Time) []models.Ticket {
	tickets := make([]models.Ticket, 0, len(scraped))
	for _, t := range scraped {
		t.OwnerID = ownerID
		t.CreatedAt = now
		t.UpdatedAt = now
		tickets = append(tickets, t)
	}
	return tickets
}

// apply writes the changeset to storage. Unchanged rows are rewritten too, so
// every stored ticket reflects the latest snapshot.
func (s *Service) apply(ctx context.Context, ownerID string, changes *models.ChangeSet) error {
	for i := range changes.New {
		if err := s.tickets.Upsert(ctx, &changes.New[i]); err != nil {
			return fmt.Errorf("failed to insert ticket %s: %w", changes.New[i].TicketID, err)
		}
	}
	for i := range changes.Updated {
		if err := s.tickets.Upsert(ctx, &changes.Updated[i].Ticket); err != nil {
			return fmt.Errorf("failed to update ticket %s: %w", changes.Updated[i].Ticket.TicketID, err)
		}
	}
	for i := range changes.Unchanged {
		if err := s.tickets.Upsert(ctx, &changes.Unchanged[i]); err != nil {
			return fmt.Errorf("failed to refresh ticket %s: %w", changes.Unchanged[i].TicketID, err)
		}
	}
	for _, removed := range changes.Removed {
		if err := s.tickets.Delete(ctx, ownerID, removed.TicketID); err != nil {
			return fmt.Errorf("failed to remove ticket %s: %w", removed.TicketID, err)
		}
	}
	return nil
}

// notifyChanges pushes one message per new or updated ticket. Delivery
// failures are logged and swallowed; they never fail the sync.
func (s *Service) notifyChanges(ctx context.Context, user *models.UserAccount, changes *models.ChangeSet) {
	if s.notifier == nil || !user.Subscription.HasEndpoint() {
		return
	}

	for _, ticket := range changes.New {
		s.send(ctx, user, interfaces.Notification{
			Title: fmt.Sprintf("Novo chamado #%s", ticket.Number),
			Body:  ticket.Title,
			Data:  map[string]string{"ticket_id": ticket.TicketID, "kind": "new"},
		})
	}
	for _, change := range changes.Updated {
		body := change.Ticket.Title
		if change.OldSituation != change.Ticket.Situation {
			body = fmt.Sprintf("%s: %s", change.Ticket.Title, change.Ticket.Situation)
		}
		s.send(ctx, user, interfaces.Notification{
			Title: fmt.Sprintf("Chamado #%s atualizado", change.Ticket.Number),
			Body:  body,
			Data:  map[string]string{"ticket_id": change.Ticket.TicketID, "kind": "updated"},
		})
	}
}

func (s *Service) send(ctx context.Context, user *models.UserAccount, n interfaces.Notification) {
	if err := s.notifier.Send(ctx, user.Subscription, n); err != nil {
		s.logger.Warn().
			Str("user_id", user.ID).
			Str("title", n.Title).
			Err(err).
			Msg("Notification delivery failed")
	}
}
