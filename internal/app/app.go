package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/services/browser"
	"github.com/ternarybob/vigilo/internal/services/notify"
	"github.com/ternarybob/vigilo/internal/services/portal"
	"github.com/ternarybob/vigilo/internal/services/scheduler"
	syncsvc "github.com/ternarybob/vigilo/internal/services/sync"
	"github.com/ternarybob/vigilo/internal/services/users"
	"github.com/ternarybob/vigilo/internal/services/vault"
	"github.com/ternarybob/vigilo/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	Vault          *vault.Vault
	BrowserPool    *browser.Pool
	Notifier       interfaces.Notifier

	UserService      *users.Service
	SyncService      interfaces.SyncService
	SchedulerService interfaces.SchedulerService
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	// Storage layer
	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager
	logger.Debug().
		Str("storage", "badger").
		Str("path", cfg.Storage.Badger.Path).
		Msg("Storage layer initialized")

	// Credential vault
	a.Vault, err = vault.NewVault(cfg.Vault.MasterKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	// Shared browser process
	a.BrowserPool = browser.NewPool(browser.Config{
		Headless:    cfg.Browser.Headless,
		DisableGPU:  cfg.Browser.DisableGPU,
		NoSandbox:   cfg.Browser.NoSandbox,
		UserAgent:   cfg.Browser.UserAgent,
		IdleTimeout: cfg.Browser.IdleTimeoutDuration(),
	}, logger)

	// Portal login flow and REST crawler
	flowConfig := portal.DefaultFlowConfig(
		cfg.Portal.BaseURL,
		cfg.Portal.BaseURL+cfg.Portal.TicketsPath,
	)
	flowConfig.NavigationTimeout = cfg.Browser.NavigationTimeoutDuration()
	flowConfig.StepTimeout = cfg.Browser.StepTimeoutDuration()
	flow := portal.NewFlow(flowConfig, portal.DefaultLoginLocators(), logger)

	crawler := portal.NewCrawler(portal.CrawlerConfig{
		ListURL:        cfg.Portal.BaseURL + cfg.Portal.ListEndpoint,
		Referer:        cfg.Portal.BaseURL + cfg.Portal.TicketsPath,
		Origin:         cfg.Portal.BaseURL,
		UserAgent:      cfg.Browser.UserAgent,
		PageSize:       cfg.Portal.PageSize,
		PageDelay:      cfg.Portal.PageDelayDuration(),
		RequestTimeout: cfg.Portal.RequestTimeoutDuration(),
	}, logger)

	a.UserService = users.NewService(storageManager.UserStorage(), a.Vault, logger)

	// Sync orchestration
	a.Notifier = notify.NewLogNotifier(logger)
	acquirer := syncsvc.NewBrowserAcquirer(a.BrowserPool, flow, logger)
	a.SyncService = syncsvc.NewService(
		syncsvc.Config{SessionTTL: cfg.Scheduler.SessionTTLDuration()},
		storageManager,
		a.Vault,
		acquirer,
		crawler,
		a.Notifier,
		logger,
	)

	a.SchedulerService = scheduler.NewService(
		storageManager.UserStorage(),
		a.SyncService,
		logger,
	)

	logger.Info().
		Str("portal", cfg.Portal.BaseURL).
		Str("environment", cfg.Environment).
		Msg("Application initialization complete")

	return a, nil
}

// Start launches the background components: the browser idle checker and the
// auto-sync scheduler
func (a *App) Start() error {
	a.BrowserPool.Start()

	if err := a.SchedulerService.Start(a.Config.Scheduler.TickSpec); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// SyncOnce runs a single sync for one user, used by the -once flag
func (a *App) SyncOnce(ctx context.Context, userID string) (*interfaces.SyncResult, error) {
	return a.SyncService.SyncUser(ctx, userID, func(percent int, message string) {
		a.Logger.Info().Int("percent", percent).Msg(message)
	})
}

// Close shuts down all application resources in reverse dependency order
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.BrowserPool != nil {
		a.BrowserPool.Stop()
		a.Logger.Info().Msg("Browser pool stopped")
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
