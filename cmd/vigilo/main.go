package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/app"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/services/users"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	onceUserID   = flag.String("once", "", "Run a single sync for the given user id and exit")
	addUser      = flag.Bool("add-user", false, "Register a new account and exit")
	userName     = flag.String("name", "", "Display name for -add-user")
	userEmail    = flag.String("email", "", "Account email for -add-user")
	portalEmail  = flag.String("portal-email", "", "Portal login email for -add-user")
	portalPass   = flag.String("portal-password", "", "Portal login password for -add-user (or VIGILO_PORTAL_PASSWORD)")
	syncInterval = flag.Int("interval", 5, "Auto-sync interval in minutes for -add-user")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Vigilo version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Secrets like ENCRYPTION_KEY come from the environment; a local .env is
	// a convenience, its absence is fine
	_ = godotenv.Load()

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("vigilo.toml"); err == nil {
			configFiles = append(configFiles, "vigilo.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	common.InstallCrashHandler("logs")
	defer common.RecoverWithCrashFile()

	logger.Info().
		Strs("config_files", configFiles).
		Str("portal", config.Portal.BaseURL).
		Str("tick_spec", config.Scheduler.TickSpec).
		Str("log_level", config.Logging.Level).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	// Registration mode: create an account and exit
	if *addUser {
		password := *portalPass
		if password == "" {
			password = os.Getenv("VIGILO_PORTAL_PASSWORD")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := application.UserService.Register(ctx, users.RegisterInput{
			Name:                *userName,
			Email:               *userEmail,
			PortalEmail:         *portalEmail,
			PortalPassword:      password,
			AutoSync:            true,
			SyncIntervalMinutes: *syncInterval,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to register account")
		}
		logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("Account created")
		return
	}

	// One-shot mode: sync a single user and exit
	if *onceUserID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		result, err := application.SyncOnce(ctx, *onceUserID)
		if err != nil {
			logger.Fatal().Str("user_id", *onceUserID).Err(err).Msg("Sync failed")
		}
		logger.Info().
			Str("user_id", *onceUserID).
			Int("total", result.Stats.Total).
			Int("new", result.Stats.New).
			Int("updated", result.Stats.Updated).
			Int("removed", result.Stats.Removed).
			Msg("Sync complete")
		return
	}

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start application")
	}

	logger.Info().Msg("Vigilo running - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")
}
