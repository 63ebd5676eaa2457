package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Browser     BrowserConfig   `toml:"browser"`
	Portal      PortalConfig    `toml:"portal"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Vault       VaultConfig     `toml:"-"` // Secrets come from the environment, never from files
}

// SchedulerConfig controls the global auto-sync tick
type SchedulerConfig struct {
	TickSpec   string `toml:"tick_spec" validate:"required"`   // Cron spec for the global tick (default: every minute)
	SessionTTL string `toml:"session_ttl" validate:"required"` // How long a captured browser session stays usable, e.g. "8h"
}

// BrowserConfig controls the shared automated-browser process
type BrowserConfig struct {
	Headless          bool   `toml:"headless"`
	DisableGPU        bool   `toml:"disable_gpu"`
	NoSandbox         bool   `toml:"no_sandbox"`
	UserAgent         string `toml:"user_agent"`
	IdleTimeout       string `toml:"idle_timeout" validate:"required"`       // Evict the browser after this much idle time
	NavigationTimeout string `toml:"navigation_timeout" validate:"required"` // Per-navigation bound
	StepTimeout       string `toml:"step_timeout" validate:"required"`       // Per element-wait bound during login
}

// PortalConfig describes the upstream ticketing portal
type PortalConfig struct {
	BaseURL        string `toml:"base_url" validate:"required,url"` // e.g. "https://nav.4biz.one"
	TicketsPath    string `toml:"tickets_path"`                     // Listing view, appended to BaseURL
	ListEndpoint   string `toml:"list_endpoint"`                    // REST list endpoint, appended to BaseURL
	PageSize       int    `toml:"page_size" validate:"min=1"`
	PageDelay      string `toml:"page_delay" validate:"required"` // Pacing between page fetches
	RequestTimeout string `toml:"request_timeout" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// VaultConfig carries the master encryption key. Environment-only.
type VaultConfig struct {
	MasterKey string `validate:"required"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Scheduler: SchedulerConfig{
			TickSpec:   "* * * * *",
			SessionTTL: "8h",
		},
		Browser: BrowserConfig{
			Headless:          true,
			DisableGPU:        true,
			NoSandbox:         false,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			IdleTimeout:       "5m",
			NavigationTimeout: "30s",
			StepTimeout:       "15s",
		},
		Portal: PortalConfig{
			BaseURL:        "https://nav.4biz.one",
			TicketsPath:    "/4biz/pages/serviceRequestIncident/serviceRequestIncident.load?iframe=true",
			ListEndpoint:   "/4biz/rest/citajax/ticket/serviceRequestIncident/atualizarLista",
			PageSize:       50,
			PageDelay:      "200ms",
			RequestTimeout: "30s",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/vigilo",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier ones. Missing files are an error; no files is not.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies VIGILO_* environment variables over file values
func applyEnvOverrides(cfg *Config) {
	if env := os.Getenv("VIGILO_ENV"); env != "" {
		cfg.Environment = env
	}
	if spec := os.Getenv("VIGILO_SCHEDULER_TICK"); spec != "" {
		cfg.Scheduler.TickSpec = spec
	}
	if ttl := os.Getenv("VIGILO_SESSION_TTL"); ttl != "" {
		cfg.Scheduler.SessionTTL = ttl
	}
	if headless := os.Getenv("VIGILO_BROWSER_HEADLESS"); headless != "" {
		if v, err := strconv.ParseBool(headless); err == nil {
			cfg.Browser.Headless = v
		}
	}
	if idle := os.Getenv("VIGILO_BROWSER_IDLE_TIMEOUT"); idle != "" {
		cfg.Browser.IdleTimeout = idle
	}
	if baseURL := os.Getenv("VIGILO_PORTAL_BASE_URL"); baseURL != "" {
		cfg.Portal.BaseURL = baseURL
	}
	if pageSize := os.Getenv("VIGILO_PORTAL_PAGE_SIZE"); pageSize != "" {
		if v, err := strconv.Atoi(pageSize); err == nil && v > 0 {
			cfg.Portal.PageSize = v
		}
	}
	if badgerPath := os.Getenv("VIGILO_BADGER_PATH"); badgerPath != "" {
		cfg.Storage.Badger.Path = badgerPath
	}
	if level := os.Getenv("VIGILO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		cfg.Vault.MasterKey = key
	}
}

// Validate checks structural validity plus the fields validator tags cannot express
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := cron.ParseStandard(c.Scheduler.TickSpec); err != nil {
		return fmt.Errorf("invalid scheduler tick_spec %q: %w", c.Scheduler.TickSpec, err)
	}

	for name, value := range map[string]string{
		"scheduler.session_ttl":      c.Scheduler.SessionTTL,
		"browser.idle_timeout":       c.Browser.IdleTimeout,
		"browser.navigation_timeout": c.Browser.NavigationTimeout,
		"browser.step_timeout":       c.Browser.StepTimeout,
		"portal.page_delay":          c.Portal.PageDelay,
		"portal.request_timeout":     c.Portal.RequestTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	return nil
}

// mustDuration parses a duration already checked by Validate
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("unvalidated duration %q: %v", s, err))
	}
	return d
}

// SessionTTL returns the parsed session cache lifetime
func (c *SchedulerConfig) SessionTTLDuration() time.Duration { return mustDuration(c.SessionTTL) }

// IdleTimeoutDuration returns the parsed browser idle eviction threshold
func (c *BrowserConfig) IdleTimeoutDuration() time.Duration { return mustDuration(c.IdleTimeout) }

// NavigationTimeoutDuration returns the parsed navigation bound
func (c *BrowserConfig) NavigationTimeoutDuration() time.Duration {
	return mustDuration(c.NavigationTimeout)
}

// StepTimeoutDuration returns the parsed element-wait bound
func (c *BrowserConfig) StepTimeoutDuration() time.Duration { return mustDuration(c.StepTimeout) }

// PageDelayDuration returns the parsed inter-page pacing delay
func (c *PortalConfig) PageDelayDuration() time.Duration { return mustDuration(c.PageDelay) }

// RequestTimeoutDuration returns the parsed HTTP request timeout
func (c *PortalConfig) RequestTimeoutDuration() time.Duration {
	return mustDuration(c.RequestTimeout)
}
