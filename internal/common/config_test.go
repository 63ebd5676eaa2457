package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "* * * * *", cfg.Scheduler.TickSpec)
	assert.Equal(t, "8h", cfg.Scheduler.SessionTTL)
	assert.Equal(t, 50, cfg.Portal.PageSize)
	assert.Equal(t, "200ms", cfg.Portal.PageDelay)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "5m", cfg.Browser.IdleTimeout)
}

func TestLoadFromFiles_NoFilesUsesDefaults(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "test-master-key")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "https://nav.4biz.one", cfg.Portal.BaseURL)
}

func TestLoadFromFiles_FileOverridesDefaults(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "test-master-key")

	path := filepath.Join(t.TempDir(), "vigilo.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment = "production"

[portal]
base_url = "https://tickets.example.com"
page_size = 25

[scheduler]
tick_spec = "*/5 * * * *"
`), 0644))

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "https://tickets.example.com", cfg.Portal.BaseURL)
	assert.Equal(t, 25, cfg.Portal.PageSize)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.TickSpec)

	// Untouched sections keep their defaults
	assert.Equal(t, "8h", cfg.Scheduler.SessionTTL)
	assert.Equal(t, "200ms", cfg.Portal.PageDelay)
}

func TestLoadFromFiles_MissingFileErrors(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/vigilo.toml")
	require.Error(t, err)
}

func TestLoadFromFiles_MissingEncryptionKeyErrors(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")

	_, err := LoadFromFiles()
	require.Error(t, err)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "test-master-key")
	t.Setenv("VIGILO_PORTAL_PAGE_SIZE", "10")
	t.Setenv("VIGILO_LOG_LEVEL", "debug")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Portal.PageSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_RejectsBadDurations(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.MasterKey = "test-master-key"
	cfg.Browser.IdleTimeout = "five minutes"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadTickSpec(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.MasterKey = "test-master-key"
	cfg.Scheduler.TickSpec = "whenever"
	assert.Error(t, cfg.Validate())
}

func TestDurationGetters(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, 8*time.Hour, cfg.Scheduler.SessionTTLDuration())
	assert.Equal(t, 5*time.Minute, cfg.Browser.IdleTimeoutDuration())
	assert.Equal(t, 200*time.Millisecond, cfg.Portal.PageDelayDuration())
}
