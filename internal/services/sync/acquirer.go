package sync

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/services/browser"
	"github.com/ternarybob/vigilo/internal/services/portal"
)

// BrowserAcquirer runs the portal login flow inside an isolated sandbox of
// the shared browser process
type BrowserAcquirer struct {
	pool   *browser.Pool
	flow   *portal.Flow
	logger arbor.ILogger
}

// NewBrowserAcquirer wires the login flow to the browser pool
func NewBrowserAcquirer(pool *browser.Pool, flow *portal.Flow, logger arbor.ILogger) *BrowserAcquirer {
	return &BrowserAcquirer{pool: pool, flow: flow, logger: logger}
}

// Login opens a fresh sandbox, drives the login flow in it and tears the
// sandbox down afterwards. Each login gets clean cookie and storage state.
func (a *BrowserAcquirer) Login(ctx context.Context, creds portal.Credentials, progress interfaces.ProgressFunc) (*portal.LoginResult, error) {
	sandbox, err := a.pool.NewSandbox(ctx)
	if err != nil {
		return nil, err
	}
	defer sandbox.Close()

	page := portal.NewPage(sandbox)
	defer page.Close()

	return a.flow.Run(ctx, page, creds, progress)
}
