package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Sandbox is one isolated browser context (separate cookie and storage
// sandbox) inside the shared process, with its own initial tab. Each logical
// operation gets its own sandbox; closing it disposes the context and all
// cookies captured within it.
type Sandbox struct {
	pool      *Pool
	browser   context.Context
	tab       context.Context
	tabCancel context.CancelFunc
	contextID cdp.BrowserContextID
}

// NewSandbox creates an isolated browser context plus a tab inside it
func (p *Pool) NewSandbox(ctx context.Context) (*Sandbox, error) {
	browserCtx, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}

	var contextID cdp.BrowserContextID
	if err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(c context.Context) error {
		id, err := target.CreateBrowserContext().WithDisposeOnDetach(true).Do(c)
		contextID = id
		return err
	})); err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	var targetID target.ID
	if err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(c context.Context) error {
		id, err := target.CreateTarget("about:blank").
			WithBrowserContextID(contextID).
			Do(c)
		targetID = id
		return err
	})); err != nil {
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}

	tab, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(targetID))

	p.touch()
	return &Sandbox{
		pool:      p,
		browser:   browserCtx,
		tab:       tab,
		tabCancel: tabCancel,
		contextID: contextID,
	}, nil
}

// Context returns the chromedp context of the sandbox's initial tab
func (s *Sandbox) Context() context.Context {
	s.pool.touch()
	return s.tab
}

// Browser returns the shared browser context the sandbox lives in
func (s *Sandbox) Browser() context.Context {
	return s.browser
}

// ContextID returns the CDP browser-context id of this sandbox
func (s *Sandbox) ContextID() cdp.BrowserContextID {
	return s.contextID
}

// AttachTarget opens a chromedp context for another target in the same
// sandbox, e.g. a login popup. The returned cancel detaches from the target.
func (s *Sandbox) AttachTarget(id target.ID) (context.Context, context.CancelFunc) {
	s.pool.touch()
	return chromedp.NewContext(s.browser, chromedp.WithTargetID(id))
}

// Close disposes the browser context (and every tab and cookie in it)
func (s *Sandbox) Close() {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	// Dispose runs against the shared browser, not the dead tab
	_ = chromedp.Run(s.browser, chromedp.ActionFunc(func(c context.Context) error {
		return target.DisposeBrowserContext(s.contextID).Do(c)
	}))
	s.pool.touch()
}
