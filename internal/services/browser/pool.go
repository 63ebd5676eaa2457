package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Config holds configuration for the shared browser process
type Config struct {
	Headless      bool          `json:"headless"`
	DisableGPU    bool          `json:"disable_gpu"`
	NoSandbox     bool          `json:"no_sandbox"`
	UserAgent     string        `json:"user_agent"`
	IdleTimeout   time.Duration `json:"idle_timeout"`   // Evict the process after this much idle time
	LaunchTimeout time.Duration `json:"launch_timeout"` // Bound on launch + startup test
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Headless:      true,
		DisableGPU:    true,
		UserAgent:     "Vigilo/1.0",
		IdleTimeout:   5 * time.Minute,
		LaunchTimeout: 30 * time.Second,
	}
}

// launchFunc starts a browser process and returns its root context.
// Replaceable in tests so the pool logic runs without Chrome.
type launchFunc func() (context.Context, context.CancelFunc, error)

// Pool manages one shared automated-browser process. The process is launched
// lazily, shared by all callers, and evicted after an idle threshold to bound
// memory. Isolation between operations happens per browser context (see
// Sandbox), not per process.
type Pool struct {
	config Config
	logger arbor.ILogger
	launch launchFunc

	mu        sync.Mutex
	browser   context.Context
	cancel    context.CancelFunc
	launching chan struct{} // Non-nil while a launch is in flight; closed on completion
	lastUsed  time.Time

	stopIdle chan struct{}
	stopped  bool
}

// NewPool creates a browser pool. The process is not launched until first use.
func NewPool(config Config, logger arbor.ILogger) *Pool {
	p := &Pool{
		config: config,
		logger: logger,
	}
	p.launch = p.launchChrome
	return p
}

// Start begins the background idle checker
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopIdle != nil {
		return
	}
	p.stopIdle = make(chan struct{})
	go p.idleLoop(p.stopIdle)
	p.logger.Debug().
		Dur("idle_timeout", p.config.IdleTimeout).
		Msg("Browser idle checker started")
}

// Stop halts the idle checker and tears down the browser process
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopIdle != nil && !p.stopped {
		close(p.stopIdle)
		p.stopped = true
	}
	p.mu.Unlock()
	p.Close()
}

// Get returns the shared browser context, launching the process if needed.
// Concurrent callers during an in-flight launch await the same launch and
// receive the same handle; the process is never double-launched.
func (p *Pool) Get(ctx context.Context) (context.Context, error) {
	for {
		p.mu.Lock()

		if p.browser != nil && p.browser.Err() == nil {
			p.lastUsed = time.Now()
			browser := p.browser
			p.mu.Unlock()
			return browser, nil
		}

		if p.launching != nil {
			inflight := p.launching
			p.mu.Unlock()
			select {
			case <-inflight:
				continue // Re-check: the launch may have failed
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		inflight := make(chan struct{})
		p.launching = inflight
		p.mu.Unlock()

		p.logger.Info().Msg("Launching browser process")
		started := time.Now()
		browser, cancel, err := p.launch()

		p.mu.Lock()
		p.launching = nil
		if err == nil {
			p.browser = browser
			p.cancel = cancel
			p.lastUsed = time.Now()
		}
		close(inflight)
		p.mu.Unlock()

		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}

		p.logger.Info().
			Dur("startup_time", time.Since(started)).
			Msg("Browser process launched")
		return browser, nil
	}
}

// Close forces teardown of the browser process. The next Get relaunches.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Pool) closeLocked() {
	if p.browser == nil {
		return
	}
	p.logger.Info().Msg("Closing browser process")
	if p.cancel != nil {
		p.cancel()
	}
	p.browser = nil
	p.cancel = nil
}

// touch marks the pool as recently used, deferring idle eviction
func (p *Pool) touch() {
	p.mu.Lock()
	p.lastUsed = time.Now()
	p.mu.Unlock()
}

func (p *Pool) idleLoop(stop chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			idle := p.browser != nil && time.Since(p.lastUsed) > p.config.IdleTimeout
			if idle {
				p.logger.Info().
					Dur("idle", time.Since(p.lastUsed)).
					Msg("Browser idle past threshold, evicting")
				p.closeLocked()
			}
			p.mu.Unlock()
		}
	}
}

// launchChrome starts the real Chrome process and verifies it responds
func (p *Pool) launchChrome() (context.Context, context.CancelFunc, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.config.Headless),
		chromedp.Flag("disable-gpu", p.config.DisableGPU),
		chromedp.Flag("no-sandbox", p.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(p.config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	cancel := func() {
		browserCancel()
		allocatorCancel()
	}

	launchTimeout := p.config.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = 30 * time.Second
	}
	testCtx, testCancel := context.WithTimeout(browserCtx, launchTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	return browserCtx, cancel, nil
}
