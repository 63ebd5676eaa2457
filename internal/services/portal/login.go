package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// Credentials are the portal login inputs, already decrypted
type Credentials struct {
	Email    string
	Password string
}

// LoginResult is the outcome of a successful login flow
type LoginResult struct {
	// CookieString is every cookie of the browser context as "name=value; ..."
	CookieString string

	// Scraped holds the rendered listing rows, used only as a fallback data
	// source when REST tokens cannot be derived from the cookies
	Scraped []models.Ticket

	// TicketCount is the number of rows visible on the listing page
	TicketCount int
}

// FlowConfig bounds every wait of the login flow. No step blocks indefinitely.
type FlowConfig struct {
	HomeURL           string
	TicketsURL        string
	NavigationTimeout time.Duration
	StepTimeout       time.Duration
	PopupRaceTimeout  time.Duration // Popup-vs-same-tab race window after the login click
	ConsentGrace      time.Duration // Window for the optional "stay signed in" prompt
	PopupCloseGrace   time.Duration // Wait for the popup to hand control back
	TieBreakGrace     time.Duration // Popup wins the race if it lands within this of a navigation
}

// DefaultFlowConfig returns the standard timeouts
func DefaultFlowConfig(homeURL, ticketsURL string) FlowConfig {
	return FlowConfig{
		HomeURL:           homeURL,
		TicketsURL:        ticketsURL,
		NavigationTimeout: 30 * time.Second,
		StepTimeout:       15 * time.Second,
		PopupRaceTimeout:  5 * time.Second,
		ConsentGrace:      2 * time.Second,
		PopupCloseGrace:   3 * time.Second,
		TieBreakGrace:     500 * time.Millisecond,
	}
}

// Flow is the federated-login state machine. It drives a Page through the
// portal's SSO flow and extracts the session cookies. One attempt, no
// internal retries; retry policy belongs to the orchestrator.
type Flow struct {
	config   FlowConfig
	locators []LocatorStrategy
	logger   arbor.ILogger
}

// NewFlow creates a login flow with the given locator strategies
func NewFlow(config FlowConfig, locators []LocatorStrategy, logger arbor.ILogger) *Flow {
	if len(locators) == 0 {
		locators = DefaultLoginLocators()
	}
	return &Flow{
		config:   config,
		locators: locators,
		logger:   logger,
	}
}

// flowRun is the mutable state threaded through one login attempt
type flowRun struct {
	creds  Credentials
	root   Page // Page the flow started on
	active Page // Page currently receiving input (popup or root)
	popup  Page // Non-nil once a popup took over

	located LocatorStrategy
	result  LoginResult
}

// transition is one edge of the state machine
type transition struct {
	from    State
	to      State
	percent int
	message string
	run     func(ctx context.Context, r *flowRun) *FlowError
}

func (f *Flow) transitions() []transition {
	return []transition{
		{StateInit, StatePageLoaded, 15, "Loading portal home", f.loadHome},
		{StatePageLoaded, StateLoginControlLocated, 25, "Locating login control", f.locateLoginControl},
		{StateLoginControlLocated, StateLoginNavigated, 35, "Opening login window", f.clickLoginControl},
		{StateLoginNavigated, StateEmailEntered, 45, "Entering email", f.enterEmail},
		{StateEmailEntered, StatePasswordEntered, 60, "Entering password", f.enterPassword},
		{StatePasswordEntered, StateConsentHandled, 75, "Handling consent prompt", f.handleConsent},
		{StateConsentHandled, StateTicketsPageLoaded, 85, "Loading ticket listing", f.loadTickets},
		{StateTicketsPageLoaded, StateCookiesExtracted, 92, "Extracting session cookies", f.extractCookies},
		{StateCookiesExtracted, StateDone, 97, "Scraping listing", f.scrapeListing},
	}
}

// Run executes the login flow against page. The progress callback is
// observational only and never affects control flow.
func (f *Flow) Run(ctx context.Context, page Page, creds Credentials, progress interfaces.ProgressFunc) (*LoginResult, error) {
	report := func(percent int, message string) {
		if progress != nil {
			progress(percent, message)
		}
	}

	r := &flowRun{creds: creds, root: page, active: page}

	state := StateInit
	for _, tr := range f.transitions() {
		report(tr.percent, tr.message)
		f.logger.Debug().
			Str("from", tr.from.String()).
			Str("to", tr.to.String()).
			Msg("Login transition")

		if err := tr.run(ctx, r); err != nil {
			f.logger.Warn().
				Str("state", tr.from.String()).
				Str("reason", string(err.Reason)).
				Err(err.Err).
				Msg("Login flow failed")
			return nil, err
		}
		state = tr.to
	}

	if state != StateDone {
		return nil, failed(state, StateDone, ReasonNoSessionEstablished, nil)
	}

	report(100, "Login complete")
	return &r.result, nil
}

func (f *Flow) loadHome(ctx context.Context, r *flowRun) *FlowError {
	navCtx, cancel := context.WithTimeout(ctx, f.config.NavigationTimeout)
	defer cancel()

	if err := r.root.Navigate(navCtx, f.config.HomeURL); err != nil {
		return failed(StateInit, StatePageLoaded, ReasonNavigationTimeout, err)
	}
	return nil
}

func (f *Flow) locateLoginControl(ctx context.Context, r *flowRun) *FlowError {
	for _, strategy := range f.locators {
		locCtx, cancel := context.WithTimeout(ctx, f.config.StepTimeout)
		found, err := strategy.Locate(locCtx, r.root)
		cancel()

		if err != nil {
			f.logger.Debug().
				Str("strategy", strategy.Name()).
				Err(err).
				Msg("Locator strategy errored, trying next")
			continue
		}
		if found {
			f.logger.Debug().Str("strategy", strategy.Name()).Msg("Login control located")
			r.located = strategy
			return nil
		}
	}
	return failed(StatePageLoaded, StateLoginControlLocated, ReasonLoginControlNotFound, nil)
}

func (f *Flow) clickLoginControl(ctx context.Context, r *flowRun) *FlowError {
	fail := func(err error) *FlowError {
		return failed(StateLoginControlLocated, StateLoginNavigated, ReasonLoginNavigationTimeout, err)
	}

	// Both watches must be armed before the click
	popupWatch := r.root.ExpectPopup()
	navWatch := r.root.ExpectNavigation()

	clickCtx, cancel := context.WithTimeout(ctx, f.config.StepTimeout)
	err := r.located.Activate(clickCtx, r.root)
	cancel()
	if err != nil {
		return fail(err)
	}

	raceCtx, cancelRace := context.WithTimeout(ctx, f.config.PopupRaceTimeout)
	defer cancelRace()

	popupCh := make(chan Page, 1)
	navCh := make(chan struct{}, 1)
	go func() {
		if popup, err := popupWatch.Wait(raceCtx); err == nil {
			popupCh <- popup
		}
	}()
	go func() {
		if err := navWatch.Wait(raceCtx); err == nil {
			navCh <- struct{}{}
		}
	}()

	select {
	case popup := <-popupCh:
		f.logger.Debug().Msg("Login opened in popup")
		r.popup = popup
		r.active = popup
	case <-navCh:
		// Same-page navigation resolved first; the popup still wins the
		// tie if it lands within the grace window.
		select {
		case popup := <-popupCh:
			f.logger.Debug().Msg("Popup won race tie-break")
			r.popup = popup
			r.active = popup
		case <-time.After(f.config.TieBreakGrace):
			f.logger.Debug().Msg("Login navigated in same tab")
		}
	case <-raceCtx.Done():
		return fail(raceCtx.Err())
	}
	return nil
}

func (f *Flow) enterEmail(ctx context.Context, r *flowRun) *FlowError {
	fail := func(err error) *FlowError {
		return failed(StateLoginNavigated, StateEmailEntered, ReasonEmailFieldTimeout, err)
	}

	stepCtx, cancel := context.WithTimeout(ctx, f.config.StepTimeout)
	defer cancel()

	if err := r.active.WaitVisible(stepCtx, selEmailInput); err != nil {
		return fail(err)
	}
	if err := r.active.Fill(stepCtx, selEmailInput, r.creds.Email); err != nil {
		return fail(err)
	}
	if err := r.active.Click(stepCtx, selSubmitButton); err != nil {
		return fail(err)
	}
	return nil
}

func (f *Flow) enterPassword(ctx context.Context, r *flowRun) *FlowError {
	fail := func(err error) *FlowError {
		return failed(StateEmailEntered, StatePasswordEntered, ReasonPasswordFieldTimeout, err)
	}

	stepCtx, cancel := context.WithTimeout(ctx, f.config.StepTimeout)
	defer cancel()

	if err := r.active.WaitVisible(stepCtx, selPasswordInput); err != nil {
		return fail(err)
	}
	if err := r.active.Fill(stepCtx, selPasswordInput, r.creds.Password); err != nil {
		return fail(err)
	}
	if err := r.active.Click(stepCtx, selSubmitButton); err != nil {
		return fail(err)
	}
	return nil
}

// handleConsent dismisses the "stay signed in" prompt if it shows up within
// the grace window. The prompt can render a beat after the password submit,
// so the whole window is waited out. Its absence is not an error.
func (f *Flow) handleConsent(ctx context.Context, r *flowRun) *FlowError {
	graceCtx, cancel := context.WithTimeout(ctx, f.config.ConsentGrace)
	defer cancel()

	if err := r.active.WaitVisible(graceCtx, selConsentButton); err != nil {
		f.logger.Debug().Msg("Consent prompt not shown")
		return nil
	}

	clickCtx, cancelClick := context.WithTimeout(ctx, f.config.StepTimeout)
	defer cancelClick()

	if err := r.active.Click(clickCtx, selConsentButton); err != nil {
		f.logger.Debug().Err(err).Msg("Consent click failed, continuing")
	}
	return nil
}

func (f *Flow) loadTickets(ctx context.Context, r *flowRun) *FlowError {
	// Wait briefly for the popup to hand control back; non-fatal on timeout
	if r.popup != nil {
		closeCtx, cancel := context.WithTimeout(ctx, f.config.PopupCloseGrace)
		if err := r.popup.WaitClosed(closeCtx); err == nil {
			f.logger.Debug().Msg("Login popup closed, control back on main page")
			r.active = r.root
		} else {
			f.logger.Debug().Msg("Login popup did not close, continuing on it")
		}
		cancel()
	}

	navCtx, cancel := context.WithTimeout(ctx, f.config.NavigationTimeout)
	defer cancel()

	if err := r.active.Navigate(navCtx, f.config.TicketsURL); err != nil {
		return failed(StateConsentHandled, StateTicketsPageLoaded, ReasonNavigationTimeout, err)
	}

	// Zero rows is a valid empty listing; only the wait is bounded
	rowCtx, cancelRow := context.WithTimeout(ctx, f.config.StepTimeout)
	defer cancelRow()
	if err := r.active.WaitVisible(rowCtx, selTicketRow); err != nil {
		f.logger.Debug().Msg("No ticket rows visible, treating as empty listing")
		r.result.TicketCount = 0
		return nil
	}

	count, err := r.active.Count(rowCtx, selTicketRow)
	if err == nil {
		r.result.TicketCount = count
	}
	return nil
}

func (f *Flow) extractCookies(ctx context.Context, r *flowRun) *FlowError {
	stepCtx, cancel := context.WithTimeout(ctx, f.config.StepTimeout)
	defer cancel()

	cookies, err := r.active.Cookies(stepCtx)
	if err != nil {
		return failed(StateTicketsPageLoaded, StateCookiesExtracted, ReasonNoSessionEstablished, err)
	}
	if len(cookies) == 0 {
		// A silent login failure leaves the context without cookies
		return failed(StateTicketsPageLoaded, StateCookiesExtracted, ReasonNoSessionEstablished,
			fmt.Errorf("no cookies captured"))
	}

	parts := make([]string, len(cookies))
	for i, c := range cookies {
		parts[i] = c.Name + "=" + c.Value
	}
	r.result.CookieString = strings.Join(parts, "; ")

	f.logger.Debug().Int("cookies", len(cookies)).Msg("Session cookies extracted")
	return nil
}

// scrapeListing captures the rendered rows as a fallback data source.
// Scrape failures are non-fatal; the session is already established.
func (f *Flow) scrapeListing(ctx context.Context, r *flowRun) *FlowError {
	stepCtx, cancel := context.WithTimeout(ctx, f.config.StepTimeout)
	defer cancel()

	html, err := r.active.Content(stepCtx)
	if err != nil {
		f.logger.Debug().Err(err).Msg("Listing content unavailable, skipping scrape")
		return nil
	}

	rows, err := ParseListing(html)
	if err != nil {
		f.logger.Debug().Err(err).Msg("Listing scrape failed, continuing without rows")
		return nil
	}
	r.result.Scraped = rows
	return nil
}
