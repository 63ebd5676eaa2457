package portal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// fakePage is an in-memory Page so the flow can run without a browser
type fakePage struct {
	mu sync.Mutex

	visible   map[string]bool
	textFound bool
	count     int
	html      string
	cookies   []Cookie

	navErr     error
	cookiesErr error
	closedErr  error // WaitClosed return value

	navigated []string
	clicked   []string
	filled    map[string]string

	popupCh chan Page
	navCh   chan struct{}
}

func newFakePage() *fakePage {
	return &fakePage{
		visible: make(map[string]bool),
		filled:  make(map[string]string),
		popupCh: make(chan Page, 1),
		navCh:   make(chan struct{}, 1),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navErr != nil {
		return p.navErr
	}
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	for {
		p.mu.Lock()
		ok := p.visible[selector]
		p.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (p *fakePage) setVisible(selector string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible[selector] = ok
}

func (p *fakePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[selector], nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) FindByText(ctx context.Context, fragments ...string) (bool, error) {
	return p.textFound, nil
}

func (p *fakePage) ClickByText(ctx context.Context, fragments ...string) (bool, error) {
	if !p.textFound {
		return false, nil
	}
	p.mu.Lock()
	p.clicked = append(p.clicked, "text:"+fragments[0])
	p.mu.Unlock()
	return true, nil
}

func (p *fakePage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filled[selector] = value
	return nil
}

func (p *fakePage) Count(ctx context.Context, selector string) (int, error) {
	return p.count, nil
}

func (p *fakePage) Content(ctx context.Context) (string, error) {
	return p.html, nil
}

func (p *fakePage) Cookies(ctx context.Context) ([]Cookie, error) {
	if p.cookiesErr != nil {
		return nil, p.cookiesErr
	}
	return p.cookies, nil
}

func (p *fakePage) ExpectPopup() PopupWatch {
	return &fakePopupWatch{ch: p.popupCh}
}

type fakePopupWatch struct {
	ch chan Page
}

func (w *fakePopupWatch) Wait(ctx context.Context) (Page, error) {
	select {
	case popup := <-w.ch:
		return popup, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *fakePage) ExpectNavigation() NavWatch {
	return &fakeNavWatch{ch: p.navCh}
}

type fakeNavWatch struct {
	ch chan struct{}
}

func (w *fakeNavWatch) Wait(ctx context.Context) error {
	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePage) WaitClosed(ctx context.Context) error {
	if p.closedErr == nil {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) Close() {}

func (p *fakePage) clickedSelectors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.clicked...)
}

// loggedInPage builds a page where every step of the flow succeeds
func loggedInPage() *fakePage {
	p := newFakePage()
	p.visible[selFederatedLogin] = true
	p.visible[selEmailInput] = true
	p.visible[selPasswordInput] = true
	p.visible[selTicketRow] = true
	p.count = 3
	p.html = "<html><body></body></html>"
	p.cookies = []Cookie{
		{Name: "SESSION", Value: "sid-1"},
		{Name: "HYPER-AUTH-TOKEN", Value: "tok-1"},
	}
	return p
}

func testFlowConfig() FlowConfig {
	return FlowConfig{
		HomeURL:           "https://portal.example/home",
		TicketsURL:        "https://portal.example/tickets",
		NavigationTimeout: 500 * time.Millisecond,
		StepTimeout:       100 * time.Millisecond,
		PopupRaceTimeout:  300 * time.Millisecond,
		ConsentGrace:      50 * time.Millisecond,
		PopupCloseGrace:   50 * time.Millisecond,
		TieBreakGrace:     150 * time.Millisecond,
	}
}

func testCreds() Credentials {
	return Credentials{Email: "user@example.com", Password: "secret"}
}

func TestFlow_SameTabLogin(t *testing.T) {
	page := loggedInPage()
	page.navCh <- struct{}{}

	var percents []int
	progress := func(percent int, message string) {
		percents = append(percents, percent)
	}

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	result, err := flow.Run(context.Background(), page, testCreds(), progress)
	require.NoError(t, err)

	assert.Contains(t, result.CookieString, "SESSION=sid-1")
	assert.Contains(t, result.CookieString, "HYPER-AUTH-TOKEN=tok-1")
	assert.Equal(t, 3, result.TicketCount)

	assert.Equal(t, "user@example.com", page.filled[selEmailInput])
	assert.Equal(t, "secret", page.filled[selPasswordInput])
	assert.Contains(t, page.navigated, "https://portal.example/home")
	assert.Contains(t, page.navigated, "https://portal.example/tickets")

	require.NotEmpty(t, percents)
	assert.Equal(t, 100, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestFlow_PopupLogin(t *testing.T) {
	root := loggedInPage()
	// Credentials are entered on the popup, which then closes
	popup := newFakePage()
	popup.visible[selEmailInput] = true
	popup.visible[selPasswordInput] = true
	root.popupCh <- popup

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	result, err := flow.Run(context.Background(), root, testCreds(), nil)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", popup.filled[selEmailInput])
	assert.Equal(t, "secret", popup.filled[selPasswordInput])

	// Popup closed, so the listing load and cookie capture happen on the root
	assert.Contains(t, root.navigated, "https://portal.example/tickets")
	assert.Contains(t, result.CookieString, "SESSION=sid-1")
}

func TestFlow_PopupWinsTieBreak(t *testing.T) {
	root := loggedInPage()
	popup := newFakePage()
	popup.visible[selEmailInput] = true
	popup.visible[selPasswordInput] = true

	// Same-tab navigation resolves first, the popup lands shortly after
	root.navCh <- struct{}{}
	time.AfterFunc(30*time.Millisecond, func() {
		root.popupCh <- popup
	})

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), root, testCreds(), nil)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", popup.filled[selEmailInput], "credentials should go to the popup")
	assert.Empty(t, root.filled[selEmailInput])
}

func TestFlow_LoginControlNotFound(t *testing.T) {
	page := newFakePage()

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), page, testCreds(), nil)
	require.Error(t, err)

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonLoginControlNotFound, flowErr.Reason)
	assert.Equal(t, StatePageLoaded, flowErr.From)
}

func TestFlow_TextSearchFallback(t *testing.T) {
	page := loggedInPage()
	page.visible[selFederatedLogin] = false
	page.textFound = true
	page.navCh <- struct{}{}

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), page, testCreds(), nil)
	require.NoError(t, err)

	assert.Contains(t, page.clickedSelectors(), "text:entra")
}

func TestFlow_HomeNavigationFails(t *testing.T) {
	page := newFakePage()
	page.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), page, testCreds(), nil)

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonNavigationTimeout, flowErr.Reason)
}

func TestFlow_NoPopupNoNavigation(t *testing.T) {
	page := newFakePage()
	page.visible[selFederatedLogin] = true

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), page, testCreds(), nil)

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonLoginNavigationTimeout, flowErr.Reason)
}

func TestFlow_EmailFieldNeverAppears(t *testing.T) {
	page := loggedInPage()
	page.visible[selEmailInput] = false
	page.navCh <- struct{}{}

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), page, testCreds(), nil)

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonEmailFieldTimeout, flowErr.Reason)
}

func TestFlow_PasswordFieldNeverAppears(t *testing.T) {
	page := loggedInPage()
	page.visible[selPasswordInput] = false
	page.navCh <- struct{}{}

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), page, testCreds(), nil)

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonPasswordFieldTimeout, flowErr.Reason)
}

func TestFlow_NoCookiesCaptured(t *testing.T) {
	page := loggedInPage()
	page.cookies = nil
	page.navCh <- struct{}{}

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), page, testCreds(), nil)

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ReasonNoSessionEstablished, flowErr.Reason)
}

func TestFlow_EmptyListingIsValid(t *testing.T) {
	page := loggedInPage()
	page.visible[selTicketRow] = false
	page.count = 0
	page.navCh <- struct{}{}

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	result, err := flow.Run(context.Background(), page, testCreds(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TicketCount)
}

func TestFlow_ConsentPromptAppearsLate(t *testing.T) {
	page := loggedInPage()
	page.navCh <- struct{}{}

	// Banner renders a moment after the password submit, well inside the grace window
	time.AfterFunc(20*time.Millisecond, func() {
		page.setVisible(selConsentButton, true)
	})

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), page, testCreds(), nil)
	require.NoError(t, err)

	assert.Contains(t, page.clickedSelectors(), selConsentButton)
}

func TestFlow_ConsentPromptClicked(t *testing.T) {
	page := loggedInPage()
	page.visible[selConsentButton] = true
	page.navCh <- struct{}{}

	flow := NewFlow(testFlowConfig(), nil, arbor.NewLogger())
	_, err := flow.Run(context.Background(), page, testCreds(), nil)
	require.NoError(t, err)

	assert.Contains(t, page.clickedSelectors(), selConsentButton)
}
