package portal

import (
	"context"
)

// LocatorStrategy is one way of finding and activating a UI control. The
// state machine tries an ordered list; the first strategy that locates its
// control wins. The concrete portal selectors live here, never in the flow.
type LocatorStrategy interface {
	Name() string

	// Locate reports whether the control is present on the page
	Locate(ctx context.Context, page Page) (bool, error)

	// Activate clicks the control found by Locate
	Activate(ctx context.Context, page Page) error
}

// selectorLocator finds a control by CSS selector
type selectorLocator struct {
	name     string
	selector string
}

func (l *selectorLocator) Name() string { return l.name }

func (l *selectorLocator) Locate(ctx context.Context, page Page) (bool, error) {
	return page.IsVisible(ctx, l.selector)
}

func (l *selectorLocator) Activate(ctx context.Context, page Page) error {
	return page.Click(ctx, l.selector)
}

// textLocator finds a button or link by a textual DOM search
type textLocator struct {
	name      string
	fragments []string
}

func (l *textLocator) Name() string { return l.name }

func (l *textLocator) Locate(ctx context.Context, page Page) (bool, error) {
	return page.FindByText(ctx, l.fragments...)
}

func (l *textLocator) Activate(ctx context.Context, page Page) error {
	found, err := page.ClickByText(ctx, l.fragments...)
	if err != nil {
		return err
	}
	if !found {
		return context.DeadlineExceeded
	}
	return nil
}

// Portal-specific selectors. Brittle by nature; isolated here so they can be
// updated without touching the state machine.
const (
	selFederatedLogin = `button.gsi-material-button`
	selEmailInput     = `input[type="email"], input[name="loginfmt"], input[name="username"], input[name="email"]`
	selPasswordInput  = `input[type="password"], input[name="passwd"], input[name="password"]`
	selSubmitButton   = `input[type="submit"], button[type="submit"], #idSIButton9`
	selConsentButton  = `input[type="submit"], #idSIButton9`
	selTicketRow      = `[name="list-item"]`
)

// DefaultLoginLocators is the ordered strategy list for the federated-login
// control: CSS selector first, textual search second.
func DefaultLoginLocators() []LocatorStrategy {
	return []LocatorStrategy{
		&selectorLocator{name: "css-selector", selector: selFederatedLogin},
		&textLocator{name: "text-search", fragments: []string{"entra", "id"}},
	}
}
