package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/ternarybob/vigilo/internal/services/browser"
)

// Cookie is one captured browser cookie
type Cookie struct {
	Name  string
	Value string
}

// PopupWatch resolves when a popup page opens. Must be created before the
// action that may open the popup.
type PopupWatch interface {
	Wait(ctx context.Context) (Page, error)
}

// NavWatch resolves when the watched page navigates. Must be created before
// the action that may trigger the navigation.
type NavWatch interface {
	Wait(ctx context.Context) error
}

// Page abstracts one rendered browser page. The login state machine runs
// entirely against this interface so it can be exercised with a fake page.
type Page interface {
	// Navigate loads a URL, bounded by ctx
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the first element matching selector is visible
	WaitVisible(ctx context.Context, selector string) error

	// IsVisible reports whether a matching element is currently visible
	IsVisible(ctx context.Context, selector string) (bool, error)

	// Click clicks the first element matching selector
	Click(ctx context.Context, selector string) error

	// FindByText reports whether a button or link whose text contains every
	// fragment (case-insensitive) exists
	FindByText(ctx context.Context, fragments ...string) (bool, error)

	// ClickByText clicks the first button or link whose text contains every
	// fragment; returns false if none was found
	ClickByText(ctx context.Context, fragments ...string) (bool, error)

	// Fill clears the first matching input, types value and commits it with a
	// blur (tab) keystroke
	Fill(ctx context.Context, selector, value string) error

	// Count returns the number of elements matching selector
	Count(ctx context.Context, selector string) (int, error)

	// Content returns the current rendered HTML
	Content(ctx context.Context) (string, error)

	// Cookies returns every cookie of the page's browser context
	Cookies(ctx context.Context) ([]Cookie, error)

	// ExpectPopup arms a watch for a new page opening from this one
	ExpectPopup() PopupWatch

	// ExpectNavigation arms a watch for this page navigating
	ExpectNavigation() NavWatch

	// WaitClosed blocks until the page is gone, bounded by ctx
	WaitClosed(ctx context.Context) error

	// Close releases the page
	Close()
}

const findClickableJS = `(function(fragments, doClick) {
	var nodes = Array.prototype.slice.call(document.querySelectorAll("button, a"));
	for (var i = 0; i < nodes.length; i++) {
		var text = nodes[i].textContent.toLowerCase().replace(/\s+/g, " ").trim();
		var all = true;
		for (var j = 0; j < fragments.length; j++) {
			if (text.indexOf(fragments[j]) === -1) { all = false; break; }
		}
		if (all) {
			if (doClick) { nodes[i].click(); }
			return true;
		}
	}
	return false;
})(%s, %t)`

const isVisibleJS = `(function(sel) {
	var el = document.querySelector(sel);
	return !!(el && (el.offsetWidth || el.offsetHeight || el.getClientRects().length));
})(%s)`

// chromedpPage drives a real tab inside a browser sandbox
type chromedpPage struct {
	sandbox *browser.Sandbox
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPage wraps the sandbox's initial tab as a Page
func NewPage(sandbox *browser.Sandbox) Page {
	return &chromedpPage{
		sandbox: sandbox,
		ctx:     sandbox.Context(),
	}
}

func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := p.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromedpPage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromedpPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	js := fmt.Sprintf(isVisibleJS, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(js, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromedpPage) FindByText(ctx context.Context, fragments ...string) (bool, error) {
	return p.evalTextSearch(ctx, false, fragments)
}

func (p *chromedpPage) ClickByText(ctx context.Context, fragments ...string) (bool, error) {
	return p.evalTextSearch(ctx, true, fragments)
}

func (p *chromedpPage) evalTextSearch(ctx context.Context, doClick bool, fragments []string) (bool, error) {
	quoted := make([]string, len(fragments))
	for i, f := range fragments {
		quoted[i] = jsString(strings.ToLower(f))
	}
	js := fmt.Sprintf(findClickableJS, "["+strings.Join(quoted, ",")+"]", doClick)

	var found bool
	if err := p.run(ctx, chromedp.Evaluate(js, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (p *chromedpPage) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
		chromedp.SendKeys(selector, kb.Tab, chromedp.ByQuery),
	)
}

func (p *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var count int
	js := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(js, &count)); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *chromedpPage) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromedpPage) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		raw, err := storage.GetCookies().
			WithBrowserContextID(p.sandbox.ContextID()).
			Do(c)
		if err != nil {
			return err
		}
		for _, ck := range raw {
			cookies = append(cookies, Cookie{Name: ck.Name, Value: ck.Value})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

func (p *chromedpPage) ExpectPopup() PopupWatch {
	ch := chromedp.WaitNewTarget(p.ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.URL != ""
	})
	return &chromedpPopupWatch{page: p, ch: ch}
}

type chromedpPopupWatch struct {
	page *chromedpPage
	ch   <-chan target.ID
}

func (w *chromedpPopupWatch) Wait(ctx context.Context) (Page, error) {
	select {
	case id := <-w.ch:
		popupCtx, cancel := w.page.sandbox.AttachTarget(id)
		return &chromedpPage{
			sandbox: w.page.sandbox,
			ctx:     popupCtx,
			cancel:  cancel,
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *chromedpPage) ExpectNavigation() NavWatch {
	ch := make(chan struct{}, 1)
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		if nav, ok := ev.(*page.EventFrameNavigated); ok && nav.Frame.ParentID == "" {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	})
	return &chromedpNavWatch{ch: ch}
}

type chromedpNavWatch struct {
	ch <-chan struct{}
}

func (w *chromedpNavWatch) Wait(ctx context.Context) error {
	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *chromedpPage) WaitClosed(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// The evaluate fails once the target is gone
			if err := chromedp.Run(p.ctx, chromedp.Evaluate("1", nil)); err != nil {
				return nil
			}
		}
	}
}

func (p *chromedpPage) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

// jsString quotes a Go string as a JS string literal
func jsString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + replacer.Replace(s) + `"`
}
