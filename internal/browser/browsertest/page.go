// Package browsertest provides scriptable in-memory implementations of browser.Page and
// browser.Handle for tests that drive UI flows without a real browser.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"xeroreports/internal/browser"
)

// Hook runs when the page is acted on, it may mutate the page to simulate the UI reacting.
type Hook func(p *FakePage) error

// FakePage is a browser.Page whose DOM is a set of visible selectors. Selectors are keyed by
// their String() form. WaitVisible on a selector that is not visible fails immediately with
// context.DeadlineExceeded so tests do not sleep through locator timeouts.
type FakePage struct {
	mu sync.Mutex

	url      string
	title    string
	html     string
	visible  map[string]bool
	texts    map[string]string
	cookies  []browser.Cookie
	onClick  map[string]Hook
	onFill   map[string]Hook
	onNav    func(p *FakePage, url string) error
	onKey    map[string]Hook
	dlDir    string
	closed   bool
	panicOn  string
	failNext map[string]error

	Navigations []string
	Clicks      []string
	Fills       map[string]string
	Keys        []string
	Screenshots []string
	WaitedFor   []string
}

func NewFakePage() *FakePage {
	return &FakePage{
		url:      "about:blank",
		visible:  map[string]bool{},
		texts:    map[string]string{},
		onClick:  map[string]Hook{},
		onFill:   map[string]Hook{},
		onKey:    map[string]Hook{},
		failNext: map[string]error{},
		Fills:    map[string]string{},
	}
}

// SetLocation sets the current url and title.
func (p *FakePage) SetLocation(url, title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.title = title
}

func (p *FakePage) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

// Show makes selectors visible.
func (p *FakePage) Show(selectors ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		p.visible[s] = true
	}
}

// Hide makes selectors invisible.
func (p *FakePage) Hide(selectors ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		delete(p.visible, s)
	}
}

func (p *FakePage) SetText(selector, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[selector] = text
	p.visible[selector] = true
}

func (p *FakePage) SetCookieJar(cookies []browser.Cookie) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append([]browser.Cookie(nil), cookies...)
}

func (p *FakePage) CookieJar() []browser.Cookie {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.cookies...)
}

func (p *FakePage) OnClick(selector string, hook Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[selector] = hook
	p.visible[selector] = true
}

func (p *FakePage) OnFill(selector string, hook Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFill[selector] = hook
	p.visible[selector] = true
}

func (p *FakePage) OnKey(key string, hook Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onKey[key] = hook
}

func (p *FakePage) OnNavigate(hook func(p *FakePage, url string) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNav = hook
}

// PanicOnClick makes a click on selector panic, used to check panic recovery in callers.
func (p *FakePage) PanicOnClick(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panicOn = selector
	p.visible[selector] = true
}

// FailNext makes the next call of the named method ("Navigate", "Cookies", ...) return err.
func (p *FakePage) FailNext(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext[method] = err
}

func (p *FakePage) DownloadDir() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dlDir
}

// Close makes every further call fail, like a page whose tab went away.
func (p *FakePage) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *FakePage) check(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return fmt.Errorf("page closed")
	}
	if err, ok := p.failNext[method]; ok {
		delete(p.failNext, method)
		return err
	}
	return nil
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	if err := p.check(ctx, "Navigate"); err != nil {
		p.mu.Unlock()
		return err
	}
	p.Navigations = append(p.Navigations, url)
	p.url = url
	hook := p.onNav
	p.mu.Unlock()

	if hook != nil {
		return hook(p, url)
	}
	return nil
}

func (p *FakePage) WaitReady(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.check(ctx, "WaitReady")
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "URL"); err != nil {
		return "", err
	}
	return p.url, nil
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "Title"); err != nil {
		return "", err
	}
	return p.title, nil
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "HTML"); err != nil {
		return "", err
	}
	return p.html, nil
}

func (p *FakePage) WaitVisible(ctx context.Context, sel browser.Selector) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "WaitVisible"); err != nil {
		return err
	}
	p.WaitedFor = append(p.WaitedFor, sel.String())
	if !p.visible[sel.String()] {
		return fmt.Errorf("wait visible %s: %w", sel, context.DeadlineExceeded)
	}
	return nil
}

func (p *FakePage) Click(ctx context.Context, sel browser.Selector) error {
	p.mu.Lock()
	if err := p.check(ctx, "Click"); err != nil {
		p.mu.Unlock()
		return err
	}
	key := sel.String()
	if !p.visible[key] {
		p.mu.Unlock()
		return fmt.Errorf("click %s: %w", sel, context.DeadlineExceeded)
	}
	if p.panicOn == key {
		p.mu.Unlock()
		panic(fmt.Sprintf("injected panic clicking %s", key))
	}
	p.Clicks = append(p.Clicks, key)
	hook := p.onClick[key]
	p.mu.Unlock()

	if hook != nil {
		return hook(p)
	}
	return nil
}

func (p *FakePage) Fill(ctx context.Context, sel browser.Selector, value string) error {
	p.mu.Lock()
	if err := p.check(ctx, "Fill"); err != nil {
		p.mu.Unlock()
		return err
	}
	key := sel.String()
	if !p.visible[key] {
		p.mu.Unlock()
		return fmt.Errorf("fill %s: %w", sel, context.DeadlineExceeded)
	}
	p.Fills[key] = value
	hook := p.onFill[key]
	p.mu.Unlock()

	if hook != nil {
		return hook(p)
	}
	return nil
}

func (p *FakePage) Text(ctx context.Context, sel browser.Selector) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "Text"); err != nil {
		return "", err
	}
	if !p.visible[sel.String()] {
		return "", fmt.Errorf("text %s: %w", sel, context.DeadlineExceeded)
	}
	return p.texts[sel.String()], nil
}

func (p *FakePage) PressKey(ctx context.Context, key string) error {
	p.mu.Lock()
	if err := p.check(ctx, "PressKey"); err != nil {
		p.mu.Unlock()
		return err
	}
	p.Keys = append(p.Keys, key)
	hook := p.onKey[key]
	p.mu.Unlock()

	if hook != nil {
		return hook(p)
	}
	return nil
}

func (p *FakePage) ScrollToBottom(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.check(ctx, "ScrollToBottom")
}

func (p *FakePage) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "Cookies"); err != nil {
		return nil, err
	}
	return append([]browser.Cookie(nil), p.cookies...), nil
}

func (p *FakePage) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "SetCookies"); err != nil {
		return err
	}
	p.cookies = append(p.cookies, cookies...)
	return nil
}

func (p *FakePage) ClearCookies(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "ClearCookies"); err != nil {
		return err
	}
	p.cookies = nil
	return nil
}

// Screenshot writes a placeholder file so callers can assert the path exists.
func (p *FakePage) Screenshot(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "Screenshot"); err != nil {
		return err
	}
	err := os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return err
	}
	err = os.WriteFile(path, []byte("\x89PNG"), 0666)
	if err != nil {
		return err
	}
	p.Screenshots = append(p.Screenshots, path)
	return nil
}

func (p *FakePage) SetDownloadDir(ctx context.Context, dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "SetDownloadDir"); err != nil {
		return err
	}
	p.dlDir = dir
	return os.MkdirAll(dir, 0777)
}
