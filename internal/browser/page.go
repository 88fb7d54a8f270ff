package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Page is the single active tab. Every method is bounded by the deadline of ctx, or by the
// runtime's default timeout when ctx has none.
//
// note: fault injection point
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	WaitVisible(ctx context.Context, sel Selector) error
	Click(ctx context.Context, sel Selector) error
	Fill(ctx context.Context, sel Selector, value string) error
	Text(ctx context.Context, sel Selector) (string, error)
	PressKey(ctx context.Context, key string) error
	ScrollToBottom(ctx context.Context) error

	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	ClearCookies(ctx context.Context) error

	Screenshot(ctx context.Context, path string) error
	SetDownloadDir(ctx context.Context, dir string) error
}

var keys = map[string]string{
	"Escape": kb.Escape,
	"Enter":  kb.Enter,
	"Tab":    kb.Tab,
}

type chromePage struct {
	tabCtx         context.Context
	defaultTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (p *chromePage) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *chromePage) active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.tabCtx.Err() == nil
}

// scope derives a context from the tab that also ends with ctx, chromedp actions must run
// on a descendant of the tab context.
func (p *chromePage) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(p.defaultTimeout)
	}
	runCtx, cancel := context.WithDeadline(p.tabCtx, deadline)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if !p.active() {
		return fmt.Errorf("page closed")
	}
	runCtx, cancel := p.scope(ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func by(sel Selector) chromedp.QueryOption {
	if sel.Kind == KindXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitReady(ctx context.Context) error {
	return p.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, chromedp.Location(&url))
	return url, err
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) WaitVisible(ctx context.Context, sel Selector) error {
	return p.run(ctx, chromedp.WaitVisible(sel.Expr, by(sel)))
}

func (p *chromePage) Click(ctx context.Context, sel Selector) error {
	return p.run(ctx, chromedp.Click(sel.Expr, by(sel), chromedp.NodeVisible))
}

func (p *chromePage) Fill(ctx context.Context, sel Selector, value string) error {
	return p.run(
		ctx,
		chromedp.WaitVisible(sel.Expr, by(sel)),
		chromedp.Clear(sel.Expr, by(sel)),
		chromedp.SendKeys(sel.Expr, value, by(sel)),
	)
}

func (p *chromePage) Text(ctx context.Context, sel Selector) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Text(sel.Expr, &text, by(sel), chromedp.NodeVisible))
	return text, err
}

func (p *chromePage) PressKey(ctx context.Context, key string) error {
	if mapped, ok := keys[key]; ok {
		key = mapped
	}
	return p.run(ctx, chromedp.KeyEvent(key))
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	return p.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

func (p *chromePage) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]Cookie, 0, len(raw))
		for _, c := range raw {
			cookies = append(cookies, cookieFromCDP(c))
		}
		return nil
	}))
	return cookies, err
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, cookieToCDP(c))
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
}

func (p *chromePage) ClearCookies(ctx context.Context) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.ClearBrowserCookies().Do(ctx)
	}))
}

func (p *chromePage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	err := p.run(ctx, chromedp.FullScreenshot(&buf, 100))
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0666)
}

func (p *chromePage) SetDownloadDir(ctx context.Context, dir string) error {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return p.run(ctx, cdpbrowser.
		SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(abs).
		WithEventsEnabled(true),
	)
}
