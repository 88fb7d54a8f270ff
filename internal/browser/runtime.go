package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
	"xeroreports/internal/components/assert"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/failure"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("xeroreports/internal/browser")

const (
	report_runtime_start = "runtime.start"
	report_runtime_stop  = "runtime.stop"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// hides navigator.webdriver, which the target's bot checks look at
const stealthScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// State is the in-memory runtime state reported by health and status endpoints.
type State struct {
	Initialized      bool `json:"initialized"`
	Headless         bool `json:"headless"`
	BrowserConnected bool `json:"browser_connected"`
	ContextActive    bool `json:"context_active"`
	PageActive       bool `json:"page_active"`
}

// Handle is what the auth machine, routines and service need from a browser runtime.
//
// note: fault injection point
type Handle interface {
	Start(ctx context.Context, headless bool) error
	Stop() error
	Restart(ctx context.Context, headless bool) error
	EnsureStarted(ctx context.Context, headless bool) error
	Page() (Page, error)
	State() State
}

type Options struct {
	// ExecPath overrides the chrome binary, empty means chromedp's lookup.
	ExecPath string
	// RemoteURL connects to an already running browser (ws:// devtools url) instead of
	// spawning one, headless is then decided by that browser.
	RemoteURL string
	UserAgent string
	// DefaultTimeout bounds page operations whose context carries no deadline.
	DefaultTimeout time.Duration
	// LaunchTimeout bounds process start and the first devtools round trip.
	LaunchTimeout time.Duration
	DownloadDir   string
}

// Runtime owns one browser process, one browsing context and one page.
type Runtime struct {
	opts Options
	tel  telemetry.API

	mu            sync.Mutex
	running       bool
	headless      bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	page          *chromePage
}

func NewRuntime(opts Options, tel telemetry.API) *Runtime {
	assert.NotNil(tel, "tel")
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = 60 * time.Second
	}
	return &Runtime{
		opts: opts,
		tel:  telemetry.NewScopedAPI("browser", tel),
	}
}

func (r *Runtime) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(r.opts.UserAgent),
	)
	if r.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.opts.ExecPath))
	}
	return opts
}

func (r *Runtime) aliveLocked() bool {
	return r.running && r.browserCtx != nil && r.browserCtx.Err() == nil
}

// Start launches the browser if none is running. It is a no-op when already running in the
// requested mode and fails with ErrModeConflict when running in the other one.
func (r *Runtime) Start(ctx context.Context, headless bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aliveLocked() {
		if r.headless == headless {
			return nil
		}
		return fmt.Errorf("start headless=%v: %w", headless, failure.ErrModeConflict)
	}
	if r.running {
		// crashed or closed underneath us
		r.stopLocked()
	}
	return r.startLocked(ctx, headless)
}

func (r *Runtime) startLocked(ctx context.Context, headless bool) error {
	ctx, span := tracer.Start(ctx, "runtime:Start")
	defer span.End()
	span.SetAttributes(attribute.Bool("headless", headless))

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if r.opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), r.allocatorOptions(headless)...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// the first Run allocates the browser, its context must not carry a deadline or the
	// whole browser dies with it, so the bound is applied from the outside
	launched := make(chan error, 1)
	go func() {
		launched <- chromedp.Run(
			browserCtx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
				return err
			}),
		)
	}()

	timer := time.NewTimer(r.opts.LaunchTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-launched:
	case <-timer.C:
		err = fmt.Errorf("no response after %s", r.opts.LaunchTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, "launch failed")
		r.tel.ReportBroken(report_runtime_start, err, headless)
		return fmt.Errorf("%w: %w", failure.ErrLaunch, err)
	}

	r.running = true
	r.headless = headless
	r.allocCancel = allocCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel
	r.page = &chromePage{
		tabCtx:         browserCtx,
		defaultTimeout: r.opts.DefaultTimeout,
	}

	if r.opts.DownloadDir != "" {
		err = r.page.SetDownloadDir(ctx, r.opts.DownloadDir)
		if err != nil {
			r.tel.ReportWarning(report_runtime_start, fmt.Errorf("set download dir: %w", err))
		}
	}

	r.tel.ReportDebug("browser started", "headless", headless)
	return nil
}

// Stop tears down page, context and browser in that order. Stopping a stopped runtime is a
// no-op.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

func (r *Runtime) stopLocked() error {
	if !r.running {
		return nil
	}

	if r.page != nil {
		r.page.close()
	}
	var err error
	if r.browserCtx != nil && r.browserCtx.Err() == nil {
		err = chromedp.Cancel(r.browserCtx)
		if err != nil {
			r.tel.ReportWarning(report_runtime_stop, err)
		}
	}
	if r.browserCancel != nil {
		r.browserCancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}

	r.running = false
	r.page = nil
	r.browserCtx = nil
	r.browserCancel = nil
	r.allocCancel = nil

	r.tel.ReportDebug("browser stopped")
	return err
}

// Restart is Stop followed by Start in the given mode.
func (r *Runtime) Restart(ctx context.Context, headless bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.stopLocked()
	if err != nil {
		r.tel.ReportWarning(report_runtime_stop, fmt.Errorf("restart: %w", err))
	}
	return r.startLocked(ctx, headless)
}

// EnsureStarted starts the browser if it is not running or has crashed. A live browser is
// kept whatever its mode.
func (r *Runtime) EnsureStarted(ctx context.Context, headless bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aliveLocked() {
		return nil
	}
	if r.running {
		r.tel.ReportWarning(report_runtime_start, "browser died, relaunching")
		r.stopLocked()
	}
	return r.startLocked(ctx, headless)
}

func (r *Runtime) Page() (Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.aliveLocked() || r.page == nil {
		return nil, failure.ErrNotStarted
	}
	return r.page, nil
}

func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	alive := r.aliveLocked()
	return State{
		Initialized:      r.running,
		Headless:         r.running && r.headless,
		BrowserConnected: alive,
		ContextActive:    alive,
		PageActive:       alive && r.page != nil && r.page.active(),
	}
}
