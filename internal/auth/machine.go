// Package auth drives the manual-login handshake, restores persisted sessions into the
// browser and keeps track of which tenant the UI is on.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"xeroreports/internal/browser"
	"xeroreports/internal/components/assert"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/failure"
	"xeroreports/internal/locator"
	"xeroreports/internal/session"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("xeroreports/internal/auth")

const (
	report_machine_complete       = "machine.complete"
	report_machine_restore        = "machine.restore"
	report_machine_list_tenants   = "machine.list-tenants"
	report_machine_switch_tenant  = "machine.switch-tenant"
	report_machine_delete_session = "machine.delete-session"
	report_machine_screenshot     = "machine.screenshot"
)

const (
	LOGIN_URL     = "https://login.xero.com"
	APP_URL       = "https://go.xero.com"
	DASHBOARD_URL = APP_URL + "/Dashboard"

	loginHost = "login.xero.com"
	appHost   = "go.xero.com"
)

const SETUP_INSTRUCTIONS = "Log in to Xero in the opened browser window, including any MFA prompt. " +
	"Once the dashboard is visible, call complete to capture the session."

const tenantCacheKey = "tenants"

// REASON_EXPIRED is the restore reason for a stored session past its expiry.
const REASON_EXPIRED failure.Kind = "session_expired"

// SessionStore is the subset of session.Store the machine needs.
//
// note: fault injection point
type SessionStore interface {
	Save(ctx context.Context, cookies []browser.Cookie, tokens map[string]string, expiry *time.Time) error
	Load(ctx context.Context) (session.Record, error)
	Status(ctx context.Context) (session.Status, error)
	Delete(ctx context.Context) error
}

type Options struct {
	NavigationTimeout time.Duration
	ScreenshotDir     string
	TenantCacheTTL    time.Duration
}

type Tenant struct {
	Name    string `json:"name"`
	Current bool   `json:"current"`
}

type SetupResult struct {
	State        State  `json:"state"`
	LoginURL     string `json:"login_url"`
	CurrentURL   string `json:"current_url"`
	Instructions string `json:"instructions"`
}

type CompleteResult struct {
	State       State  `json:"state"`
	Tenant      string `json:"tenant"`
	CookieCount int    `json:"cookie_count"`
}

type RestoreResult struct {
	LoggedIn    bool   `json:"logged_in"`
	NeedsReauth bool   `json:"needs_reauth"`
	Reason      string `json:"reason,omitempty"`
	Tenant      string `json:"tenant,omitempty"`
	Screenshot  string `json:"screenshot,omitempty"`
}

type StatusResult struct {
	State   State          `json:"state"`
	Tenant  string         `json:"tenant,omitempty"`
	Browser browser.State  `json:"browser"`
	Session session.Status `json:"session"`
}

type Machine struct {
	runtime browser.Handle
	store   SessionStore
	loc     locator.Locator
	clock   chrono.API
	opts    Options
	tel     telemetry.API
	tenants *expirable.LRU[string, []string]

	mu     sync.RWMutex
	state  State
	tenant string
}

func NewMachine(
	runtime browser.Handle,
	store SessionStore,
	loc locator.Locator,
	clock chrono.API,
	opts Options,
	tel telemetry.API,
) *Machine {
	assert.NotNil(runtime, "runtime")
	assert.NotNil(store, "store")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "tel")

	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.TenantCacheTTL <= 0 {
		opts.TenantCacheTTL = 5 * time.Minute
	}
	return &Machine{
		runtime: runtime,
		store:   store,
		loc:     loc,
		clock:   clock,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("auth", tel),
		tenants: expirable.NewLRU[string, []string](1, nil, opts.TenantCacheTTL),
		state:   STATE_UNAUTHENTICATED,
	}
}

func (m *Machine) current() (State, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.tenant
}

func (m *Machine) set(state State, tenant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.tenant = tenant
}

func (m *Machine) guard(action Action) (State, string, error) {
	state, tenant := m.current()
	if !ValidTransition(action, state) {
		return state, tenant, fmt.Errorf("%w: cannot %s while %s", failure.ErrInvalidState, action, state)
	}
	return state, tenant, nil
}

// CurrentTenant is the tenant the UI is on, empty unless authenticated.
func (m *Machine) CurrentTenant() string {
	_, tenant := m.current()
	return tenant
}

func (m *Machine) State() State {
	state, _ := m.current()
	return state
}

func (m *Machine) page() (browser.Page, error) {
	return m.runtime.Page()
}

func (m *Machine) navigate(ctx context.Context, page browser.Page, url string) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.NavigationTimeout)
	defer cancel()
	err := page.Navigate(ctx, url)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	err = page.WaitReady(ctx)
	if err != nil {
		return fmt.Errorf("wait ready %s: %w", url, err)
	}
	return nil
}

// Screenshot saves the current page under the screenshot dir and returns its path, failures
// are reported and yield an empty path.
func (m *Machine) Screenshot(ctx context.Context, page browser.Page, label string) string {
	if m.opts.ScreenshotDir == "" {
		return ""
	}
	path := filepath.Join(
		m.opts.ScreenshotDir,
		fmt.Sprintf("%s_%s.png", label, m.clock.Now().Format("20060102_150405")),
	)
	err := os.MkdirAll(m.opts.ScreenshotDir, 0777)
	if err == nil {
		err = page.Screenshot(context.WithoutCancel(ctx), path)
	}
	if err != nil {
		m.tel.ReportWarning(report_machine_screenshot, label, err)
		return ""
	}
	return path
}

// isLoggedIn only returns an error when ctx ends.
func (m *Machine) isLoggedIn(ctx context.Context, page browser.Page) (bool, error) {
	url, err := page.URL(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(url, loginHost) {
		return false, nil
	}
	if strings.Contains(url, appHost) {
		found, err := m.loc.Exists(ctx, page, locator.SHELL_MARKER)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	title, err := page.Title(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(title, "Xero") && !strings.Contains(title, "Login"), nil
}

// readTenant reads the tenant from the title, then from the switcher.
func (m *Machine) readTenant(ctx context.Context, page browser.Page) string {
	title, err := page.Title(ctx)
	if err == nil {
		if tenant := TenantFromTitle(title); tenant != "" {
			return tenant
		}
	}
	text, err := m.loc.Text(ctx, page, locator.ORG_SWITCHER)
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

// Setup opens a headed browser on the login page and waits for the operator, it does not
// block on the login itself.
func (m *Machine) Setup(ctx context.Context) (SetupResult, error) {
	ctx, span := tracer.Start(ctx, "Setup")
	defer span.End()

	_, _, err := m.guard(ACTION_SETUP)
	if err != nil {
		return SetupResult{}, err
	}

	err = m.runtime.Restart(ctx, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "restart headed")
		return SetupResult{}, err
	}
	page, err := m.page()
	if err != nil {
		return SetupResult{}, err
	}
	err = m.navigate(ctx, page, LOGIN_URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigate login")
		return SetupResult{}, err
	}
	url, err := page.URL(ctx)
	if err != nil {
		return SetupResult{}, err
	}

	m.set(STATE_AWAITING_LOGIN, "")
	return SetupResult{
		State:        STATE_AWAITING_LOGIN,
		LoginURL:     LOGIN_URL,
		CurrentURL:   url,
		Instructions: SETUP_INSTRUCTIONS,
	}, nil
}

// Complete captures the cookies of the headed login, persists them and moves the runtime to
// headless with the session applied.
func (m *Machine) Complete(ctx context.Context) (CompleteResult, error) {
	ctx, span := tracer.Start(ctx, "Complete")
	defer span.End()

	_, _, err := m.guard(ACTION_COMPLETE)
	if err != nil {
		return CompleteResult{}, err
	}

	page, err := m.page()
	if err != nil {
		return CompleteResult{}, err
	}
	loggedIn, err := m.isLoggedIn(ctx, page)
	if err != nil {
		return CompleteResult{}, err
	}
	if !loggedIn {
		return CompleteResult{}, &failure.StepError{
			Report:     "auth",
			Step:       "complete",
			Screenshot: m.Screenshot(ctx, page, "login_incomplete"),
			Err:        failure.ErrLoginIncomplete,
		}
	}

	// must happen before the restart below destroys the headed context
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("capture cookies: %w", err)
	}
	if len(cookies) == 0 {
		return CompleteResult{}, failure.ErrNoCookies
	}
	err = m.store.Save(ctx, cookies, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save session")
		return CompleteResult{}, fmt.Errorf("save session: %w", err)
	}
	m.tenants.Purge()

	tenant, err := m.applySession(ctx, cookies, true)
	if err != nil {
		m.tel.ReportBroken(report_machine_complete, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply session")
		m.set(STATE_UNAUTHENTICATED, "")
		return CompleteResult{}, err
	}

	m.set(STATE_AUTHENTICATED, tenant)
	span.SetAttributes(attribute.String("tenant", tenant))
	return CompleteResult{
		State:       STATE_AUTHENTICATED,
		Tenant:      tenant,
		CookieCount: len(cookies),
	}, nil
}

// applySession (re)starts a headless runtime with cookies set and lands on the app. When
// restart is false an already running headless runtime is reused.
func (m *Machine) applySession(ctx context.Context, cookies []browser.Cookie, restart bool) (string, error) {
	var err error
	if restart {
		err = m.runtime.Restart(ctx, true)
	} else {
		err = m.runtime.Start(ctx, true)
		if errors.Is(err, failure.ErrModeConflict) {
			err = m.runtime.Restart(ctx, true)
		}
	}
	if err != nil {
		return "", err
	}

	page, err := m.page()
	if err != nil {
		return "", err
	}
	err = page.ClearCookies(ctx)
	if err != nil {
		return "", fmt.Errorf("clear cookies: %w", err)
	}
	err = page.SetCookies(ctx, cookies)
	if err != nil {
		return "", fmt.Errorf("set cookies: %w", err)
	}
	err = m.navigate(ctx, page, APP_URL)
	if err != nil {
		return "", err
	}
	return m.readTenant(ctx, page), nil
}

// Restore loads the stored session into a headless runtime and probes it. A missing, corrupt,
// expired or rejected session is reported through the result, only launch failures and
// cancellation are returned as errors.
func (m *Machine) Restore(ctx context.Context) (RestoreResult, error) {
	ctx, span := tracer.Start(ctx, "Restore")
	defer span.End()

	needsReauth := func(reason failure.Kind, screenshot string) (RestoreResult, error) {
		m.set(STATE_UNAUTHENTICATED, "")
		span.SetAttributes(attribute.String("reason", string(reason)))
		return RestoreResult{NeedsReauth: true, Reason: string(reason), Screenshot: screenshot}, nil
	}

	record, err := m.store.Load(ctx)
	if errors.Is(err, failure.ErrSessionAbsent) || errors.Is(err, failure.ErrSessionCorrupt) {
		return needsReauth(failure.KindOf(err), "")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load session")
		return RestoreResult{}, err
	}
	if record.ExpiresAt != nil && !m.clock.Now().Before(*record.ExpiresAt) {
		return needsReauth(REASON_EXPIRED, "")
	}
	m.tenants.Purge()

	tenant, err := m.applySession(ctx, record.Cookies, false)
	if err != nil && (errors.Is(err, failure.ErrLaunch) || ctx.Err() != nil) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "restore")
		m.set(STATE_UNAUTHENTICATED, "")
		return RestoreResult{}, err
	}
	if err != nil {
		m.tel.ReportWarning(report_machine_restore, err)
	}

	page, pageErr := m.page()
	if pageErr != nil {
		return needsReauth(failure.KindProbeFailed, "")
	}
	loggedIn := false
	if err == nil {
		loggedIn, err = m.isLoggedIn(ctx, page)
		if err != nil && ctx.Err() != nil {
			m.set(STATE_UNAUTHENTICATED, "")
			return RestoreResult{}, err
		}
	}
	if !loggedIn {
		return needsReauth(failure.KindProbeFailed, m.Screenshot(ctx, page, "restore_probe_failed"))
	}

	m.set(STATE_AUTHENTICATED, tenant)
	span.SetAttributes(attribute.String("tenant", tenant))
	return RestoreResult{LoggedIn: true, Tenant: tenant}, nil
}

// EnsureSession makes sure the machine is authenticated with a live page, restoring the
// stored session when it is not. A session that cannot be restored is returned as the
// matching failure sentinel.
func (m *Machine) EnsureSession(ctx context.Context) error {
	state, _ := m.current()
	if state == STATE_AUTHENTICATED && m.runtime.State().PageActive {
		return nil
	}
	if state == STATE_AWAITING_LOGIN {
		return fmt.Errorf("%w: manual login in progress", failure.ErrInvalidState)
	}

	res, err := m.Restore(ctx)
	if err != nil {
		return err
	}
	if !res.NeedsReauth {
		return nil
	}
	switch failure.Kind(res.Reason) {
	case failure.KindSessionCorrupt:
		return failure.ErrSessionCorrupt
	case failure.KindProbeFailed:
		return &failure.StepError{
			Report:     "auth",
			Step:       "restore",
			Screenshot: res.Screenshot,
			Err:        failure.ErrProbeFailed,
		}
	default:
		return fmt.Errorf("%w: %s", failure.ErrSessionAbsent, res.Reason)
	}
}

// Status never drives the page.
func (m *Machine) Status(ctx context.Context) (StatusResult, error) {
	state, tenant := m.current()
	sessionStatus, err := m.store.Status(ctx)
	if err != nil {
		return StatusResult{}, err
	}
	return StatusResult{
		State:   state,
		Tenant:  tenant,
		Browser: m.runtime.State(),
		Session: sessionStatus,
	}, nil
}

func (m *Machine) ListTenants(ctx context.Context) ([]Tenant, error) {
	ctx, span := tracer.Start(ctx, "ListTenants")
	defer span.End()

	_, current, err := m.guard(ACTION_LIST_TENANTS)
	if err != nil {
		return nil, err
	}

	names, hit := m.tenants.Get(tenantCacheKey)
	if !hit {
		names, err = m.scrapeTenants(ctx)
		if err != nil {
			m.tel.ReportWarning(report_machine_list_tenants, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "list tenants")
			return nil, err
		}
		m.tenants.Add(tenantCacheKey, names)
	}

	out := make([]Tenant, len(names))
	for i, name := range names {
		out[i] = Tenant{Name: name, Current: SameTenant(name, current)}
	}
	return out, nil
}

func (m *Machine) scrapeTenants(ctx context.Context) ([]string, error) {
	page, err := m.page()
	if err != nil {
		return nil, err
	}
	err = m.loc.Click(ctx, page, locator.ORG_SWITCHER)
	if err != nil {
		return nil, err
	}
	defer func() {
		err := page.PressKey(context.WithoutCancel(ctx), "Escape")
		if err != nil {
			m.tel.ReportDebug("close switcher", err)
		}
	}()

	_, err = m.loc.Find(ctx, page, locator.ORG_LIST_ITEM)
	if err != nil {
		return nil, err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	strategies, err := m.loc.Registry().Strategies(locator.ORG_LIST_ITEM)
	if err != nil {
		return nil, err
	}
	return parseTenantList(html, strategies)
}

// SwitchTenant moves the UI to the named tenant, or to the shortcode's deep link when one is
// given. The tenant the UI actually lands on is recorded even when it is not the requested
// one, in which case a *failure.TenantMismatchError is returned.
func (m *Machine) SwitchTenant(ctx context.Context, name, shortcode string) (string, error) {
	ctx, span := tracer.Start(ctx, "SwitchTenant", trace.WithAttributes(
		attribute.String("tenant", name),
		attribute.String("shortcode", shortcode),
	))
	defer span.End()

	_, current, err := m.guard(ACTION_SWITCH_TENANT)
	if err != nil {
		return "", err
	}
	if name == "" && shortcode == "" {
		return "", fmt.Errorf("%w: tenant name or shortcode is required", failure.ErrInvalidInput)
	}
	target := m.resolveTenant(name)
	if target != "" && SameTenant(target, current) {
		return current, nil
	}

	page, err := m.page()
	if err != nil {
		return "", err
	}

	if shortcode != "" {
		err = m.navigate(ctx, page, fmt.Sprintf("%s/app/%s/homepage", APP_URL, shortcode))
	} else {
		err = m.pickTenant(ctx, page, target)
	}
	if err != nil {
		m.tel.ReportWarning(report_machine_switch_tenant, name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "switch")
		return "", err
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.opts.NavigationTimeout)
	err = page.WaitReady(waitCtx)
	cancel()
	if err != nil {
		return "", fmt.Errorf("wait for tenant page: %w", err)
	}

	actual := m.readTenant(ctx, page)
	m.set(STATE_AUTHENTICATED, actual)

	if target != "" && !SameTenant(target, actual) {
		err := &failure.TenantMismatchError{Requested: name, Actual: actual}
		m.tel.ReportWarning(report_machine_switch_tenant, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "mismatch")
		return actual, err
	}
	return actual, nil
}

// resolveTenant expands name to its entry in the cached tenant list when it identifies exactly
// one. Without a cached list, or without a unique entry, name is used as given.
func (m *Machine) resolveTenant(name string) string {
	if name == "" {
		return ""
	}
	names, hit := m.tenants.Get(tenantCacheKey)
	if !hit {
		return name
	}
	full, ok := ResolveTenant(name, names)
	if !ok {
		m.tel.ReportDebug("tenant not in list", name, "closest", closestTenant(name, names))
		return name
	}
	return full
}

func (m *Machine) pickTenant(ctx context.Context, page browser.Page, name string) error {
	err := m.loc.Click(ctx, page, locator.ORG_SWITCHER)
	if err != nil {
		return err
	}

	option := locator.V(locator.VAR_NAME, name)
	err = m.loc.Click(ctx, page, locator.TENANT_OPTION, option)
	if err == nil {
		return nil
	}
	if !errors.Is(err, failure.ErrElementNotFound) {
		return err
	}

	err = m.loc.Fill(ctx, page, locator.SEARCH_INPUT, name)
	if err == nil {
		err = m.loc.Click(ctx, page, locator.TENANT_OPTION, option)
	}
	if err != nil {
		keyErr := page.PressKey(context.WithoutCancel(ctx), "Escape")
		if keyErr != nil {
			m.tel.ReportDebug("close switcher", keyErr)
		}
		return err
	}
	return nil
}

// EnsureTenant switches only when the UI is not already on name.
func (m *Machine) EnsureTenant(ctx context.Context, name, shortcode string) (string, error) {
	current := m.CurrentTenant()
	if name != "" && SameTenant(m.resolveTenant(name), current) {
		return current, nil
	}
	return m.SwitchTenant(ctx, name, shortcode)
}

// DeleteSession forgets the stored session and the browser's cookies.
func (m *Machine) DeleteSession(ctx context.Context) error {
	defer m.forget()

	if page, err := m.page(); err == nil {
		err = page.ClearCookies(ctx)
		if err != nil {
			m.tel.ReportWarning(report_machine_delete_session, err)
		}
	}
	err := m.store.Delete(ctx)
	if err != nil {
		m.tel.ReportWarning(report_machine_delete_session, err)
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// forget drops everything the machine knows about the browser it drove. The next
// EnsureSession restores the stored session from scratch.
func (m *Machine) forget() {
	m.tenants.Purge()
	m.set(STATE_UNAUTHENTICATED, "")
}

// StartBrowser starts the runtime. Starting an already running runtime in the same mode keeps
// the session, a fresh browser has no cookies and leaves the machine unauthenticated.
func (m *Machine) StartBrowser(ctx context.Context, headless bool) error {
	wasActive := m.runtime.State().PageActive
	err := m.runtime.Start(ctx, headless)
	if err != nil {
		return err
	}
	if !wasActive {
		m.forget()
	}
	return nil
}

func (m *Machine) StopBrowser() error {
	defer m.forget()
	return m.runtime.Stop()
}

// RestartBrowser always replaces the browsing context, so the session has to be restored.
func (m *Machine) RestartBrowser(ctx context.Context, headless bool) error {
	defer m.forget()
	return m.runtime.Restart(ctx, headless)
}

// Logout deletes the session and stops the browser.
func (m *Machine) Logout(ctx context.Context) error {
	err := m.DeleteSession(ctx)
	if err != nil {
		return err
	}
	return m.runtime.Stop()
}
