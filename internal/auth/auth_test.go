package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"xeroreports/internal/browser"
	"xeroreports/internal/browser/browsertest"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/db"
	"xeroreports/internal/failure"
	"xeroreports/internal/locator"
	"xeroreports/internal/session"
	"xeroreports/lib/testutil"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)

var shellMarker = `[data-testid="org-switcher"]`

var loginCookies = []browser.Cookie{
	{Name: "XERO_SESSION", Value: "s3cr3t", Domain: ".xero.com", Path: "/", HTTPOnly: true, Secure: true},
	{Name: "XERO_ORG", Value: "acme", Domain: "go.xero.com", Path: "/"},
}

// appPage behaves like the app: without cookies every navigation bounces to the login page.
func appPage(headless bool) *browsertest.FakePage {
	page := browsertest.NewFakePage()
	if !headless {
		return page
	}
	page.OnNavigate(func(p *browsertest.FakePage, url string) error {
		if len(p.CookieJar()) == 0 {
			p.Hide(shellMarker)
			p.SetLocation("https://login.xero.com/identity/user/login", "Login | Xero")
			return nil
		}
		p.Show(shellMarker)
		if strings.Contains(url, "/app/beta/") {
			p.SetLocation(url, "Home – Beta Corp – Xero")
			return nil
		}
		p.SetLocation(url, "Dashboard – Acme Pty Ltd – Xero")
		return nil
	})
	return page
}

type harness struct {
	machine *Machine
	runtime *browsertest.FakeRuntime
	store   session.Store
	tel     *telemetry.Recorder
	shots   string
}

func setup(t testing.TB) (harness, func()) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "internal/auth",
		DbSchema: db.Schema,
	})

	cipher, err := session.NewCipher(strings.Repeat("k", 32))
	require.NoError(t, err)

	tel := &telemetry.Recorder{}
	clock := chrono.Fixed{At: now}
	store := session.NewStore(db.New(res.DB), cipher, clock, 0, tel)

	runtime := browsertest.NewFakeRuntime()
	runtime.NewPage = appPage

	shots := t.TempDir()
	machine := NewMachine(
		runtime,
		store,
		locator.New(locator.DefaultRegistry(), 10*time.Millisecond, tel),
		clock,
		Options{ScreenshotDir: shots},
		tel,
	)
	return harness{
		machine: machine,
		runtime: runtime,
		store:   store,
		tel:     tel,
		shots:   shots,
	}, cleanup
}

// authenticated stores a session and restores it.
func (h harness) authenticated(t testing.TB) {
	err := h.store.Save(context.Background(), loginCookies, nil, nil)
	require.NoError(t, err)
	res, err := h.machine.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, res.LoggedIn)
}

func TestValidTransition(t *testing.T) {
	table := []struct {
		action   Action
		from     State
		expected bool
	}{
		{ACTION_SETUP, STATE_UNAUTHENTICATED, true},
		{ACTION_SETUP, STATE_AWAITING_LOGIN, true},
		{ACTION_SETUP, STATE_AUTHENTICATED, false},
		{ACTION_COMPLETE, STATE_AWAITING_LOGIN, true},
		{ACTION_COMPLETE, STATE_UNAUTHENTICATED, false},
		{ACTION_COMPLETE, STATE_AUTHENTICATED, false},
		{ACTION_RESTORE, STATE_AUTHENTICATED, true},
		{ACTION_LIST_TENANTS, STATE_AUTHENTICATED, true},
		{ACTION_LIST_TENANTS, STATE_AWAITING_LOGIN, false},
		{ACTION_SWITCH_TENANT, STATE_UNAUTHENTICATED, false},
		{ACTION_DELETE_SESSION, STATE_AWAITING_LOGIN, true},
		{Action("unknown"), STATE_AUTHENTICATED, false},
	}
	for _, test := range table {
		require.Equal(t, test.expected, ValidTransition(test.action, test.from), "%s from %s", test.action, test.from)
	}
}

func TestTenantFromTitle(t *testing.T) {
	table := []struct {
		title    string
		expected string
	}{
		{"Dashboard – Acme Pty Ltd – Xero", "Acme Pty Ltd"},
		{"Acme Pty Ltd - Xero", "Acme Pty Ltd"},
		{"Dashboard – Smith-Jones Accounting – Xero", "Smith-Jones Accounting"},
		{"Reports – Payroll – Beta Corp – Xero", "Beta Corp"},
		{"Xero – Xero", ""},
		{"Login | Xero", ""},
		{"", ""},
	}
	for _, test := range table {
		require.Equal(t, test.expected, TenantFromTitle(test.title), test.title)
	}
}

func TestSameTenant(t *testing.T) {
	table := []struct {
		requested string
		actual    string
		expected  bool
	}{
		{"Acme Pty Ltd", "Acme Pty Ltd", true},
		{"acme pty. ltd.", "Acme Pty Ltd", true},
		{"Smith-Jones Accounting", "smith jones accounting", true},
		{"Acme", "Acme Pty Ltd", false},
		{"Acme Holdings Pty Ltd", "Acme Holding Pty Ltd", false},
		{"Acme Pty Ltd", "Acme", false},
		{"Smith Family Trust 2", "Smith Family Trust 1", false},
		{"Acme Pty Ltd 2", "Acme Pty Ltd", false},
		{"Ltd", "Acme Pty Ltd", false},
		{"Beta Corp", "Gamma Ltd", false},
		{"", "Acme", false},
		{"Acme", "", false},
	}
	for _, test := range table {
		require.Equal(t, test.expected, SameTenant(test.requested, test.actual), "%q vs %q", test.requested, test.actual)
	}
}

func TestResolveTenant(t *testing.T) {
	names := []string{"Acme Pty Ltd", "Acme Pty Ltd 2", "Beta Corp", "Smith Family Trust 1", "Smith Family Trust 2"}
	table := []struct {
		requested string
		expected  string
		ok        bool
	}{
		{"Acme Pty Ltd", "Acme Pty Ltd", true},
		{"acme pty ltd 2", "Acme Pty Ltd 2", true},
		{"Beta", "Beta Corp", true},
		{"Acme", "", false},
		{"Smith Family Trust", "", false},
		{"Ltd", "", false},
		{"Bet", "", false},
		{"Gamma Ltd", "", false},
		{"", "", false},
	}
	for _, test := range table {
		name, ok := ResolveTenant(test.requested, names)
		require.Equal(t, test.ok, ok, test.requested)
		require.Equal(t, test.expected, name, test.requested)
	}

	require.Equal(t, "Beta Corp", closestTenant("Beta Crop", names))
}

func TestSetupAndComplete(t *testing.T) {
	h, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := h.machine.Complete(ctx)
	require.ErrorIs(t, err, failure.ErrInvalidState)

	setupRes, err := h.machine.Setup(ctx)
	require.NoError(t, err)
	require.Equal(t, STATE_AWAITING_LOGIN, setupRes.State)
	require.Equal(t, LOGIN_URL, setupRes.CurrentURL)
	require.NotEmpty(t, setupRes.Instructions)
	require.Equal(t, []bool{false}, h.runtime.Starts())

	_, err = h.machine.Complete(ctx)
	require.ErrorIs(t, err, failure.ErrLoginIncomplete)
	require.NotEmpty(t, failure.Screenshot(err))
	require.FileExists(t, failure.Screenshot(err))
	require.Equal(t, STATE_AWAITING_LOGIN, h.machine.State())

	headed := h.runtime.FakePage()
	headed.SetLocation(DASHBOARD_URL, "Dashboard – Acme Pty Ltd – Xero")
	headed.Show(shellMarker)
	headed.SetCookieJar(loginCookies)

	res, err := h.machine.Complete(ctx)
	require.NoError(t, err)
	require.Equal(t, CompleteResult{
		State:       STATE_AUTHENTICATED,
		Tenant:      "Acme Pty Ltd",
		CookieCount: 2,
	}, res)
	require.Equal(t, []bool{false, true}, h.runtime.Starts())
	require.Equal(t, loginCookies, h.runtime.FakePage().CookieJar())

	record, err := h.store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, loginCookies, record.Cookies)

	status, err := h.machine.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, STATE_AUTHENTICATED, status.State)
	require.Equal(t, "Acme Pty Ltd", status.Tenant)
	require.True(t, status.Session.IsValid)
	require.True(t, status.Browser.Headless)
}

func TestCompleteWithoutCookies(t *testing.T) {
	h, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := h.machine.Setup(ctx)
	require.NoError(t, err)

	headed := h.runtime.FakePage()
	headed.SetLocation(DASHBOARD_URL, "Dashboard – Acme Pty Ltd – Xero")
	headed.Show(shellMarker)

	_, err = h.machine.Complete(ctx)
	require.ErrorIs(t, err, failure.ErrNoCookies)
	require.Equal(t, STATE_AWAITING_LOGIN, h.machine.State())
	require.Equal(t, []bool{false}, h.runtime.Starts())

	_, err = h.store.Load(ctx)
	require.ErrorIs(t, err, failure.ErrSessionAbsent)
}

func TestRestore(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()

		res, err := h.machine.Restore(context.Background())
		require.NoError(t, err)
		require.Equal(t, RestoreResult{NeedsReauth: true, Reason: "session_absent"}, res)
		require.Equal(t, STATE_UNAUTHENTICATED, h.machine.State())
		require.Empty(t, h.runtime.Starts())

		err = h.machine.EnsureSession(context.Background())
		require.ErrorIs(t, err, failure.ErrSessionAbsent)
	})

	t.Run("expired", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()

		past := now.Add(-time.Minute)
		require.NoError(t, h.store.Save(context.Background(), loginCookies, nil, &past))

		res, err := h.machine.Restore(context.Background())
		require.NoError(t, err)
		require.True(t, res.NeedsReauth)
		require.Equal(t, string(REASON_EXPIRED), res.Reason)
	})

	t.Run("probe rejected", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()

		require.NoError(t, h.store.Save(context.Background(), loginCookies, nil, nil))
		h.runtime.NewPage = func(bool) *browsertest.FakePage {
			page := browsertest.NewFakePage()
			page.OnNavigate(func(p *browsertest.FakePage, url string) error {
				p.SetLocation("https://login.xero.com/identity/user/login", "Login | Xero")
				return nil
			})
			return page
		}

		res, err := h.machine.Restore(context.Background())
		require.NoError(t, err)
		require.True(t, res.NeedsReauth)
		require.Equal(t, "probe_failed", res.Reason)
		require.FileExists(t, res.Screenshot)
		require.Equal(t, STATE_UNAUTHENTICATED, h.machine.State())

		err = h.machine.EnsureSession(context.Background())
		require.ErrorIs(t, err, failure.ErrProbeFailed)
	})

	t.Run("launch failure", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()

		require.NoError(t, h.store.Save(context.Background(), loginCookies, nil, nil))
		h.runtime.LaunchErr = errors.New("chrome not found")

		_, err := h.machine.Restore(context.Background())
		require.ErrorIs(t, err, failure.ErrLaunch)
		require.Equal(t, STATE_UNAUTHENTICATED, h.machine.State())
	})

	t.Run("success", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()

		require.NoError(t, h.store.Save(context.Background(), loginCookies, nil, nil))

		res, err := h.machine.Restore(context.Background())
		require.NoError(t, err)
		require.Equal(t, RestoreResult{LoggedIn: true, Tenant: "Acme Pty Ltd"}, res)
		require.Equal(t, STATE_AUTHENTICATED, h.machine.State())
		require.Equal(t, []bool{true}, h.runtime.Starts())
		require.Equal(t, []string{APP_URL}, h.runtime.FakePage().Navigations)

		require.NoError(t, h.machine.EnsureSession(context.Background()))
		require.Equal(t, []bool{true}, h.runtime.Starts())
	})

	t.Run("crash recovery", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		require.NoError(t, h.runtime.Stop())
		require.NoError(t, h.machine.EnsureSession(context.Background()))
		require.Equal(t, []bool{true, true}, h.runtime.Starts())
		require.Equal(t, STATE_AUTHENTICATED, h.machine.State())
	})
}

func tenantOption(t testing.TB, name string) string {
	strategies, err := locator.DefaultRegistry().Strategies(locator.TENANT_OPTION, locator.V(locator.VAR_NAME, name))
	require.NoError(t, err)
	return strategies[0].String()
}

func TestSwitchTenant(t *testing.T) {
	ctx := context.Background()

	t.Run("already there", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		actual, err := h.machine.SwitchTenant(ctx, "acme pty ltd", "")
		require.NoError(t, err)
		require.Equal(t, "Acme Pty Ltd", actual)
		require.Empty(t, h.runtime.FakePage().Clicks)
	})

	t.Run("through switcher", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		page := h.runtime.FakePage()
		page.OnClick(tenantOption(t, "Beta Corp"), func(p *browsertest.FakePage) error {
			p.SetLocation(DASHBOARD_URL, "Dashboard – Beta Corp – Xero")
			return nil
		})

		actual, err := h.machine.SwitchTenant(ctx, "Beta Corp", "")
		require.NoError(t, err)
		require.Equal(t, "Beta Corp", actual)
		require.Equal(t, "Beta Corp", h.machine.CurrentTenant())
		require.Equal(t, []string{shellMarker, tenantOption(t, "Beta Corp")}, page.Clicks)
	})

	t.Run("mismatch", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		page := h.runtime.FakePage()
		page.OnClick(tenantOption(t, "Beta Corp"), func(p *browsertest.FakePage) error {
			p.SetLocation(DASHBOARD_URL, "Dashboard – Gamma Ltd – Xero")
			return nil
		})

		actual, err := h.machine.SwitchTenant(ctx, "Beta Corp", "")
		require.ErrorIs(t, err, failure.ErrTenantSwitchMismatch)
		var mismatch *failure.TenantMismatchError
		require.ErrorAs(t, err, &mismatch)
		require.Equal(t, "Beta Corp", mismatch.Requested)
		require.Equal(t, "Gamma Ltd", mismatch.Actual)
		require.Equal(t, "Gamma Ltd", actual)
		require.Equal(t, "Gamma Ltd", h.machine.CurrentTenant())
		require.Equal(t, STATE_AUTHENTICATED, h.machine.State())
	})

	t.Run("numbered sibling", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		page := h.runtime.FakePage()
		page.OnClick(tenantOption(t, "Acme Pty Ltd 2"), func(p *browsertest.FakePage) error {
			p.SetLocation(DASHBOARD_URL, "Dashboard – Acme Pty Ltd 2 – Xero")
			return nil
		})

		actual, err := h.machine.SwitchTenant(ctx, "Acme Pty Ltd 2", "")
		require.NoError(t, err)
		require.Equal(t, "Acme Pty Ltd 2", actual)
		require.Equal(t, []string{shellMarker, tenantOption(t, "Acme Pty Ltd 2")}, page.Clicks)
	})

	t.Run("left on sibling", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		page := h.runtime.FakePage()
		page.OnClick(tenantOption(t, "Smith Family Trust 2"), func(p *browsertest.FakePage) error {
			p.SetLocation(DASHBOARD_URL, "Dashboard – Smith Family Trust 1 – Xero")
			return nil
		})

		actual, err := h.machine.SwitchTenant(ctx, "Smith Family Trust 2", "")
		require.ErrorIs(t, err, failure.ErrTenantSwitchMismatch)
		require.Equal(t, "Smith Family Trust 1", actual)
		require.Equal(t, "Smith Family Trust 1", h.machine.CurrentTenant())
	})

	t.Run("abbreviation from list", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		page := h.runtime.FakePage()
		page.Show(`[data-testid="org-item"]`)
		page.SetHTML(`<html><body><ul>
			<li data-testid="org-item">Acme Pty Ltd</li>
			<li data-testid="org-item">Beta Corp</li>
		</ul></body></html>`)
		_, err := h.machine.ListTenants(ctx)
		require.NoError(t, err)

		page.OnClick(tenantOption(t, "Beta Corp"), func(p *browsertest.FakePage) error {
			p.SetLocation(DASHBOARD_URL, "Dashboard – Beta Corp – Xero")
			return nil
		})
		actual, err := h.machine.SwitchTenant(ctx, "Beta", "")
		require.NoError(t, err)
		require.Equal(t, "Beta Corp", actual)
		require.Contains(t, page.Clicks, tenantOption(t, "Beta Corp"))
	})

	t.Run("not listed", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		_, err := h.machine.SwitchTenant(ctx, "Nowhere Ltd", "")
		require.ErrorIs(t, err, failure.ErrElementNotFound)
		require.Equal(t, []string{"Escape"}, h.runtime.FakePage().Keys)
		require.Equal(t, "Acme Pty Ltd", h.machine.CurrentTenant())
	})

	t.Run("shortcode", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		actual, err := h.machine.SwitchTenant(ctx, "Beta Corp", "beta")
		require.NoError(t, err)
		require.Equal(t, "Beta Corp", actual)
		require.Contains(t, h.runtime.FakePage().Navigations, APP_URL+"/app/beta/homepage")
	})

	t.Run("requires auth", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()

		_, err := h.machine.SwitchTenant(ctx, "Beta Corp", "")
		require.ErrorIs(t, err, failure.ErrInvalidState)
	})
}

func TestListTenants(t *testing.T) {
	h, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := h.machine.ListTenants(ctx)
	require.ErrorIs(t, err, failure.ErrInvalidState)

	h.authenticated(t)
	page := h.runtime.FakePage()
	page.Show(`[data-testid="org-item"]`)
	page.SetHTML(`<html><body><ul>
		<li data-testid="org-item"> Acme Pty Ltd </li>
		<li data-testid="org-item">Beta   Corp</li>
		<li data-testid="org-item">Beta Corp</li>
	</ul></body></html>`)

	tenants, err := h.machine.ListTenants(ctx)
	require.NoError(t, err)
	require.Equal(t, []Tenant{
		{Name: "Acme Pty Ltd", Current: true},
		{Name: "Beta Corp", Current: false},
	}, tenants)
	require.Equal(t, []string{"Escape"}, page.Keys)

	clicks := len(page.Clicks)
	_, err = h.machine.ListTenants(ctx)
	require.NoError(t, err)
	require.Len(t, page.Clicks, clicks, "second call is served from cache")
}

func TestDeleteSessionAndLogout(t *testing.T) {
	h, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	h.authenticated(t)

	require.NoError(t, h.machine.DeleteSession(ctx))
	require.Equal(t, STATE_UNAUTHENTICATED, h.machine.State())
	require.Empty(t, h.runtime.FakePage().CookieJar())
	_, err := h.store.Load(ctx)
	require.ErrorIs(t, err, failure.ErrSessionAbsent)

	_, err = h.machine.ListTenants(ctx)
	require.ErrorIs(t, err, failure.ErrInvalidState)

	require.NoError(t, h.machine.Logout(ctx))
	require.Equal(t, 1, h.runtime.Stops())
	require.False(t, h.runtime.State().Initialized)
}

type deleteFailingStore struct {
	SessionStore
}

func (deleteFailingStore) Delete(context.Context) error {
	return errors.New("disk I/O error")
}

func TestDeleteSessionStoreFailure(t *testing.T) {
	h, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	h.authenticated(t)

	machine := NewMachine(
		h.runtime,
		deleteFailingStore{h.store},
		locator.New(locator.DefaultRegistry(), 10*time.Millisecond, h.tel),
		chrono.Fixed{At: now},
		Options{ScreenshotDir: h.shots},
		h.tel,
	)
	_, err := machine.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, STATE_AUTHENTICATED, machine.State())

	err = machine.DeleteSession(ctx)
	require.ErrorContains(t, err, "disk I/O error")
	require.Equal(t, STATE_UNAUTHENTICATED, machine.State())
	require.Empty(t, machine.CurrentTenant())
	require.Empty(t, h.runtime.FakePage().CookieJar())
}

func TestBrowserControlResetsSession(t *testing.T) {
	ctx := context.Background()

	t.Run("restart", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		require.NoError(t, h.machine.RestartBrowser(ctx, true))
		require.Equal(t, STATE_UNAUTHENTICATED, h.machine.State())
		require.Empty(t, h.machine.CurrentTenant())
		require.Empty(t, h.runtime.FakePage().CookieJar())

		require.NoError(t, h.machine.EnsureSession(ctx))
		require.Equal(t, STATE_AUTHENTICATED, h.machine.State())
		require.NotEmpty(t, h.runtime.FakePage().CookieJar())
	})

	t.Run("stop", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		require.NoError(t, h.machine.StopBrowser())
		require.Equal(t, STATE_UNAUTHENTICATED, h.machine.State())
		require.False(t, h.runtime.State().Initialized)
	})

	t.Run("start keeps a running session", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)

		require.NoError(t, h.machine.StartBrowser(ctx, true))
		require.Equal(t, STATE_AUTHENTICATED, h.machine.State())
		require.Equal(t, "Acme Pty Ltd", h.machine.CurrentTenant())
	})

	t.Run("start fresh", func(t *testing.T) {
		h, cleanup := setup(t)
		defer cleanup()
		h.authenticated(t)
		require.NoError(t, h.runtime.Stop())

		require.NoError(t, h.machine.StartBrowser(ctx, true))
		require.Equal(t, STATE_UNAUTHENTICATED, h.machine.State())
	})
}
