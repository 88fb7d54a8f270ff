package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"xeroreports/internal/auth"
	"xeroreports/internal/browser"
	"xeroreports/internal/browser/browsertest"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/db"
	"xeroreports/internal/failure"
	"xeroreports/internal/reports"
	"xeroreports/internal/service"
	"xeroreports/lib/testutil"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)

type stubAuth struct {
	ensureErr error
	runtime   browser.Handle
}

func (a *stubAuth) Setup(context.Context) (auth.SetupResult, error) {
	return auth.SetupResult{
		State:        auth.STATE_AWAITING_LOGIN,
		LoginURL:     auth.LOGIN_URL,
		Instructions: auth.SETUP_INSTRUCTIONS,
	}, nil
}

func (a *stubAuth) Complete(context.Context) (auth.CompleteResult, error) {
	return auth.CompleteResult{}, failure.ErrInvalidState
}

func (a *stubAuth) Restore(context.Context) (auth.RestoreResult, error) {
	return auth.RestoreResult{NeedsReauth: true, Reason: string(failure.KindSessionAbsent)}, nil
}

func (a *stubAuth) EnsureSession(context.Context) error {
	return a.ensureErr
}

func (a *stubAuth) Status(context.Context) (auth.StatusResult, error) {
	return auth.StatusResult{State: auth.STATE_UNAUTHENTICATED}, nil
}

func (a *stubAuth) ListTenants(context.Context) ([]auth.Tenant, error) {
	return nil, failure.ErrInvalidState
}

func (a *stubAuth) SwitchTenant(_ context.Context, name, _ string) (string, error) {
	return "Other Co", &failure.TenantMismatchError{Requested: name, Actual: "Other Co"}
}

func (a *stubAuth) DeleteSession(context.Context) error {
	return nil
}

func (a *stubAuth) Logout(context.Context) error {
	return nil
}

func (a *stubAuth) StartBrowser(ctx context.Context, headless bool) error {
	return a.runtime.Start(ctx, headless)
}

func (a *stubAuth) StopBrowser() error {
	return a.runtime.Stop()
}

func (a *stubAuth) RestartBrowser(ctx context.Context, headless bool) error {
	return a.runtime.Restart(ctx, headless)
}

type stubRunner struct {
	err error
	// when set, activity statement requests are appended to it
	seen *[]reports.ActivityStatementRequest
}

func (r stubRunner) ActivityStatement(_ context.Context, req reports.ActivityStatementRequest) (reports.Result, error) {
	if r.seen != nil {
		*r.seen = append(*r.seen, req)
	}
	if r.err != nil {
		return reports.Result{}, r.err
	}
	return reports.Result{Report: reports.ACTIVITY_STATEMENT, Tenant: req.Tenant, FileName: "a.xlsx"}, nil
}

func (r stubRunner) PayrollSummary(_ context.Context, req reports.PayrollRequest) (reports.Result, error) {
	if r.err != nil {
		return reports.Result{}, r.err
	}
	return reports.Result{Report: reports.PAYROLL_ACTIVITY_SUMMARY, Tenant: req.Tenant, FileName: "p.xlsx"}, nil
}

type fixture struct {
	server      *httptest.Server
	auth        *stubAuth
	downloadDir string
}

func setup(t *testing.T, runner stubRunner) fixture {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "internal/api",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	clock := chrono.Fixed{At: now}
	tel := &telemetry.Recorder{}
	downloadDir := t.TempDir()
	runtime := browsertest.NewFakeRuntime()
	stub := &stubAuth{runtime: runtime}

	svc, err := service.NewService(
		res.DB,
		runtime,
		stub,
		runner,
		reports.NewFiles(downloadDir, t.TempDir(), clock, tel),
		service.WithCustomTelemetryAPI(tel),
		service.WithClock(clock),
		service.WithBatchInterval(0),
	)
	require.NoError(t, err)

	server := httptest.NewServer(NewHandler(svc, tel).Routes())
	t.Cleanup(server.Close)
	return fixture{server: server, auth: stub, downloadDir: downloadDir}
}

func (f fixture) do(t *testing.T, method, path, body string, out any) *http.Response {
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("content-type", "application/json")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

func TestStatusFor(t *testing.T) {
	table := []struct {
		err      error
		expected int
	}{
		{failure.ErrBusy, http.StatusConflict},
		{failure.ErrInvalidState, http.StatusConflict},
		{&failure.ElementNotFoundError{Element: "x"}, http.StatusUnprocessableEntity},
		{&failure.TenantMismatchError{}, http.StatusUnprocessableEntity},
		{failure.ErrMaterializationTimeout, http.StatusUnprocessableEntity},
		{fmt.Errorf("restore: %w", failure.ErrSessionAbsent), http.StatusUnauthorized},
		{fmt.Errorf("%w: no chrome", failure.ErrLaunch), http.StatusServiceUnavailable},
		{failure.ErrInvalidInput, http.StatusBadRequest},
		{failure.ErrNotFound, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, test := range table {
		t.Run(test.err.Error(), func(t *testing.T) {
			require.Equal(t, test.expected, statusFor(failure.KindOf(test.err)))
		})
	}
}

func TestHealthAndRequestID(t *testing.T) {
	f := setup(t, stubRunner{})

	var health service.Health
	res := f.do(t, "GET", "/api/health", "", &health)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, service.HEALTH_OK, health.Status)
	require.Equal(t, service.DB_CONNECTED, health.Database)
	require.NotEmpty(t, res.Header.Get(HEADER_REQUEST_ID))

	res = f.do(t, "POST", "/api/health", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestClientRoutes(t *testing.T) {
	f := setup(t, stubRunner{})

	var created service.Client
	res := f.do(t, "POST", "/api/clients", `{"tenant_id": "t-1", "tenant_name": "Acme"}`, &created)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	require.Equal(t, "Acme", created.TenantName)
	require.True(t, created.IsActive)

	var dup errorResponse
	res = f.do(t, "POST", "/api/clients", `{"tenant_id": "t-1", "tenant_name": "Again"}`, &dup)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, string(failure.KindInvalidInput), dup.Error.Code)
	require.Equal(t, res.Header.Get(HEADER_REQUEST_ID), dup.RequestID)

	res = f.do(t, "POST", "/api/clients", `{"tenant": "t-2"}`, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	var updated service.Client
	path := fmt.Sprintf("/api/clients/%d", created.ID)
	res = f.do(t, "PUT", path, `{"tenant_shortcode": "!xyz"}`, &updated)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "!xyz", updated.TenantShortcode)
	require.Equal(t, "Acme", updated.TenantName)

	res = f.do(t, "DELETE", path, "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var active clientsResponse
	res = f.do(t, "GET", "/api/clients?active_only=true", "", &active)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, active.Clients)

	var got service.Client
	res = f.do(t, "GET", path, "", &got)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.False(t, got.IsActive)

	res = f.do(t, "GET", "/api/clients/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = f.do(t, "GET", "/api/clients/99", "", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestReportFailures(t *testing.T) {
	f := setup(t, stubRunner{err: &failure.StepError{
		Report:     string(reports.ACTIVITY_STATEMENT),
		Tenant:     "Acme",
		Step:       "export_button",
		Screenshot: "/shots/acme.png",
		Err:        &failure.ElementNotFoundError{Element: "export_button"},
	}})

	var body errorResponse
	res := f.do(t, "POST", "/api/reports/activity-statement", `{"tenant_name": "Acme"}`, &body)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	require.Equal(t, string(failure.KindElementNotFound), body.Error.Code)
	require.Equal(t, "activity_statement", body.Error.Report)
	require.Equal(t, "Acme", body.Error.Tenant)
	require.Equal(t, "/shots/acme.png", body.Error.Screenshot)

	var logs struct {
		Logs []struct {
			Status    string `json:"status"`
			ErrorKind string `json:"error_kind"`
		} `json:"logs"`
	}
	res = f.do(t, "GET", "/api/reports/logs?status=failed&limit=10", "", &logs)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, logs.Logs, 1)
	require.Equal(t, "element_not_found", logs.Logs[0].ErrorKind)

	res = f.do(t, "GET", "/api/reports/logs?status=weird", "", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	f.auth.ensureErr = fmt.Errorf("%w: no stored session", failure.ErrSessionAbsent)
	res = f.do(t, "POST", "/api/reports/payroll-activity-summary", `{"tenant_name": "Acme"}`, &body)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, string(failure.KindSessionAbsent), body.Error.Code)
}

func TestActivityStatementDraftDefault(t *testing.T) {
	var seen []reports.ActivityStatementRequest
	f := setup(t, stubRunner{seen: &seen})

	var out reports.Result
	res := f.do(t, "POST", "/api/reports/activity-statement", `{"tenant_name": "Acme"}`, &out)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "a.xlsx", out.FileName)

	res = f.do(t, "POST", "/api/reports/activity-statement", `{"tenant_name": "Acme", "find_unfiled": false}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.Len(t, seen, 2)
	require.True(t, seen[0].FindUnfiled)
	require.False(t, seen[1].FindUnfiled)
}

func TestAuthRoutes(t *testing.T) {
	f := setup(t, stubRunner{})

	var setupRes auth.SetupResult
	res := f.do(t, "POST", "/api/auth/setup", "", &setupRes)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, auth.STATE_AWAITING_LOGIN, setupRes.State)

	res = f.do(t, "POST", "/api/auth/complete", "", nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)

	res = f.do(t, "GET", "/api/auth/tenants", "", nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)

	var mismatch errorResponse
	res = f.do(t, "POST", "/api/auth/switch-tenant", `{"tenant_name": "Acme"}`, &mismatch)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	require.Equal(t, string(failure.KindTenantSwitchMismatch), mismatch.Error.Code)
	require.Equal(t, "Acme", mismatch.Error.Tenant)

	var restore auth.RestoreResult
	res = f.do(t, "POST", "/api/auth/restore", "", &restore)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, restore.NeedsReauth)

	res = f.do(t, "DELETE", "/api/auth/session", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = f.do(t, "POST", "/api/browser/start?headless=maybe", "", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = f.do(t, "POST", "/api/browser/start?headless=true", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res = f.do(t, "POST", "/api/browser/start?headless=false", "", nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestFileRoutes(t *testing.T) {
	f := setup(t, stubRunner{})
	name := "Activity_Statement_Acme_20251103_090000.xlsx"
	err := os.WriteFile(filepath.Join(f.downloadDir, name), []byte("PK report body"), 0644)
	require.NoError(t, err)

	var files struct {
		Files []reports.FileInfo `json:"files"`
	}
	res := f.do(t, "GET", "/api/reports/files", "", &files)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, files.Files, 1)
	require.Equal(t, name, files.Files[0].Name)

	res, err = http.Get(f.server.URL + "/api/reports/download/" + name)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, res.Header.Get("content-disposition"), name)

	res = f.do(t, "GET", "/api/reports/download/.hidden", "", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = f.do(t, "GET", "/api/reports/download/missing.xlsx", "", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}
