package service

import (
	"context"
	"xeroreports/internal/auth"
	"xeroreports/internal/browser"
)

// withBrowser runs fn while holding the browser lock. The lock is released on every path,
// including a panic in fn.
func withBrowser[T any](ctx context.Context, s *Service, fn func(ctx context.Context) (T, error)) (T, error) {
	release, err := s.lock.acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer release()
	return fn(ctx)
}

func (s *Service) AuthSetup(ctx context.Context) (auth.SetupResult, error) {
	return withBrowser(ctx, s, s.auth.Setup)
}

func (s *Service) AuthComplete(ctx context.Context) (auth.CompleteResult, error) {
	return withBrowser(ctx, s, s.auth.Complete)
}

func (s *Service) AuthRestore(ctx context.Context) (auth.RestoreResult, error) {
	return withBrowser(ctx, s, s.auth.Restore)
}

// AuthStatus does not take the lock, it only reads state.
func (s *Service) AuthStatus(ctx context.Context) (auth.StatusResult, error) {
	return s.auth.Status(ctx)
}

func (s *Service) ListTenants(ctx context.Context) ([]auth.Tenant, error) {
	return withBrowser(ctx, s, s.auth.ListTenants)
}

type SwitchResult struct {
	Tenant string `json:"tenant"`
}

func (s *Service) SwitchTenant(ctx context.Context, name, shortcode string) (SwitchResult, error) {
	return withBrowser(ctx, s, func(ctx context.Context) (SwitchResult, error) {
		tenant, err := s.auth.SwitchTenant(ctx, name, shortcode)
		return SwitchResult{Tenant: tenant}, err
	})
}

func (s *Service) DeleteSession(ctx context.Context) error {
	_, err := withBrowser(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.auth.DeleteSession(ctx)
	})
	return err
}

func (s *Service) Logout(ctx context.Context) error {
	_, err := withBrowser(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.auth.Logout(ctx)
	})
	return err
}

// Browser operations go through the authenticator, a new browser invalidates the session it
// was tracking.
func (s *Service) BrowserStart(ctx context.Context, headless bool) (browser.State, error) {
	return withBrowser(ctx, s, func(ctx context.Context) (browser.State, error) {
		err := s.auth.StartBrowser(ctx, headless)
		return s.runtime.State(), err
	})
}

func (s *Service) BrowserStop(ctx context.Context) (browser.State, error) {
	return withBrowser(ctx, s, func(ctx context.Context) (browser.State, error) {
		err := s.auth.StopBrowser()
		return s.runtime.State(), err
	})
}

func (s *Service) BrowserRestart(ctx context.Context, headless bool) (browser.State, error) {
	return withBrowser(ctx, s, func(ctx context.Context) (browser.State, error) {
		err := s.auth.RestartBrowser(ctx, headless)
		return s.runtime.State(), err
	})
}

const (
	HEALTH_OK       = "healthy"
	HEALTH_DEGRADED = "degraded"

	DB_CONNECTED    = "connected"
	DB_DISCONNECTED = "disconnected"
)

type Health struct {
	Status   string        `json:"status"`
	Database string        `json:"database"`
	Browser  browser.State `json:"browser"`
}

// Health never waits for the browser lock.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{
		Status:   HEALTH_OK,
		Database: DB_CONNECTED,
		Browser:  s.runtime.State(),
	}
	err := s.db.PingContext(ctx)
	if err != nil {
		s.tel.ReportBroken(report_service_health, err)
		h.Status = HEALTH_DEGRADED
		h.Database = DB_DISCONNECTED
	}
	return h
}
