// Package service is the operation facade the HTTP API and the scheduler call into. It owns the
// browser lock, so every operation that touches the page goes through here.
package service

import (
	"context"
	"database/sql"
	"time"
	"xeroreports/internal/audit"
	"xeroreports/internal/auth"
	"xeroreports/internal/browser"
	"xeroreports/internal/components/assert"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/db"
	"xeroreports/internal/notify"
	"xeroreports/internal/reports"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("xeroreports/internal/service")

const (
	report_service_batch    = "service.batch"
	report_service_notify   = "service.notify"
	report_service_schedule = "service.schedule"
	report_service_cleanup  = "service.cleanup"
	report_service_health   = "service.health"
	report_db_query         = "db.query"
)

// Authenticator is implemented by *auth.Machine.
//
// note: fault injection point
type Authenticator interface {
	Setup(ctx context.Context) (auth.SetupResult, error)
	Complete(ctx context.Context) (auth.CompleteResult, error)
	Restore(ctx context.Context) (auth.RestoreResult, error)
	EnsureSession(ctx context.Context) error
	Status(ctx context.Context) (auth.StatusResult, error)
	ListTenants(ctx context.Context) ([]auth.Tenant, error)
	SwitchTenant(ctx context.Context, name, shortcode string) (string, error)
	DeleteSession(ctx context.Context) error
	Logout(ctx context.Context) error
	StartBrowser(ctx context.Context, headless bool) error
	StopBrowser() error
	RestartBrowser(ctx context.Context, headless bool) error
}

// ReportRunner is implemented by reports.Routines.
//
// note: fault injection point
type ReportRunner interface {
	ActivityStatement(ctx context.Context, req reports.ActivityStatementRequest) (reports.Result, error)
	PayrollSummary(ctx context.Context, req reports.PayrollRequest) (reports.Result, error)
}

// RandomAPI generates batch ids.
//
// note: fault injection point
type RandomAPI interface {
	BatchID() (string, error)
}

type defaultRandomAPI struct{}

func (defaultRandomAPI) BatchID() (string, error) {
	return random.String(8)
}

type Service struct {
	db       *sql.DB
	qry      *db.Queries
	runtime  browser.Handle
	auth     Authenticator
	routines ReportRunner
	audit    audit.Recorder
	files    reports.Files
	notifier notify.Notifier
	clock    chrono.API
	rand     RandomAPI
	tel      telemetry.API

	lock browserLock
	// minimum gap between two attempts of a batch
	batchInterval time.Duration
}

type serviceConfig struct {
	tel           telemetry.API
	clock         chrono.API
	rand          RandomAPI
	notifier      notify.Notifier
	lockMode      string
	batchInterval *time.Duration
}

type Option func(cfg *serviceConfig)

func WithCustomTelemetryAPI(tel telemetry.API) Option {
	return func(cfg *serviceConfig) {
		cfg.tel = tel
	}
}

func WithClock(clock chrono.API) Option {
	return func(cfg *serviceConfig) {
		cfg.clock = clock
	}
}

func WithCustomRandomAPI(rand RandomAPI) Option {
	return func(cfg *serviceConfig) {
		cfg.rand = rand
	}
}

func WithNotifier(notifier notify.Notifier) Option {
	return func(cfg *serviceConfig) {
		cfg.notifier = notifier
	}
}

// WithLockMode is LOCK_REJECT (the default) or LOCK_QUEUE.
func WithLockMode(mode string) Option {
	return func(cfg *serviceConfig) {
		cfg.lockMode = mode
	}
}

func WithBatchInterval(interval time.Duration) Option {
	return func(cfg *serviceConfig) {
		cfg.batchInterval = &interval
	}
}

func NewService(
	database *sql.DB,
	runtime browser.Handle,
	authenticator Authenticator,
	routines ReportRunner,
	files reports.Files,
	options ...Option,
) (*Service, error) {
	assert.NotNil(database, "database")
	assert.NotNil(runtime, "runtime")
	assert.NotNil(authenticator, "authenticator")
	assert.NotNil(routines, "routines")

	cfg := serviceConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	lock, err := newBrowserLock(cfg.lockMode)
	if err != nil {
		return nil, err
	}

	s := &Service{
		db:            database,
		qry:           db.New(database),
		runtime:       runtime,
		auth:          authenticator,
		routines:      routines,
		files:         files,
		notifier:      notify.Nop{},
		rand:          defaultRandomAPI{},
		tel:           telemetry.SlogAPI{},
		lock:          lock,
		batchInterval: 2 * time.Second,
	}
	if cfg.tel != nil {
		s.tel = cfg.tel
	}
	if cfg.clock != nil {
		s.clock = cfg.clock
	} else {
		s.clock, _ = chrono.NewStandardImpl("")
	}
	if cfg.rand != nil {
		s.rand = cfg.rand
	}
	if cfg.notifier != nil {
		s.notifier = cfg.notifier
	}
	if cfg.batchInterval != nil {
		s.batchInterval = *cfg.batchInterval
	}

	s.tel = telemetry.NewScopedAPI("service", s.tel)
	s.audit = audit.NewRecorder(s.qry, s.clock, s.tel)

	return s, nil
}
