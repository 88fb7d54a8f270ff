package service

import (
	"context"
	"fmt"
	"strings"
	"xeroreports/internal/audit"
	"xeroreports/internal/db"
	"xeroreports/internal/failure"
	"xeroreports/internal/notify"
	"xeroreports/internal/reports"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

type ActivityStatementRequest struct {
	TenantID   string `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	// Period is a statement label like "October 2025", empty means the previous month.
	Period string `json:"period"`
	// FindUnfiled opens the first draft statement. Omitted means true.
	FindUnfiled *bool `json:"find_unfiled,omitempty"`
}

func (r ActivityStatementRequest) findUnfiled() bool {
	return r.FindUnfiled == nil || *r.FindUnfiled
}

type PayrollRequest struct {
	TenantID   string `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
}

// target is the tenant a single attempt runs against.
type target struct {
	clientID  int64
	tenantID  string
	name      string
	shortcode string
}

func targetFromClient(row db.Client) target {
	return target{
		clientID:  row.ID,
		tenantID:  row.TenantID,
		name:      row.TenantName,
		shortcode: row.TenantShortcode.String,
	}
}

// resolveTarget prefers the registered client for tenantID, an unregistered tenant can still be
// downloaded by name.
func (s *Service) resolveTarget(ctx context.Context, tenantID, tenantName string) (target, error) {
	tenantID = strings.TrimSpace(tenantID)
	tenantName = strings.TrimSpace(tenantName)
	if tenantID != "" {
		row, err := s.clientByTenantID(ctx, tenantID)
		if err != nil {
			return target{}, err
		}
		return targetFromClient(row), nil
	}
	if tenantName == "" {
		return target{}, fmt.Errorf("%w: tenant_id or tenant_name is required", failure.ErrInvalidInput)
	}
	return target{name: tenantName}, nil
}

func (s *Service) eventFor(batchID string, t target, kind reports.Kind, res reports.Result, err error) notify.Event {
	event := notify.Event{
		Event:   notify.EVENT_REPORT_SUCCEEDED,
		BatchID: batchID,
		Report:  string(kind),
		Tenant:  t.name,
		At:      s.clock.Now(),
	}
	if err != nil {
		event.Event = notify.EVENT_REPORT_FAILED
		event.ErrorKind = string(failure.KindOf(err))
		event.Error = err.Error()
		event.Screenshot = failure.Screenshot(err)
		return event
	}
	event.FileName = res.FileName
	event.FilePath = res.FilePath
	return event
}

func (s *Service) run(ctx context.Context, kind reports.Kind, t target, period string, findUnfiled bool) (reports.Result, error) {
	switch kind {
	case reports.ACTIVITY_STATEMENT:
		return s.routines.ActivityStatement(ctx, reports.ActivityStatementRequest{
			Tenant:      t.name,
			Shortcode:   t.shortcode,
			Period:      period,
			FindUnfiled: findUnfiled,
		})
	case reports.PAYROLL_ACTIVITY_SUMMARY:
		return s.routines.PayrollSummary(ctx, reports.PayrollRequest{
			Tenant:    t.name,
			Shortcode: t.shortcode,
		})
	}
	return reports.Result{}, fmt.Errorf("%w: unknown report %q", failure.ErrInvalidInput, kind)
}

// attempt records one routine run in the audit log and tells the notifier about it. The caller
// holds the browser lock.
func (s *Service) attempt(
	ctx context.Context,
	batchID string,
	t target,
	kind reports.Kind,
	fn func(ctx context.Context) (reports.Result, error),
) (reports.Result, notify.Event, error) {
	ctx, span := tracer.Start(ctx, "attempt", trace.WithAttributes(
		attribute.String("report", string(kind)),
		attribute.String("tenant", t.name),
		attribute.String("batch", batchID),
	))
	defer span.End()

	res, err := s.audit.Record(ctx, audit.Attempt{
		ClientID:   t.clientID,
		BatchID:    batchID,
		TenantName: t.name,
		Report:     kind,
	}, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(failure.KindOf(err)))
	}

	event := s.eventFor(batchID, t, kind, res, err)
	notifyErr := s.notifier.ReportAttempt(context.WithoutCancel(ctx), event)
	if notifyErr != nil {
		s.tel.ReportWarning(report_service_notify, notifyErr)
	}
	return res, event, err
}

func (s *Service) DownloadActivityStatement(ctx context.Context, req ActivityStatementRequest) (reports.Result, error) {
	t, err := s.resolveTarget(ctx, req.TenantID, req.TenantName)
	if err != nil {
		return reports.Result{}, err
	}
	return withBrowser(ctx, s, func(ctx context.Context) (reports.Result, error) {
		err := s.auth.EnsureSession(ctx)
		if err != nil {
			return reports.Result{}, err
		}
		res, _, err := s.attempt(ctx, "", t, reports.ACTIVITY_STATEMENT, func(ctx context.Context) (reports.Result, error) {
			return s.run(ctx, reports.ACTIVITY_STATEMENT, t, req.Period, req.findUnfiled())
		})
		return res, err
	})
}

func (s *Service) DownloadPayrollSummary(ctx context.Context, req PayrollRequest) (reports.Result, error) {
	t, err := s.resolveTarget(ctx, req.TenantID, req.TenantName)
	if err != nil {
		return reports.Result{}, err
	}
	return withBrowser(ctx, s, func(ctx context.Context) (reports.Result, error) {
		err := s.auth.EnsureSession(ctx)
		if err != nil {
			return reports.Result{}, err
		}
		res, _, err := s.attempt(ctx, "", t, reports.PAYROLL_ACTIVITY_SUMMARY, func(ctx context.Context) (reports.Result, error) {
			return s.routines.PayrollSummary(ctx, reports.PayrollRequest{
				Tenant:    t.name,
				Shortcode: t.shortcode,
				Month:     req.Month,
				Year:      req.Year,
			})
		})
		return res, err
	})
}

type BatchRequest struct {
	// empty means every active client
	TenantIDs []string `json:"tenant_ids"`
	// empty means every report kind
	Reports []reports.Kind `json:"reports"`
}

const (
	ITEM_SUCCESS = db.STATUS_SUCCESS
	ITEM_FAILED  = db.STATUS_FAILED
)

type BatchItem struct {
	TenantID   string       `json:"tenant_id,omitempty"`
	TenantName string       `json:"tenant_name"`
	Report     reports.Kind `json:"report_type"`
	Status     string       `json:"status"`
	FileName   string       `json:"file_name,omitempty"`
	FilePath   string       `json:"file_path,omitempty"`
	ErrorKind  string       `json:"error_kind,omitempty"`
	Error      string       `json:"error,omitempty"`
	Screenshot string       `json:"screenshot,omitempty"`
}

type BatchResult struct {
	BatchID   string      `json:"batch_id"`
	Total     int         `json:"total"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Results   []BatchItem `json:"results"`
}

func (s *Service) batchTargets(ctx context.Context, tenantIDs []string) ([]target, error) {
	if len(tenantIDs) == 0 {
		rows, err := s.qry.ListActiveClients(ctx)
		if err != nil {
			s.tel.ReportBroken(report_db_query, "ListActiveClients", err)
			return nil, err
		}
		out := make([]target, len(rows))
		for i, row := range rows {
			out[i] = targetFromClient(row)
		}
		return out, nil
	}

	out := make([]target, 0, len(tenantIDs))
	for _, id := range tenantIDs {
		row, err := s.clientByTenantID(ctx, strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		out = append(out, targetFromClient(row))
	}
	return out, nil
}

func batchKinds(requested []reports.Kind) ([]reports.Kind, error) {
	if len(requested) == 0 {
		return reports.Kinds, nil
	}
	for _, k := range requested {
		if _, ok := reports.ParseKind(string(k)); !ok {
			return nil, fmt.Errorf("%w: unknown report %q", failure.ErrInvalidInput, k)
		}
	}
	return requested, nil
}

// BatchDownload runs every requested report for every requested tenant under one lock hold.
// A failing attempt is recorded and the batch moves on to the next one.
func (s *Service) BatchDownload(ctx context.Context, req BatchRequest) (BatchResult, error) {
	kinds, err := batchKinds(req.Reports)
	if err != nil {
		return BatchResult{}, err
	}
	targets, err := s.batchTargets(ctx, req.TenantIDs)
	if err != nil {
		return BatchResult{}, err
	}
	batchID, err := s.rand.BatchID()
	if err != nil {
		s.tel.ReportBroken(report_service_batch, "batch id", err)
		return BatchResult{}, err
	}

	return withBrowser(ctx, s, func(ctx context.Context) (BatchResult, error) {
		ctx, span := tracer.Start(ctx, "BatchDownload", trace.WithAttributes(
			attribute.String("batch", batchID),
			attribute.Int("tenants", len(targets)),
		))
		defer span.End()

		result := BatchResult{
			BatchID: batchID,
			Total:   len(targets) * len(kinds),
			Results: []BatchItem{},
		}
		if result.Total == 0 {
			return result, nil
		}

		err := s.auth.EnsureSession(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "session")
			return BatchResult{}, err
		}

		limit := rate.Inf
		if s.batchInterval > 0 {
			limit = rate.Every(s.batchInterval)
		}
		pacer := rate.NewLimiter(limit, 1)

		var events []notify.Event
		var runErr error
	outer:
		for _, t := range targets {
			for _, kind := range kinds {
				runErr = pacer.Wait(ctx)
				if runErr != nil {
					break outer
				}

				res, event, err := s.attempt(ctx, batchID, t, kind, func(ctx context.Context) (reports.Result, error) {
					return s.run(ctx, kind, t, "", true)
				})
				events = append(events, event)

				item := BatchItem{
					TenantID:   t.tenantID,
					TenantName: t.name,
					Report:     kind,
					Status:     ITEM_SUCCESS,
					FileName:   res.FileName,
					FilePath:   res.FilePath,
				}
				if err != nil {
					item.Status = ITEM_FAILED
					item.ErrorKind = event.ErrorKind
					item.Error = event.Error
					item.Screenshot = event.Screenshot
					result.Failed++
				} else {
					result.Completed++
				}
				result.Results = append(result.Results, item)
			}
		}

		s.tel.ReportCount(report_service_batch, int64(result.Completed))
		summaryErr := s.notifier.BatchFinished(context.WithoutCancel(ctx), notify.BatchSummary{
			Event:     notify.EVENT_BATCH_FINISHED,
			BatchID:   batchID,
			Total:     result.Total,
			Completed: result.Completed,
			Failed:    result.Failed,
			Results:   events,
			At:        s.clock.Now(),
		})
		if summaryErr != nil {
			s.tel.ReportWarning(report_service_notify, summaryErr)
		}

		if runErr != nil {
			span.RecordError(runErr)
			span.SetStatus(codes.Error, "interrupted")
			return result, fmt.Errorf("batch %s interrupted: %w", batchID, runErr)
		}
		return result, nil
	})
}
