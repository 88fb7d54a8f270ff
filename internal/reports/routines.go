// Package reports holds the UI routines that export the activity statement and the payroll
// activity summary, plus the bookkeeping for the files they produce.
package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"xeroreports/internal/auth"
	"xeroreports/internal/browser"
	"xeroreports/internal/components/assert"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/failure"
	"xeroreports/internal/locator"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("xeroreports/internal/reports")

const (
	report_routines_step       = "routines.step"
	report_routines_validate   = "routines.validate"
	report_routines_screenshot = "routines.screenshot"
	report_routines_downloads  = "routines.downloads"
)

const (
	REPORTS_URL          = auth.APP_URL + "/Reports"
	PAYROLL_REPORT_QUERY = "Payroll Activity Summary"

	PAYROLL_PERIOD_LAYOUT = "2006-01"
	DATE_INPUT_LAYOUT     = "2 Jan 2006"

	stagingDirName = ".incoming"
)

// TenantSwitcher is implemented by *auth.Machine.
type TenantSwitcher interface {
	EnsureTenant(ctx context.Context, name, shortcode string) (string, error)
}

type Options struct {
	DownloadDir       string
	ScreenshotDir     string
	NavigationTimeout time.Duration
	RenderTimeout     time.Duration
	DownloadTimeout   time.Duration
	PollInterval      time.Duration
}

type Routines struct {
	runtime browser.Handle
	tenants TenantSwitcher
	loc     locator.Locator
	clock   chrono.API
	opts    Options
	tel     telemetry.API
}

func NewRoutines(
	runtime browser.Handle,
	tenants TenantSwitcher,
	loc locator.Locator,
	clock chrono.API,
	opts Options,
	tel telemetry.API,
) Routines {
	assert.NotNil(runtime, "runtime")
	assert.NotNil(tenants, "tenants")
	assert.NotEmptyStr(opts.DownloadDir, "download dir")

	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 30 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return Routines{
		runtime: runtime,
		tenants: tenants,
		loc:     loc,
		clock:   clock,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("reports", tel),
	}
}

type ActivityStatementRequest struct {
	Tenant    string
	Shortcode string
	// Period is the label of the statement period, like "October 2025". Empty means the
	// previous month.
	Period      string
	FindUnfiled bool
}

type PayrollRequest struct {
	Tenant    string
	Shortcode string
	// Month and Year default to the previous month when zero. Another month is applied
	// through the report's date fields.
	Month int
	Year  int
}

type Result struct {
	Report   Kind   `json:"report_type"`
	Tenant   string `json:"tenant_name"`
	Period   string `json:"period,omitempty"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	Valid    bool   `json:"valid"`
}

type step struct {
	name string
	// a failing optional step is reported and skipped
	optional bool
	run      func(ctx context.Context, page browser.Page) error
}

func (r Routines) screenshot(ctx context.Context, page browser.Page, label string) string {
	if r.opts.ScreenshotDir == "" {
		return ""
	}
	path := filepath.Join(
		r.opts.ScreenshotDir,
		fmt.Sprintf("%s_%s.png", label, r.clock.Now().Format("20060102_150405")),
	)
	err := os.MkdirAll(r.opts.ScreenshotDir, 0777)
	if err == nil {
		err = page.Screenshot(context.WithoutCancel(ctx), path)
	}
	if err != nil {
		r.tel.ReportWarning(report_routines_screenshot, label, err)
		return ""
	}
	return path
}

// runSteps runs steps in order and turns the first required failure into a
// *failure.StepError carrying a screenshot of the page.
func (r Routines) runSteps(ctx context.Context, kind Kind, tenant string, steps []step) error {
	page, err := r.runtime.Page()
	if err != nil {
		return &failure.StepError{Report: string(kind), Tenant: tenant, Step: "page", Err: err}
	}

	for _, s := range steps {
		span := trace.SpanFromContext(ctx)
		span.AddEvent(s.name)

		err := s.run(ctx, page)
		if err == nil {
			r.tel.ReportDebug("step done", kind, tenant, s.name)
			continue
		}
		if s.optional && ctx.Err() == nil {
			r.tel.ReportWarning(report_routines_step, kind, tenant, s.name, err)
			continue
		}

		var shot string
		if ctx.Err() == nil {
			shot = r.screenshot(ctx, page, fmt.Sprintf("%s_%s", kind, s.name))
		}
		return &failure.StepError{
			Report:     string(kind),
			Tenant:     tenant,
			Step:       s.name,
			Screenshot: shot,
			Err:        err,
		}
	}
	return nil
}

func (r Routines) navigate(ctx context.Context, page browser.Page, url string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.NavigationTimeout)
	defer cancel()
	err := page.Navigate(ctx, url)
	if err != nil {
		return err
	}
	return page.WaitReady(ctx)
}

func (r Routines) click(element string, vars ...locator.Var) func(context.Context, browser.Page) error {
	return func(ctx context.Context, page browser.Page) error {
		return r.loc.Click(ctx, page, element, vars...)
	}
}

// waitRender waits for the export button, which only appears once the report has rendered.
func (r Routines) waitRender(ctx context.Context, page browser.Page) error {
	renderCtx, cancel := context.WithTimeout(ctx, r.opts.RenderTimeout)
	defer cancel()

	var lastErr error
	for {
		_, err := r.loc.Find(renderCtx, page, locator.EXPORT_BUTTON)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, failure.ErrElementNotFound) {
			lastErr = err
		}
		select {
		case <-renderCtx.Done():
			if lastErr == nil {
				lastErr = &failure.ElementNotFoundError{Element: locator.EXPORT_BUTTON}
			}
			return fmt.Errorf("report did not render within %s: %w", r.opts.RenderTimeout, lastErr)
		case <-time.After(r.opts.PollInterval):
		}
	}
}

func (r Routines) switchTenant(tenant, shortcode string) step {
	return step{
		name: "switch_tenant",
		run: func(ctx context.Context, _ browser.Page) error {
			_, err := r.tenants.EnsureTenant(ctx, tenant, shortcode)
			return err
		},
	}
}

// exportSteps opens the export dialog, picks Excel, confirms with the bottom-most Export
// button and moves the downloaded file to its canonical name. period is read once the file
// has landed, earlier steps may clear it.
func (r Routines) exportSteps(kind Kind, tenant string, period *string, out *Result) []step {
	staging := filepath.Join(r.opts.DownloadDir, stagingDirName)
	var before map[string]bool

	return []step{
		{
			name: "prepare_download",
			run: func(ctx context.Context, page browser.Page) error {
				err := os.MkdirAll(staging, 0777)
				if err != nil {
					return err
				}
				err = page.SetDownloadDir(ctx, staging)
				if err != nil {
					return err
				}
				before, err = snapshot(staging)
				return err
			},
		},
		{name: "export_button", run: r.click(locator.EXPORT_BUTTON)},
		{name: "excel_option", run: r.click(locator.EXCEL_OPTION)},
		{
			name: "scroll",
			run: func(ctx context.Context, page browser.Page) error {
				return page.ScrollToBottom(ctx)
			},
		},
		{name: "export_confirm", run: r.click(locator.EXPORT_CONFIRM)},
		{
			name: "download",
			run: func(ctx context.Context, _ browser.Page) error {
				downloaded, err := WaitForDownload(ctx, staging, before, r.opts.DownloadTimeout, r.opts.PollInterval)
				if err != nil {
					return err
				}
				return r.finalize(downloaded, kind, tenant, *period, out)
			},
		},
	}
}

func (r Routines) finalize(downloaded string, kind Kind, tenant, period string, out *Result) error {
	name := CanonicalName(kind, tenant, period, r.clock.Now())
	target := filepath.Join(r.opts.DownloadDir, name)
	err := os.Rename(downloaded, target)
	if err != nil {
		return fmt.Errorf("rename download: %w", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		return err
	}

	valid := true
	if err := ValidateExcel(target); err != nil {
		valid = false
		r.tel.ReportWarning(report_routines_validate, target, err)
	}

	*out = Result{
		Report:   kind,
		Tenant:   tenant,
		Period:   period,
		FilePath: target,
		FileName: name,
		FileSize: info.Size(),
		Valid:    valid,
	}
	return nil
}

func (r Routines) run(ctx context.Context, kind Kind, tenant string, build func(out *Result) []step) (Result, error) {
	ctx, span := tracer.Start(ctx, string(kind), trace.WithAttributes(
		attribute.String("tenant", tenant),
	))
	defer span.End()

	var out Result
	err := r.runSteps(ctx, kind, tenant, build(&out))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(failure.KindOf(err)))
		return Result{}, err
	}
	span.SetAttributes(attribute.String("file", out.FileName))
	return out, nil
}

func (r Routines) ActivityStatement(ctx context.Context, req ActivityStatementRequest) (Result, error) {
	if req.Tenant == "" {
		return Result{}, fmt.Errorf("%w: tenant is required", failure.ErrInvalidInput)
	}
	period := req.Period
	if period == "" {
		period = PreviousMonth(r.clock.Now()).Format(PERIOD_LAYOUT)
	}

	return r.run(ctx, ACTIVITY_STATEMENT, req.Tenant, func(out *Result) []step {
		steps := []step{
			r.switchTenant(req.Tenant, req.Shortcode),
			{
				name: "open_dashboard",
				run: func(ctx context.Context, page browser.Page) error {
					return r.navigate(ctx, page, auth.DASHBOARD_URL)
				},
			},
			{name: "reporting_nav", run: r.click(locator.REPORTING_NAV)},
			{name: "activity_statement_link", run: r.click(locator.ACTIVITY_STATEMENT_LINK)},
			{name: "create_new_statement", run: r.click(locator.CREATE_NEW_STATEMENT)},
			{name: "select_period", run: r.click(locator.PERIOD_BUTTON, locator.V(locator.VAR_PERIOD, period))},
		}
		if req.FindUnfiled {
			steps = append(steps, step{
				name:     "open_draft",
				optional: true,
				run:      r.click(locator.DRAFT_STATEMENT),
			})
		}
		steps = append(steps, step{name: "wait_render", run: r.waitRender})
		return append(steps, r.exportSteps(ACTIVITY_STATEMENT, req.Tenant, &period, out)...)
	})
}

// payrollMonth is the first day of the requested month, the previous month when Month or Year
// are zero.
func (r Routines) payrollMonth(req PayrollRequest) (time.Time, error) {
	prev := PreviousMonth(r.clock.Now())
	month, year := req.Month, req.Year
	if month == 0 {
		month = int(prev.Month())
	}
	if year == 0 {
		year = prev.Year()
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: month must be between 1 and 12, got %d", failure.ErrInvalidInput, month)
	}
	if year < 2020 || year > 2100 {
		return time.Time{}, fmt.Errorf("%w: year must be between 2020 and 2100, got %d", failure.ErrInvalidInput, year)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, prev.Location()), nil
}

func (r Routines) clickAll(ctx context.Context, page browser.Page, elements ...string) error {
	for _, element := range elements {
		err := r.loc.Click(ctx, page, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// customRange types the first and last day of month into the report's date fields.
func (r Routines) customRange(ctx context.Context, page browser.Page, month time.Time) error {
	err := r.loc.Fill(ctx, page, locator.DATE_FROM_INPUT, month.Format(DATE_INPUT_LAYOUT))
	if err != nil {
		return err
	}
	err = r.loc.Fill(ctx, page, locator.DATE_TO_INPUT, month.AddDate(0, 1, -1).Format(DATE_INPUT_LAYOUT))
	if err != nil {
		return err
	}
	return r.loc.Click(ctx, page, locator.UPDATE_BUTTON)
}

// dateRange sets the report to month. The previous month is the report's usual range, so
// failing to set it is tolerated and the file is then left without a period label. Any other
// month has to be applied or the routine fails.
func (r Routines) dateRange(month time.Time, period *string) step {
	lastMonth := month.Equal(PreviousMonth(r.clock.Now()))
	return step{
		name:     "date_range",
		optional: lastMonth,
		run: func(ctx context.Context, page browser.Page) error {
			if !lastMonth {
				return r.customRange(ctx, page, month)
			}
			err := r.clickAll(ctx, page, locator.DATE_RANGE_DROPDOWN, locator.LAST_MONTH_OPTION, locator.UPDATE_BUTTON)
			if errors.Is(err, failure.ErrElementNotFound) {
				err = r.customRange(ctx, page, month)
			}
			if err != nil {
				*period = ""
			}
			return err
		},
	}
}

func (r Routines) PayrollSummary(ctx context.Context, req PayrollRequest) (Result, error) {
	if req.Tenant == "" {
		return Result{}, fmt.Errorf("%w: tenant is required", failure.ErrInvalidInput)
	}
	month, err := r.payrollMonth(req)
	if err != nil {
		return Result{}, err
	}
	period := month.Format(PAYROLL_PERIOD_LAYOUT)

	return r.run(ctx, PAYROLL_ACTIVITY_SUMMARY, req.Tenant, func(out *Result) []step {
		steps := []step{
			r.switchTenant(req.Tenant, req.Shortcode),
			{
				name: "open_reports",
				run: func(ctx context.Context, page browser.Page) error {
					return r.navigate(ctx, page, REPORTS_URL)
				},
			},
			{
				name:     "search_report",
				optional: true,
				run: func(ctx context.Context, page browser.Page) error {
					err := r.loc.Fill(ctx, page, locator.REPORT_SEARCH, PAYROLL_REPORT_QUERY)
					if errors.Is(err, failure.ErrElementNotFound) {
						return r.loc.Fill(ctx, page, locator.SEARCH_INPUT, PAYROLL_REPORT_QUERY)
					}
					return err
				},
			},
			{name: "open_report", run: r.click(locator.PAYROLL_ACTIVITY_SUMMARY)},
			r.dateRange(month, &period),
			{name: "wait_render", run: r.waitRender},
		}
		return append(steps, r.exportSteps(PAYROLL_ACTIVITY_SUMMARY, req.Tenant, &period, out)...)
	})
}

// CheckDownloadDir makes sure the download dir exists and is writable.
func (r Routines) CheckDownloadDir() error {
	err := os.MkdirAll(filepath.Join(r.opts.DownloadDir, stagingDirName), 0777)
	if err != nil {
		r.tel.ReportBroken(report_routines_downloads, err)
	}
	return err
}
