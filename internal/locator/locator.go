// Package locator finds UI elements through ordered fallback strategies so routines survive
// cosmetic changes to the markup.
package locator

import (
	"context"
	"fmt"
	"time"
	"xeroreports/internal/browser"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/failure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("xeroreports/internal/locator")

const (
	report_locator_find = "locator.find"
)

const DefaultAttemptTimeout = 3 * time.Second

type Locator struct {
	registry       Registry
	attemptTimeout time.Duration
	tel            telemetry.API
}

func New(registry Registry, attemptTimeout time.Duration, tel telemetry.API) Locator {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return Locator{
		registry:       registry,
		attemptTimeout: attemptTimeout,
		tel:            telemetry.NewScopedAPI("locator", tel),
	}
}

func (l Locator) Registry() Registry {
	return l.registry
}

// Match is the outcome of a successful lookup.
type Match struct {
	Selector browser.Selector
	Tried    []string
}

// Find waits for the first visible strategy of element. Each strategy gets its own attempt
// timeout. When every strategy times out it returns *failure.ElementNotFoundError, when ctx
// itself ends it returns ctx's error.
func (l Locator) Find(ctx context.Context, page browser.Page, element string, vars ...Var) (Match, error) {
	ctx, span := tracer.Start(ctx, "Find", trace.WithAttributes(
		attribute.String("element", element),
	))
	defer span.End()

	strategies, err := l.registry.Strategies(element, vars...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown element")
		return Match{}, err
	}

	tried := make([]string, 0, len(strategies))
	for _, sel := range strategies {
		tried = append(tried, sel.String())

		attemptCtx, cancel := context.WithTimeout(ctx, l.attemptTimeout)
		err := page.WaitVisible(attemptCtx, sel)
		cancel()
		if err == nil {
			span.SetAttributes(
				attribute.String("selector", sel.String()),
				attribute.Int("attempts", len(tried)),
			)
			l.tel.ReportDebug("found element", element, sel.String(), len(tried))
			return Match{Selector: sel, Tried: tried}, nil
		}
		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "cancelled")
			return Match{}, fmt.Errorf("find %s: %w", element, ctx.Err())
		}
		l.tel.ReportDebug("strategy missed", element, sel.String(), err)
	}

	notFound := &failure.ElementNotFoundError{Element: element, Tried: tried}
	span.RecordError(notFound)
	span.SetStatus(codes.Error, "element not found")
	l.tel.ReportWarning(report_locator_find, element, len(tried))
	return Match{}, notFound
}

// Exists reports whether any strategy of element is visible. Only cancellation of ctx is
// returned as an error.
func (l Locator) Exists(ctx context.Context, page browser.Page, element string, vars ...Var) (bool, error) {
	_, err := l.Find(ctx, page, element, vars...)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, err
	}
	return false, nil
}

func (l Locator) Click(ctx context.Context, page browser.Page, element string, vars ...Var) error {
	match, err := l.Find(ctx, page, element, vars...)
	if err != nil {
		return err
	}
	err = page.Click(ctx, match.Selector)
	if err != nil {
		return fmt.Errorf("click %s (%s): %w", element, match.Selector, err)
	}
	return nil
}

func (l Locator) Fill(ctx context.Context, page browser.Page, element, value string, vars ...Var) error {
	match, err := l.Find(ctx, page, element, vars...)
	if err != nil {
		return err
	}
	err = page.Fill(ctx, match.Selector, value)
	if err != nil {
		return fmt.Errorf("fill %s (%s): %w", element, match.Selector, err)
	}
	return nil
}

func (l Locator) Text(ctx context.Context, page browser.Page, element string, vars ...Var) (string, error) {
	match, err := l.Find(ctx, page, element, vars...)
	if err != nil {
		return "", err
	}
	text, err := page.Text(ctx, match.Selector)
	if err != nil {
		return "", fmt.Errorf("text %s (%s): %w", element, match.Selector, err)
	}
	return text, nil
}
