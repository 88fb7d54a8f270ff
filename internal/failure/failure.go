// Package failure defines the error taxonomy shared by the browser, session, auth, locator and
// report packages. Callers match on the sentinel values with errors.Is and recover structured
// details with errors.As.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLaunch                 = errors.New("browser launch failed")
	ErrNotStarted             = errors.New("browser is not started")
	ErrModeConflict           = errors.New("browser is running in a different mode")
	ErrSessionAbsent          = errors.New("no stored session")
	ErrSessionCorrupt         = errors.New("stored session could not be decrypted")
	ErrProbeFailed            = errors.New("restored session was rejected")
	ErrElementNotFound        = errors.New("element not found")
	ErrTenantSwitchMismatch   = errors.New("tenant switch did not land on the requested tenant")
	ErrMaterializationTimeout = errors.New("exported file did not appear in time")
	ErrBusy                   = errors.New("browser is busy")
	ErrInvalidState           = errors.New("operation not allowed in current auth state")
	ErrNoCookies              = errors.New("no cookies captured")
	ErrLoginIncomplete        = errors.New("login not complete")
	ErrPanic                  = errors.New("routine panicked")
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
)

// Kind is the stable snake_case name of a failure, stored in audit rows and returned by the API.
type Kind string

const (
	KindNone                   Kind = ""
	KindLaunch                 Kind = "launch_failure"
	KindNotStarted             Kind = "browser_not_started"
	KindModeConflict           Kind = "browser_mode_conflict"
	KindSessionAbsent          Kind = "session_absent"
	KindSessionCorrupt         Kind = "session_corrupt"
	KindProbeFailed            Kind = "probe_failed"
	KindElementNotFound        Kind = "element_not_found"
	KindTenantSwitchMismatch   Kind = "tenant_switch_mismatch"
	KindMaterializationTimeout Kind = "materialization_timeout"
	KindBusy                   Kind = "busy"
	KindInvalidState           Kind = "invalid_state"
	KindNoCookies              Kind = "no_cookies"
	KindLoginIncomplete        Kind = "login_incomplete"
	KindPanic                  Kind = "panic"
	KindInvalidInput           Kind = "invalid_input"
	KindNotFound               Kind = "not_found"
	KindTimeout                Kind = "timeout"
	KindCancelled              Kind = "cancelled"
	KindInternal               Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrLaunch, KindLaunch},
	{ErrNotStarted, KindNotStarted},
	{ErrModeConflict, KindModeConflict},
	{ErrSessionAbsent, KindSessionAbsent},
	{ErrSessionCorrupt, KindSessionCorrupt},
	{ErrProbeFailed, KindProbeFailed},
	{ErrElementNotFound, KindElementNotFound},
	{ErrTenantSwitchMismatch, KindTenantSwitchMismatch},
	{ErrMaterializationTimeout, KindMaterializationTimeout},
	{ErrBusy, KindBusy},
	{ErrInvalidState, KindInvalidState},
	{ErrNoCookies, KindNoCookies},
	{ErrLoginIncomplete, KindLoginIncomplete},
	{ErrPanic, KindPanic},
	{ErrInvalidInput, KindInvalidInput},
	{ErrNotFound, KindNotFound},
}

// KindOf classifies err. The first matching sentinel wins, so a StepError wrapping an
// ElementNotFoundError is reported as element_not_found.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindInternal
}

// ElementNotFoundError is returned when every strategy for an element was exhausted.
type ElementNotFoundError struct {
	Element string
	Tried   []string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf(
		"element %q not found (tried %d strategies: %s)",
		e.Element, len(e.Tried), strings.Join(e.Tried, " | "),
	)
}

func (e *ElementNotFoundError) Is(target error) bool {
	return target == ErrElementNotFound
}

// TenantMismatchError is returned when the UI stayed on (or moved to) a tenant other than the
// requested one.
type TenantMismatchError struct {
	Requested string
	Actual    string
}

func (e *TenantMismatchError) Error() string {
	return fmt.Sprintf("tenant switch mismatch: requested %q, landed on %q", e.Requested, e.Actual)
}

func (e *TenantMismatchError) Is(target error) bool {
	return target == ErrTenantSwitchMismatch
}

// StepError is the structured failure a report routine surfaces after it has captured a
// screenshot of the page.
type StepError struct {
	Report     string
	Tenant     string
	Step       string
	Screenshot string
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s for %q failed at step %s: %v", e.Report, e.Tenant, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Screenshot returns the screenshot path carried anywhere in err's chain.
func Screenshot(err error) string {
	var step *StepError
	if errors.As(err, &step) {
		return step.Screenshot
	}
	return ""
}
