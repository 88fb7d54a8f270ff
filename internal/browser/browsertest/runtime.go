package browsertest

import (
	"context"
	"fmt"
	"sync"
	"xeroreports/internal/browser"
	"xeroreports/internal/failure"
)

// FakeRuntime is a browser.Handle that hands out FakePages. Every (re)start creates a fresh
// page through NewPage so tests can observe that a restart really dropped the old context.
type FakeRuntime struct {
	mu sync.Mutex

	// NewPage builds the page for each start, the default is NewFakePage.
	NewPage func(headless bool) *FakePage
	// LaunchErr makes the next start fail.
	LaunchErr error

	running  bool
	headless bool
	page     *FakePage
	starts   []bool
	stops    int
}

func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{}
}

func (r *FakeRuntime) startLocked(headless bool) error {
	if r.LaunchErr != nil {
		err := r.LaunchErr
		r.LaunchErr = nil
		return fmt.Errorf("%w: %w", failure.ErrLaunch, err)
	}
	newPage := r.NewPage
	if newPage == nil {
		newPage = func(bool) *FakePage { return NewFakePage() }
	}
	r.page = newPage(headless)
	r.running = true
	r.headless = headless
	r.starts = append(r.starts, headless)
	return nil
}

func (r *FakeRuntime) stopLocked() {
	if !r.running {
		return
	}
	r.page.Close()
	r.running = false
	r.stops++
}

func (r *FakeRuntime) Start(ctx context.Context, headless bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		if r.headless == headless {
			return nil
		}
		return failure.ErrModeConflict
	}
	return r.startLocked(headless)
}

func (r *FakeRuntime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	return nil
}

func (r *FakeRuntime) Restart(ctx context.Context, headless bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	return r.startLocked(headless)
}

func (r *FakeRuntime) EnsureStarted(ctx context.Context, headless bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	return r.startLocked(headless)
}

func (r *FakeRuntime) Page() (browser.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil, failure.ErrNotStarted
	}
	return r.page, nil
}

// FakePage returns the current page, nil when stopped.
func (r *FakeRuntime) FakePage() *FakePage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	return r.page
}

// Starts lists the headless flag of every successful start in order.
func (r *FakeRuntime) Starts() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.starts...)
}

func (r *FakeRuntime) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

func (r *FakeRuntime) State() browser.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return browser.State{
		Initialized:      r.running,
		Headless:         r.running && r.headless,
		BrowserConnected: r.running,
		ContextActive:    r.running,
		PageActive:       r.running,
	}
}
