package service

import (
	"context"
	"fmt"
	"sync"
	"xeroreports/internal/failure"
)

const (
	LOCK_REJECT = "reject"
	LOCK_QUEUE  = "queue"
)

// browserLock serializes everything that drives the page. There is one browser and one page, two
// routines interleaving on it would click through each other's menus.
type browserLock struct {
	slot  chan struct{}
	queue bool
}

func newBrowserLock(mode string) (browserLock, error) {
	switch mode {
	case "", LOCK_REJECT:
		return browserLock{slot: make(chan struct{}, 1)}, nil
	case LOCK_QUEUE:
		return browserLock{slot: make(chan struct{}, 1), queue: true}, nil
	}
	return browserLock{}, fmt.Errorf("%w: unknown lock mode %q", failure.ErrInvalidInput, mode)
}

func (l browserLock) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-l.slot })
	}
}

// TryAcquire fails with failure.ErrBusy when the browser is held.
func (l browserLock) TryAcquire() (release func(), err error) {
	select {
	case l.slot <- struct{}{}:
		return l.releaser(), nil
	default:
		return nil, failure.ErrBusy
	}
}

// Acquire waits for the browser until ctx is done.
func (l browserLock) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case l.slot <- struct{}{}:
		return l.releaser(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", failure.ErrBusy, ctx.Err())
	}
}

func (l browserLock) acquire(ctx context.Context) (func(), error) {
	if l.queue {
		return l.Acquire(ctx)
	}
	return l.TryAcquire()
}
