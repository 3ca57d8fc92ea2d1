package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/tourguide/pkg/domain"
)

// ViewportFuture holds the viewport reported by the current document.
// It is reset on every navigation; waiters block until the next report.
type ViewportFuture struct {
	mu       sync.Mutex
	viewport domain.Viewport
	ready    chan struct{}

	interval time.Duration
	retries  int
}

// NewViewportFuture creates an unset future. Wait gives up after interval*retries.
func NewViewportFuture(interval time.Duration, retries int) *ViewportFuture {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if retries <= 0 {
		retries = 1
	}
	return &ViewportFuture{ready: make(chan struct{}), interval: interval, retries: retries}
}

// Set records the viewport and wakes the waiters. Unusable dimensions are ignored.
func (f *ViewportFuture) Set(v domain.Viewport) {
	if !v.Known() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewport = v
	select {
	case <-f.ready:
	default:
		close(f.ready)
	}
}

// Reset forgets the viewport.
func (f *ViewportFuture) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewport = domain.Viewport{}
	select {
	case <-f.ready:
		f.ready = make(chan struct{})
	default:
	}
}

// Get returns the viewport if it is known.
func (f *ViewportFuture) Get() (domain.Viewport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewport, f.viewport.Known()
}

// Wait blocks until the viewport is known, retrying at the configured interval.
// It returns domain.ErrViewportUnknown once the retries are exhausted.
func (f *ViewportFuture) Wait(ctx context.Context) (domain.Viewport, error) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for attempt := 0; ; attempt++ {
		f.mu.Lock()
		v, ready := f.viewport, f.ready
		f.mu.Unlock()
		if v.Known() {
			return v, nil
		}
		if attempt >= f.retries {
			return domain.Viewport{}, domain.ErrViewportUnknown
		}

		select {
		case <-ctx.Done():
			return domain.Viewport{}, ctx.Err()
		case <-ready:
		case <-ticker.C:
		}
	}
}
