package testutils

import (
	"context"
	"sync"

	"github.com/aretw0/tourguide/pkg/ports"
)

// Detector is a scripted ports.RegionDetector that records its calls.
type Detector struct {
	mu    sync.Mutex
	calls []ports.RegionRequest
	fn    func(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error)
}

var _ ports.RegionDetector = (*Detector)(nil)

// NewDetector creates a detector answering with fn.
func NewDetector(fn func(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error)) *Detector {
	return &Detector{fn: fn}
}

// DetectRegion implements ports.RegionDetector.
func (d *Detector) DetectRegion(ctx context.Context, req ports.RegionRequest) (ports.RegionResult, error) {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	d.mu.Unlock()
	return d.fn(ctx, req)
}

// Calls returns the requests received so far.
func (d *Detector) Calls() []ports.RegionRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ports.RegionRequest(nil), d.calls...)
}
