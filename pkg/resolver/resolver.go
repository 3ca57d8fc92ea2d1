// Package resolver obtains a step region from a screenshot when the DOM lookup misses.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
)

// Resolver captures the visible viewport and asks a region detector where the target is.
type Resolver struct {
	capturer ports.Capturer
	detector ports.RegionDetector
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithTimeout bounds each detector call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver.
func New(capturer ports.Capturer, detector ports.RegionDetector, opts ...Option) *Resolver {
	r := &Resolver{capturer: capturer, detector: detector, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveByImage returns step anchored to the detected region, in document coordinates.
//
// The returned step is always displayable: on failure it carries no region and the error
// wraps domain.ErrResolutionFailed (or domain.ErrViewportUnknown). The detector's step text
// replaces the instruction whenever the detector answered.
func (r *Resolver) ResolveByImage(ctx context.Context, step domain.Step, viewport domain.Viewport) (domain.Step, error) {
	fallback := step.Resolved(nil, domain.ResolutionNone)
	if !viewport.Known() {
		return fallback, domain.ErrViewportUnknown
	}

	capture, err := r.capturer.Capture(ctx)
	if err != nil {
		return fallback, fmt.Errorf("%w: capture: %v", domain.ErrResolutionFailed, err)
	}

	dctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.detector.DetectRegion(dctx, ports.RegionRequest{
		Step:     step.Unresolved(),
		Capture:  capture,
		Viewport: viewport,
	})
	if err != nil {
		if errors.Is(err, domain.ErrResolutionFailed) {
			return fallback, err
		}
		return fallback, fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}

	updated := merge(step, res.Step)
	if len(res.Points) == 0 {
		r.logger.Debug("Target not found on capture", "index", step.Index, "target", step.Target)
		return updated.Resolved(nil, domain.ResolutionNone),
			fmt.Errorf("%w: target %q not found on capture", domain.ErrResolutionFailed, step.Target)
	}

	region, err := domain.RegionFromPoints(res.Points)
	if err != nil {
		return updated.Resolved(nil, domain.ResolutionNone), fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}

	// Points are viewport-relative at capture time.
	region = region.Translate(capture.ScrollX, capture.ScrollY)
	return updated.Resolved(&region, domain.ResolutionImage), nil
}

// merge applies the detector's authoritative content while keeping identity fields.
func merge(step, reply domain.Step) domain.Step {
	if strings.TrimSpace(reply.Instruction) != "" {
		step.Instruction = reply.Instruction
	}
	if reply.Label != "" {
		step.Label = reply.Label
	}
	if reply.Action != "" {
		step.Action = reply.Action
	}
	return step
}
