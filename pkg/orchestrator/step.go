package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/domain"
)

// processCurrent starts resolving the current step under the current generation.
func (o *Orchestrator) processCurrent() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil || o.state != domain.StatusRunning {
		return
	}
	step, ok := o.session.Current()
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(o.ctx)
	o.cancel = cancel
	gen := o.gen

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.runStep(ctx, gen, step)
	}()
}

// current reports whether gen is still the live generation.
func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen == gen
}

func (o *Orchestrator) runStep(ctx context.Context, gen uint64, step domain.Step) {
	resolved := o.resolve(ctx, gen, step)

	o.mu.Lock()
	if o.gen != gen || ctx.Err() != nil {
		o.mu.Unlock()
		o.logger.Debug("Discarding stale step result", "index", step.Index)
		return
	}
	// Armed before display: the user may press the control before the reply arrives.
	o.awaiting = step.Index
	o.mu.Unlock()

	if _, err := o.bus.Request(ctx, o.Address(), bus.ContentOf(o.tab), bus.DisplayStep{Step: resolved}); err != nil {
		if errors.Is(err, context.Canceled) {
			// Cancelled by this step's own advance: the user saw the callout and pressed it.
			o.mu.Lock()
			shown := o.advancedGen == gen
			o.mu.Unlock()
			if shown {
				o.stepDisplayed(o.ctx, resolved)
			}
			return
		}
		o.logger.Warn("Failed to display step", "index", step.Index, "err", err)
		return
	}
	o.stepDisplayed(ctx, resolved)
}

func (o *Orchestrator) stepDisplayed(ctx context.Context, step domain.Step) {
	o.logger.Debug("Step displayed", "index", step.Index, "resolution", step.Resolution)
	if o.hooks.OnStepDisplay != nil {
		o.hooks.OnStepDisplay(ctx, &domain.StepEvent{
			EventBase:  o.event(domain.EventStepDisplay),
			Index:      step.Index,
			Resolution: step.Resolution,
		})
	}
}

// resolve runs the DOM probe and, on a miss, the image fallback. It never fails:
// the worst case is a step without region, shown as a centered callout.
func (o *Orchestrator) resolve(ctx context.Context, gen uint64, step domain.Step) domain.Step {
	if !step.HasTarget() {
		return step.Resolved(nil, domain.ResolutionNone)
	}

	reply, err := o.bus.Request(ctx, o.Address(), bus.ContentOf(o.tab), bus.FindElementInDOM{Step: step})
	if err != nil {
		o.logger.Debug("DOM probe failed", "index", step.Index, "err", err)
	} else if res, ok := reply.(bus.FindElementResult); ok && res.Found {
		return step.Resolved(res.Region, domain.ResolutionDOM)
	}

	if o.resolver == nil || !o.current(gen) {
		return step.Resolved(nil, domain.ResolutionNone)
	}

	vp, err := o.viewport.Wait(ctx)
	if err != nil {
		o.logger.Warn("Viewport not reported, showing step unanchored", "index", step.Index, "err", err)
		return step.Resolved(nil, domain.ResolutionNone)
	}

	// The detector call is not cancelled when the session moves on; runStep drops
	// a result whose generation is gone. Only Close and the resolver timeout end it.
	start := time.Now()
	resolved, err := o.resolver.ResolveByImage(o.ctx, step, vp)
	if o.hooks.OnFallback != nil {
		o.hooks.OnFallback(o.ctx, &domain.FallbackEvent{
			EventBase: o.event(domain.EventFallback),
			Index:     step.Index,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
	if err != nil {
		o.logger.Warn("Image fallback failed, showing step unanchored", "index", step.Index, "err", err)
	}
	return resolved
}
