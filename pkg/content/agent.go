// Package content implements the page-side context of a tab: it answers DOM probes,
// renders overlays and reports page lifecycle events to the background context.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/locator"
	"github.com/aretw0/tourguide/pkg/overlay"
	"github.com/aretw0/tourguide/pkg/ports"
)

// Agent is the content context of one tab.
type Agent struct {
	tab      string
	page     ports.Page
	bus      bus.Bus
	locator  *locator.Locator
	renderer *overlay.Renderer
	logger   *slog.Logger

	mu       sync.Mutex
	detach   func()
	unsub    func()
	attached bool
}

// Option configures the Agent.
type Option func(*Agent)

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// NewAgent creates the content context of tab, drawing on page.
func NewAgent(tab string, page ports.Page, b bus.Bus, opts ...Option) *Agent {
	a := &Agent{tab: tab, page: page, bus: b, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("tab_id", tab, "context", string(bus.Content))
	a.locator = locator.New(page, locator.WithLogger(a.logger))
	a.renderer = overlay.NewRenderer(page,
		overlay.WithHighlighter(a.locator),
		overlay.WithLogger(a.logger),
	)
	return a
}

// Address returns the bus address of the agent.
func (a *Agent) Address() bus.Address {
	return bus.ContentOf(a.tab)
}

// Attach starts listening on the bus and to page events.
func (a *Agent) Attach() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attached {
		return nil
	}

	detach, err := a.bus.Listen(a.Address(), a.handle)
	if err != nil {
		return fmt.Errorf("failed to attach content agent: %w", err)
	}
	a.detach = detach
	a.unsub = a.page.Subscribe(a.onPageEvent)
	a.attached = true
	return nil
}

// Detach stops the agent. Pending requests fail with bus.ErrReceiverDetached.
func (a *Agent) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.attached {
		return
	}
	a.unsub()
	a.detach()
	a.attached = false
}

// Announce reports the current document as ready, with its viewport.
// Used when the agent attaches to an already loaded page.
func (a *Agent) Announce(ctx context.Context) error {
	m, err := a.page.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page metrics: %w", err)
	}
	a.notify(ctx, bus.PageReady{})
	a.notify(ctx, bus.ViewportDimensions{Width: m.Viewport.Width, Height: m.Viewport.Height})
	return nil
}

func (a *Agent) handle(ctx context.Context, env bus.Envelope) (bus.Message, error) {
	switch msg := env.Message.(type) {
	case bus.FindElementInDOM:
		region, found := a.locator.Locate(ctx, msg.Step.Target)
		if !found {
			a.logger.Debug("Target not in DOM", "index", msg.Step.Index, "target", msg.Step.Target)
			return bus.FindElementResult{Found: false}, nil
		}
		return bus.FindElementResult{Found: true, Region: &region}, nil

	case bus.DisplayStep:
		return nil, a.display(ctx, msg.Step)

	case bus.EndTutorial:
		return nil, a.renderer.Clear(ctx)

	default:
		return nil, fmt.Errorf("content agent: unexpected %s", env.Message.Action())
	}
}

func (a *Agent) display(ctx context.Context, step domain.Step) error {
	d := overlay.Display{
		Index:   step.Index,
		Label:   step.DisplayLabel(),
		Message: step.Instruction,
		Region:  step.Region,
	}
	if step.Resolution == domain.ResolutionDOM {
		d.Descriptor = step.Target
	}
	if _, err := a.renderer.Show(ctx, d); err != nil {
		return fmt.Errorf("failed to display step %d: %w", step.Index, err)
	}
	a.logger.Debug("Step displayed", "index", step.Index, "resolution", step.Resolution)
	return nil
}

func (a *Agent) onPageEvent(ev domain.PageEvent) {
	ctx := context.Background()
	switch ev.Kind {
	case domain.PageNavigated:
		// The old document took the overlay nodes with it.
		a.renderer.Forget()
		a.notify(ctx, bus.PageNavigated{URL: ev.URL})
	case domain.PageLoaded:
		a.notify(ctx, bus.PageReady{URL: ev.URL})
	case domain.PageViewport:
		a.notify(ctx, bus.ViewportDimensions{Width: ev.Viewport.Width, Height: ev.Viewport.Height})
	case domain.PageActivated:
		h := a.renderer.Activate(ctx, ev.Token)
		if h == nil {
			a.logger.Debug("Ignoring stale advance", "token", ev.Token)
			return
		}
		a.notify(ctx, bus.StepCompleted{Index: h.Index()})
	}
}

func (a *Agent) notify(ctx context.Context, msg bus.Message) {
	err := a.bus.Notify(ctx, a.Address(), bus.BackgroundOf(a.tab), msg)
	if err == nil {
		return
	}
	if errors.Is(err, bus.ErrNoReceiver) {
		a.logger.Debug("No background listener", "action", msg.Action())
		return
	}
	a.logger.Warn("Failed to notify background", "action", msg.Action(), "err", err)
}
