// Package panel is the UI context: every user facing surface (HTTP, MCP, CLI) drives
// tutorials through it, and it only talks to the orchestrators over the bus.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
)

var (
	// ErrNoStepSource is returned by InitiateQuery when no remote service is configured.
	ErrNoStepSource = errors.New("no step source configured")
	// ErrNoCatalog is returned by InitiateCatalog when no catalog is configured.
	ErrNoCatalog = errors.New("no tutorial catalog configured")
)

// Panel sends UI commands to the orchestrator of a tab.
type Panel struct {
	bus     bus.Bus
	source  ports.StepSource
	catalog ports.Catalog
	logger  *slog.Logger
}

// Option configures the Panel.
type Option func(*Panel)

// WithStepSource enables InitiateQuery.
func WithStepSource(s ports.StepSource) Option {
	return func(p *Panel) {
		p.source = s
	}
}

// WithCatalog enables InitiateCatalog.
func WithCatalog(c ports.Catalog) Option {
	return func(p *Panel) {
		p.catalog = c
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Panel) {
		p.logger = logger
	}
}

// New creates a panel on b.
func New(b bus.Bus, opts ...Option) *Panel {
	p := &Panel{bus: b, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Catalog returns the configured catalog, or nil.
func (p *Panel) Catalog() ports.Catalog {
	return p.catalog
}

// Initiate starts a tutorial made of steps in tab, replacing any running one.
func (p *Panel) Initiate(ctx context.Context, tab string, steps []domain.Step) (bus.TutorialStatus, error) {
	p.logger.Info("Initiating tutorial", "tab_id", tab, "steps", len(steps))
	return p.request(ctx, tab, bus.InitiateTutorial{Steps: steps})
}

// InitiateQuery asks the step source for a tutorial and starts it.
func (p *Panel) InitiateQuery(ctx context.Context, tab, action, software string) (bus.TutorialStatus, error) {
	if p.source == nil {
		return bus.TutorialStatus{}, ErrNoStepSource
	}
	t, err := p.source.ResolveQuery(ctx, action, software)
	if err != nil {
		return bus.TutorialStatus{}, fmt.Errorf("failed to find a tutorial: %w", err)
	}
	return p.Initiate(ctx, tab, t.Steps)
}

// InitiateCatalog starts the authored tutorial id.
func (p *Panel) InitiateCatalog(ctx context.Context, tab, id string) (bus.TutorialStatus, error) {
	if p.catalog == nil {
		return bus.TutorialStatus{}, ErrNoCatalog
	}
	t, err := p.catalog.Get(ctx, id)
	if err != nil {
		return bus.TutorialStatus{}, err
	}
	return p.Initiate(ctx, tab, t.Steps)
}

// Status returns the orchestration state of tab.
func (p *Panel) Status(ctx context.Context, tab string) (bus.TutorialStatus, error) {
	return p.request(ctx, tab, bus.GetStatus{})
}

// Cancel stops the tutorial of tab and discards its progress.
func (p *Panel) Cancel(ctx context.Context, tab string) (bus.TutorialStatus, error) {
	p.logger.Info("Cancelling tutorial", "tab_id", tab)
	return p.request(ctx, tab, bus.CancelTutorial{})
}

// Advance completes step index on behalf of the user, as pressing its control would.
// A stale index is ignored by the orchestrator.
func (p *Panel) Advance(ctx context.Context, tab string, index int) error {
	return p.bus.Notify(ctx, bus.UIOf(tab), bus.BackgroundOf(tab), bus.StepCompleted{Index: index})
}

func (p *Panel) request(ctx context.Context, tab string, msg bus.Message) (bus.TutorialStatus, error) {
	reply, err := p.bus.Request(ctx, bus.UIOf(tab), bus.BackgroundOf(tab), msg)
	if err != nil {
		return bus.TutorialStatus{}, err
	}
	st, ok := reply.(bus.TutorialStatus)
	if !ok {
		return bus.TutorialStatus{}, fmt.Errorf("unexpected reply to %s: %T", msg.Action(), reply)
	}
	return st, nil
}
