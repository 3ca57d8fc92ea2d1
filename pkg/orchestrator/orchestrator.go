package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/resolver"
	"github.com/aretw0/tourguide/pkg/session"
)

// ImageResolver resolves a step from a capture of the viewport.
type ImageResolver interface {
	ResolveByImage(ctx context.Context, step domain.Step, viewport domain.Viewport) (domain.Step, error)
}

// Config tunes the orchestrator.
type Config struct {
	// ViewportPollInterval and ViewportMaxRetries bound the wait for the viewport
	// before an image fallback.
	ViewportPollInterval time.Duration
	ViewportMaxRetries   int
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		ViewportPollInterval: 100 * time.Millisecond,
		ViewportMaxRetries:   50,
	}
}

// Orchestrator is the background context of one tab.
type Orchestrator struct {
	tab      string
	bus      bus.Bus
	sessions *session.Manager
	resolver ImageResolver
	viewport *resolver.ViewportFuture
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	ctx    context.Context
	stop   context.CancelFunc
	detach func()
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    domain.Status
	session  *domain.Session
	gen      uint64
	awaiting int // step index waiting for its advance signal, -1 when none
	cancel   context.CancelFunc

	advancedGen uint64 // generation in which the last advance signal was accepted
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithResolver enables the image fallback. Without it, DOM misses are shown centered.
func WithResolver(r ImageResolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = o.hooks.Merge(h)
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.viewport = resolver.NewViewportFuture(cfg.ViewportPollInterval, cfg.ViewportMaxRetries)
	}
}

// New creates the orchestrator of tab. Call Attach to start it.
func New(tab string, b bus.Bus, sessions *session.Manager, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	o := &Orchestrator{
		tab:      tab,
		bus:      b,
		sessions: sessions,
		viewport: resolver.NewViewportFuture(def.ViewportPollInterval, def.ViewportMaxRetries),
		logger:   logging.NewNop(),
		state:    domain.StatusIdle,
		awaiting: -1,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("tab_id", tab, "context", string(bus.Background))
	o.ctx, o.stop = context.WithCancel(context.Background())
	return o
}

// Address returns the bus address of the orchestrator.
func (o *Orchestrator) Address() bus.Address {
	return bus.BackgroundOf(o.tab)
}

// Attach starts listening on the bus.
func (o *Orchestrator) Attach() error {
	detach, err := o.bus.Listen(o.Address(), o.handle)
	if err != nil {
		return fmt.Errorf("failed to attach orchestrator: %w", err)
	}
	o.detach = detach
	return nil
}

// Close detaches from the bus and waits for in-flight step work to stop.
// The persisted session is kept.
func (o *Orchestrator) Close() {
	if o.detach != nil {
		o.detach()
	}
	o.stop()
	o.wg.Wait()
}

// Status returns a snapshot of the orchestration state.
func (o *Orchestrator) Status() bus.TutorialStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() bus.TutorialStatus {
	st := bus.TutorialStatus{State: o.state}
	if o.session != nil {
		st.CurrentIndex = o.session.CurrentIndex
		st.Total = len(o.session.Steps)
		if step, ok := o.session.Current(); ok {
			st.Current = &step
		}
	}
	return st
}

func (o *Orchestrator) handle(ctx context.Context, env bus.Envelope) (bus.Message, error) {
	switch msg := env.Message.(type) {
	case bus.ViewportDimensions:
		o.viewport.Set(domain.Viewport{Width: msg.Width, Height: msg.Height})
		return nil, nil
	case bus.InitiateTutorial:
		return o.initiate(ctx, msg.Steps)
	case bus.StepCompleted:
		o.advance(ctx, msg.Index)
		return nil, nil
	case bus.PageNavigated:
		o.suspend(msg.URL)
		return nil, nil
	case bus.PageReady:
		o.resume(ctx, msg.URL)
		return nil, nil
	case bus.CancelTutorial:
		return o.cancelTutorial(ctx)
	case bus.GetStatus:
		return o.Status(), nil
	default:
		return nil, fmt.Errorf("orchestrator: unexpected %s", env.Message.Action())
	}
}

// bumpLocked invalidates in-flight work. o.mu must be held.
func (o *Orchestrator) bumpLocked() uint64 {
	o.gen++
	o.awaiting = -1
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	return o.gen
}

func (o *Orchestrator) initiate(ctx context.Context, steps []domain.Step) (bus.Message, error) {
	s, err := o.sessions.Start(ctx, o.tab, steps)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.state == domain.StatusRunning || o.state == domain.StatusSuspended {
		o.logger.Info("Replacing running tutorial", "steps", len(steps))
	}
	o.bumpLocked()
	o.session = s
	o.state = domain.StatusRunning
	o.mu.Unlock()

	o.logger.Info("Tutorial started", "steps", len(s.Steps))
	if o.hooks.OnTutorialStart != nil {
		o.hooks.OnTutorialStart(ctx, &domain.TutorialEvent{
			EventBase: o.event(domain.EventTutorialStart),
			Steps:     len(s.Steps),
		})
	}

	if s.Completed() {
		o.complete(ctx)
	} else {
		o.processCurrent()
	}
	return o.Status(), nil
}

func (o *Orchestrator) advance(ctx context.Context, index int) {
	o.mu.Lock()
	if o.state != domain.StatusRunning || o.awaiting != index || o.session == nil {
		o.mu.Unlock()
		o.logger.Debug("Ignoring advance", "index", index)
		return
	}
	o.advancedGen = o.gen
	o.bumpLocked()
	done := o.session.Advance()
	snapshot := o.session.Snapshot()
	o.mu.Unlock()

	o.logger.Debug("Step completed", "index", index)
	if done {
		o.complete(ctx)
		return
	}

	if err := o.sessions.Save(ctx, o.tab, snapshot); err != nil {
		o.logger.Error("Failed to persist progress", "index", snapshot.CurrentIndex, "err", err)
	}
	o.processCurrent()
}

// complete clears the persisted session and tears the overlay down.
func (o *Orchestrator) complete(ctx context.Context) {
	o.mu.Lock()
	o.bumpLocked()
	total := 0
	if o.session != nil {
		total = len(o.session.Steps)
	}
	o.state = domain.StatusCompleted
	o.mu.Unlock()

	if err := o.sessions.Delete(ctx, o.tab); err != nil {
		o.logger.Error("Failed to clear completed session", "err", err)
	}
	o.notifyContent(ctx, bus.EndTutorial{})

	o.logger.Info("Tutorial completed", "steps", total)
	o.fireEnd(ctx, total, domain.OutcomeCompleted)
}

func (o *Orchestrator) cancelTutorial(ctx context.Context) (bus.Message, error) {
	o.mu.Lock()
	o.bumpLocked()
	total := 0
	active := o.session != nil && (o.state == domain.StatusRunning || o.state == domain.StatusSuspended)
	if o.session != nil {
		total = len(o.session.Steps)
	}
	o.session = nil
	o.state = domain.StatusIdle
	o.mu.Unlock()

	if err := o.sessions.Delete(ctx, o.tab); err != nil {
		return nil, fmt.Errorf("failed to discard session: %w", err)
	}
	o.notifyContent(ctx, bus.EndTutorial{})

	if active {
		o.logger.Info("Tutorial cancelled")
		o.fireEnd(ctx, total, domain.OutcomeCancelled)
	}
	return o.Status(), nil
}

func (o *Orchestrator) suspend(url string) {
	o.viewport.Reset()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != domain.StatusRunning {
		return
	}
	o.bumpLocked()
	o.state = domain.StatusSuspended
	o.logger.Debug("Tutorial suspended", "url", url, "index", o.session.CurrentIndex)
}

func (o *Orchestrator) resume(ctx context.Context, url string) {
	s, err := o.sessions.Resume(ctx, o.tab)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		o.idle()
		return
	case errors.Is(err, domain.ErrSessionCorrupt):
		o.logger.Warn("Persisted session is unusable, nothing to resume", "err", err)
		o.idle()
		return
	case err != nil:
		o.logger.Error("Failed to load session", "err", err)
		return
	}

	if s.Completed() {
		o.mu.Lock()
		o.bumpLocked()
		o.session = s
		o.state = domain.StatusCompleted
		o.mu.Unlock()
		o.notifyContent(ctx, bus.EndTutorial{})
		return
	}

	o.mu.Lock()
	o.bumpLocked()
	o.session = s
	o.state = domain.StatusRunning
	o.mu.Unlock()

	o.logger.Info("Tutorial resumed", "url", url, "index", s.CurrentIndex)
	if o.hooks.OnTutorialStart != nil {
		o.hooks.OnTutorialStart(ctx, &domain.TutorialEvent{
			EventBase: o.event(domain.EventTutorialStart),
			Steps:     len(s.Steps),
			Resumed:   true,
		})
	}
	o.processCurrent()
}

// idle drops the in-memory session after storage reported nothing to resume.
func (o *Orchestrator) idle() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == domain.StatusCompleted {
		return
	}
	o.bumpLocked()
	o.session = nil
	o.state = domain.StatusIdle
}

func (o *Orchestrator) fireEnd(ctx context.Context, total int, outcome domain.Outcome) {
	if o.hooks.OnTutorialEnd == nil {
		return
	}
	o.hooks.OnTutorialEnd(ctx, &domain.TutorialEvent{
		EventBase: o.event(domain.EventTutorialEnd),
		Steps:     total,
		Outcome:   outcome,
	})
}

func (o *Orchestrator) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, TabID: o.tab}
}

func (o *Orchestrator) notifyContent(ctx context.Context, msg bus.Message) {
	err := o.bus.Notify(ctx, o.Address(), bus.ContentOf(o.tab), msg)
	if err != nil {
		o.logger.Debug("Content notification lost", "action", msg.Action(), "err", err)
	}
}
