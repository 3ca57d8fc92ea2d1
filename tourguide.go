package tourguide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/content"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/orchestrator"
	"github.com/aretw0/tourguide/pkg/panel"
	"github.com/aretw0/tourguide/pkg/ports"
	"github.com/aretw0/tourguide/pkg/resolver"
	"github.com/aretw0/tourguide/pkg/session"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrTabAttached is returned when a tab ID is attached twice.
	ErrTabAttached = errors.New("tab already attached")
	// ErrTabNotFound is returned for operations on a tab that is not attached.
	ErrTabNotFound = errors.New("tab not attached")
	// ErrServiceClosed is returned by AttachTab after Close.
	ErrServiceClosed = errors.New("service closed")
)

// Service is the high-level entry point of the library.
// It owns the background and content contexts of every attached tab.
type Service struct {
	bus             bus.Bus
	sessions        *session.Manager
	detector        ports.RegionDetector
	hooks           domain.LifecycleHooks
	config          orchestrator.Config
	fallbackTimeout time.Duration
	panelOpts       []panel.Option
	logger          *slog.Logger

	panel *panel.Panel

	mu     sync.Mutex
	tabs   map[string]*attachedTab
	closed bool
}

type attachedTab struct {
	orch  *orchestrator.Orchestrator
	agent *content.Agent
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithDetector enables the image fallback for tabs whose page can be captured.
func WithDetector(d ports.RegionDetector) Option {
	return func(s *Service) {
		s.detector = d
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls are merged.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Service) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithOrchestratorConfig overrides the orchestrator tuning.
func WithOrchestratorConfig(cfg orchestrator.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithFallbackTimeout bounds each image fallback round trip.
func WithFallbackTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.fallbackTimeout = d
	}
}

// WithStepSource lets the panel start tutorials from a natural-language query.
func WithStepSource(src ports.StepSource) Option {
	return func(s *Service) {
		s.panelOpts = append(s.panelOpts, panel.WithStepSource(src))
	}
}

// WithCatalog lets the panel start locally authored tutorials.
func WithCatalog(c ports.Catalog) Option {
	return func(s *Service) {
		s.panelOpts = append(s.panelOpts, panel.WithCatalog(c))
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a Service on top of a bus and a session manager.
func New(b bus.Bus, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		bus:      b,
		sessions: sessions,
		config:   orchestrator.DefaultConfig(),
		logger:   logging.NewNop(),
		tabs:     make(map[string]*attachedTab),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.panel = panel.New(b, append(s.panelOpts, panel.WithLogger(s.logger))...)
	return s
}

// Panel returns the UI context used to drive tutorials.
func (s *Service) Panel() *panel.Panel {
	return s.panel
}

// AttachTab starts the background and content contexts of tab on page.
// If page also implements ports.Capturer and a detector is configured, DOM misses
// fall back to image detection.
//
// The persisted session of the tab is resumed on the next page load, or right away
// when the caller invokes Announce on an already loaded page.
func (s *Service) AttachTab(tab string, page ports.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServiceClosed
	}
	if _, ok := s.tabs[tab]; ok {
		return fmt.Errorf("%w: %s", ErrTabAttached, tab)
	}

	opts := []orchestrator.Option{
		orchestrator.WithConfig(s.config),
		orchestrator.WithLifecycleHooks(s.hooks),
		orchestrator.WithLogger(s.logger),
	}
	if capturer, ok := page.(ports.Capturer); ok && s.detector != nil {
		ropts := []resolver.Option{resolver.WithLogger(s.logger.With("tab_id", tab))}
		if s.fallbackTimeout > 0 {
			ropts = append(ropts, resolver.WithTimeout(s.fallbackTimeout))
		}
		opts = append(opts, orchestrator.WithResolver(resolver.New(capturer, s.detector, ropts...)))
	}

	orch := orchestrator.New(tab, s.bus, s.sessions, opts...)
	if err := orch.Attach(); err != nil {
		return err
	}
	agent := content.NewAgent(tab, page, s.bus, content.WithLogger(s.logger))
	if err := agent.Attach(); err != nil {
		orch.Close()
		return err
	}

	s.tabs[tab] = &attachedTab{orch: orch, agent: agent}
	s.logger.Debug("tab attached", "tab_id", tab)
	return nil
}

// Announce reports the current document of tab as loaded.
func (s *Service) Announce(ctx context.Context, tab string) error {
	t, err := s.lookup(tab)
	if err != nil {
		return err
	}
	return t.agent.Announce(ctx)
}

// Status returns the orchestration state of tab without going through the bus.
func (s *Service) Status(tab string) (bus.TutorialStatus, error) {
	t, err := s.lookup(tab)
	if err != nil {
		return bus.TutorialStatus{}, err
	}
	return t.orch.Status(), nil
}

// DetachTab stops both contexts of tab. The persisted session is kept,
// so attaching the same tab ID again resumes it.
func (s *Service) DetachTab(tab string) error {
	s.mu.Lock()
	t, ok := s.tabs[tab]
	delete(s.tabs, tab)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTabNotFound, tab)
	}
	t.detach()
	s.logger.Debug("tab detached", "tab_id", tab)
	return nil
}

// Tabs returns the attached tab IDs in lexical order.
func (s *Service) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tabs))
	for id := range s.tabs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close detaches every tab. Sessions stay in the store.
func (s *Service) Close() error {
	s.mu.Lock()
	tabs := s.tabs
	s.tabs = make(map[string]*attachedTab)
	s.closed = true
	s.mu.Unlock()

	var g errgroup.Group
	for _, t := range tabs {
		g.Go(func() error {
			t.detach()
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) lookup(tab string) (*attachedTab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[tab]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTabNotFound, tab)
	}
	return t, nil
}

func (t *attachedTab) detach() {
	t.agent.Detach()
	t.orch.Close()
}
