// Package cli assembles the application from its configuration: stores, bus,
// remote clients and the tourguide service, plus the long running server mode.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/tourguide"
	"github.com/aretw0/tourguide/internal/config"
	"github.com/aretw0/tourguide/pkg/adapters/file"
	"github.com/aretw0/tourguide/pkg/adapters/loam"
	"github.com/aretw0/tourguide/pkg/adapters/memory"
	natsbus "github.com/aretw0/tourguide/pkg/adapters/nats"
	"github.com/aretw0/tourguide/pkg/adapters/redis"
	"github.com/aretw0/tourguide/pkg/adapters/tutorialapi"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/observability"
	"github.com/aretw0/tourguide/pkg/orchestrator"
	"github.com/aretw0/tourguide/pkg/persistence/middleware"
	"github.com/aretw0/tourguide/pkg/ports"
	"github.com/aretw0/tourguide/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Stack is everything a command needs, built from one configuration.
type Stack struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    ports.SessionStore
	Sessions *session.Manager
	Bus      bus.Bus
	Catalog  ports.Catalog
	Client   *tutorialapi.Client
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	closers []func() error
}

// StoreOnly builds just the session store, for commands that inspect sessions.
func StoreOnly(cfg config.Config, logger *slog.Logger) (*Stack, error) {
	s := &Stack{Config: cfg, Logger: logger}
	store, locker, err := s.openStore(cfg.Store)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Store = store
	opts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		opts = append(opts, session.WithLocker(locker))
	}
	s.Sessions = session.NewManager(store, opts...)
	return s, nil
}

// Build assembles the whole stack. Close releases what it opened.
func Build(cfg config.Config, logger *slog.Logger) (*Stack, error) {
	s, err := StoreOnly(cfg, logger)
	if err != nil {
		return nil, err
	}

	if s.Bus, err = s.openBus(cfg.Bus); err != nil {
		_ = s.Close()
		return nil, err
	}

	if cfg.Catalog.Dir != "" {
		catalog, err := loam.Open(cfg.Catalog.Dir)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		s.Catalog = catalog
	}

	if cfg.Service.URL != "" {
		client, err := tutorialapi.New(cfg.Service.URL,
			tutorialapi.WithHTTPClient(&http.Client{Timeout: cfg.Service.Timeout}),
			tutorialapi.WithCacheSize(cfg.Service.CacheSize),
			tutorialapi.WithLogger(logger),
		)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to create service client: %w", err)
		}
		s.Client = client
	}

	s.Registry = prometheus.NewRegistry()
	s.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if s.Metrics, err = observability.NewMetrics(s.Registry); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return s, nil
}

// Service creates the tourguide service on top of the stack.
func (s *Stack) Service() *tourguide.Service {
	oc := s.Config.Orchestrator
	opts := []tourguide.Option{
		tourguide.WithLogger(s.Logger),
		tourguide.WithOrchestratorConfig(orchestrator.Config{
			ViewportPollInterval: oc.ViewportPollInterval,
			ViewportMaxRetries:   oc.ViewportMaxRetries,
		}),
		tourguide.WithFallbackTimeout(oc.FallbackTimeout),
		tourguide.WithLifecycleHooks(observability.LogHooks(s.Logger)),
	}
	if s.Metrics != nil {
		opts = append(opts, tourguide.WithLifecycleHooks(s.Metrics.Hooks()))
	}
	if s.Client != nil {
		opts = append(opts, tourguide.WithDetector(s.Client), tourguide.WithStepSource(s.Client))
	}
	if s.Catalog != nil {
		opts = append(opts, tourguide.WithCatalog(s.Catalog))
	}
	return tourguide.New(s.Bus, s.Sessions, opts...)
}

// Close releases the bus and the store connections, in reverse order of opening.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Stack) openStore(cfg config.StoreConfig) (ports.SessionStore, ports.DistributedLocker, error) {
	var (
		store  ports.SessionStore
		locker ports.DistributedLocker
	)
	switch cfg.Driver {
	case "memory":
		store = memory.NewStore()
	case "file":
		store = file.New(cfg.Path)
	case "redis":
		rs := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithTTL(cfg.TTL))
		if err := rs.Client().Ping(context.Background()).Err(); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		s.closers = append(s.closers, rs.Close)
		store = rs
		locker = redis.NewLocker(rs.Client(), rs.Prefix())
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	active, fallback, err := cfg.Keys()
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		store = middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return store, locker, nil
}

func (s *Stack) openBus(cfg config.BusConfig) (bus.Bus, error) {
	var b bus.Bus
	switch cfg.Driver {
	case "memory":
		b = bus.NewMemory(bus.WithMailboxSize(cfg.Mailbox), bus.WithLogger(s.Logger))
	case "nats":
		nb, err := natsbus.Connect(cfg.NATSURL,
			natsbus.WithPrefix(cfg.Prefix),
			natsbus.WithPendingLimit(cfg.Mailbox),
			natsbus.WithLogger(s.Logger),
		)
		if err != nil {
			return nil, err
		}
		b = nb
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
	}
	s.closers = append(s.closers, b.Close)
	return b, nil
}
