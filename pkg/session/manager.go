package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
)

const defaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to the persisted session of each tab.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets how long a distributed lock is held at most.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: defaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(tabID) after unlocking.
func (m *Manager) acquire(tabID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[tabID]
	if !exists {
		entry = &lockEntry{}
		m.locks[tabID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(tabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[tabID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, tabID)
	}
}

// Start persists a fresh session for the tab, replacing any previous one.
func (m *Manager) Start(ctx context.Context, tabID string, steps []domain.Step) (*domain.Session, error) {
	s := domain.NewSession(steps)
	err := m.WithLock(ctx, tabID, func(ctx context.Context) error {
		if err := m.store.Save(ctx, tabID, s); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Resume loads the session to continue after a page load.
// A corrupt record is deleted and reported as domain.ErrSessionCorrupt.
// A completed record is cleared and returned so the caller can finish the teardown.
func (m *Manager) Resume(ctx context.Context, tabID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, tabID, func(ctx context.Context) error {
		var err error
		s, err = m.store.Load(ctx, tabID)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrSessionCorrupt):
			m.logger.Warn("Discarding corrupt session", "tab_id", tabID, "err", err)
			if derr := m.store.Delete(ctx, tabID); derr != nil {
				m.logger.Warn("Failed to delete corrupt session", "tab_id", tabID, "err", derr)
			}
			return err
		default:
			return err
		}

		if s.Completed() {
			if err := m.store.Delete(ctx, tabID); err != nil {
				return fmt.Errorf("failed to clear completed session: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, tabID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, tabID, func(ctx context.Context) error {
		var err error
		s, err = m.store.Load(ctx, tabID)
		return err
	})
	return s, err
}

// Save persists the session.
func (m *Manager) Save(ctx context.Context, tabID string, s *domain.Session) error {
	return m.WithLock(ctx, tabID, func(ctx context.Context) error {
		return m.store.Save(ctx, tabID, s)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, tabID string) error {
	return m.WithLock(ctx, tabID, func(ctx context.Context) error {
		return m.store.Delete(ctx, tabID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes a function while holding the lock for the tab.
func (m *Manager) WithLock(ctx context.Context, tabID string, fn func(context.Context) error) error {
	entry := m.acquire(tabID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(tabID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, tabID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"tab_id", tabID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
