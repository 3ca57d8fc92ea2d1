package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tourguide/pkg/adapters/memory"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
	"github.com/aretw0/tourguide/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
	mu      sync.Mutex
	active  int
	overlap bool
}

func (s *SlowStore) Save(ctx context.Context, tabID string, sess *domain.Session) error {
	s.mu.Lock()
	s.active++
	if s.active > 1 {
		s.overlap = true
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond) // Simulate IO

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return s.Store.Save(ctx, tabID, sess)
}

func steps(n int) []domain.Step {
	out := make([]domain.Step, n)
	for i := range out {
		out[i] = domain.Step{Instruction: "step", Target: "t"}
	}
	return out
}

func TestManager_SerializesWrites(t *testing.T) {
	store := &SlowStore{Store: memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, manager.Save(ctx, "tab", domain.NewSession(steps(2))))
		}()
	}
	wg.Wait()

	assert.False(t, store.overlap, "writes to one tab must not overlap")
}

func TestManager_Start(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	s, err := manager.Start(ctx, "tab", steps(3))
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentIndex)

	loaded, err := manager.Load(ctx, "tab")
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 3)
}

func TestManager_Resume(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		manager := session.NewManager(memory.NewStore())
		_, err := manager.Resume(ctx, "tab")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("incomplete", func(t *testing.T) {
		manager := session.NewManager(memory.NewStore())
		s := domain.NewSession(steps(3))
		s.CurrentIndex = 1
		require.NoError(t, manager.Save(ctx, "tab", s))

		got, err := manager.Resume(ctx, "tab")
		require.NoError(t, err)
		assert.Equal(t, 1, got.CurrentIndex)
		assert.False(t, got.Completed())
	})

	t.Run("completed is cleared", func(t *testing.T) {
		store := memory.NewStore()
		manager := session.NewManager(store)
		s := domain.NewSession(steps(2))
		s.CurrentIndex = 2
		require.NoError(t, manager.Save(ctx, "tab", s))

		got, err := manager.Resume(ctx, "tab")
		require.NoError(t, err)
		assert.True(t, got.Completed())

		_, err = store.Load(ctx, "tab")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("corrupt is deleted", func(t *testing.T) {
		store := memory.NewStore()
		manager := session.NewManager(store)
		store.Put("tab", []byte(`{"currentStepIndex":1}`))

		_, err := manager.Resume(ctx, "tab")
		assert.ErrorIs(t, err, domain.ErrSessionCorrupt)

		tabs, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, tabs, "tab")
	})
}

type countingLocker struct {
	mu      sync.Mutex
	locks   int
	unlocks int
	lastTTL time.Duration
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.locks++
	l.lastTTL = ttl
	l.mu.Unlock()
	return func(ctx context.Context) error {
		l.mu.Lock()
		l.unlocks++
		l.mu.Unlock()
		return nil
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &countingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	_, err := manager.Start(ctx, "tab", steps(1))
	require.NoError(t, err)
	require.NoError(t, manager.Delete(ctx, "tab"))

	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 2, locker.unlocks)
	assert.Equal(t, time.Second, locker.lastTTL)
}
