package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewportFuture_WaitWakesOnSet(t *testing.T) {
	f := resolver.NewViewportFuture(time.Second, 5)

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Set(domain.Viewport{Width: 800, Height: 600})
	}()

	start := time.Now()
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Viewport{Width: 800, Height: 600}, v)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "waiters must wake on Set, not on the next poll")
}

func TestViewportFuture_BoundedRetries(t *testing.T) {
	f := resolver.NewViewportFuture(5*time.Millisecond, 3)

	start := time.Now()
	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, domain.ErrViewportUnknown)
	assert.Less(t, time.Since(start), time.Second)
}

func TestViewportFuture_Reset(t *testing.T) {
	f := resolver.NewViewportFuture(5*time.Millisecond, 2)
	f.Set(domain.Viewport{Width: 800, Height: 600})

	_, ok := f.Get()
	assert.True(t, ok)

	f.Reset()
	_, ok = f.Get()
	assert.False(t, ok)

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, domain.ErrViewportUnknown)
}

func TestViewportFuture_IgnoresZeroDimensions(t *testing.T) {
	f := resolver.NewViewportFuture(5*time.Millisecond, 1)
	f.Set(domain.Viewport{Width: 0, Height: 600})

	_, ok := f.Get()
	assert.False(t, ok)
}

func TestViewportFuture_ContextCanceled(t *testing.T) {
	f := resolver.NewViewportFuture(time.Second, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
