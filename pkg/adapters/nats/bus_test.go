package nats_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	natsbus "github.com/aretw0/tourguide/pkg/adapters/nats"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup connects to the server named by NATS_URL, with a prefix unique to the test.
func setup(t *testing.T) *natsbus.Bus {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	b, err := natsbus.Connect(url, natsbus.WithPrefix("test"+uuid.NewString()[:8]))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSubject(t *testing.T) {
	b := natsbus.New(nil, natsbus.WithPrefix("tg"))

	s, err := b.Subject(bus.ContentOf("tab-1"))
	require.NoError(t, err)
	assert.Equal(t, "tg.tab-1.content", s)

	for _, tab := range []string{"", "a.b", "a*", "a>", "a b"} {
		_, err := b.Subject(bus.ContentOf(tab))
		assert.Error(t, err, "tab %q", tab)
	}
}

func TestBus_RequestReply(t *testing.T) {
	b := setup(t)
	detach, err := b.Listen(bus.BackgroundOf("t1"), func(ctx context.Context, env bus.Envelope) (bus.Message, error) {
		switch env.Message.(type) {
		case bus.GetStatus:
			return bus.TutorialStatus{State: "running", Total: 3}, nil
		case bus.CancelTutorial:
			return nil, errors.New("nope")
		}
		return nil, nil
	})
	require.NoError(t, err)
	defer detach()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := b.Request(ctx, bus.UIOf("t1"), bus.BackgroundOf("t1"), bus.GetStatus{})
	require.NoError(t, err)
	assert.Equal(t, 3, reply.(bus.TutorialStatus).Total)

	reply, err = b.Request(ctx, bus.UIOf("t1"), bus.BackgroundOf("t1"), bus.PageReady{})
	require.NoError(t, err)
	assert.Nil(t, reply)

	_, err = b.Request(ctx, bus.UIOf("t1"), bus.BackgroundOf("t1"), bus.CancelTutorial{})
	var remote *bus.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "nope", remote.Msg)
}

func TestBus_RequestNoReceiver(t *testing.T) {
	b := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := b.Request(ctx, bus.UIOf("t2"), bus.BackgroundOf("t2"), bus.GetStatus{})
	assert.ErrorIs(t, err, bus.ErrNoReceiver)
}

func TestBus_NotifyInOrder(t *testing.T) {
	b := setup(t)
	got := make(chan int, 10)
	_, err := b.Listen(bus.BackgroundOf("t3"), func(ctx context.Context, env bus.Envelope) (bus.Message, error) {
		got <- env.Message.(bus.StepCompleted).Index
		return nil, nil
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Notify(context.Background(), bus.ContentOf("t3"), bus.BackgroundOf("t3"), bus.StepCompleted{Index: i}))
	}
	for i := 0; i < 5; i++ {
		select {
		case v := <-got:
			assert.Equal(t, i, v)
		case <-time.After(5 * time.Second):
			t.Fatal("notification not delivered")
		}
	}
}

func TestBus_AddressInUse(t *testing.T) {
	b := setup(t)
	noop := func(ctx context.Context, env bus.Envelope) (bus.Message, error) { return nil, nil }
	_, err := b.Listen(bus.ContentOf("t4"), noop)
	require.NoError(t, err)
	_, err = b.Listen(bus.ContentOf("t4"), noop)
	assert.ErrorIs(t, err, bus.ErrAddressInUse)
}
