package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tourguide/pkg/adapters/redis"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleSession() *domain.Session {
	return domain.NewSession([]domain.Step{
		{Instruction: "Open File", Target: "File"},
		{Instruction: "Click Save", Target: "Save"},
	})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)

	store := redis.NewFromClient(client)
	ports.RunSessionStoreContract(t, store)
}

func TestRedisStore_HashFields(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	s := sampleSession()
	s.Advance()
	require.NoError(t, store.Save(ctx, "tab-1", s))

	assert.Equal(t, "1", mr.HGet(redis.DefaultPrefix+"tab-1", domain.FieldCurrentStepIndex))
	assert.Contains(t, mr.HGet(redis.DefaultPrefix+"tab-1", domain.FieldTutorialSteps), `"web_element":"Save"`)
}

func TestRedisStore_CorruptRecord(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	mr.HSet(redis.DefaultPrefix+"missing-index", domain.FieldTutorialSteps, `[]`)
	_, err := store.Load(ctx, "missing-index")
	assert.ErrorIs(t, err, domain.ErrSessionCorrupt)

	mr.HSet(redis.DefaultPrefix+"bad-steps", domain.FieldTutorialSteps, `{oops`, domain.FieldCurrentStepIndex, "0")
	_, err = store.Load(ctx, "bad-steps")
	assert.ErrorIs(t, err, domain.ErrSessionCorrupt)

	mr.HSet(redis.DefaultPrefix+"bad-index", domain.FieldTutorialSteps, `[]`, domain.FieldCurrentStepIndex, "7")
	_, err = store.Load(ctx, "bad-index")
	assert.ErrorIs(t, err, domain.ErrSessionCorrupt)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	tabID := "tab-ttl"

	require.NoError(t, store.Save(ctx, tabID, sampleSession()))

	tabs, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, tabs, tabID)

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, tabID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// The index is pruned against the wall clock, miniredis time does not apply.
	time.Sleep(1200 * time.Millisecond)

	tabs, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, tabs)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "my-tab", sampleSession()))

	assert.True(t, mr.Exists("custom:app:my-tab"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, list, "my-tab")
}
