package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	tabID := "contract-tab-" + time.Now().Format("20060102150405")

	newSession := func() *domain.Session {
		return domain.NewSession([]domain.Step{
			{Instruction: "Open the menu", Target: "Menu", Label: "1"},
			{Instruction: "Pick settings", Target: "Settings", Label: "2"},
			{Instruction: "Done", Target: ""},
		})
	}

	t.Run("Save and Load", func(t *testing.T) {
		s := newSession()
		s.CurrentIndex = 1
		s.Steps[1] = s.Steps[1].Resolved(&domain.Region{Top: 5, Left: 5, Width: 5, Height: 5}, domain.ResolutionDOM)

		require.NoError(t, store.Save(ctx, tabID, s), "Save should not return error")

		loaded, err := store.Load(ctx, tabID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, 1, loaded.CurrentIndex)
		require.Len(t, loaded.Steps, 3)
		assert.Equal(t, "Pick settings", loaded.Steps[1].Instruction)
		assert.Equal(t, "Settings", loaded.Steps[1].Target)
		assert.Equal(t, domain.StepLabel("2"), loaded.Steps[1].Label)
		assert.Nil(t, loaded.Steps[1].Region, "resolution data must not survive persistence")
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		s := newSession()
		require.NoError(t, store.Save(ctx, tabID, s))
		s.Advance()
		s.Advance()
		require.NoError(t, store.Save(ctx, tabID, s))

		loaded, err := store.Load(ctx, tabID)
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.CurrentIndex)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+tabID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, tabID, newSession()))

		require.NoError(t, store.Delete(ctx, tabID), "Delete should not return error")

		_, err := store.Load(ctx, tabID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, tabID), "Deleting twice should be a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := tabID + "-1"
		id2 := tabID + "-2"
		_ = store.Save(ctx, id1, newSession())
		_ = store.Save(ctx, id2, newSession())

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		tabs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, tabs, id1)
		assert.Contains(t, tabs, id2)
	})
}
