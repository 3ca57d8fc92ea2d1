package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/tourguide/pkg/adapters/file"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Store implements SessionStore
var _ ports.SessionStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunSessionStoreContract(t, store)
}

func TestFileStore_WritesRecordFields(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)

	s := domain.NewSession([]domain.Step{{Instruction: "Open", Target: "File"}})
	require.NoError(t, store.Save(context.Background(), "tab-1", s))

	data, err := os.ReadFile(filepath.Join(dir, "tab-1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tutorialSteps"`)
	assert.Contains(t, string(data), `"currentStepIndex":0`)

	leftovers, err := filepath.Glob(filepath.Join(dir, "tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files must not survive a successful save")
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tab-1.json"), []byte("{not json"), 0644))
	_, err := store.Load(context.Background(), "tab-1")
	assert.ErrorIs(t, err, domain.ErrSessionCorrupt)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tab-2.json"), []byte(`{"currentStepIndex":4}`), 0644))
	_, err = store.Load(context.Background(), "tab-2")
	assert.ErrorIs(t, err, domain.ErrSessionCorrupt)
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	s := domain.NewSession(nil)

	assert.Error(t, store.Save(context.Background(), "../escape", s))
	assert.Error(t, store.Save(context.Background(), "", s))
	_, err := store.Load(context.Background(), "a/b")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "nope"))
	tabs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tabs)
}
