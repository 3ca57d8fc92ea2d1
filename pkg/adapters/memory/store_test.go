package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/tourguide/pkg/adapters/memory"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryStore_CorruptRecord(t *testing.T) {
	store := memory.NewStore()
	store.Put("tab", []byte(`{"tutorialSteps":[{"step":"a","web_element":"A"}]}`))

	_, err := store.Load(context.Background(), "tab")
	assert.ErrorIs(t, err, domain.ErrSessionCorrupt)
}
