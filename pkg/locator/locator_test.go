package locator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/tourguide/internal/testutils"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/locator"
	"github.com/stretchr/testify/assert"
)

func TestLocate(t *testing.T) {
	page := testutils.NewPage(1024, 768).
		AddElement("h1", "Welcome", domain.Region{Top: 10, Left: 10, Width: 300, Height: 40}).
		AddElement("button", "Save", domain.Region{Top: 100, Left: 50, Width: 80, Height: 30}).
		AddElement("a", "Save", domain.Region{Top: 500, Left: 50, Width: 80, Height: 30}).
		AddElement("span", "Save as", domain.Region{Top: 600, Left: 50, Width: 80, Height: 30})

	loc := locator.New(page)
	ctx := context.Background()

	tests := []struct {
		name       string
		descriptor string
		want       domain.Region
		found      bool
	}{
		{"single match", "Welcome", domain.Region{Top: 10, Left: 10, Width: 300, Height: 40}, true},
		{"first match in document order", "Save", domain.Region{Top: 100, Left: 50, Width: 80, Height: 30}, true},
		{"exact equality only", "Save a", domain.Region{}, false},
		{"case sensitive", "save", domain.Region{}, false},
		{"no match", "Export", domain.Region{}, false},
		{"empty descriptor", "", domain.Region{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := loc.Locate(ctx, tt.descriptor)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, page.Overlay().Highlights, "probing must not mutate the DOM")
}

func TestLocate_MatchesAnyDirectTextNode(t *testing.T) {
	page := testutils.NewPage(800, 600)
	page.SetElements(domain.Element{
		Tag:    "div",
		Texts:  []string{"\n  ", "Settings", "  "},
		Bounds: domain.Region{Top: 1, Left: 2, Width: 3, Height: 4},
	})

	got, found := locator.New(page).Locate(context.Background(), "Settings")
	assert.True(t, found)
	assert.Equal(t, domain.Region{Top: 1, Left: 2, Width: 3, Height: 4}, got)
}

func TestLocate_PageFailureIsNotFound(t *testing.T) {
	page := testutils.NewPage(800, 600).AddElement("b", "Save", domain.Region{Width: 1, Height: 1})
	page.FailElements(errors.New("execution context was destroyed"))

	_, found := locator.New(page).Locate(context.Background(), "Save")
	assert.False(t, found)
}

func TestHighlight(t *testing.T) {
	region := domain.Region{Top: 100, Left: 50, Width: 80, Height: 30}
	page := testutils.NewPage(800, 600).AddElement("button", "Save", region)
	loc := locator.New(page)

	got, found := loc.Highlight(context.Background(), "Save")
	assert.True(t, found)
	assert.Equal(t, region, got)
	assert.Equal(t, []domain.Region{region}, page.Overlay().Highlights)

	_, found = loc.Highlight(context.Background(), "Nope")
	assert.False(t, found)
	assert.Len(t, page.Overlay().Highlights, 1, "a miss must not draw anything")
}
