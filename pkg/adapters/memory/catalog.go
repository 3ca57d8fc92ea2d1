package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/tourguide/pkg/domain"
)

// Catalog implements ports.Catalog using an in-memory map.
type Catalog struct {
	tutorials map[string]domain.Tutorial
}

// NewCatalog creates a catalog from domain objects.
func NewCatalog(tutorials ...domain.Tutorial) (*Catalog, error) {
	c := &Catalog{tutorials: make(map[string]domain.Tutorial, len(tutorials))}
	for _, t := range tutorials {
		if t.ID == "" {
			return nil, fmt.Errorf("tutorial missing ID")
		}
		if _, dup := c.tutorials[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tutorial ID: %s", t.ID)
		}
		c.tutorials[t.ID] = t
	}
	return c, nil
}

// Get retrieves a tutorial by ID.
func (c *Catalog) Get(ctx context.Context, id string) (domain.Tutorial, error) {
	t, ok := c.tutorials[id]
	if !ok {
		return domain.Tutorial{}, fmt.Errorf("%w: %s", domain.ErrTutorialNotFound, id)
	}
	return t, nil
}

// List returns all tutorials sorted by ID.
func (c *Catalog) List(ctx context.Context) ([]domain.Tutorial, error) {
	out := make([]domain.Tutorial, 0, len(c.tutorials))
	for _, t := range c.tutorials {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
