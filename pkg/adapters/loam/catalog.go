// Package loam serves authored tutorials stored as Markdown files with YAML frontmatter.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
)

// Catalog adapts a Loam repository to ports.Catalog.
type Catalog struct {
	Repo *loam.TypedRepository[TutorialMetadata]
}

var _ ports.Catalog = (*Catalog)(nil)

// New creates a catalog over repo.
func New(repo *loam.TypedRepository[TutorialMetadata]) *Catalog {
	return &Catalog{Repo: repo}
}

// Open initializes a read-only, strict Loam repository at dir.
func Open(dir string) (*Catalog, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[TutorialMetadata](repo)), nil
}

// Get returns the tutorial with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (domain.Tutorial, error) {
	all, err := c.List(ctx)
	if err != nil {
		return domain.Tutorial{}, err
	}
	want := trimExtension(id)
	for _, t := range all {
		if t.ID == want {
			return t, nil
		}
	}
	return domain.Tutorial{}, fmt.Errorf("%w: %s", domain.ErrTutorialNotFound, id)
}

// List returns every tutorial sorted by id. Two documents claiming the same id is an error.
func (c *Catalog) List(ctx context.Context) ([]domain.Tutorial, error) {
	docs, err := c.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]domain.Tutorial, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID

		t, err := toTutorial(id, doc.Data, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("tutorial %s: %w", doc.ID, err)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func toTutorial(id string, meta TutorialMetadata, content string) (domain.Tutorial, error) {
	if len(meta.Steps) == 0 {
		return domain.Tutorial{}, fmt.Errorf("no steps")
	}
	t := domain.Tutorial{
		ID:          id,
		Title:       meta.Title,
		Software:    meta.Software,
		Action:      meta.Action,
		Description: strings.TrimSpace(content),
		Steps:       make([]domain.Step, len(meta.Steps)),
	}
	if t.Title == "" {
		t.Title = id
	}
	for i, s := range meta.Steps {
		if strings.TrimSpace(s.Step) == "" {
			return domain.Tutorial{}, fmt.Errorf("step %d has no instruction", i+1)
		}
		t.Steps[i] = domain.Step{
			Index:       i,
			Label:       domain.StepLabel(strconv.Itoa(i + 1)),
			Instruction: s.Step,
			Target:      s.WebElement,
			Action:      s.Action,
		}
	}
	return t, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
