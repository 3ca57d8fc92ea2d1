// Package locator finds the live DOM element a step descriptor refers to.
package locator

import (
	"context"
	"log/slog"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
)

// Locator matches descriptors against the direct text nodes of page elements.
type Locator struct {
	page   ports.Page
	logger *slog.Logger
}

// Option configures the Locator.
type Option func(*Locator)

// WithLogger configures a logger for page failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) {
		l.logger = logger
	}
}

// New creates a Locator reading from page.
func New(page ports.Page, opts ...Option) *Locator {
	l := &Locator{page: page, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the bounds of the first element, in document order, having a direct
// text node equal to descriptor. It never mutates the page.
// The boolean is false when nothing matches, the descriptor is empty or the page failed.
func (l *Locator) Locate(ctx context.Context, descriptor string) (domain.Region, bool) {
	if descriptor == "" {
		return domain.Region{}, false
	}

	elements, err := l.page.Elements(ctx, ports.ElementQuery{Text: descriptor})
	if err != nil {
		l.logger.Warn("Element lookup failed", "descriptor", descriptor, "err", err)
		return domain.Region{}, false
	}

	for _, el := range elements {
		if el.HasText(descriptor) {
			return el.Bounds, true
		}
	}
	return domain.Region{}, false
}

// Highlight locates descriptor and draws the highlight box around the match.
// It is used when locating is the final display step rather than a probe.
func (l *Locator) Highlight(ctx context.Context, descriptor string) (domain.Region, bool) {
	region, ok := l.Locate(ctx, descriptor)
	if !ok {
		return domain.Region{}, false
	}
	if err := l.page.DrawHighlight(ctx, region); err != nil {
		l.logger.Warn("Failed to draw highlight", "descriptor", descriptor, "err", err)
	}
	return region, true
}
