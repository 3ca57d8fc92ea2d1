// Package overlay renders the highlight box and the callout of the current step.
//
// The Renderer owns every overlay node it creates and removes them all before
// drawing new ones, so at most one overlay is live on the page.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
	"github.com/google/uuid"
)

// Highlighter locates a descriptor in the live DOM and draws its highlight.
type Highlighter interface {
	Highlight(ctx context.Context, descriptor string) (domain.Region, bool)
}

// Display describes one callout.
type Display struct {
	Index   int
	Label   string
	Message string
	// Region is the document-absolute target, nil for a centered callout.
	Region *domain.Region
	// Descriptor, when set, is located again at display time and wins over Region.
	Descriptor string
}

// AdvanceHandle fires exactly once, when the advance control of its callout is activated.
type AdvanceHandle struct {
	index int
	token string
	done  chan struct{}
	once  sync.Once
}

// Index returns the step index the callout was shown for.
func (h *AdvanceHandle) Index() int { return h.index }

// Token identifies the advance control on the page.
func (h *AdvanceHandle) Token() string { return h.token }

// Done is closed when the handle fires.
func (h *AdvanceHandle) Done() <-chan struct{} { return h.done }

func (h *AdvanceHandle) fire() bool {
	fired := false
	h.once.Do(func() {
		close(h.done)
		fired = true
	})
	return fired
}

// Renderer draws overlays on a page.
type Renderer struct {
	page        ports.Page
	highlighter Highlighter
	logger      *slog.Logger

	mu      sync.Mutex
	current *AdvanceHandle
}

// Option configures the Renderer.
type Option func(*Renderer)

// WithHighlighter lets displays carrying a descriptor be re-located at display time.
func WithHighlighter(h Highlighter) Option {
	return func(r *Renderer) {
		r.highlighter = h
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// NewRenderer creates a Renderer drawing on page.
func NewRenderer(page ports.Page, opts ...Option) *Renderer {
	r := &Renderer{page: page, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Show replaces the current overlay with a callout for d and returns its advance handle.
func (r *Renderer) Show(ctx context.Context, d Display) (*AdvanceHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = nil
	if err := r.page.RemoveOverlay(ctx); err != nil {
		return nil, fmt.Errorf("failed to remove previous overlay: %w", err)
	}

	region := d.Region
	highlighted := false
	if d.Descriptor != "" && r.highlighter != nil {
		if live, ok := r.highlighter.Highlight(ctx, d.Descriptor); ok {
			region = &live
			highlighted = true
		}
	}
	if region != nil && !highlighted {
		if err := r.page.DrawHighlight(ctx, *region); err != nil {
			r.logger.Warn("Failed to draw highlight", "index", d.Index, "err", err)
		}
	}

	h := &AdvanceHandle{index: d.Index, token: uuid.NewString(), done: make(chan struct{})}
	size, err := r.page.MountCallout(ctx, domain.Callout{Token: h.token, Message: d.Message, Label: d.Label})
	if err != nil {
		_ = r.page.RemoveOverlay(ctx)
		return nil, fmt.Errorf("failed to mount callout: %w", err)
	}

	metrics, err := r.page.Metrics(ctx)
	if err != nil {
		_ = r.page.RemoveOverlay(ctx)
		return nil, fmt.Errorf("failed to read page metrics: %w", err)
	}

	if err := r.page.MoveCallout(ctx, Place(region, size, metrics)); err != nil {
		_ = r.page.RemoveOverlay(ctx)
		return nil, fmt.Errorf("failed to position callout: %w", err)
	}

	r.current = h
	return h, nil
}

// Activate handles a press of the advance control identified by token.
// The overlay is removed before the handle fires. It returns the fired handle,
// or nil when token is stale or was already activated.
func (r *Renderer) Activate(ctx context.Context, token string) *AdvanceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.current
	if h == nil || h.token != token {
		return nil
	}
	r.current = nil
	if err := r.page.RemoveOverlay(ctx); err != nil {
		r.logger.Warn("Failed to remove overlay on advance", "index", h.index, "err", err)
	}
	if !h.fire() {
		return nil
	}
	return h
}

// Clear removes any overlay. The pending handle, if any, never fires.
func (r *Renderer) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	return r.page.RemoveOverlay(ctx)
}

// Forget drops the pending handle without touching the page, for documents that are already gone.
func (r *Renderer) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
}

// Current returns the handle of the visible callout, if any.
func (r *Renderer) Current() *AdvanceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
