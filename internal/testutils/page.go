package testutils

import (
	"context"
	"sync"

	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
)

// Page is an in-memory ports.Page. It keeps the overlay state so tests can
// assert on what a user would see.
type Page struct {
	mu          sync.Mutex
	url         string
	elements    []domain.Element
	metrics     domain.PageMetrics
	calloutSize domain.Size
	elementsErr error

	highlights []domain.Region
	callout    *domain.Callout
	calloutAt  *domain.Point
	maxLive    int
	ops        []string

	subs    map[int]func(domain.PageEvent)
	nextSub int
}

var _ ports.Page = (*Page)(nil)

// NewPage creates an empty page with the given viewport and a 200x60 callout.
func NewPage(width, height int) *Page {
	return &Page{
		url:         "about:blank",
		metrics:     domain.PageMetrics{Viewport: domain.Viewport{Width: width, Height: height}},
		calloutSize: domain.Size{Width: 200, Height: 60},
		subs:        make(map[int]func(domain.PageEvent)),
	}
}

// AddElement appends an element carrying a single direct text node.
func (p *Page) AddElement(tag, text string, bounds domain.Region) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = append(p.elements, domain.Element{Tag: tag, Texts: []string{text}, Bounds: bounds})
	return p
}

// SetElements replaces the DOM.
func (p *Page) SetElements(elements ...domain.Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = append([]domain.Element(nil), elements...)
}

// SetScroll sets the scroll offsets.
func (p *Page) SetScroll(x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.ScrollX, p.metrics.ScrollY = x, y
}

// SetCalloutSize sets the size reported by MountCallout.
func (p *Page) SetCalloutSize(width, height float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calloutSize = domain.Size{Width: width, Height: height}
}

// FailElements makes Elements return err.
func (p *Page) FailElements(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elementsErr = err
}

func (p *Page) record(op string) {
	p.ops = append(p.ops, op)
	live := len(p.highlights)
	if p.callout != nil {
		live++
	}
	if live > p.maxLive {
		p.maxLive = live
	}
}

// Elements implements ports.Page.
func (p *Page) Elements(ctx context.Context, query ports.ElementQuery) ([]domain.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("elements")
	if p.elementsErr != nil {
		return nil, p.elementsErr
	}
	return append([]domain.Element(nil), p.elements...), nil
}

// Metrics implements ports.Page.
func (p *Page) Metrics(ctx context.Context) (domain.PageMetrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics, nil
}

// RemoveOverlay implements ports.Page.
func (p *Page) RemoveOverlay(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.highlights = nil
	p.callout = nil
	p.calloutAt = nil
	p.record("remove")
	return nil
}

// DrawHighlight implements ports.Page.
func (p *Page) DrawHighlight(ctx context.Context, region domain.Region) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.highlights = append(p.highlights, region)
	p.record("highlight")
	return nil
}

// MountCallout implements ports.Page.
func (p *Page) MountCallout(ctx context.Context, callout domain.Callout) (domain.Size, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callout = &callout
	p.calloutAt = nil
	p.record("mount")
	return p.calloutSize, nil
}

// MoveCallout implements ports.Page.
func (p *Page) MoveCallout(ctx context.Context, at domain.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calloutAt = &at
	p.record("move")
	return nil
}

// Subscribe implements ports.Page.
func (p *Page) Subscribe(fn func(domain.PageEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Emit delivers ev to every subscriber synchronously.
func (p *Page) Emit(ev domain.PageEvent) {
	p.mu.Lock()
	subs := make([]func(domain.PageEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Press activates the advance control of the visible callout, as a click would.
// It reports false when no callout is shown.
func (p *Page) Press() bool {
	p.mu.Lock()
	c := p.callout
	p.mu.Unlock()
	if c == nil {
		return false
	}
	p.Emit(domain.PageEvent{Kind: domain.PageActivated, Token: c.Token})
	return true
}

// Navigate simulates a main frame navigation: the old document and its overlay vanish.
func (p *Page) Navigate(url string) {
	p.mu.Lock()
	p.url = url
	p.highlights = nil
	p.callout = nil
	p.calloutAt = nil
	p.mu.Unlock()
	p.Emit(domain.PageEvent{Kind: domain.PageNavigated, URL: url})
}

// Load simulates the end of a navigation followed by the viewport report.
func (p *Page) Load() {
	p.mu.Lock()
	url, vp := p.url, p.metrics.Viewport
	p.mu.Unlock()
	p.Emit(domain.PageEvent{Kind: domain.PageLoaded, URL: url})
	p.Emit(domain.PageEvent{Kind: domain.PageViewport, URL: url, Viewport: vp})
}

// Overlay is what the page currently shows.
type Overlay struct {
	Highlights []domain.Region
	Callout    *domain.Callout
	At         *domain.Point
}

// Overlay returns a copy of the live overlay state.
func (p *Page) Overlay() Overlay {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := Overlay{Highlights: append([]domain.Region(nil), p.highlights...)}
	if p.callout != nil {
		c := *p.callout
		o.Callout = &c
	}
	if p.calloutAt != nil {
		at := *p.calloutAt
		o.At = &at
	}
	return o
}

// Ops returns the DOM operations performed so far, in order.
func (p *Page) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

// MaxLive returns the highest number of overlay nodes seen at once.
func (p *Page) MaxLive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxLive
}

// Capture implements ports.Capturer with a placeholder image and the current scroll.
func (p *Page) Capture(ctx context.Context) (domain.Capture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.Capture{
		Image:   []byte("\x89PNG fake"),
		Format:  "png",
		ScrollX: p.metrics.ScrollX,
		ScrollY: p.metrics.ScrollY,
	}, nil
}
