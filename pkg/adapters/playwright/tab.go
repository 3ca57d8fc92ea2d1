package playwright

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
	"github.com/mitchellh/mapstructure"
	pw "github.com/playwright-community/playwright-go"
)

const signalBuffer = 32

type signalKind int

const (
	signalNavigated signalKind = iota
	signalLoaded
	signalActivated
)

type signal struct {
	kind  signalKind
	url   string
	token string
}

// bindingPayload is what agent.js sends through the exposed binding.
type bindingPayload struct {
	Kind  string `json:"kind"`
	Token string `json:"token"`
}

// Tab is one browser page seen as a ports.Page.
//
// Playwright callbacks must not call back into Playwright, so they only queue signals;
// a tab goroutine turns them into page events, in order.
type Tab struct {
	id     string
	page   pw.Page
	logger *slog.Logger

	signals chan signal
	done    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	subs    map[int]func(domain.PageEvent)
	nextSub int
	lastDoc string
}

var (
	_ ports.Page     = (*Tab)(nil)
	_ ports.Capturer = (*Tab)(nil)
)

func newTab(id string, page pw.Page, logger *slog.Logger) *Tab {
	t := &Tab{
		id:      id,
		page:    page,
		logger:  logger,
		signals: make(chan signal, signalBuffer),
		done:    make(chan struct{}),
		subs:    make(map[int]func(domain.PageEvent)),
	}
	go t.loop()
	return t
}

// ID returns the tab id.
func (t *Tab) ID() string { return t.id }

// URL returns the current document URL.
func (t *Tab) URL() string { return t.page.URL() }

func (t *Tab) bind() error {
	err := t.page.ExposeBinding(bindingName, func(source *pw.BindingSource, args ...interface{}) interface{} {
		if len(args) == 0 {
			return nil
		}
		var p bindingPayload
		if err := decode(args[0], &p); err != nil {
			t.logger.Warn("Malformed page message", "err", err)
			return nil
		}
		if p.Kind == "activated" {
			t.push(signal{kind: signalActivated, token: p.Token})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to expose binding: %w", err)
	}

	t.page.OnFrameNavigated(func(f pw.Frame) {
		if f.ParentFrame() != nil {
			return
		}
		t.push(signal{kind: signalNavigated, url: f.URL()})
	})
	t.page.OnLoad(func(p pw.Page) {
		t.push(signal{kind: signalLoaded, url: p.URL()})
	})
	return nil
}

func (t *Tab) push(s signal) {
	select {
	case <-t.done:
	case t.signals <- s:
	default:
		t.logger.Warn("Page signal dropped", "kind", s.kind)
	}
}

func (t *Tab) loop() {
	for {
		select {
		case <-t.done:
			return
		case s := <-t.signals:
			t.handle(s)
		}
	}
}

func (t *Tab) handle(s signal) {
	switch s.kind {
	case signalNavigated:
		// Same-document navigations keep the agent and its overlay.
		doc := t.docID()
		t.mu.Lock()
		same := doc != "" && doc == t.lastDoc
		t.mu.Unlock()
		if same {
			t.logger.Debug("Same-document navigation", "url", s.url)
			return
		}
		t.emit(domain.PageEvent{Kind: domain.PageNavigated, URL: s.url})

	case signalLoaded:
		doc := t.docID()
		t.mu.Lock()
		t.lastDoc = doc
		t.mu.Unlock()
		t.emit(domain.PageEvent{Kind: domain.PageLoaded, URL: s.url})

		m, err := t.Metrics(context.Background())
		if err != nil {
			t.logger.Warn("Failed to read viewport", "err", err)
			return
		}
		t.emit(domain.PageEvent{Kind: domain.PageViewport, URL: s.url, Viewport: m.Viewport})

	case signalActivated:
		t.emit(domain.PageEvent{Kind: domain.PageActivated, Token: s.token})
	}
}

func (t *Tab) docID() string {
	v, err := t.page.Evaluate(`() => window.__tourguideAgent ? window.__tourguideAgent.doc : ""`)
	if err != nil {
		return ""
	}
	doc, _ := v.(string)
	return doc
}

func (t *Tab) emit(ev domain.PageEvent) {
	t.mu.Lock()
	subs := make([]func(domain.PageEvent), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Subscribe implements ports.Page.
func (t *Tab) Subscribe(fn func(domain.PageEvent)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Goto loads url and waits for the load event.
func (t *Tab) Goto(url string) error {
	state := pw.WaitUntilState("load")
	if _, err := t.page.Goto(url, pw.PageGotoOptions{WaitUntil: &state}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Close closes the page.
func (t *Tab) Close() error {
	err := t.page.Close()
	t.close()
	return err
}

func (t *Tab) close() {
	t.once.Do(func() { close(t.done) })
}

// evaluate runs a function of the agent script. A document without the agent
// (about:blank, a crashed frame) yields nil.
func (t *Tab) evaluate(ctx context.Context, op string, arg interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	js := fmt.Sprintf(`(arg) => { const a = window.__tourguideAgent; return a ? a.%s(arg) : null; }`, op)
	v, err := t.page.Evaluate(js, arg)
	if err != nil {
		return nil, fmt.Errorf("page %s failed: %w", op, err)
	}
	return v, nil
}

// Elements implements ports.Page.
func (t *Tab) Elements(ctx context.Context, query ports.ElementQuery) ([]domain.Element, error) {
	v, err := t.evaluate(ctx, "elements", query.Text)
	if err != nil || v == nil {
		return nil, err
	}
	var out []domain.Element
	if err := decode(v, &out); err != nil {
		return nil, fmt.Errorf("malformed elements: %w", err)
	}
	return out, nil
}

// Metrics implements ports.Page.
func (t *Tab) Metrics(ctx context.Context) (domain.PageMetrics, error) {
	v, err := t.evaluate(ctx, "metrics", nil)
	if err != nil {
		return domain.PageMetrics{}, err
	}
	var m domain.PageMetrics
	if v == nil {
		return m, fmt.Errorf("agent script not present in %s", t.page.URL())
	}
	if err := decode(v, &m); err != nil {
		return domain.PageMetrics{}, fmt.Errorf("malformed metrics: %w", err)
	}
	return m, nil
}

// RemoveOverlay implements ports.Page.
func (t *Tab) RemoveOverlay(ctx context.Context) error {
	_, err := t.evaluate(ctx, "remove", nil)
	return err
}

// DrawHighlight implements ports.Page.
func (t *Tab) DrawHighlight(ctx context.Context, region domain.Region) error {
	_, err := t.evaluate(ctx, "highlight", map[string]interface{}{
		"top":    region.Top,
		"left":   region.Left,
		"width":  region.Width,
		"height": region.Height,
	})
	return err
}

// MountCallout implements ports.Page.
func (t *Tab) MountCallout(ctx context.Context, c domain.Callout) (domain.Size, error) {
	v, err := t.evaluate(ctx, "mount", map[string]interface{}{
		"token":   c.Token,
		"message": c.Message,
		"label":   c.Label,
	})
	if err != nil {
		return domain.Size{}, err
	}
	var size domain.Size
	if v == nil {
		return size, fmt.Errorf("agent script not present in %s", t.page.URL())
	}
	if err := decode(v, &size); err != nil {
		return domain.Size{}, fmt.Errorf("malformed callout size: %w", err)
	}
	return size, nil
}

// MoveCallout implements ports.Page.
func (t *Tab) MoveCallout(ctx context.Context, at domain.Point) error {
	v, err := t.evaluate(ctx, "move", map[string]interface{}{"x": at.X, "y": at.Y})
	if err != nil {
		return err
	}
	if ok, _ := v.(bool); !ok {
		return fmt.Errorf("no callout mounted")
	}
	return nil
}

// Capture implements ports.Capturer with a PNG of the visible viewport.
func (t *Tab) Capture(ctx context.Context) (domain.Capture, error) {
	m, err := t.Metrics(ctx)
	if err != nil {
		return domain.Capture{}, err
	}
	img, err := t.page.Screenshot(pw.PageScreenshotOptions{Type: pw.ScreenshotTypePng})
	if err != nil {
		return domain.Capture{}, fmt.Errorf("screenshot failed: %w", err)
	}
	return domain.Capture{Image: img, Format: "png", ScrollX: m.ScrollX, ScrollY: m.ScrollY}, nil
}

// decode maps loosely typed script values onto Go types using their json names.
func decode(in, out interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return d.Decode(in)
}
