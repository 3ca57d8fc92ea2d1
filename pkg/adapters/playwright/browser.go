// Package playwright drives real browser tabs: it implements ports.Page and
// ports.Capturer on top of playwright-go.
package playwright

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/google/uuid"
	pw "github.com/playwright-community/playwright-go"
)

//go:embed agent.js
var agentScript string

const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
	bindingName           = "__tourguideBinding"
)

// Options configures the browser.
type Options struct {
	Headless bool
	Width    int
	Height   int
	// Install downloads the driver and browsers before starting.
	Install bool
	// OnTabClosed is called after a tab was closed, by the user or by Close.
	OnTabClosed func(id string)
	Logger      *slog.Logger
}

// Browser owns one Chromium instance and a single browser context shared by its tabs.
type Browser struct {
	pw      *pw.Playwright
	browser pw.Browser
	context pw.BrowserContext
	logger  *slog.Logger
	closed  func(id string)

	mu   sync.Mutex
	tabs map[string]*Tab
}

// Launch starts Playwright and a Chromium instance.
func Launch(opts Options) (*Browser, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultViewportWidth, DefaultViewportHeight
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	runOpts := &pw.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if opts.Install {
		if err := pw.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	runner, err := pw.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := runner.Chromium.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(opts.Headless),
	})
	if err != nil {
		_ = runner.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(pw.BrowserNewContextOptions{
		Viewport: &pw.Size{Width: opts.Width, Height: opts.Height},
	})
	if err != nil {
		_ = browser.Close()
		_ = runner.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	// Re-injected into every document, which is what survives navigations.
	if err := bctx.AddInitScript(pw.Script{Content: pw.String(agentScript)}); err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = runner.Stop()
		return nil, fmt.Errorf("failed to register agent script: %w", err)
	}

	return &Browser{
		pw:      runner,
		browser: browser,
		context: bctx,
		logger:  logger,
		closed:  opts.OnTabClosed,
		tabs:    make(map[string]*Tab),
	}, nil
}

// NewTab opens a tab. Call Tab.Goto to load a document.
func (b *Browser) NewTab() (*Tab, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	id := uuid.NewString()
	t := newTab(id, page, b.logger.With("tab_id", id))
	if err := t.bind(); err != nil {
		_ = page.Close()
		return nil, err
	}

	b.mu.Lock()
	b.tabs[id] = t
	b.mu.Unlock()

	page.OnClose(func(pw.Page) {
		b.mu.Lock()
		delete(b.tabs, id)
		b.mu.Unlock()
		t.close()
		if b.closed != nil {
			b.closed(id)
		}
	})
	return t, nil
}

// Tab returns an open tab by id.
func (b *Browser) Tab(id string) (*Tab, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tabs[id]
	return t, ok
}

// Close shuts the browser and the Playwright driver down.
func (b *Browser) Close() error {
	_ = b.context.Close()
	if err := b.browser.Close(); err != nil {
		b.logger.Warn("Failed to close browser", "err", err)
	}
	if err := b.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}
