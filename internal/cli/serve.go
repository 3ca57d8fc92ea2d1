package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/tourguide"
	httpadapter "github.com/aretw0/tourguide/pkg/adapters/http"
	"github.com/aretw0/tourguide/pkg/adapters/playwright"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// BrowserTabs opens playwright tabs and attaches them to the service.
type BrowserTabs struct {
	Browser *playwright.Browser
	Service *tourguide.Service
}

// OpenTab implements the HTTP adapter TabOpener.
func (b *BrowserTabs) OpenTab(ctx context.Context, url string) (string, error) {
	tab, err := b.Browser.NewTab()
	if err != nil {
		return "", err
	}
	if err := b.Service.AttachTab(tab.ID(), tab); err != nil {
		_ = tab.Close()
		return "", err
	}
	// The load event of the first document reports the page as ready.
	if err := tab.Goto(url); err != nil {
		_ = tab.Close()
		return "", fmt.Errorf("failed to open %s: %w", url, err)
	}
	return tab.ID(), nil
}

// Serve runs the HTTP panel and, when enabled, a browser whose tabs get tutorials,
// until ctx is done.
func Serve(ctx context.Context, stack *Stack) error {
	cfg := stack.Config
	logger := stack.Logger
	svc := stack.Service()

	var browser *playwright.Browser
	defer func() {
		_ = svc.Close()
		if browser != nil {
			if err := browser.Close(); err != nil {
				logger.Warn("Failed to stop browser", "err", err)
			}
		}
	}()

	handlerOpts := []httpadapter.Option{
		httpadapter.WithLogger(logger),
		httpadapter.WithAllowedOrigins(cfg.Server.CORSOrigins...),
	}
	if stack.Registry != nil {
		handlerOpts = append(handlerOpts, httpadapter.WithMetricsHandler(promhttp.HandlerFor(stack.Registry, promhttp.HandlerOpts{})))
	}

	if cfg.Browser.Enabled {
		var err error
		browser, err = playwright.Launch(playwright.Options{
			Headless: cfg.Browser.Headless,
			Width:    cfg.Browser.Width,
			Height:   cfg.Browser.Height,
			Install:  cfg.Browser.Install,
			Logger:   logger,
			// Runs on a playwright callback, which must not wait on page work.
			OnTabClosed: func(id string) {
				go func() { _ = svc.DetachTab(id) }()
			},
		})
		if err != nil {
			return err
		}
		tabs := &BrowserTabs{Browser: browser, Service: svc}
		handlerOpts = append(handlerOpts, httpadapter.WithOpener(tabs))

		if cfg.Browser.StartURL != "" {
			id, err := tabs.OpenTab(ctx, cfg.Browser.StartURL)
			if err != nil {
				return err
			}
			logger.Info("Tab opened", "tab_id", id, "url", cfg.Browser.StartURL)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpadapter.NewHandler(svc.Panel(), svc, handlerOpts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Tourguide server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		return nil
	})
	return g.Wait()
}
