// Package browser launches the configured browser driver and exposes it as a
// liveview.Page.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/chromedp"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/gotrs-io/liveview-e2e/internal/config"
	"github.com/gotrs-io/liveview-e2e/internal/driver/cdp"
	"github.com/gotrs-io/liveview-e2e/internal/driver/pw"
	"github.com/gotrs-io/liveview-e2e/internal/liveview"
)

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

// Browser owns one page of a running browser.
type Browser struct {
	Page liveview.Page

	// Playwright handles, nil under chromedp.
	Playwright *playwright.Playwright
	Browser    playwright.Browser
	Context    playwright.BrowserContext
	PWPage     playwright.Page

	tab     context.Context
	cancels []context.CancelFunc
	log     *zap.Logger
}

// Launch starts the driver named by cfg.Driver. videoDir, when non-empty,
// enables playwright video recording into it.
func Launch(cfg config.BrowserConfig, videoDir string, log *zap.Logger) (*Browser, error) {
	b := &Browser{log: log}
	var err error
	switch cfg.Driver {
	case DriverChromedp:
		err = b.launchChromedp(cfg)
	case DriverPlaywright, "":
		err = b.launchPlaywright(cfg, videoDir)
	default:
		err = fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
	if err != nil {
		b.Close()
		return nil, err
	}
	log.Debug("browser launched",
		zap.String("driver", cfg.Driver),
		zap.Bool("headless", cfg.Headless))
	return b, nil
}

func (b *Browser) launchPlaywright(cfg config.BrowserConfig, videoDir string) error {
	if !cfg.Preinstalled {
		if err := playwright.Install(); err != nil {
			return fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}
	// First attempt
	pwr, err := playwright.Run()
	if err != nil {
		// Fallback: attempt install driver explicitly then retry
		_ = playwright.Install()
		pwr, err = playwright.Run()
		if err != nil {
			return fmt.Errorf("could not start playwright after retry (ensure driver version matches image): %w", err)
		}
	}
	b.Playwright = pwr

	browser, err := pwr.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		SlowMo:   playwright.Float(float64(cfg.SlowMoMS)),
	})
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	b.Browser = browser

	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  cfg.Viewport.Width,
			Height: cfg.Viewport.Height,
		},
	}
	if videoDir != "" {
		opts.RecordVideo = &playwright.RecordVideo{Dir: videoDir}
	}
	bctx, err := browser.NewContext(opts)
	if err != nil {
		return fmt.Errorf("could not create context: %w", err)
	}
	b.Context = bctx

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	page.SetDefaultTimeout(float64(cfg.DefaultTimeout.Milliseconds()))
	b.PWPage = page
	b.Page = pw.New(page)
	return nil
}

func (b *Browser) launchChromedp(cfg config.BrowserConfig) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)
	b.cancels = []context.CancelFunc{cancelTab, cancelAlloc}
	b.tab = tab

	page, err := cdp.New(tab)
	if err != nil {
		return fmt.Errorf("could not start chrome: %w", err)
	}
	b.Page = page
	return nil
}

// Screenshot writes a full page PNG to path, creating its directory.
func (b *Browser) Screenshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	switch {
	case b.PWPage != nil:
		_, err := b.PWPage.Screenshot(playwright.PageScreenshotOptions{
			Path:     playwright.String(path),
			FullPage: playwright.Bool(true),
		})
		return err
	case b.tab != nil:
		var buf []byte
		if err := chromedp.Run(b.tab, chromedp.FullScreenshot(&buf, 90)); err != nil {
			return err
		}
		return os.WriteFile(path, buf, 0o644)
	}
	return fmt.Errorf("no page to capture")
}

// Goto loads url without waiting for a live connection.
func (b *Browser) Goto(ctx context.Context, url string) error {
	nav, ok := b.Page.(liveview.Navigator)
	if !ok {
		return &liveview.MissingCapabilityError{Capability: "navigator"}
	}
	return nav.Goto(ctx, url)
}

// URL returns the address of the page.
func (b *Browser) URL() string {
	if nav, ok := b.Page.(liveview.Navigator); ok {
		return nav.URL()
	}
	return ""
}

// Close releases every handle, logging failures.
func (b *Browser) Close() {
	if b.PWPage != nil {
		b.warn("page", b.PWPage.Close())
	}
	if b.Context != nil {
		b.warn("context", b.Context.Close())
	}
	if b.Browser != nil {
		b.warn("browser", b.Browser.Close())
	}
	if b.Playwright != nil {
		b.warn("playwright", b.Playwright.Stop())
	}
	for _, cancel := range b.cancels {
		cancel()
	}
}

func (b *Browser) warn(handle string, err error) {
	if err != nil {
		b.log.Warn("close failed", zap.String("handle", handle), zap.Error(err))
	}
}
