package helpers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/gotrs-io/liveview-e2e/internal/browser"
	"github.com/gotrs-io/liveview-e2e/internal/config"
	"github.com/gotrs-io/liveview-e2e/internal/liveview"
)

// BrowserHelper provides browser setup and teardown for tests
type BrowserHelper struct {
	Browser  *browser.Browser
	Session  *liveview.Session
	Config   *config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	RunID    string
	t        *testing.T
}

// NewBrowserHelper creates a new browser helper instance
func NewBrowserHelper(t *testing.T) *BrowserHelper {
	log := zaptest.NewLogger(t)
	cfg, err := config.ForE2E(log)
	if err != nil {
		t.Fatalf("load e2e config: %v", err)
	}
	if err := config.NewValidator(cfg).Validate(); err != nil {
		t.Fatalf("invalid e2e config:\n%v", err)
	}
	return &BrowserHelper{
		Config:   cfg,
		Log:      log,
		Registry: prometheus.NewRegistry(),
		RunID:    uuid.NewString(),
		t:        t,
	}
}

// Setup starts the configured driver and binds a liveview session to it.
func (b *BrowserHelper) Setup() error {
	var videoDir string
	if b.Config.Browser.Videos {
		videoDir = filepath.Join(b.Config.Browser.ArtifactsDir, "videos", b.RunID)
	}
	br, err := browser.Launch(b.Config.Browser, videoDir, b.Log)
	if err != nil {
		return err
	}
	b.Browser = br

	var metrics *liveview.Metrics
	if b.Config.Metrics.Enabled {
		metrics = liveview.NewMetrics(b.Registry)
	}
	b.Session = liveview.NewSession(br.Page, b.Config.Settings(),
		liveview.WithLogger(b.Log.Named("liveview")),
		liveview.WithMetrics(metrics))
	return nil
}

// TearDown closes the browser and cleans up resources
func (b *BrowserHelper) TearDown() {
	if b.Browser == nil {
		return
	}
	// Take screenshot on failure
	if b.t.Failed() && b.Config.Browser.Screenshots {
		name := strings.NewReplacer("/", "_", " ", "_").Replace(b.t.Name())
		path := filepath.Join(b.Config.Browser.ArtifactsDir, "screenshots", fmt.Sprintf("%s_%s.png", name, b.RunID))
		if err := b.Browser.Screenshot(path); err != nil {
			b.Log.Warn("screenshot failed", zap.Error(err))
		} else {
			b.t.Logf("screenshot: %s", path)
		}
	}
	b.Browser.Close()
}

// Ctx returns a context bounded by the configured default timeout.
func (b *BrowserHelper) Ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.Config.Browser.DefaultTimeout)
}

// URL joins path onto the base URL.
func (b *BrowserHelper) URL(path string) string {
	return b.Config.Browser.URL(path)
}

// NavigateTo loads path and waits for the live connection and first render.
func (b *BrowserHelper) NavigateTo(path string) error {
	ctx, cancel := b.Ctx()
	defer cancel()
	url := b.URL(path)
	err := b.Session.NavigateAndConnect(ctx, url)
	if err != nil && strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
		return fmt.Errorf("redirect loop navigating to %s (check BASE_URL port / login redirect configuration): %w", url, err)
	}
	return err
}

// Goto loads path without requiring a live connection, for plain pages.
func (b *BrowserHelper) Goto(path string) error {
	ctx, cancel := b.Ctx()
	defer cancel()
	return b.Browser.Goto(ctx, b.URL(path))
}

// CurrentURL returns the address of the page.
func (b *BrowserHelper) CurrentURL() string {
	return b.Browser.URL()
}
