package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/gotrs-io/liveview-e2e/internal/liveview"
)

var knownDrivers = map[string]bool{"playwright": true, "chromedp": true}

// Validator collects every problem with a configuration before reporting.
type Validator struct {
	config *Config
	errors []string
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{
		config: cfg,
		errors: []string{},
	}
}

// Validate rejects configurations that would produce unbounded or
// nonsensical waits.
func (v *Validator) Validate() error {
	v.validateBrowser()
	v.validateTimeouts()
	v.validateLiveView()
	v.validateLogging()

	if len(v.errors) > 0 {
		return fmt.Errorf("config validation failed:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *Validator) validateBrowser() {
	b := v.config.Browser
	if !knownDrivers[b.Driver] {
		v.addError("browser.driver %q is not one of playwright, chromedp", b.Driver)
	}
	if !strings.HasPrefix(b.BaseURL, "http://") && !strings.HasPrefix(b.BaseURL, "https://") {
		v.addError("browser.base_url %q must be an http(s) URL", b.BaseURL)
	}
	if b.SlowMoMS < 0 {
		v.addError("browser.slow_mo_ms must not be negative")
	}
}

func (v *Validator) validateTimeouts() {
	t := v.config.Timeouts
	bounded := map[string]time.Duration{
		"settle":            t.Settle,
		"connect":           t.Connect,
		"banner_visible":    t.BannerVisible,
		"banner_text":       t.BannerText,
		"collection_attach": t.CollectionAttach,
		"collection_count":  t.CollectionCount,
		"event":             t.Event,
		"event_fallback":    t.EventFallback,
		"network_idle":      t.NetworkIdle,
	}
	for _, name := range sortedKeys(bounded) {
		if bounded[name] <= 0 {
			v.addError("timeouts.%s must be positive", name)
		}
	}
	if t.ValidationDelay < 0 {
		v.addError("timeouts.validation_delay must not be negative")
	}
	if t.PollInterval <= 0 || t.PollInterval > liveview.MaxPollInterval {
		v.addError("timeouts.poll_interval must be in (0, %s]", liveview.MaxPollInterval)
	}
	if t.MarkerShare <= 0 || t.MarkerShare >= 1 {
		v.addError("timeouts.marker_share must be between 0 and 1 exclusive")
	}
	if t.EventFallback > 0 && t.Event > 0 && t.EventFallback*2 > t.Event {
		v.addError("timeouts.event_fallback (%s) must be at most half of timeouts.event (%s)", t.EventFallback, t.Event)
	}
}

func (v *Validator) validateLiveView() {
	l := v.config.LiveView
	if l.LoadingAttr == "" && l.LoadingClass == "" {
		v.addError("liveview.loading_attr and liveview.loading_class cannot both be empty")
	}
	if strings.ContainsAny(l.LoadingClass, " .#[") {
		v.addError("liveview.loading_class %q must be a bare class name", l.LoadingClass)
	}
	if l.ConnectionGlobal == "" {
		v.addError("liveview.connection_global is required")
	}
	if l.SubmitSelector == "" || strings.Contains(l.SubmitSelector, ",") {
		v.addError("liveview.submit_selector must be a single selector")
	}
}

func (v *Validator) validateLogging() {
	l := v.config.Logging
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		v.addError("logging.level %q is not a zap level", l.Level)
	}
	if l.Format != "console" && l.Format != "json" {
		v.addError("logging.format %q is not one of console, json", l.Format)
	}
}

func (v *Validator) addError(format string, args ...any) {
	v.errors = append(v.errors, "❌ "+fmt.Sprintf(format, args...))
}

func sortedKeys(m map[string]time.Duration) []string {
	return slices.Sorted(maps.Keys(m))
}
