package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gotrs-io/liveview-e2e/internal/liveview"
)

// Config represents the e2e harness configuration
type Config struct {
	Browser  BrowserConfig  `mapstructure:"browser"`
	LiveView LiveViewConfig `mapstructure:"liveview"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type BrowserConfig struct {
	Driver         string        `mapstructure:"driver"`
	BaseURL        string        `mapstructure:"base_url"`
	Autodetect     bool          `mapstructure:"autodetect"`
	Headless       bool          `mapstructure:"headless"`
	SlowMoMS       int           `mapstructure:"slow_mo_ms"`
	Screenshots    bool          `mapstructure:"screenshots"`
	Videos         bool          `mapstructure:"videos"`
	ArtifactsDir   string        `mapstructure:"artifacts_dir"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	Preinstalled   bool          `mapstructure:"preinstalled"`
	Viewport       struct {
		Width  int `mapstructure:"width"`
		Height int `mapstructure:"height"`
	} `mapstructure:"viewport"`
}

// LiveViewConfig names the DOM conventions of the application under test.
type LiveViewConfig struct {
	LoadingAttr      string `mapstructure:"loading_attr"`
	LoadingClass     string `mapstructure:"loading_class"`
	EventPrefix      string `mapstructure:"event_prefix"`
	ConnectionGlobal string `mapstructure:"connection_global"`
	StreamAttr       string `mapstructure:"stream_attr"`
	StreamValue      string `mapstructure:"stream_value"`
	SubmitSelector   string `mapstructure:"submit_selector"`
}

type TimeoutsConfig struct {
	Settle           time.Duration `mapstructure:"settle"`
	Connect          time.Duration `mapstructure:"connect"`
	BannerVisible    time.Duration `mapstructure:"banner_visible"`
	BannerText       time.Duration `mapstructure:"banner_text"`
	CollectionAttach time.Duration `mapstructure:"collection_attach"`
	CollectionCount  time.Duration `mapstructure:"collection_count"`
	Event            time.Duration `mapstructure:"event"`
	EventFallback    time.Duration `mapstructure:"event_fallback"`
	ValidationDelay  time.Duration `mapstructure:"validation_delay"`
	NetworkIdle      time.Duration `mapstructure:"network_idle"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MarkerShare      float64       `mapstructure:"marker_share"`
}

type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// legacyEnv keeps the variable names the e2e suite has always read.
var legacyEnv = map[string]string{
	"browser.base_url":     "BASE_URL",
	"browser.headless":     "HEADLESS",
	"browser.screenshots":  "SCREENSHOTS",
	"browser.videos":       "VIDEOS",
	"browser.autodetect":   "E2E_BASEURL_AUTODETECT",
	"browser.preinstalled": "PLAYWRIGHT_PREINSTALLED",
	"admin.email":          "DEMO_ADMIN_EMAIL",
	"admin.password":       "DEMO_ADMIN_PASSWORD",
}

func setDefaults(v *viper.Viper) {
	d := liveview.DefaultSettings()

	v.SetDefault("browser.driver", "playwright")
	v.SetDefault("browser.base_url", "http://localhost:8080")
	v.SetDefault("browser.autodetect", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo_ms", 0)
	v.SetDefault("browser.screenshots", true)
	v.SetDefault("browser.videos", false)
	v.SetDefault("browser.artifacts_dir", "./test-results")
	v.SetDefault("browser.default_timeout", 30*time.Second)
	v.SetDefault("browser.preinstalled", false)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)

	v.SetDefault("liveview.loading_attr", d.LoadingAttr)
	v.SetDefault("liveview.loading_class", d.LoadingClass)
	v.SetDefault("liveview.event_prefix", d.EventPrefix)
	v.SetDefault("liveview.connection_global", d.ConnectionGlobal)
	v.SetDefault("liveview.stream_attr", d.StreamAttr)
	v.SetDefault("liveview.stream_value", d.StreamValue)
	v.SetDefault("liveview.submit_selector", d.SubmitSelector)

	v.SetDefault("timeouts.settle", d.SettleTimeout)
	v.SetDefault("timeouts.connect", d.ConnectTimeout)
	v.SetDefault("timeouts.banner_visible", d.BannerVisibleTimeout)
	v.SetDefault("timeouts.banner_text", d.BannerTextTimeout)
	v.SetDefault("timeouts.collection_attach", d.CollectionAttachTimeout)
	v.SetDefault("timeouts.collection_count", d.CollectionCountTimeout)
	v.SetDefault("timeouts.event", d.EventTimeout)
	v.SetDefault("timeouts.event_fallback", d.EventFallback)
	v.SetDefault("timeouts.validation_delay", d.ValidationDelay)
	v.SetDefault("timeouts.network_idle", d.NetworkIdle)
	v.SetDefault("timeouts.poll_interval", d.PollInterval)
	v.SetDefault("timeouts.marker_share", d.MarkerShare)

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.enabled", false)
}

// Load reads the defaults, then configFile when non-empty, then the
// environment. Environment variables use the LIVEVIEW_ prefix with dots
// replaced by underscores; the historical e2e names are honoured too.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("LIVEVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		envKey := "LIVEVIEW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Browser.BaseURL = strings.TrimRight(cfg.Browser.BaseURL, "/")
	return cfg, nil
}

// MustLoad loads configuration and panics on error
func MustLoad(configFile string) *Config {
	cfg, err := Load(configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}

// Settings returns the liveview session settings described by c.
func (c *Config) Settings() liveview.Settings {
	return liveview.Settings{
		LoadingAttr:      c.LiveView.LoadingAttr,
		LoadingClass:     c.LiveView.LoadingClass,
		EventPrefix:      c.LiveView.EventPrefix,
		ConnectionGlobal: c.LiveView.ConnectionGlobal,
		StreamAttr:       c.LiveView.StreamAttr,
		StreamValue:      c.LiveView.StreamValue,
		SubmitSelector:   c.LiveView.SubmitSelector,

		SettleTimeout:           c.Timeouts.Settle,
		ConnectTimeout:          c.Timeouts.Connect,
		BannerVisibleTimeout:    c.Timeouts.BannerVisible,
		BannerTextTimeout:       c.Timeouts.BannerText,
		CollectionAttachTimeout: c.Timeouts.CollectionAttach,
		CollectionCountTimeout:  c.Timeouts.CollectionCount,
		EventTimeout:            c.Timeouts.Event,
		EventFallback:           c.Timeouts.EventFallback,
		ValidationDelay:         c.Timeouts.ValidationDelay,
		NetworkIdle:             c.Timeouts.NetworkIdle,
		PollInterval:            c.Timeouts.PollInterval,
		MarkerShare:             c.Timeouts.MarkerShare,
	}
}

// URL joins path onto the base URL.
func (c *BrowserConfig) URL(path string) string {
	if path == "" {
		return c.BaseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}
