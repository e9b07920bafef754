package config

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var dotEnvOnce sync.Once

// PreloadDotEnv loads KEY=VALUE lines from .env once per process. Variables
// already present in the environment win.
func PreloadDotEnv() {
	dotEnvOnce.Do(func() { loadDotEnv(".env") })
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		vars, err := readDotEnv(p)
		if err != nil {
			continue
		}
		for key, val := range vars {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, val)
			}
		}
	}
}

// readDotEnv parses path with viper's dotenv reader. Keys are upper-cased
// back to their environment form and empty values are dropped.
func readDotEnv(path string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	vars := make(map[string]string, len(v.AllKeys()))
	for _, key := range v.AllKeys() {
		if val := v.GetString(key); val != "" {
			vars[strings.ToUpper(key)] = val
		}
	}
	return vars, nil
}

// Resolver finds a reachable base URL when the configured one is down, for
// suites that run both inside compose (host "backend") and on a laptop.
type Resolver struct {
	Reachable func(base string) bool
	Log       *zap.SugaredLogger
}

// NewResolver probes candidates over TCP and HTTP.
func NewResolver(log *zap.Logger) *Resolver {
	return &Resolver{Reachable: reachable, Log: log.Sugar()}
}

// Resolve returns initial when it answers, otherwise the first reachable
// candidate, otherwise initial unchanged.
func (r *Resolver) Resolve(initial string) string {
	start := time.Now()
	if r.Reachable(initial) {
		return initial
	}
	tried := []string{initial}
	for _, c := range candidateURLs(initial) {
		tried = append(tried, c)
		if r.Reachable(c) {
			r.Log.Infof("[e2e-config] Auto-detect switched BaseURL %s -> %s (%s; order=%v)", initial, c, time.Since(start).Round(time.Millisecond), tried)
			return c
		}
	}
	r.Log.Warnf("[e2e-config] Auto-detect kept unreachable BaseURL=%s (tried=%v in %s)", initial, tried, time.Since(start).Round(time.Millisecond))
	return initial
}

// candidateURLs lists the local and compose variants of initial, without
// duplicates and without initial itself.
func candidateURLs(initial string) []string {
	var candidates []string
	if u, err := url.Parse(initial); err == nil {
		host, port := u.Hostname(), u.Port()
		if port == "" {
			port = "8080"
		}
		ports := []string{port, "8080", "18080", "8081"}
		if host != "localhost" && host != "127.0.0.1" {
			for _, h := range []string{"localhost", "127.0.0.1"} {
				for _, p := range ports {
					candidates = append(candidates, "http://"+h+":"+p)
				}
			}
		}
		if strings.Contains(host, "backend") {
			for _, p := range []string{"8080", "18080", "8081"} {
				candidates = append(candidates, "http://backend:"+p)
			}
		}
	}
	candidates = append(candidates, "http://localhost:8080")

	seen := map[string]bool{initial: true}
	uniq := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		uniq = append(uniq, c)
	}
	return uniq
}

func reachable(base string) bool {
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	host := u.Host
	if !strings.Contains(host, ":") {
		host += ":80"
	}
	d := net.Dialer{Timeout: 250 * time.Millisecond}
	conn, err := d.Dial("tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()

	client := &http.Client{Timeout: 800 * time.Millisecond}
	for _, path := range []string{"/healthz", "/"} {
		resp, err := client.Get(base + path)
		if err == nil {
			_ = resp.Body.Close()
			return true
		}
	}
	return false
}

// ForE2E loads configuration the way the browser suite expects: .env
// preload, environment overrides and, unless disabled, base URL detection.
func ForE2E(log *zap.Logger) (*Config, error) {
	PreloadDotEnv()
	cfg, err := Load(os.Getenv("LIVEVIEW_CONFIG"))
	if err != nil {
		return nil, err
	}
	if cfg.Browser.Autodetect {
		cfg.Browser.BaseURL = NewResolver(log).Resolve(cfg.Browser.BaseURL)
	}
	log.Sugar().Infof("[e2e-config] Resolved BaseURL=%s", cfg.Browser.BaseURL)
	return cfg, nil
}
