package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gotrs-io/liveview-e2e/internal/browser"
	"github.com/gotrs-io/liveview-e2e/internal/config"
	"github.com/gotrs-io/liveview-e2e/internal/liveview"
	"github.com/gotrs-io/liveview-e2e/internal/logging"
	"github.com/gotrs-io/liveview-e2e/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "liveview-probe",
	Short: "Check LiveView pages against the e2e synchronization layer",
	Long: `liveview-probe opens a page in a real browser, waits for the live
connection and settlement exactly as the e2e suite does, and reports how long
each wait took.

It is meant for debugging flaky browser tests against a running application.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configFlag     string
	driverFlag     string
	baseURLFlag    string
	timeoutFlag    time.Duration
	bannerFlag     string
	textFlag       string
	collectionFlag string
	countFlag      int
	screenshotFlag string
	withinFlag     time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe <path>",
	Short: "Load a page, wait for connection and settlement, run optional assertions",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

var checkEventCmd = &cobra.Command{
	Use:   "check-event <path> <event>",
	Short: "Load a page and wait for a prefixed window event",
	Long: `check-event waits for the named event (the configured prefix is added)
after the page settles. A missing event is reported and exits non-zero.`,
	Args: cobra.ExactArgs(2),
	RunE: runCheckEvent,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "liveview-probe %s\n", rootCmd.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "go: %s\n", info.GoVersion)
		if info.Playwright != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "playwright-go: %s\n", info.Playwright)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "Path to a YAML config file")
	pf.StringVar(&driverFlag, "driver", "", "Browser driver: playwright or chromedp")
	pf.StringVar(&baseURLFlag, "base-url", "", "Application base URL")
	pf.DurationVar(&timeoutFlag, "timeout", time.Minute, "Overall deadline for the command")

	probeCmd.Flags().StringVar(&bannerFlag, "banner", "", "Assert a message banner of this severity (info, error, success, warning)")
	probeCmd.Flags().StringVar(&textFlag, "text", "", "Text the banner must contain")
	probeCmd.Flags().StringVar(&collectionFlag, "collection", "", "Assert the streamed collection with this id is attached")
	probeCmd.Flags().IntVar(&countFlag, "count", -1, "Expected item count for --collection")
	probeCmd.Flags().StringVar(&screenshotFlag, "screenshot", "", "Write a screenshot to this path when done")

	checkEventCmd.Flags().DurationVar(&withinFlag, "within", 0, "Event deadline (defaults to timeouts.event)")

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(checkEventCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// probeEnv is one opened page with its session.
type probeEnv struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	browser  *browser.Browser
	session  *liveview.Session
}

func loadConfig() (*config.Config, error) {
	config.PreloadDotEnv()
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if driverFlag != "" {
		cfg.Browser.Driver = driverFlag
	}
	if baseURLFlag != "" {
		cfg.Browser.BaseURL = baseURLFlag
	}
	if err := config.NewValidator(cfg).Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func openPage(ctx context.Context, cmd *cobra.Command, path string) (*probeEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()

	br, err := browser.Launch(cfg.Browser, "", log)
	if err != nil {
		return nil, err
	}
	session := liveview.NewSession(br.Page, cfg.Settings(),
		liveview.WithLogger(log.Named("liveview")),
		liveview.WithMetrics(liveview.NewMetrics(reg)))

	env := &probeEnv{cfg: cfg, log: log, registry: reg, browser: br, session: session}
	url := cfg.Browser.URL(path)
	log.Info("opening page", zap.String("url", url), zap.String("driver", cfg.Browser.Driver))
	if err := session.NavigateAndConnect(ctx, url); err != nil {
		env.close()
		return nil, err
	}
	return env, nil
}

func (e *probeEnv) close() {
	e.browser.Close()
	_ = e.log.Sync()
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	env, err := openPage(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	defer env.close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ connected and settled: %s\n", env.browser.URL())

	var failed error
	if bannerFlag != "" {
		sev := liveview.Severity(bannerFlag)
		if !sev.Valid() {
			return fmt.Errorf("unknown banner severity %q", bannerFlag)
		}
		failed = errors.Join(failed, report(out, "banner "+bannerFlag, env.session.AssertMessageBanner(ctx, sev, textFlag)))
	}
	if collectionFlag != "" {
		if countFlag >= 0 {
			failed = errors.Join(failed, report(out, "collection "+collectionFlag, env.session.AssertCollectionCount(ctx, collectionFlag, countFlag)))
		} else {
			failed = errors.Join(failed, report(out, "collection "+collectionFlag, env.session.AssertCollection(ctx, collectionFlag)))
		}
	}
	if screenshotFlag != "" {
		if err := env.browser.Screenshot(screenshotFlag); err != nil {
			env.log.Warn("screenshot failed", zap.Error(err))
		}
	}

	if err := summarize(env.registry, out); err != nil {
		env.log.Warn("metrics summary failed", zap.Error(err))
	}
	return failed
}

func runCheckEvent(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	env, err := openPage(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	defer env.close()

	within := withinFlag
	if within <= 0 {
		within = env.cfg.Timeouts.Event
	}
	name := env.session.EventName(args[1])
	fired, err := env.session.WaitForEventWithin(ctx, args[1], within)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !fired {
		fmt.Fprintf(out, "✗ %s not observed\n", name)
		return fmt.Errorf("event %s not observed", name)
	}
	fmt.Fprintf(out, "✓ %s observed\n", name)
	return summarize(env.registry, out)
}

func report(w io.Writer, what string, err error) error {
	if err != nil {
		fmt.Fprintf(w, "✗ %s: %v\n", what, err)
		return err
	}
	fmt.Fprintf(w, "✓ %s\n", what)
	return nil
}

// summarize prints one line per recorded wait op and outcome.
func summarize(g prometheus.Gatherer, w io.Writer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	type row struct {
		op, outcome string
		count       uint64
		total       time.Duration
	}
	var rows []row
	for _, mf := range families {
		if mf.GetName() != "liveview_wait_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			r := row{count: m.GetHistogram().GetSampleCount()}
			r.total = time.Duration(m.GetHistogram().GetSampleSum() * float64(time.Second))
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "op":
					r.op = lp.GetValue()
				case "outcome":
					r.outcome = lp.GetValue()
				}
			}
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].op != rows[j].op {
			return rows[i].op < rows[j].op
		}
		return rows[i].outcome < rows[j].outcome
	})

	fmt.Fprintf(w, "\n%-20s %-8s %5s %10s\n", "WAIT", "OUTCOME", "COUNT", "TOTAL")
	for _, r := range rows {
		fmt.Fprintf(w, "%-20s %-8s %5d %10s\n", r.op, r.outcome, r.count, r.total.Round(time.Millisecond))
	}
	return nil
}
