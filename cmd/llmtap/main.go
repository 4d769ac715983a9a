package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/llmtap/llmtap/pkg/addons"
	"github.com/llmtap/llmtap/pkg/capture"
	"github.com/llmtap/llmtap/pkg/config"
	"github.com/llmtap/llmtap/pkg/logging"
	"github.com/llmtap/llmtap/pkg/proxy"
	"github.com/llmtap/llmtap/pkg/route"
	"github.com/llmtap/llmtap/pkg/store"
	"github.com/llmtap/llmtap/pkg/tui"
	"github.com/llmtap/llmtap/pkg/web"
)

var rootCmd = &cobra.Command{
	Use:   "llmtap",
	Short: "Observe LLM API calls made by tools that can't use a proxy",
	Long: `llmtap intercepts decrypted HTTP traffic (behind a TLS-terminating
front) and watches for LLM API calls made by third-party CLI tools.

Two deployments share one engine:

  capture   classify each completed flow, redact it, and persist a JSON
            capture record per LLM API call
  route     rewrite every request through a separate forwarding proxy,
            tagging it with source/session provenance in the URL path

Config file (llmtap.yml) is loaded automatically from the current
directory. Environment variables (LLMTAP_*) and CLI flags layer on top.

Examples:
  # Capture LLM calls from a tool started with HTTPS_PROXY pointed here
  LLMTAP_SOURCE=copilot llmtap capture

  # Route all traffic through a forwarding proxy instead
  llmtap route --forward-url https://proxy.example

  # Print an example config file
  llmtap init`,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Persist a redacted capture record per intercepted LLM API call",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd, "capture")
	},
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Rewrite intercepted requests through a forwarding proxy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd, "route")
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Print an example llmtap.yml to stdout",
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Print(config.Example())
		return nil
	},
}

var (
	flagConfig     string
	flagListen     string
	flagWebPort    int
	flagMaxFlows   int
	flagNoTUI      bool
	flagNoColor    bool
	flagCaptureDir string
	flagSource     string
	flagSessionID  string
	flagForward    string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "",
		"path to config file (default: llmtap.yml in current directory)")
	pf.StringVar(&flagListen, "listen", "",
		"intercept listen address (default: :9270)")
	pf.IntVar(&flagWebPort, "web-port", 0,
		"port for web inspection UI (default: 9271; set to 0 to disable)")
	pf.IntVar(&flagMaxFlows, "max-flows", 0,
		"maximum number of flows to keep in memory (default: 1000)")
	pf.BoolVar(&flagNoTUI, "no-tui", false,
		"disable the interactive terminal UI (log to stdout only)")
	pf.BoolVar(&flagNoColor, "no-color", false,
		"disable ANSI colours in log output")
	pf.StringVar(&flagSource, "source", "",
		"tool label embedded in captures and route paths (default: unknown)")
	pf.StringVar(&flagSessionID, "session-id", "",
		"opaque session token embedded in filenames and route paths")

	captureCmd.Flags().StringVar(&flagCaptureDir, "capture-dir", "",
		"directory for capture files (default: ~/.llmtap/captures)")
	routeCmd.Flags().StringVar(&flagForward, "forward-url", "",
		"forwarding proxy base URL; empty disables rewriting")

	rootCmd.AddCommand(captureCmd, routeCmd, initCmd)
}

// resolve layers defaults, environment, config file, and CLI flags.
func resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.FromEnv()

	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.FindDefault(".")
	}
	if cfgPath != "" {
		fileCfg, err := config.LoadFile(cfgPath)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "loaded config: %s\n", cfgPath)
		cfg.Merge(fileCfg)
	}

	f := cmd.Flags()
	if f.Changed("listen") {
		cfg.Listen = flagListen
	}
	if f.Changed("web-port") {
		cfg.WebPort = &flagWebPort
	}
	if f.Changed("max-flows") {
		cfg.MaxFlows = &flagMaxFlows
	}
	if f.Changed("no-tui") {
		cfg.NoTUI = flagNoTUI
	}
	if f.Changed("no-color") {
		cfg.NoColor = flagNoColor
	}
	if f.Changed("source") {
		cfg.Source = flagSource
	}
	if f.Changed("session-id") {
		cfg.SessionID = flagSessionID
	}
	if f.Changed("capture-dir") {
		cfg.CaptureDir = flagCaptureDir
	}
	if f.Changed("forward-url") {
		cfg.ForwardURL = flagForward
	}
	return cfg, nil
}

func run(cmd *cobra.Command, mode string) error {
	cfg, err := resolve(cmd)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logging.Sync(log)

	engine := proxy.New(cfg.ToOptions(), log)
	identity := cfg.Identity()

	switch mode {
	case "capture":
		// One loud startup probe; after this, unwritable-directory
		// failures are swallowed per the best-effort capture policy.
		if err := os.MkdirAll(cfg.CaptureDir, 0o755); err != nil {
			log.Warn("capture directory not writable; captures will be dropped until it is",
				zap.String("dir", cfg.CaptureDir), zap.Error(err))
		}
		writer := store.NewWriter(cfg.CaptureDir, identity.Source, identity.SessionID)
		engine.Addons().Add(capture.NewAddon(identity, writer, log))
		log.Info("capture mode",
			zap.String("dir", writer.Dir()),
			zap.String("source", identity.Source),
			zap.String("session", identity.SessionID))
	case "route":
		ra := route.NewAddon(cfg.ForwardURL, identity)
		if !ra.Enabled() {
			log.Warn("no forwarding URL configured; requests pass through unmodified")
		}
		engine.Addons().Add(ra)
		log.Info("routing mode",
			zap.String("forward", cfg.ForwardURL),
			zap.String("source", identity.Source))
	}

	noTUI := cfg.NoTUI || !isTerminal()
	if noTUI {
		engine.Addons().Add(addons.NewLogAddon(os.Stdout, cfg.NoColor))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("intercepting", zap.String("listen", engine.Options().ListenAddr))
		return engine.Start(ctx)
	})

	if engine.Options().WebPort > 0 {
		webSrv := web.New(engine, engine.Options().WebPort, log)
		g.Go(func() error {
			return webSrv.Start(ctx)
		})
	}

	if !noTUI {
		info := tui.Info{
			Mode:       mode,
			Source:     identity.Source,
			CaptureDir: cfg.CaptureDir,
			WebPort:    engine.Options().WebPort,
		}
		g.Go(func() error {
			return tui.Run(ctx, engine, info)
		})
	}

	return g.Wait()
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
