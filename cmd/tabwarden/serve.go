package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/tabwarden/pkg/api"
	"github.com/cuemby/tabwarden/pkg/browser"
	"github.com/cuemby/tabwarden/pkg/clock"
	"github.com/cuemby/tabwarden/pkg/config"
	"github.com/cuemby/tabwarden/pkg/events"
	"github.com/cuemby/tabwarden/pkg/health"
	"github.com/cuemby/tabwarden/pkg/keepalive"
	"github.com/cuemby/tabwarden/pkg/log"
	"github.com/cuemby/tabwarden/pkg/metrics"
	"github.com/cuemby/tabwarden/pkg/recovery"
	"github.com/cuemby/tabwarden/pkg/registry"
	"github.com/cuemby/tabwarden/pkg/storage"
	"github.com/cuemby/tabwarden/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tabwarden daemon",
	Long: `Run the tabwarden daemon.

The daemon connects to a browser (or launches one), restores the timers
that were active when it last stopped and serves the message API.

Examples:
  # Launch a headless browser and keep state in ./tabwarden-data
  tabwarden serve

  # Attach to a browser started with --remote-debugging-port=9222
  tabwarden serve --cdp-url http://127.0.0.1:9222

  # Use a config file, overriding its log level
  tabwarden serve --config /etc/tabwarden.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file")
	serveCmd.Flags().String("data-dir", "", "Data directory for timer state")
	serveCmd.Flags().String("storage", "", "Storage driver (bolt, sqlite, memory)")
	serveCmd.Flags().String("api-addr", "", "Address for the HTTP API")
	serveCmd.Flags().String("cdp-url", "", "DevTools URL of a running browser")
	serveCmd.Flags().Bool("headless", true, "Launch the browser headless")
	serveCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().Bool("log-json", false, "Log in JSON format")
}

// loadServeConfig loads the config file and applies explicitly set flags
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("storage") {
		cfg.Storage.Driver, _ = flags.GetString("storage")
	}
	if flags.Changed("api-addr") {
		cfg.API.Addr, _ = flags.GetString("api-addr")
	}
	if flags.Changed("cdp-url") {
		cfg.Browser.CDPURL, _ = flags.GetString("cdp-url")
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	logger := log.WithComponent("serve")
	metrics.SetVersion(Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.Driver, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	metrics.UpdateComponent(metrics.ComponentStore, true, cfg.Storage.Driver)

	// Only injected tab agents learn this token, so other pages in the
	// browser cannot drive the API
	agentToken, err := newAgentToken()
	if err != nil {
		return err
	}

	// The browser connection outlives ctx so that timers are disarmed
	// before the browser goes away
	driver, err := browser.NewCDPDriver(context.Background(), browser.Config{
		CDPURL:         cfg.Browser.CDPURL,
		ExecPath:       cfg.Browser.ExecPath,
		Headless:       cfg.Browser.Headless,
		AgentEndpoint:  "http://" + cfg.API.Addr + "/v1/message",
		AgentHeartbeat: cfg.Browser.AgentHeartbeat,
		AgentToken:     agentToken,
	})
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentBrowser, false, err.Error())
		return err
	}
	defer driver.Close()
	metrics.UpdateComponent(metrics.ComponentBrowser, true, "connected")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	clk := clock.New()

	reg := registry.New(store, driver, clk, broker, registry.Config{
		ReloadRetries: cfg.Timers.ReloadRetries,
		CallTimeout:   cfg.Browser.CallTimeout,
	})
	ka := keepalive.New(store, driver, reg, clk, broker, keepalive.Config{
		ProcessInterval: cfg.KeepAlive.ProcessInterval,
		TabInterval:     cfg.KeepAlive.TabInterval,
		SweepInterval:   cfg.KeepAlive.SweepInterval,
		CallTimeout:     cfg.Browser.CallTimeout,
	})
	defer ka.Stop()
	defer reg.Close()

	reg.OnChange(func() {
		if err := ka.Manage(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Failed to update keep-alive")
		}
	})

	driver.WatchRemoved(func(id types.TabID) {
		if !reg.IsActive(id) && !reg.Pending(id) {
			return
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Browser.CallTimeout)
		defer cancel()
		if err := reg.Stop(stopCtx, id); err != nil {
			logger.Warn().Err(err).Str("tab_id", id.String()).Msg("Failed to stop timer for closed tab")
		}
	})

	engine := recovery.NewEngine(store, driver, reg, clk, broker, recovery.Config{
		Concurrency: cfg.Recovery.Concurrency,
		CallTimeout: cfg.Browser.CallTimeout,
	})
	report, err := engine.RecoverTimers(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover timers: %w", err)
	}
	if err := report.Err(); err != nil {
		logger.Warn().Err(err).Msg("Some timers could not be recovered")
	}

	if err := ka.Manage(ctx); err != nil {
		return fmt.Errorf("failed to start keep-alive: %w", err)
	}
	ka.Start()

	storeCheck := health.NewFuncChecker(func(context.Context) error {
		_, err := store.ListActive()
		return err
	})
	var browserCheck health.Checker = health.NewFuncChecker(driver.Ping)
	if cfg.Browser.CDPURL != "" {
		cdpCheck, err := health.NewCDPChecker(cfg.Browser.CDPURL, cfg.Browser.CallTimeout)
		if err != nil {
			return err
		}
		browserCheck = cdpCheck
	}

	monitor := health.NewMonitor(health.Config{
		Interval:    cfg.Health.Interval,
		Timeout:     cfg.Browser.CallTimeout,
		Retries:     cfg.Health.Retries,
		StartPeriod: cfg.Health.StartPeriod,
	})
	monitor.Add(metrics.ComponentStore, storeCheck)
	monitor.Add(metrics.ComponentBrowser, browserCheck)

	handler := api.NewHandler(reg, ka, driver)
	srv := api.NewServer(api.ServerConfig{
		Middleware: api.MiddlewareConfig{
			AllowedIPs:        cfg.API.AllowedIPs,
			AllowedOrigins:    cfg.API.AllowedOrigins,
			RequestsPerSecond: cfg.API.RateLimit,
			Burst:             cfg.API.Burst,
			AgentToken:        agentToken,
		},
		Checks: map[string]func(context.Context) error{
			metrics.ComponentStore: func(ctx context.Context) error {
				return health.Err(ctx, storeCheck)
			},
			metrics.ComponentBrowser: func(ctx context.Context) error {
				return health.Err(ctx, browserCheck)
			},
		},
	}, handler, broker, driver)

	ln, err := net.Listen("tcp", cfg.API.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.API.Addr, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Tabwarden is running. Press Ctrl+C to stop.")
	fmt.Fprintf(cmd.OutOrStdout(), "  API: http://%s\n", ln.Addr())
	fmt.Fprintf(cmd.OutOrStdout(), "  Data: %s (%s)\n", cfg.DataDir, cfg.Storage.Driver)
	fmt.Fprintf(cmd.OutOrStdout(), "  Timers recovered: %d\n", report.Recovered())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		srv.CleanupLoop(gctx, 10*time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Shutdown complete")
	return nil
}

// newAgentToken generates the per-launch secret handed to tab agents
func newAgentToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate agent token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
