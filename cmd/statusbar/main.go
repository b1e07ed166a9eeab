package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shelepuginivan/statusbar/internal/clients/tray"
	"github.com/shelepuginivan/statusbar/internal/config"
	"github.com/shelepuginivan/statusbar/internal/inhibit"
	"github.com/shelepuginivan/statusbar/internal/log"
	"github.com/shelepuginivan/statusbar/internal/metrics"
	"github.com/shelepuginivan/statusbar/internal/vars"
	"github.com/shelepuginivan/statusbar/systray"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "statusbar",
	Short: "Status bar daemon for the system tray and idle inhibition",
	Long: `statusbar hosts the system tray over D-Bus and exposes idle inhibition
through the variable bus.

Write "toggle" or "cycle" to the inhibit command variable to control
inhibition. The current state is written to the inhibit info variable.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("statusbar version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", config.DefaultPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	rootCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(trayCmd)
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}

	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	if f := cmd.Flags().Lookup("metrics-addr"); f != nil && f.Changed {
		cfg.Metrics.Addr = f.Value.String()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})

	return cfg, nil
}

func trayConfig(cfg config.Config) tray.Config {
	return tray.Config{
		MaxAttempts: cfg.Tray.MaxAttempts,
		BaseDelay:   cfg.Tray.BaseDelay,
		BufferSize:  cfg.Tray.Buffer,
	}
}

func trayDial(cfg config.Config) tray.DialFunc {
	return func(ctx context.Context) (tray.Upstream, error) {
		client, err := systray.Connect(ctx, systray.Options{EmbeddedWatcher: cfg.Tray.Watcher})
		if err != nil {
			return nil, err
		}

		return client, nil
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)

	var server *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("Serving metrics")
	}

	bus := vars.NewManager()

	inhibitor, closeInhibitor := newInhibitor(cfg, logger)
	defer closeInhibitor()

	controller := inhibit.NewController(inhibitor, inhibit.ControllerConfig{
		Durations: cfg.Inhibit.Durations,
	})

	states := controller.Subscribe()
	bridge := inhibit.StartBridge(ctx, bus, controller, states.C(), inhibit.BridgeConfig{
		CommandVar: cfg.Inhibit.CommandVar,
		InfoVar:    cfg.Inhibit.InfoVar,
	})
	go controller.Run(ctx)

	go func() {
		if err := <-bridge; err != nil {
			logger.Error().Err(err).Msg("Inhibit IPC controller stopped")
		}
	}()

	trayClient, err := tray.Connect(ctx, trayDial(cfg), trayConfig(cfg))
	if err != nil {
		logger.Error().Err(err).Msg("System tray unavailable")
	} else {
		defer trayClient.Close()
		go logTrayEvents(trayClient.Subscribe())
	}

	logger.Info().Str("version", Version).Msg("Status bar running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Stringer("signal", sig).Msg("Shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("Shutting down")
	}

	cancel()
	<-controller.Done()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}

	return nil
}

type closableInhibitor interface {
	inhibit.Inhibitor
	Close() error
}

var dialLogin1 = func(who string) (closableInhibitor, error) {
	inhibitor, err := inhibit.NewLogin1Inhibitor(who)
	if err != nil {
		return nil, err
	}

	return inhibitor, nil
}

// newInhibitor returns the configured backend. An unavailable login1 backend
// falls back to the no-op one, so the bar keeps running without it.
func newInhibitor(cfg config.Config, logger zerolog.Logger) (inhibit.Inhibitor, func()) {
	if cfg.Inhibit.Backend == config.BackendNone {
		return inhibit.NopInhibitor{}, func() {}
	}

	inhibitor, err := dialLogin1("statusbar")
	if err != nil {
		logger.Warn().Err(err).Msg("Idle inhibitor unavailable, inhibition will only be tracked")
		return inhibit.NopInhibitor{}, func() {}
	}

	return inhibitor, func() {
		if err := inhibitor.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close idle inhibitor")
		}
	}
}

func logTrayEvents(sub *tray.Subscription) {
	logger := log.WithComponent("tray")

	for ev := range sub.C() {
		logger.Debug().Str("event", ev.Name()).Str("address", ev.Address).Msg("Tray event")
	}
}
