package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/goodtune/sitelimit/internal/api"
	"github.com/goodtune/sitelimit/internal/config"
	"github.com/goodtune/sitelimit/internal/daemon"
	"github.com/goodtune/sitelimit/internal/enforce"
	"github.com/goodtune/sitelimit/internal/metrics"
	"github.com/goodtune/sitelimit/internal/policy"
	"github.com/goodtune/sitelimit/internal/surface"
	"github.com/goodtune/sitelimit/internal/systemd"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sitelimit daemon",
	Long:  `Start the sitelimit daemon with the host API, the daily reset and retention schedulers, and the metrics endpoint.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting sitelimit")

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("session_type", cfg.SessionStorage.Type).
		Bool("shared", st.shared).
		Msg("Storage initialized")

	policyEngine, err := policy.NewEngine(cfg.Enforcement.PolicyDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	logger.Info().Strs("modules", policyEngine.Modules()).Msg("Policy engine initialized")

	registry, err := surface.NewRegistry(cfg.Tracking.MaxSurfaces, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize surface registry: %w", err)
	}

	clock := quartz.NewReal()
	usageStore := st.durable.Usage()

	controller := enforce.NewController(usageStore, st.durable.Limits(), st.session.Blocks(), policyEngine, registry, clock, logger)
	reporter := usage.NewReporter(usageStore, st.durable.Limits(), st.durable.Categories(), clock)
	pruner := usage.NewPruner(usageStore, cfg.Retention.UsageDays, clock, logger)

	d := daemon.New(daemon.Config{
		FlushInterval: cfg.Tracking.FlushIntervalDuration(),
	}, usageStore, controller, registry, clock, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	daemonDone := make(chan error, 1)
	go func() { daemonDone <- d.Run(ctx) }()

	resetScheduler, err := usage.NewResetScheduler(cfg.Enforcement.DailyResetTime, clock, func(ctx context.Context) {
		if err := d.Reset(ctx); err != nil {
			logger.Error().Err(err).Msg("Daily reset failed")
		}
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize reset scheduler: %w", err)
	}
	resetScheduler.Start(ctx)

	retentionScheduler, err := usage.NewRetentionScheduler(cfg.Retention.Schedule, clock, func(ctx context.Context) {
		if _, err := d.Prune(ctx, pruner); err != nil {
			logger.Error().Err(err).Msg("Retention pruning failed")
		}
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize retention scheduler: %w", err)
	}
	retentionScheduler.Start(ctx)

	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer := api.NewServer(api.Config{
		ListenAddr:     apiAddr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		FlushInterval:  cfg.Tracking.FlushIntervalDuration(),
		IdleThreshold:  cfg.Tracking.IdleThresholdDuration(),
	}, api.Deps{
		Dispatcher: d,
		Controller: controller,
		Reporter:   reporter,
		Limits:     st.durable.Limits(),
		Categories: st.durable.Categories(),
		Surfaces:   registry,
	}, logger)

	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	logger.Info().
		Str("api", apiAddr).
		Int("metrics_port", cfg.Server.MetricsPort).
		Dur("flush_interval", cfg.Tracking.FlushIntervalDuration()).
		Str("daily_reset_time", cfg.Enforcement.DailyResetTime).
		Msg("sitelimit startup complete")

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	if interval := systemd.WatchdogInterval(); interval > 0 {
		clock.TickerFunc(ctx, interval, func() error {
			if err := systemd.NotifyWatchdog(); err != nil {
				logger.Warn().Err(err).Msg("Failed to send systemd watchdog notification")
			}
			return nil
		}, "watchdog")
		logger.Debug().Dur("interval", interval).Msg("systemd watchdog enabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	var runErr error
loop:
	for {
		select {
		case sig := <-sigChan:
			if sig != syscall.SIGHUP {
				logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
				break loop
			}

			logger.Info().Msg("SIGHUP received, reloading policies...")
			if err := policyEngine.Reload(); err != nil {
				logger.Error().Err(err).Msg("Failed to reload policies")
				continue
			}
			logger.Info().Strs("modules", policyEngine.Modules()).Msg("Policies reloaded successfully")

			// A stricter policy may block domains that are already over.
			if err := d.Do(ctx, "recheck-all", controller.RecheckAll); err != nil {
				logger.Error().Err(err).Msg("Recheck after policy reload failed")
			}

		case err := <-daemonDone:
			// Run only returns early when startup reconciliation failed.
			runErr = err
			daemonDone <- err
			break loop
		}
	}

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	resetScheduler.Stop()
	retentionScheduler.Stop()

	cancel()
	if err := <-daemonDone; err != nil && runErr == nil {
		logger.Error().Err(err).Msg("Event loop exited with error")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("sitelimit stopped")
	return runErr
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// quietLogger is used by the offline commands
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}
