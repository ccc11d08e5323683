package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lanwatch/internal/api"
	"lanwatch/internal/config"
	"lanwatch/internal/logging"
	"lanwatch/internal/metrics"
	"lanwatch/internal/monitor"
	"lanwatch/internal/notify"
	"lanwatch/internal/registry"
	"lanwatch/internal/resolve"
	"lanwatch/internal/scan"
	"lanwatch/internal/store"
)

var (
	runOnce       bool
	runInitReport bool
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the presence monitor",
	Long: `Run the presence monitor loop: sweep the network on the configured
interval, track device presence, and push join/leave notifications.

A SIGHUP reloads the device mappings from the config file without
restarting; newly ignored devices are dropped silently.`,
	Example: `  lanwatch run
  lanwatch run --once
  lanwatch run --init-report --config /etc/lanwatch/config.yaml`,
	RunE: runMonitor,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "perform a single scan cycle and exit")
	runCmd.Flags().BoolVar(&runInitReport, "init-report", false,
		"send a summary notification after the baseline cycle")
	rootCmd.AddCommand(runCmd)
}

func runMonitor(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	if runInitReport {
		cfg.Monitor.InitialReport = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := registry.New(cfg.Devices)
	if err != nil {
		return err
	}

	chain, err := scan.NewChain(cfg.Scan, logger)
	if err != nil {
		return err
	}
	if err := chain.Verify(); err != nil {
		return err
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotificationsEnabled() {
		notifier = notify.NewBark(cfg.Bark)
	} else {
		logger.Warn("no bark key configured, notifications disabled")
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.Bark.QueueSize, logger)
	dispatcher.Start()
	defer dispatcher.Close()

	var st *store.Store
	if cfg.StoreEnabled() {
		st, err = store.Open(ctx, cfg.Database.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		logger.Info("event store opened", "path", cfg.Database.Path)
	}

	m := metrics.New()
	mon := monitor.New(monitor.Options{
		Config:   cfg,
		Sweeper:  chain,
		Registry: reg,
		Queue:    dispatcher,
		Store:    st,
		Resolver: newResolver(cfg, logger),
		Metrics:  m,
		Logger:   logger,
	})

	if cfg.API.Enabled {
		server := api.New(cfg.API, mon, st, m.Handler(), logger)
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("status API failed", "error", err)
			}
		}()
	}

	if runOnce {
		return mon.RunOnce(ctx, cfg.Monitor.InitialReport)
	}

	go watchReload(ctx, mon, logger)

	logger.Info("presence monitor starting",
		"interval", cfg.Monitor.Interval,
		"strategies", chain.Names(),
		"miss_threshold", cfg.Monitor.MissThreshold)

	err = mon.Run(ctx)
	if err == context.Canceled {
		logger.Info("presence monitor stopped")
		return nil
	}
	return err
}

// watchReload re-reads device mappings on SIGHUP. Scan and transport
// settings require a restart; only the registry is hot-swapped.
func watchReload(ctx context.Context, mon *monitor.Monitor, logger *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := loadConfig()
			if err != nil {
				logger.Error("config reload failed", "error", err)
				continue
			}
			if err := mon.Reload(cfg.Devices); err != nil {
				logger.Error("registry reload failed", "error", err)
			}
		}
	}
}

func newResolver(cfg *config.Config, logger *logging.Logger) resolve.Resolver {
	if !cfg.Monitor.ResolveHostnames {
		return resolve.Nop()
	}
	return resolve.New(logger)
}
