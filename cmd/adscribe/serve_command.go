package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"adscribe/internal/cache"
	"adscribe/internal/config"
	"adscribe/internal/daemon"
	"adscribe/internal/deps"
	"adscribe/internal/governor"
	"adscribe/internal/logging"
	"adscribe/internal/pipeline"
	"adscribe/internal/queue"
	"adscribe/internal/stage"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the queue worker in the foreground",
		Long: "Run the queue worker until interrupted. Jobs queued with 'adscribe submit' or\n" +
			"dropped into the inbox directory are processed by the configured number of workers.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return runWorker(cmd.Context(), cfg, logger)
		},
	}
}

// runWorker assembles the worker and blocks until ctx is cancelled.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logDependencySnapshot(logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	govMetrics := governor.NewMetrics(reg)
	memory := governor.NewMemoryMonitor(governor.MemoryConfigFrom(cfg), logger, govMetrics)
	cacheManager := cache.NewManager(cfg, logger, cache.NewMetrics(reg))

	pipe := pipeline.New(cfg, logger,
		pipeline.WithCache(cacheManager),
		pipeline.WithMemoryMonitor(memory),
	)
	gov := governor.New(cfg, store, pipe, logger,
		governor.WithMemoryMonitor(memory),
		governor.WithMetrics(govMetrics),
		governor.WithExclusiveOwnership(),
	)

	d, err := daemon.New(cfg, store, gov, logger,
		daemon.WithGatherer(reg),
		daemon.WithHealthCheck(memoryHealth(memory)),
	)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}
	if addr := d.APIAddr(); addr != "" {
		logger.Info("health and metrics available", logging.String("address", addr))
	}

	<-ctx.Done()
	logger.Info("shutdown requested")
	return nil
}

func memoryHealth(memory *governor.MemoryMonitor) daemon.HealthCheck {
	return func(context.Context) []stage.Health {
		if memory.Paused() {
			return []stage.Health{stage.Unhealthy("memory",
				fmt.Sprintf("job starts paused at %.0f%% of the memory limit", memory.Usage()*100))}
		}
		return []stage.Health{stage.Healthy("memory")}
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs := []logging.Attr{
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.Bool("available", status.Available),
		}
		switch {
		case status.Available:
			logger.Debug("dependency available", logging.Args(attrs...)...)
		case status.Optional:
			logger.Info("optional dependency missing", logging.Args(attrs...)...)
		default:
			logging.WarnWithContext(logger, "required dependency missing", "dependency_missing",
				append(attrs,
					logging.String(logging.FieldErrorHint, status.Detail),
					logging.String(logging.FieldImpact, "jobs will fail until the binary is installed"),
				)...)
		}
	}
}
