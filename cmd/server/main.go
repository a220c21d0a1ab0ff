package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/server"
	"github.com/GriffinCanCode/uniremote/backend/internal/input"
	"github.com/GriffinCanCode/uniremote/backend/internal/loader"
	"github.com/GriffinCanCode/uniremote/backend/internal/providers"
	"github.com/GriffinCanCode/uniremote/backend/internal/sandbox"
	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
	"github.com/GriffinCanCode/uniremote/backend/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "Config file (.yaml, .yml or .toml)")
	remotesDir := flag.String("remotes", "", "Remotes directory")
	addr := flag.String("addr", "", "Admin server address (host:port)")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *remotesDir != "" {
		cfg.Remotes.Dir = *remotesDir
	}
	if *addr != "" {
		host, port, err := net.SplitHostPort(*addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -addr: %v\n", err)
			os.Exit(1)
		}
		cfg.Server.Host, cfg.Server.Port = host, port
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger.Logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	backend := input.NewLogBackend(logger.Named("input"))

	logger.Info("loading remotes",
		zap.String("dir", cfg.Remotes.Dir),
		zap.Int("memory_mb", cfg.Limits.MemoryMB),
		zap.Int64("max_instructions", cfg.Limits.MaxInstructions),
	)
	loaded, err := loader.Load(ctx, cfg.Remotes.Dir, loader.Options{
		Limits: cfg.Limits.ScriptLimits(),
		Logger: logger,
		StateOptions: []sandbox.Option{
			sandbox.WithMetrics(metrics),
			sandbox.WithHost(providers.Host{
				Input:         backend,
				AllowProcess:  cfg.Sandbox.AllowProcess,
				HTTPTimeout:   cfg.HTTP.Timeout(),
				HTTPRetries:   cfg.HTTP.Retries,
				HTTPRateLimit: cfg.HTTP.RateLimitRPS,
			}),
		},
	})
	if err != nil {
		return fmt.Errorf("load remotes: %w", err)
	}

	registry := worker.NewRegistry(logger)
	remotes := make([]types.Remote, 0, len(loaded))
	for _, l := range loaded {
		_, err := registry.GetOrCreate(l.Remote.ID, func() (*worker.Worker, error) {
			return worker.New(l.Remote.ID, l.State,
				worker.WithLogger(logger),
				worker.WithMetrics(metrics),
				worker.WithQueueSize(cfg.Worker.QueueSize),
				worker.WithRetry(cfg.Worker.SendRetries, cfg.Worker.RetryBackoff()),
				worker.WithSubscriberBuffer(cfg.Worker.SubscriberBuffer),
			), nil
		})
		if err != nil {
			return err
		}
		remotes = append(remotes, l.Remote)
	}
	logger.Info("remotes ready", zap.Int("count", len(remotes)))

	admin := server.New(cfg, registry, remotes, logger, metrics)
	serveErr := admin.Run(ctx)
	if serveErr != nil {
		logger.Error("admin server failed", zap.Error(serveErr))
	}

	logger.Info("stopping workers", zap.Duration("timeout", cfg.Worker.ShutdownTimeout()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout())
	defer cancel()
	closeErr := registry.CloseAll(shutdownCtx)

	return errors.Join(serveErr, closeErr)
}
