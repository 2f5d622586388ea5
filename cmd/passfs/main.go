package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"passfs/internal/config"
	"passfs/internal/fs"
	"passfs/internal/logging"
	"passfs/internal/metrics"
	"passfs/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var (
	logger = logging.GetLogger()
)

func main() {
	flags := pflag.NewFlagSet("passfs", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	configPath, _ := flags.GetString(config.FlagConfig)
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	logOutput, err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		logger.Error("Failed to configure logging: %v", err)
		os.Exit(1)
	}

	err = run(cfg)
	logOutput.Close()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger.Info("Starting passfs...")
	logger.Debug("Mount point: %s", cfg.Mount.Point)
	logger.Debug("Source path: %s", cfg.Mount.Source)

	pfs, err := fs.New(filepath.Clean(cfg.Mount.Source))
	if err != nil {
		return err
	}
	defer func() {
		if err := pfs.Close(); err != nil {
			logger.Warn("Closing source: %v", err)
		}
	}()

	var fsys fs.FileSystem = pfs
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		fsys = metrics.NewMetrics(registry).Wrap(pfs)
		metrics.RegisterStats(registry, pfs.Stats)
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// An external unmount ends the mount goroutine, which must also stop
	// the metrics server.
	ctx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return server.Mount(ctx, fsys, server.Options{
			MountPoint: filepath.Clean(cfg.Mount.Point),
			FSName:     cfg.Mount.FSName,
			Subtype:    cfg.Mount.FSName,
			AllowOther: cfg.Mount.AllowOther,
			ReadOnly:   cfg.Mount.ReadOnly,
		})
	})
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, registry)
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if signalCtx.Err() != nil {
		logger.Info("Shutdown requested by signal")
	}
	logger.Info("Clean shutdown complete")
	return nil
}
