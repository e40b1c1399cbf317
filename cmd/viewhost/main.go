package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/viewbridge/internal/app"
	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/config"
	"github.com/GriffinCanCode/viewbridge/internal/engine"
	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/viewbridge/internal/inspector"
	"github.com/GriffinCanCode/viewbridge/internal/logging"
	"github.com/GriffinCanCode/viewbridge/internal/manifest"
	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	manifestPath := flag.String("manifest", "", "View manifest (.yaml, .yml or .toml); overrides VIEWHOST_MANIFEST")
	port := flag.String("port", "", "Inspector port; overrides INSPECTOR_PORT")
	noInspector := flag.Bool("no-inspector", false, "Disable the inspector HTTP API")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *manifestPath != "" {
		cfg.Host.Manifest = *manifestPath
	}
	if *port != "" {
		cfg.Inspector.Port = *port
	}
	if *noInspector {
		cfg.Inspector.Enabled = false
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("viewhost failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	host := bridge.NewHost(bridge.Options{
		Toolkit:      engine.NewFactory(engine.FromConfig(cfg), logger.Component("engine"), metrics),
		IdleInterval: cfg.Host.IdleInterval,
		CaptureFPS:   cfg.Host.CaptureFPS,
		Logger:       logger.Component("bridge"),
		Metrics:      metrics,
	})
	if err := host.Start(); err != nil {
		return err
	}
	defer func() {
		if err := host.Stop(); err != nil {
			logger.Warn("Host stop failed", zap.Error(err))
		}
	}()

	rewriter, err := surface.NewSchemeRewriter(cfg.Surface.AssetScheme, cfg.Surface.ContentRoot, cfg.Surface.AssetAllow)
	if err != nil {
		return err
	}

	manager := app.NewManager(host, surface.FromConfig(cfg), cfg.Host.FrameRate).
		WithRewriter(rewriter).
		WithLogger(logger.Component("app")).
		WithMetrics(metrics)

	if err := spawnInitial(cfg, manager, logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Inspector.Enabled {
		opts := inspector.FromConfig(cfg, manager)
		opts.Metrics = metrics
		opts.Gatherer = reg
		opts.Logger = logger.Component("inspector")
		srv := inspector.NewServer(opts)

		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("Inspector stopped", zap.Error(err))
				stop()
			}
		}()
	}

	logger.Info("viewhost running",
		zap.Int("views", len(manager.List())),
		zap.Bool("inspector", cfg.Inspector.Enabled),
	)

	// Frame loop on this goroutine; returns after releasing every surface.
	err = manager.Run(ctx)
	logger.Info("Shutting down gracefully...")
	return err
}

// spawnInitial creates the manifest views, or one "main" view without a
// manifest.
func spawnInitial(cfg *config.Config, manager *app.Manager, logger *logging.Logger) error {
	if cfg.Host.Manifest == "" {
		_, err := manager.Spawn("main", app.LayerHUD, manager.Base())
		return err
	}

	m, err := manifest.Load(cfg.Host.Manifest)
	if err != nil {
		return err
	}
	for _, v := range m.Views {
		if _, err := manager.Spawn(v.Name, app.Layer(v.Layer), v.Surface(manager.Base())); err != nil {
			return err
		}
	}
	logger.Info("Manifest loaded", zap.String("path", cfg.Host.Manifest), zap.Int("views", len(m.Views)))
	return nil
}
