package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"custanalytics/config"
	"custanalytics/db"
	qhttp "custanalytics/http"
	"custanalytics/logging"
	"custanalytics/ml"
	"custanalytics/monitoring"
	"custanalytics/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// 1. Load config
	path := *configPath
	if path == "" {
		path = config.Find()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", path, err)
	}

	// 2. Logger
	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 3. Models
	registry, watched, err := loadModels(cfg)
	if err != nil {
		logger.Fatal("failed to load models", zap.Error(err))
	}
	for _, task := range ml.Tasks() {
		logger.Info("model loaded", zap.String("task", string(task)), zap.String("kind", registry.Kind(task)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Models.Watch {
		watcher, err := monitoring.NewArtifactWatcher(logger, watched...)
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			go watcher.Run(ctx)
		}
	}

	// 4. HTTP server
	var validator *pipeline.Validator
	if cfg.Validation.StrictSchema {
		validator = pipeline.NewValidator(ml.DefaultSchema())
	}
	metrics := monitoring.NewMetricsCollector()
	var alerts *monitoring.AlertSystem
	if cfg.Alerts.FailureRatio > 0 {
		alerts = monitoring.NewAlertSystem(monitoring.AlertConfig{
			FailureRatio: cfg.Alerts.FailureRatio,
			MinRequests:  cfg.Alerts.MinRequests,
			Interval:     cfg.Alerts.Interval,
			Cooldown:     cfg.Alerts.Cooldown,
			Webhook:      cfg.Alerts.Webhook,
		}, metrics, logger)
		go alerts.Run(ctx)
	}

	api, err := qhttp.NewAPI(qhttp.Options{
		Registry:       registry,
		Normalizer:     pipeline.NewNormalizer(ml.DefaultSchema(), validator),
		Results:        qhttp.NewResultStore(cfg.Results.CacheSize, cfg.Results.TTL),
		Metrics:        metrics,
		Alerts:         alerts,
		Logger:         logger,
		MaxUploadBytes: cfg.Http.MaxUploadBytes,
	})
	if err != nil {
		logger.Fatal("failed to build api", zap.Error(err))
	}

	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		MaxUploadBytes: cfg.Http.MaxUploadBytes,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, api, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}
	if err := server.Stop(context.Background()); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}

// loadModels reads the three artifacts from the bundle when one is configured,
// otherwise from the individual files, and returns the paths worth watching.
func loadModels(cfg *config.Config) (*ml.Registry, []string, error) {
	if cfg.Models.Bundle != "" {
		bundle, err := db.OpenBundle(cfg.Models.Bundle)
		if err != nil {
			return nil, nil, err
		}
		defer bundle.Close()
		registry, err := ml.LoadRegistry(bundle)
		return registry, []string{cfg.Models.Bundle}, err
	}

	paths := cfg.ModelPaths()
	registry, err := ml.LoadRegistry(paths)
	watched := make([]string, 0, len(paths))
	for _, task := range ml.Tasks() {
		watched = append(watched, paths[task])
	}
	return registry, watched, err
}
