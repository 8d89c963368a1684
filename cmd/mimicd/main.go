package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"mimic/internal/config"
	"mimic/internal/jobs"
	"mimic/internal/logging"
	"mimic/internal/pipeline"
	"mimic/internal/preflight"
	"mimic/internal/profiles"
	"mimic/internal/vram"
	"mimic/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configPath, usedDefaults, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "mimicd.log")},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if usedDefaults {
		logger.Info("no config file found, using defaults")
	} else {
		logger.Info("config loaded", logging.String("path", configPath))
	}

	// One daemon per host; the worker holds a separate per-device lock.
	instanceLock := flock.New(filepath.Join(cfg.Paths.LogDir, "mimicd.lock"))
	held, err := instanceLock.TryLock()
	if err != nil {
		logger.Error("acquire instance lock", logging.Error(err))
		os.Exit(1)
	}
	if !held {
		logger.Error("another mimicd instance is already running")
		os.Exit(1)
	}
	defer instanceLock.Unlock() //nolint:errcheck

	if failed := preflight.Failures(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
		for _, result := range failed {
			logger.Error("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldEventType, "preflight_failed"),
			)
		}
		os.Exit(1)
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		if status.Available {
			continue
		}
		if status.Optional {
			logger.Warn("optional dependency unavailable",
				logging.String("dependency", status.Name),
				logging.String("detail", status.Detail),
			)
			continue
		}
		logger.Error("required dependency unavailable",
			logging.String("dependency", status.Name),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, "install the binary or adjust the configured command"),
		)
		os.Exit(1)
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close() //nolint:errcheck

	if reset, err := store.ResetStuckRunning(ctx); err != nil {
		logger.Error("reset stuck jobs", logging.Error(err))
		os.Exit(1)
	} else if reset > 0 {
		logger.Info("returned interrupted jobs to the queue", logging.Int64("count", reset))
	}

	prober := vram.Detect(ctx, cfg.VRAM.SMIBinary, cfg.VRAM.DeviceID)
	var manager *vram.Manager
	if prober != nil {
		manager = vram.NewManager(prober, cfg.VRAM.DeviceID, cfg.VRAM.SafetyMarginMB, logger)
	} else {
		manager = vram.NewManager(nil, cfg.VRAM.DeviceID, cfg.VRAM.SafetyMarginMB, logger)
		logger.Info("no accelerator detected, running in CPU mode")
	}
	manager.LogStatus(ctx)

	profileStore, err := profiles.NewStore(cfg.VoicesDir(), logger)
	if err != nil {
		logger.Error("open profile store", logging.Error(err))
		os.Exit(1)
	}

	clients := buildClients(cfg)
	coordinator := pipeline.New(cfg, manager, profileStore, clients, logger)
	metrics := worker.NewMetrics()
	processor := worker.NewProcessor(cfg, coordinator, profileStore, clients, logger)
	drainWorker := worker.New(cfg, store, processor, manager, metrics, logger)

	var metricsServer *http.Server
	if bind := cfg.Worker.MetricsBind; bind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: bind, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", logging.String("bind", bind))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint failed", logging.Error(err))
			}
		}()
	}

	if err := drainWorker.Start(ctx); err != nil {
		logger.Error("start worker", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("mimicd shutting down")
	drainWorker.Stop()
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}
