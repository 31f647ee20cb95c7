package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bloathound/bloathound/internal/agentclient"
	"github.com/bloathound/bloathound/internal/api"
	"github.com/bloathound/bloathound/internal/config"
	"github.com/bloathound/bloathound/internal/core/removal"
	"github.com/bloathound/bloathound/internal/core/session"
	"github.com/bloathound/bloathound/internal/gateway"
	"github.com/bloathound/bloathound/internal/notification"
	"github.com/bloathound/bloathound/internal/scanner"
	"github.com/bloathound/bloathound/internal/store"
	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	logger.L.Info("Bloathound is starting...")

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		logger.L.Fatalf("Failed to load initial configuration: %v", err)
	}

	if cfg.Scanner.LogLevel != "" {
		logger.SetLevel(cfg.Scanner.LogLevel)
	}
	logger.L.Info("Initial configuration loaded successfully")

	st, err := store.Open(cfg.Store)
	if err != nil {
		logger.L.Fatalf("Failed to open threat store: %v", err)
	}

	agent := agentclient.NewClient(cfg.Agent)
	cache := session.NewCache()
	collector := metrics.NewCollector()
	notifier := notification.New(cfg.Notifications, collector)

	var scanNotifier scanner.Notifier
	if notifier != nil {
		scanNotifier = notifier
	}
	sc := scanner.New(cfg.Scanner, agent, st, cache, collector, scanNotifier)
	orch := removal.NewOrchestrator(agent, agent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	configWatcher, err := config.NewWatcher(loader, sc.UpdateConfig)
	if err != nil {
		logger.L.WithError(err).Warn("Failed to create configuration watcher, hot-reload will be unavailable")
	} else {
		if err := configWatcher.Start(ctx); err != nil {
			logger.L.WithError(err).Warn("Failed to start configuration watcher, hot-reload will be unavailable")
		} else {
			defer configWatcher.Stop()
		}
	}

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path)
		if err := metricsServer.StartWithRetry(ctx, 3, 5*time.Second); err != nil {
			logger.L.WithError(err).Warn("Metrics server unavailable")
		} else {
			defer metricsServer.Stop(context.Background())
		}
	}

	if cfg.API.Enabled {
		apiServer := api.NewServer(sc, st, cfg.API.Port)
		if err := apiServer.Start(ctx); err != nil {
			logger.L.WithError(err).Warn("API server unavailable")
		} else {
			defer apiServer.Stop(context.Background())
		}
	}

	gw := gateway.NewServer(cfg.Gateway, sc, st, cache, orch, collector, nil, cfg.Scanner.DefaultUser)
	if err := gw.Start(); err != nil {
		logger.L.Fatalf("Failed to start gateway: %v", err)
	}
	defer gw.Stop(context.Background())

	go sc.RunLoop(ctx)

	<-ctx.Done()
	logger.L.Info("Bloathound shutting down")
}

// handleSignals handles OS signals for graceful shutdown
func handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.L.WithFields(logrus.Fields{
		"signal": sig.String(),
	}).Info("Received shutdown signal, preparing graceful shutdown...")
	cancel()
}
