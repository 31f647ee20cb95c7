package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/bloathound/bloathound/internal/agent"
	"github.com/bloathound/bloathound/pkg/logger"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8765", "listen address for the agent endpoint")
	logLevel := flag.String("log-level", "info", "log level")
	dryRun := flag.Bool("dry-run", false, "log removal actions instead of executing them")
	flag.Parse()

	logger.SetLevel(*logLevel)
	logger.L.Info("Bloathound agent is starting...")

	profiler := agent.NewSystemProfiler()
	executor := agent.NewRemovalExecutor(*dryRun)
	if *dryRun {
		logger.L.Warn("Dry run enabled, no removal actions will be executed")
	}

	server := agent.NewServer(*addr, profiler, executor)
	if err := server.Start(); err != nil {
		logger.L.Fatalf("Failed to start agent server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	<-ctx.Done()
	if err := server.Stop(context.Background()); err != nil {
		logger.L.WithError(err).Warn("Agent server shutdown failed")
	}
	logger.L.Info("Bloathound agent stopped")
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
