// Copyright 2025 Bloathound Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bloathound/bloathound/pkg/logger"
)

// Server exposes Prometheus metrics over HTTP.
type Server struct {
	server *http.Server
	port   int
	path   string

	mu      sync.Mutex
	running bool
}

func NewServer(port int, path string) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		port: port,
		path: path,
	}
}

// Start begins serving metrics in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		logger.L.WithField("addr", s.server.Addr).Info("Metrics server starting")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.WithError(err).Error("Metrics server failed")
		}
	}()

	s.running = true
	return nil
}

// StartWithRetry attempts to start the server, retrying on failure.
func (s *Server) StartWithRetry(ctx context.Context, maxRetries int, retryInterval time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := s.Start(); err != nil {
			lastErr = err
			logger.L.WithError(err).WithField("attempt", attempt).Warn("Metrics server start failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryInterval):
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("metrics server failed after %d attempts: %w", maxRetries, lastErr)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	err := s.server.Shutdown(ctx)
	s.running = false
	s.server = nil
	if err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	logger.L.Info("Metrics server stopped")
	return nil
}

// IsRunning reports whether the server is currently serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
