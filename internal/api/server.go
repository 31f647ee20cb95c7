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

// Package api provides the read-only HTTP API of the daemon.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bloathound/bloathound/pkg/logger"
)

// Server serves the read-only HTTP endpoints.
type Server struct {
	handler    *Handler
	httpServer *http.Server
	port       int
}

// NewServer creates the API server.
func NewServer(provider FindingsProvider, stats StatsProvider, port int) *Server {
	handler := NewHandler(provider, stats)
	mux := http.NewServeMux()

	mux.HandleFunc("/api/findings", handler.GetFindingsHandler)
	mux.HandleFunc("/api/stats", handler.GetStatsHandler)
	mux.HandleFunc("/health", handler.HealthHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Server{
		handler:    handler,
		httpServer: httpServer,
		port:       port,
	}
}

// Start launches the server and confirms it came up.
func (s *Server) Start(ctx context.Context) error {
	logger.L.WithFields(logrus.Fields{
		"port": s.port,
		"endpoints": []string{
			"/api/findings",
			"/api/stats",
			"/health",
		},
	}).Info("Starting API server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start API server: %w", err)
	case <-time.After(100 * time.Millisecond):
		logger.L.WithField("port", s.port).Info("API server started successfully")
		return nil
	}
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	logger.L.Info("Stopping API server")
	return s.httpServer.Shutdown(ctx)
}
