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

// Package agent implements the host-side companion process. It collects
// the installed-program and running-process inventory and executes removal
// commands on behalf of the daemon, over a small WebSocket protocol.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/models"
)

// Profiler collects inventory snapshots from the host.
type Profiler interface {
	Collect(ctx context.Context) (*models.SystemProfile, error)
}

// Executor performs the privileged removal operations on the host.
type Executor interface {
	StandardUninstall(ctx context.Context, programName string) (models.ExecutionResult, error)
	OpenGuidedUI(ctx context.Context, programName string) (models.ExecutionResult, error)
	ForceRemove(ctx context.Context, programName, installPath, publisher string) (models.ExecutionResult, error)
	TerminateProcess(ctx context.Context, pid int) (models.ExecutionResult, error)
}

type request struct {
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

type response struct {
	OK     bool        `json:"ok"`
	Error  string      `json:"error,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

type programArgs struct {
	ProgramName string `json:"program_name"`
	InstallPath string `json:"install_path,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
}

type pidArgs struct {
	PID int `json:"pid"`
}

// Server serves the agent protocol on a WebSocket endpoint.
type Server struct {
	addr     string
	profiler Profiler
	executor Executor

	upgrader websocket.Upgrader
	server   *http.Server
}

// NewServer creates an agent server listening on addr.
func NewServer(addr string, profiler Profiler, executor Executor) *Server {
	return &Server{
		addr:     addr,
		profiler: profiler,
		executor: executor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP handler serving the agent protocol endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/agent", s.handleConn)
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		logger.L.WithField("addr", s.addr).Info("Agent server starting")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.WithError(err).Error("Agent server failed")
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L.WithError(err).Warn("Agent connection upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.L.WithError(err).Debug("Agent connection closed")
			}
			return
		}

		resp := s.dispatch(r.Context(), req)
		if err := conn.WriteJSON(resp); err != nil {
			logger.L.WithError(err).Warn("Failed to write agent response")
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	logger.L.WithField("action", req.Action).Debug("Agent request received")

	switch req.Action {
	case "get_inventory":
		profile, err := s.profiler.Collect(ctx)
		if err != nil {
			return errResponse(err)
		}
		return response{OK: true, Result: profile}

	case "standard_uninstall":
		var args programArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return errResponse(fmt.Errorf("invalid args: %w", err))
		}
		return execResponse(s.executor.StandardUninstall(ctx, args.ProgramName))

	case "open_guided_ui":
		var args programArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return errResponse(fmt.Errorf("invalid args: %w", err))
		}
		return execResponse(s.executor.OpenGuidedUI(ctx, args.ProgramName))

	case "force_remove":
		var args programArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return errResponse(fmt.Errorf("invalid args: %w", err))
		}
		return execResponse(s.executor.ForceRemove(ctx, args.ProgramName, args.InstallPath, args.Publisher))

	case "terminate_process":
		var args pidArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return errResponse(fmt.Errorf("invalid args: %w", err))
		}
		return execResponse(s.executor.TerminateProcess(ctx, args.PID))

	default:
		return errResponse(fmt.Errorf("unknown action %q", req.Action))
	}
}

func execResponse(result models.ExecutionResult, err error) response {
	if err != nil {
		return errResponse(err)
	}
	return response{OK: true, Result: result}
}

func errResponse(err error) response {
	return response{OK: false, Error: err.Error()}
}
