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

// Package gateway is the WebSocket command surface of the daemon. Each
// client connection gets its own session; scan results are cached per
// session so later removal and verification commands can reuse the match
// evidence without rescanning.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/bloathound/bloathound/internal/core/removal"
	"github.com/bloathound/bloathound/internal/core/session"
	"github.com/bloathound/bloathound/internal/report"
	"github.com/bloathound/bloathound/internal/scanner"
	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/metrics"
	"github.com/bloathound/bloathound/pkg/models"
)

// command is one inbound client frame.
type command struct {
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// event is one outbound server frame.
type event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Store is the threat store surface the gateway needs.
type Store interface {
	GetAllThreats(ctx context.Context) ([]models.ThreatRecord, error)
	UpsertThreats(ctx context.Context, records []models.ThreatRecord) error
	GetIgnoreList(ctx context.Context, user string) ([]string, error)
	SaveIgnoreList(ctx context.Context, user string, items []string) error
	AddToIgnoreList(ctx context.Context, user, item string) error
	RemoveFromIgnoreList(ctx context.Context, user, item string) error
}

// Server accepts client connections and dispatches their commands.
type Server struct {
	cfg       models.GatewayConfig
	scanner   *scanner.Scanner
	store     Store
	cache     *session.Cache
	orch      *removal.Orchestrator
	collector *metrics.Collector
	generator report.Generator
	user      string

	upgrader websocket.Upgrader
	server   *http.Server
}

// NewServer builds the gateway over the given collaborators. generator may
// be nil; the template fallback then renders final reports.
func NewServer(cfg models.GatewayConfig, sc *scanner.Scanner, st Store, cache *session.Cache, orch *removal.Orchestrator, collector *metrics.Collector, generator report.Generator, defaultUser string) *Server {
	return &Server{
		cfg:       cfg,
		scanner:   sc,
		store:     st,
		cache:     cache,
		orch:      orch,
		collector: collector,
		generator: generator,
		user:      defaultUser,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			// The gateway serves local UI clients.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving the gateway endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleConn)
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.Handler(),
	}

	go func() {
		logger.L.WithField("addr", s.server.Addr).Info("Gateway starting")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.WithError(err).Error("Gateway failed")
		}
	}()
	return nil
}

// Stop gracefully shuts the gateway down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// conn is the per-connection state. Commands on one connection are handled
// sequentially, so fields need no locking beyond the write mutex that
// protects the socket itself.
type conn struct {
	srv       *Server
	ws        *websocket.Conn
	sessionID string
	user      string
	language  string

	writeMu sync.Mutex

	// batch is the in-progress removal state machine, if any.
	batch *removal.Batch
	// records accumulates removal outcomes across the cycle for the
	// final report.
	records []models.RemovalRecord
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L.WithError(err).Warn("Gateway upgrade failed")
		return
	}

	c := &conn{
		srv:       s,
		ws:        ws,
		sessionID: uuid.NewString(),
		user:      s.user,
		language:  "en",
	}
	defer c.close()

	logger.L.WithField("session", c.sessionID).Info("Client connected")
	c.emit("connected", map[string]string{"session_id": c.sessionID})

	for {
		var cmd command
		if err := ws.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.L.WithError(err).WithField("session", c.sessionID).Debug("Client connection closed")
			}
			return
		}
		c.dispatch(r.Context(), cmd)
	}
}

func (c *conn) close() {
	c.srv.cache.Evict(c.sessionID)
	c.srv.collector.SetActiveSessions(c.srv.cache.Sessions())
	c.ws.Close()
	logger.L.WithField("session", c.sessionID).Info("Client disconnected")
}

// emit writes one event frame to the client.
func (c *conn) emit(eventType string, data interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(event{Type: eventType, Data: data}); err != nil {
		logger.L.WithError(err).WithField("session", c.sessionID).Warn("Failed to emit event")
	}
}

// fail reports a command failure to the client. Failed commands never
// mutate session or store state.
func (c *conn) fail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.L.WithField("session", c.sessionID).Warn(msg)
	c.emit("error", map[string]string{"message": msg})
}

func (c *conn) dispatch(ctx context.Context, cmd command) {
	logger.L.WithFields(logrus.Fields{
		"session": c.sessionID,
		"command": cmd.Command,
	}).Debug("Command received")

	switch cmd.Command {
	case "scan":
		c.handleScan(ctx, cmd.Args)
	case "phase_a_clean":
		c.handlePhaseClean(ctx, cmd.Args, models.PhaseStandard)
	case "phase_b_clean":
		c.handlePhaseClean(ctx, cmd.Args, models.PhaseGuidedUI)
	case "phase_c_clean":
		c.handlePhaseClean(ctx, cmd.Args, models.PhaseForced)
	case "check_removal_status":
		c.handleCheckRemovalStatus(ctx)
	case "verify_removal":
		c.handleVerifyRemoval(ctx, cmd.Args)
	case "view_db":
		c.handleViewDB(ctx)
	case "save_ignore_list":
		c.handleSaveIgnoreList(ctx, cmd.Args)
	case "add_ignore":
		c.handleAddIgnore(ctx, cmd.Args)
	case "remove_ignore":
		c.handleRemoveIgnore(ctx, cmd.Args)
	case "add_threat":
		c.handleAddThreat(ctx, cmd.Args)
	case "final_report":
		c.handleFinalReport(ctx, cmd.Args)
	default:
		c.fail("unknown command %q", cmd.Command)
	}
}
