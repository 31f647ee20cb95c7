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

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/models"
)

// FindingsProvider exposes the latest scan result.
type FindingsProvider interface {
	LastFindings() ([]models.ThreatFinding, time.Time)
}

// StatsProvider exposes threat store statistics.
type StatsProvider interface {
	ThreatCount(ctx context.Context) (int64, error)
}

// Handler serves the read-only endpoints.
type Handler struct {
	provider FindingsProvider
	stats    StatsProvider
}

// NewHandler creates the API handler.
func NewHandler(provider FindingsProvider, stats StatsProvider) *Handler {
	return &Handler{
		provider: provider,
		stats:    stats,
	}
}

// GetFindingsHandler returns the findings of the most recent scan. Only
// masked names and detection metadata are exposed.
func (h *Handler) GetFindingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	findings, scannedAt := h.provider.LastFindings()

	type apiFinding struct {
		MaskedName      string `json:"masked_name"`
		Reason          string `json:"reason"`
		RiskScore       int    `json:"risk_score"`
		DetectionMethod string `json:"detection_method"`
	}
	out := make([]apiFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, apiFinding{
			MaskedName:      f.MaskedName,
			Reason:          f.Reason,
			RiskScore:       f.RiskScore,
			DetectionMethod: f.DetectionMethod,
		})
	}

	logger.L.WithFields(logrus.Fields{
		"count":  len(out),
		"remote": r.RemoteAddr,
	}).Info("API: Returning scan findings")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"findings":   out,
		"scanned_at": scannedAt,
	}); err != nil {
		logger.L.WithError(err).Error("Failed to encode scan findings")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// GetStatsHandler returns threat store statistics.
func (h *Handler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := h.stats.ThreatCount(r.Context())
	if err != nil {
		logger.L.WithError(err).Error("Failed to count threat records")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"threat_records": count})
}

// HealthHandler is the liveness endpoint.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
