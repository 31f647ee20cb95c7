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

// Package scanner wires the inventory source, the threat store and the
// analyzer into the scan service, and runs the optional background scan.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bloathound/bloathound/internal/core/analyzer"
	"github.com/bloathound/bloathound/internal/core/session"
	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/metrics"
	"github.com/bloathound/bloathound/pkg/models"
)

// InventorySource supplies fresh host inventory snapshots.
type InventorySource interface {
	GetInventory(ctx context.Context) (*models.SystemProfile, error)
}

// ThreatSource supplies the threat knowledge base and per-user ignore
// lists.
type ThreatSource interface {
	GetAllThreats(ctx context.Context) ([]models.ThreatRecord, error)
	GetIgnoreList(ctx context.Context, user string) ([]string, error)
}

// Notifier receives scan summaries. A nil notifier disables notification.
type Notifier interface {
	NotifyScan(ctx context.Context, findings []models.ThreatFinding)
}

// Scanner is the scan service. It is safe for concurrent use; concurrent
// scans against the same host serialize on scanMu so the agent never runs
// two inventory collections at once.
type Scanner struct {
	cfg       models.ScannerConfig
	inventory InventorySource
	threats   ThreatSource
	cache     *session.Cache
	collector *metrics.Collector
	notifier  Notifier

	scanMu sync.Mutex
	ticker *time.Ticker

	mu           sync.RWMutex
	lastFindings []models.ThreatFinding
	lastScan     time.Time
}

// New creates a scan service over the given collaborators.
func New(cfg models.ScannerConfig, inventory InventorySource, threats ThreatSource, cache *session.Cache, collector *metrics.Collector, notifier Notifier) *Scanner {
	return &Scanner{
		cfg:       cfg,
		inventory: inventory,
		threats:   threats,
		cache:     cache,
		collector: collector,
		notifier:  notifier,
	}
}

// Scan runs one full scan cycle for the session: fresh inventory, threat
// analysis, session cache update. The returned findings are sorted by risk
// score, highest first. A non-positive riskThreshold falls back to the
// configured default.
func (s *Scanner) Scan(ctx context.Context, sessionID, user string, riskThreshold int) ([]models.ThreatFinding, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if riskThreshold <= 0 {
		riskThreshold = s.cfg.EffectiveRiskThreshold()
	}
	if user == "" {
		user = s.cfg.DefaultUser
	}

	start := time.Now()
	logger.L.WithFields(logrus.Fields{
		"session":        sessionID,
		"risk_threshold": riskThreshold,
	}).Info("Starting scan")

	profile, err := s.inventory.GetInventory(ctx)
	if err != nil {
		s.collector.RecordScanError()
		return nil, fmt.Errorf("collect inventory: %w", err)
	}
	s.collector.RecordScanStart(len(profile.InstalledPrograms) + len(profile.RunningProcesses))

	threatDB, err := s.threats.GetAllThreats(ctx)
	if err != nil {
		s.collector.RecordScanError()
		return nil, fmt.Errorf("load threat records: %w", err)
	}

	ignoreList, err := s.threats.GetIgnoreList(ctx, user)
	if err != nil {
		// A missing ignore list must not block the scan.
		logger.L.WithError(err).WithField("user", user).Warn("Failed to load ignore list, scanning without it")
		ignoreList = nil
	}

	findings := analyzer.Analyze(profile, threatDB, ignoreList, riskThreshold)

	s.cache.StoreScan(sessionID, findings)
	s.collector.RecordScanComplete(findings)
	s.collector.SetActiveSessions(s.cache.Sessions())

	s.mu.Lock()
	s.lastFindings = findings
	s.lastScan = time.Now()
	s.mu.Unlock()

	logger.L.WithFields(logrus.Fields{
		"session":  sessionID,
		"findings": len(findings),
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("Scan complete")

	if s.notifier != nil && len(findings) > 0 {
		s.notifier.NotifyScan(ctx, findings)
	}
	return findings, nil
}

// UpdateConfig applies a reloaded configuration. Only the scanner settings
// take effect at runtime; server ports need a restart. A running periodic
// loop picks up the new scan interval immediately.
func (s *Scanner) UpdateConfig(cfg *models.Config) {
	s.scanMu.Lock()
	s.cfg = cfg.Scanner
	if s.ticker != nil {
		if interval := cfg.Scanner.ScanInterval(); interval > 0 {
			s.ticker.Reset(interval)
		}
	}
	s.scanMu.Unlock()

	if cfg.Scanner.LogLevel != "" {
		logger.SetLevel(cfg.Scanner.LogLevel)
	}
	logger.L.Info("Scanner configuration updated")
}

// LastFindings returns the findings of the most recent completed scan and
// when it finished.
func (s *Scanner) LastFindings() ([]models.ThreatFinding, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	findings := make([]models.ThreatFinding, len(s.lastFindings))
	copy(findings, s.lastFindings)
	return findings, s.lastScan
}

// RunLoop runs periodic background scans until the context is cancelled.
// It does nothing when no scan interval is configured.
func (s *Scanner) RunLoop(ctx context.Context) {
	s.scanMu.Lock()
	interval := s.cfg.ScanInterval()
	if interval <= 0 {
		s.scanMu.Unlock()
		logger.L.Info("Periodic scan disabled")
		return
	}
	ticker := time.NewTicker(interval)
	s.ticker = ticker
	s.scanMu.Unlock()
	defer ticker.Stop()

	logger.L.WithField("interval", interval.String()).Info("Periodic scan started")
	for {
		select {
		case <-ctx.Done():
			logger.L.Info("Periodic scan stopped")
			return
		case <-ticker.C:
			// Scan resolves the default user and threshold under scanMu.
			if _, err := s.Scan(ctx, backgroundSessionID, "", 0); err != nil {
				logger.L.WithError(err).Error("Periodic scan failed")
			}
		}
	}
}

// backgroundSessionID is the fixed session the periodic scan writes its
// contexts under. Interactive sessions use their own generated IDs.
const backgroundSessionID = "background"
