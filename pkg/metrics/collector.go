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
	"time"

	"github.com/bloathound/bloathound/pkg/models"
)

// Collector aggregates metric updates for the scan and removal workflow.
type Collector struct {
	scanStart time.Time
}

func NewCollector() *Collector {
	return &Collector{}
}

// RecordScanStart marks the beginning of a scan.
func (c *Collector) RecordScanStart(inventorySize int) {
	c.scanStart = time.Now()
	ScannerRunning.Set(1)
	ScanTotal.Inc()
	InventoryEntriesTotal.Add(float64(inventorySize))
}

// RecordScanComplete marks a finished scan and reports its findings.
func (c *Collector) RecordScanComplete(findings []models.ThreatFinding) {
	ScannerRunning.Set(0)
	if !c.scanStart.IsZero() {
		ScanDurationSeconds.Observe(time.Since(c.scanStart).Seconds())
	}
	FindingsTotal.Add(float64(len(findings)))
	for _, f := range findings {
		FindingsByMethod.WithLabelValues(f.DetectionMethod).Inc()
	}
}

// RecordScanError marks a scan that failed before completion.
func (c *Collector) RecordScanError() {
	ScannerRunning.Set(0)
	ScanErrorsTotal.Inc()
}

// RecordRemoval reports the outcome of a single removal attempt.
func (c *Collector) RecordRemoval(phase models.RemovalPhase, status models.RemovalStatus) {
	RemovalAttemptsTotal.WithLabelValues(string(phase)).Inc()
	RemovalOutcomes.WithLabelValues(string(phase), string(status)).Inc()
}

// RecordNotification reports a notification delivery attempt.
func (c *Collector) RecordNotification(err error) {
	if err != nil {
		NotificationsFailedTotal.Inc()
		return
	}
	NotificationsSentTotal.Inc()
}

// SetActiveSessions updates the session cache gauge.
func (c *Collector) SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}
