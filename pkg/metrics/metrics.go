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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scanner status metrics
	ScannerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bloathound_scanner_running",
		Help: "Indicates whether a scan is currently running (1 for running, 0 for idle)",
	})

	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bloathound_scan_duration_seconds",
		Help:    "Time taken to complete a single scan",
		Buckets: prometheus.DefBuckets,
	})

	ScanTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloathound_scan_total",
		Help: "Total number of scans performed",
	})

	ScanErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloathound_scan_errors_total",
		Help: "Total number of scan errors",
	})

	// Detection metrics
	FindingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloathound_findings_total",
		Help: "Total number of bloatware findings reported",
	})

	FindingsByMethod = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloathound_findings_by_method",
		Help: "Number of findings by the matching rule that fired",
	}, []string{"method"})

	InventoryEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloathound_inventory_entries_total",
		Help: "Total number of inventory entries analyzed",
	})

	// Removal metrics
	RemovalAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloathound_removal_attempts_total",
		Help: "Number of removal attempts by phase",
	}, []string{"phase"})

	RemovalOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloathound_removal_outcomes_total",
		Help: "Removal outcomes by phase and status",
	}, []string{"phase", "status"})

	// Session cache metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bloathound_active_sessions",
		Help: "Number of sessions with cached scan contexts",
	})

	// Notification metrics
	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloathound_notifications_sent_total",
		Help: "Total number of notifications sent",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloathound_notifications_failed_total",
		Help: "Total number of failed notification attempts",
	})
)
