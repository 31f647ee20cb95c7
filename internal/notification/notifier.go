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

// Package notification posts scan summaries to a webhook. Messages carry
// only masked program names; raw names never leave the daemon.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/metrics"
	"github.com/bloathound/bloathound/pkg/models"
)

const (
	requestTimeout = 10 * time.Second
	// maxListedFindings caps the per-message detail lines.
	maxListedFindings = 10
)

// WebhookNotifier sends text messages to a configured webhook URL.
type WebhookNotifier struct {
	webhook   string
	region    string
	client    *http.Client
	collector *metrics.Collector
}

// New creates a notifier. An empty webhook URL yields a nil notifier,
// which callers treat as notification disabled.
func New(cfg models.NotificationConfig, collector *metrics.Collector) *WebhookNotifier {
	if cfg.Webhook == "" {
		return nil
	}
	return &WebhookNotifier{
		webhook:   cfg.Webhook,
		region:    cfg.Region,
		client:    &http.Client{Timeout: requestTimeout},
		collector: collector,
	}
}

type textMessage struct {
	MsgType string      `json:"msg_type"`
	Content textContent `json:"content"`
}

type textContent struct {
	Text string `json:"text"`
}

// NotifyScan posts a summary of the scan findings.
func (n *WebhookNotifier) NotifyScan(ctx context.Context, findings []models.ThreatFinding) {
	if len(findings) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[bloathound] %d suspicious program(s) detected", len(findings))
	if n.region != "" {
		fmt.Fprintf(&b, " (%s)", n.region)
	}
	b.WriteString("\n")

	for i, f := range findings {
		if i >= maxListedFindings {
			fmt.Fprintf(&b, "... and %d more\n", len(findings)-maxListedFindings)
			break
		}
		fmt.Fprintf(&b, "- %s (risk %d, %s)\n", f.MaskedName, f.RiskScore, f.DetectionMethod)
	}

	err := n.post(ctx, b.String())
	if n.collector != nil {
		n.collector.RecordNotification(err)
	}
	if err != nil {
		logger.L.WithError(err).Error("Failed to send scan notification")
	}
}

func (n *WebhookNotifier) post(ctx context.Context, text string) error {
	payload, err := json.Marshal(textMessage{
		MsgType: "text",
		Content: textContent{Text: text},
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}
