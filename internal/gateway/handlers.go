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

package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bloathound/bloathound/internal/core/masking"
	"github.com/bloathound/bloathound/internal/core/protection"
	"github.com/bloathound/bloathound/internal/core/removal"
	"github.com/bloathound/bloathound/internal/report"
	"github.com/bloathound/bloathound/pkg/models"
)

type scanArgs struct {
	RiskThreshold int    `json:"risk_threshold,omitempty"`
	User          string `json:"user,omitempty"`
	Language      string `json:"language,omitempty"`
}

func (c *conn) handleScan(ctx context.Context, raw json.RawMessage) {
	var args scanArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			c.fail("malformed scan args: %v", err)
			return
		}
	}
	if args.User != "" {
		c.user = args.User
	}
	if args.Language != "" {
		c.language = args.Language
	}

	c.emit("progress", map[string]string{"stage": "collecting_inventory"})

	findings, err := c.srv.scanner.Scan(ctx, c.sessionID, c.user, args.RiskThreshold)
	if err != nil {
		c.fail("scan failed: %v", err)
		return
	}

	// A new scan starts a new cleanup cycle.
	c.batch = nil
	c.records = nil

	c.emit("scan_result", map[string]interface{}{
		"session_id": c.sessionID,
		"findings":   findings,
	})
}

type cleanArgs struct {
	Targets []removal.Item `json:"targets"`
}

// phaseEvents maps each phase to its completion event name.
var phaseEvents = map[models.RemovalPhase]string{
	models.PhaseStandard: "phase_a_complete",
	models.PhaseGuidedUI: "phase_b_complete",
	models.PhaseForced:   "phase_c_complete",
}

func (c *conn) handlePhaseClean(ctx context.Context, raw json.RawMessage, phase models.RemovalPhase) {
	if phase == models.PhaseStandard {
		var args cleanArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			c.fail("malformed clean args: %v", err)
			return
		}
		if len(args.Targets) == 0 {
			c.fail("no removal targets given")
			return
		}
		for i := range args.Targets {
			if args.Targets[i].Name == "" {
				c.fail("removal target %d has no name", i)
				return
			}
		}
		c.batch = removal.NewBatch(c.srv.orch, args.Targets)
	}

	if c.batch == nil {
		c.fail("no removal batch in progress, run phase_a_clean first")
		return
	}
	if c.batch.NextPhase() != phase {
		c.fail("removal batch is at %s, not %s", c.batch.NextPhase(), phase)
		return
	}

	c.emit("progress", map[string]string{"stage": "removing", "phase": string(phase)})
	records, done := c.batch.Advance(ctx)

	for _, r := range records {
		c.srv.collector.RecordRemoval(r.Phase, r.Status)
	}
	c.records = records

	c.emit(phaseEvents[phase], map[string]interface{}{
		"records": records,
		"done":    done,
	})
}

func (c *conn) handleCheckRemovalStatus(ctx context.Context) {
	if c.batch == nil {
		c.fail("no removal batch in progress")
		return
	}

	records, done := c.batch.CheckStatus(ctx)
	c.records = records
	c.emit("removal_status", map[string]interface{}{
		"records": records,
		"done":    done,
	})
}

type verifyArgs struct {
	ProgramName string `json:"program_name"`
}

func (c *conn) handleVerifyRemoval(ctx context.Context, raw json.RawMessage) {
	var args verifyArgs
	if err := json.Unmarshal(raw, &args); err != nil || args.ProgramName == "" {
		c.fail("malformed verify args")
		return
	}

	matchCtx, ok := c.srv.cache.Lookup(c.sessionID, args.ProgramName)
	if !ok {
		c.fail("no scan context for %q in this session", masking.Mask(args.ProgramName))
		return
	}

	removed, err := c.srv.orch.Verify(ctx, args.ProgramName, matchCtx)
	if err != nil {
		c.fail("verification failed: %v", err)
		return
	}

	c.emit("removal_verification", map[string]interface{}{
		"program_name": masking.Mask(args.ProgramName),
		"removed":      removed,
	})
}

// dbEntry is one threat record as shown to the client: reason text masked,
// ignore-list membership annotated.
type dbEntry struct {
	ProgramName string `json:"program_name"`
	GenericName string `json:"generic_name,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	RiskScore   int    `json:"risk_score"`
	Reason      string `json:"reason,omitempty"`
	Ignored     bool   `json:"ignored"`
}

func (c *conn) handleViewDB(ctx context.Context) {
	threats, err := c.srv.store.GetAllThreats(ctx)
	if err != nil {
		c.fail("failed to load threat records: %v", err)
		return
	}
	ignoreList, err := c.srv.store.GetIgnoreList(ctx, c.user)
	if err != nil {
		c.fail("failed to load ignore list: %v", err)
		return
	}

	ignored := make(map[string]bool, len(ignoreList))
	for _, item := range ignoreList {
		ignored[strings.ToLower(item)] = true
	}

	entries := make([]dbEntry, 0, len(threats))
	for _, t := range threats {
		entries = append(entries, dbEntry{
			ProgramName: t.ProgramName,
			GenericName: t.GenericName,
			Publisher:   t.Publisher,
			RiskScore:   t.RiskScore,
			Reason:      masking.MaskReason(t.Reason, t.ProgramName, t.GenericName),
			Ignored:     ignored[strings.ToLower(t.ProgramName)],
		})
	}

	c.emit("db_list", map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

type ignoreListArgs struct {
	Items []string `json:"items"`
}

func (c *conn) handleSaveIgnoreList(ctx context.Context, raw json.RawMessage) {
	var args ignoreListArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		c.fail("malformed ignore list args: %v", err)
		return
	}

	if err := c.srv.store.SaveIgnoreList(ctx, c.user, args.Items); err != nil {
		c.fail("failed to save ignore list: %v", err)
		return
	}
	c.emit("ignore_list_saved", map[string]int{"count": len(args.Items)})
}

type ignoreItemArgs struct {
	Item string `json:"item"`
}

func (c *conn) handleAddIgnore(ctx context.Context, raw json.RawMessage) {
	var args ignoreItemArgs
	if err := json.Unmarshal(raw, &args); err != nil || strings.TrimSpace(args.Item) == "" {
		c.fail("malformed ignore item args")
		return
	}

	if err := c.srv.store.AddToIgnoreList(ctx, c.user, args.Item); err != nil {
		c.fail("failed to add ignore item: %v", err)
		return
	}
	c.emit("ignore_list_updated", map[string]string{"added": args.Item})
}

func (c *conn) handleRemoveIgnore(ctx context.Context, raw json.RawMessage) {
	var args ignoreItemArgs
	if err := json.Unmarshal(raw, &args); err != nil || strings.TrimSpace(args.Item) == "" {
		c.fail("malformed ignore item args")
		return
	}

	if err := c.srv.store.RemoveFromIgnoreList(ctx, c.user, args.Item); err != nil {
		c.fail("failed to remove ignore item: %v", err)
		return
	}
	c.emit("ignore_list_updated", map[string]string{"removed": args.Item})
}

func (c *conn) handleAddThreat(ctx context.Context, raw json.RawMessage) {
	var record models.ThreatRecord
	if err := json.Unmarshal(raw, &record); err != nil || strings.TrimSpace(record.ProgramName) == "" {
		c.fail("malformed threat record")
		return
	}

	// User submissions naming core system software are rejected outright;
	// a poisoned record here would turn the remover against the OS.
	if protection.ContainsBlockedKeyword(record.ProgramName) {
		c.fail("%q names protected system software and cannot be added", record.ProgramName)
		return
	}

	if err := c.srv.store.UpsertThreats(ctx, []models.ThreatRecord{record}); err != nil {
		c.fail("failed to save threat record: %v", err)
		return
	}
	c.emit("db_updated", map[string]string{"program_name": record.ProgramName})
}

type reportArgs struct {
	Language string `json:"language,omitempty"`
}

func (c *conn) handleFinalReport(ctx context.Context, raw json.RawMessage) {
	var args reportArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			c.fail("malformed report args: %v", err)
			return
		}
	}
	language := args.Language
	if language == "" {
		language = c.language
	}

	summary := report.Summarize(c.records)
	text := report.Render(ctx, c.srv.generator, summary, language)

	c.emit("report_generated", map[string]interface{}{
		"summary": summary,
		"text":    text,
	})
}
