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

// Package removal drives flagged programs through the escalating removal
// phases: standard uninstall, guided Settings UI, forced deletion. Each
// phase has its own transition function so the machine can be driven and
// tested state by state without a live host agent.
package removal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bloathound/bloathound/internal/core/masking"
	"github.com/bloathound/bloathound/internal/core/matcher"
	"github.com/bloathound/bloathound/internal/core/protection"
	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/models"
	"github.com/sirupsen/logrus"
)

// Executor is the host-side execution collaborator. Every call is bounded
// by the context; a timeout is a failure, never retried automatically.
type Executor interface {
	AttemptStandardUninstall(ctx context.Context, programName string) (models.ExecutionResult, error)
	OpenGuidedUI(ctx context.Context, programName string) (models.ExecutionResult, error)
	ForceRemove(ctx context.Context, programName, installPath, publisher string) (models.ExecutionResult, error)
	TerminateProcess(ctx context.Context, pid int) (models.ExecutionResult, error)
}

// InventorySource supplies fresh inventory snapshots for post-removal
// checks and re-verification.
type InventorySource interface {
	GetInventory(ctx context.Context) (*models.SystemProfile, error)
}

// Item is one program selected for removal, carried through the phases.
type Item struct {
	Name        string `json:"name"`
	PID         int    `json:"pid,omitempty"`
	InstallPath string `json:"install_path,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
}

// Orchestrator coordinates removal batches against the executor.
type Orchestrator struct {
	executor  Executor
	inventory InventorySource
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(executor Executor, inventory InventorySource) *Orchestrator {
	return &Orchestrator{executor: executor, inventory: inventory}
}

func newRecord(item Item, phase models.RemovalPhase, status models.RemovalStatus, message string) models.RemovalRecord {
	return models.RemovalRecord{
		Name:       item.Name,
		MaskedName: masking.Mask(item.Name),
		Phase:      phase,
		Status:     status,
		Message:    message,
		UpdatedAt:  time.Now(),
	}
}

// RunPhaseA performs the standard uninstall for every item. Running
// processes are terminated first, then the registered uninstall command
// runs, then a fresh inventory confirms the program is actually gone. An
// uninstaller that reports success while leaving the entry in place counts
// as still present. Per-item failures never abort the batch.
func (o *Orchestrator) RunPhaseA(ctx context.Context, items []Item) []models.RemovalRecord {
	records := make([]models.RemovalRecord, 0, len(items))

	for _, item := range items {
		if item.PID > 0 {
			if _, err := o.executor.TerminateProcess(ctx, item.PID); err != nil {
				logger.L.WithFields(logrus.Fields{
					"pid": item.PID,
				}).WithError(err).Warn("Failed to terminate process before uninstall")
			}
		}
	}

	for _, item := range items {
		records = append(records, o.phaseAItem(ctx, item))
	}
	return records
}

func (o *Orchestrator) phaseAItem(ctx context.Context, item Item) models.RemovalRecord {
	result, err := o.executor.AttemptStandardUninstall(ctx, item.Name)
	switch {
	case errors.Is(err, models.ErrNoRemovalInfo):
		// No registered uninstall command at all. Not a hard failure;
		// the item is routed to manual handling.
		return newRecord(item, models.PhaseStandard, models.StatusManualRequired,
			fmt.Sprintf("No uninstall information found for '%s'", masking.Mask(item.Name)))
	case err != nil:
		return newRecord(item, models.PhaseStandard, models.StatusFailure, err.Error())
	case result.Status != string(models.StatusSuccess):
		return newRecord(item, models.PhaseStandard, models.StatusFailure, result.Message)
	}

	stillPresent, err := o.isInstalled(ctx, item.Name)
	if err != nil {
		return newRecord(item, models.PhaseStandard, models.StatusFailure,
			fmt.Sprintf("uninstall finished but post-removal check failed: %v", err))
	}
	if stillPresent {
		return newRecord(item, models.PhaseStandard, models.StatusStillExists,
			fmt.Sprintf("Uninstaller reported success but '%s' is still installed", masking.Mask(item.Name)))
	}

	return newRecord(item, models.PhaseStandard, models.StatusSuccess,
		fmt.Sprintf("Successfully removed '%s'", masking.Mask(item.Name)))
}

// RunPhaseB opens the native uninstall UI pre-filtered for each item. The
// phase cannot confirm removal by itself; every item completes as
// ui_opened and the verdict is deferred to a later re-verification.
func (o *Orchestrator) RunPhaseB(ctx context.Context, items []Item) []models.RemovalRecord {
	records := make([]models.RemovalRecord, 0, len(items))
	for _, item := range items {
		result, err := o.executor.OpenGuidedUI(ctx, item.Name)
		if err != nil {
			records = append(records, newRecord(item, models.PhaseGuidedUI, models.StatusFailure, err.Error()))
			continue
		}
		if result.Status != string(models.StatusUIOpened) && result.Status != string(models.StatusSuccess) {
			records = append(records, newRecord(item, models.PhaseGuidedUI, models.StatusFailure, result.Message))
			continue
		}
		records = append(records, newRecord(item, models.PhaseGuidedUI, models.StatusUIOpened,
			fmt.Sprintf("Uninstall UI opened for '%s'; complete the removal there", masking.MaskForGuide(item.Name))))
	}
	return records
}

// RunPhaseC force-removes each item: terminates related processes,
// deletes the install directory and purges registry traces. The
// protection filter is re-checked immediately before the destructive
// action even though the item already passed it at scan time; state can
// go stale between scan and cleanup. A protected item is a failure that
// is never retried and never escalated further.
func (o *Orchestrator) RunPhaseC(ctx context.Context, items []Item) []models.RemovalRecord {
	records := make([]models.RemovalRecord, 0, len(items))
	for _, item := range items {
		if protection.IsProtected(item.Name, item.Publisher) {
			logger.L.WithField("name", masking.Mask(item.Name)).Warn("Refusing forced removal of protected target")
			records = append(records, newRecord(item, models.PhaseForced, models.StatusFailure,
				models.ErrProtectedTarget.Error()))
			continue
		}

		if item.PID > 0 {
			if _, err := o.executor.TerminateProcess(ctx, item.PID); err != nil {
				logger.L.WithField("pid", item.PID).WithError(err).Warn("Failed to terminate process before forced removal")
			}
		}

		result, err := o.executor.ForceRemove(ctx, item.Name, item.InstallPath, item.Publisher)
		if err != nil {
			records = append(records, newRecord(item, models.PhaseForced, models.StatusFailure, err.Error()))
			continue
		}
		if result.Status != string(models.StatusSuccess) {
			records = append(records, newRecord(item, models.PhaseForced, models.StatusManualRequired, result.Message))
			continue
		}
		records = append(records, newRecord(item, models.PhaseForced, models.StatusSuccess,
			fmt.Sprintf("Forcefully removed '%s' (%d entries cleaned)", masking.Mask(item.Name), result.CleanedEntries)))
	}
	return records
}

// Verify re-runs the original match against a fresh inventory snapshot so
// a renamed or slightly modified survivor is still detected as present.
// The caller supplies the match context captured at scan time; without it
// verification must fail explicitly rather than assume removal succeeded.
func (o *Orchestrator) Verify(ctx context.Context, programName string, matchCtx *models.MatchContext) (removed bool, err error) {
	if matchCtx == nil {
		return false, models.ErrContextMissing
	}

	profile, err := o.inventory.GetInventory(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrAgentUnavailable, err)
	}

	record := matchCtx.MatchedThreat
	for _, p := range profile.InstalledPrograms {
		if strings.EqualFold(p.Name, programName) {
			return false, nil
		}
		if ok, _ := matcher.Match(p.Name, p.Publisher, &record); ok {
			return false, nil
		}
	}
	for _, p := range profile.RunningProcesses {
		if strings.EqualFold(p.Name, programName) {
			return false, nil
		}
		if ok, _ := matcher.Match(p.Name, "", &record); ok {
			return false, nil
		}
	}
	return true, nil
}

func (o *Orchestrator) isInstalled(ctx context.Context, programName string) (bool, error) {
	profile, err := o.inventory.GetInventory(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range profile.InstalledPrograms {
		if strings.EqualFold(p.Name, programName) {
			return true, nil
		}
	}
	return false, nil
}
