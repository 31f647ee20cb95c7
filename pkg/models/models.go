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

// Package models defines the shared data types exchanged between the
// scanner core, the threat store, the host agent and the gateway.
package models

import (
	"strings"
	"time"
)

// ProgramType distinguishes the two kinds of inventory entries.
type ProgramType string

const (
	ProgramTypeInstalled ProgramType = "installed_program"
	ProgramTypeProcess   ProgramType = "running_process"
)

// ThreatRecord is one known-bad software signature from the knowledge base.
// Records are produced by the offline enrichment pipeline and are read-only
// from the scanner's perspective. All optional fields default to empty; a
// missing field is never an error.
type ThreatRecord struct {
	ProgramName      string   `json:"program_name" yaml:"program_name"`
	GenericName      string   `json:"generic_name,omitempty" yaml:"generic_name"`
	Publisher        string   `json:"publisher,omitempty" yaml:"publisher"`
	RiskScore        int      `json:"risk_score" yaml:"risk_score"`
	Reason           string   `json:"reason,omitempty" yaml:"reason"`
	BrandKeywords    []string `json:"brand_keywords,omitempty" yaml:"brand_keywords"`
	AlternativeNames []string `json:"alternative_names,omitempty" yaml:"alternative_names"`
	// ProcessNames holds likely executable names as a single delimited
	// string, splittable on ',', ';' or '|'.
	ProcessNames string `json:"process_names,omitempty" yaml:"process_names"`
}

// SplitProcessNames returns the trimmed, lowercased entries of the
// delimited ProcessNames field.
func (t *ThreatRecord) SplitProcessNames() []string {
	if t.ProcessNames == "" {
		return nil
	}
	fields := strings.FieldsFunc(t.ProcessNames, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			names = append(names, f)
		}
	}
	return names
}

// InstalledProgram is one installed-software record observed on the host.
type InstalledProgram struct {
	Name            string `json:"name"`
	Version         string `json:"version,omitempty"`
	Publisher       string `json:"publisher,omitempty"`
	InstallLocation string `json:"install_location,omitempty"`
}

// RunningProcess is one running-process record observed on the host.
type RunningProcess struct {
	Name     string `json:"name"`
	PID      int    `json:"pid"`
	Path     string `json:"path,omitempty"`
	Username string `json:"username,omitempty"`
}

// SystemProfile is one inventory snapshot of the scanned host. It is
// regenerated on every scan request and never persisted.
type SystemProfile struct {
	InstalledPrograms []InstalledProgram `json:"installed_programs"`
	RunningProcesses  []RunningProcess   `json:"running_processes"`
}

// MatchedFields snapshots the record fields the matcher actually used, so
// a later re-verification can repeat the same decision against a fresh
// inventory even if the stored record has changed since.
type MatchedFields struct {
	ObservedName  string   `json:"observed_name"`
	DBName        string   `json:"db_name"`
	GenericName   string   `json:"generic_name,omitempty"`
	ProcessNames  []string `json:"process_names,omitempty"`
	BrandKeywords []string `json:"brand_keywords,omitempty"`
}

// MatchContext is the retained evidence behind one finding. It lives in the
// session cache for the duration of one scan/cleanup cycle.
type MatchContext struct {
	MatchedThreat ThreatRecord  `json:"matched_threat"`
	ProgramType   ProgramType   `json:"program_type"`
	Fields        MatchedFields `json:"matched_fields"`
}

// ThreatFinding is the analyzer's output for one flagged program.
type ThreatFinding struct {
	Name            string        `json:"name"`
	MaskedName      string        `json:"masked_name"`
	Reason          string        `json:"reason"`
	RiskScore       int           `json:"risk_score"`
	Path            string        `json:"path,omitempty"`
	PID             int           `json:"pid,omitempty"`
	DetectionMethod string        `json:"detection_method"`
	Context         *MatchContext `json:"-"`
}

// RemovalPhase enumerates the escalating removal strategies.
type RemovalPhase string

const (
	PhasePending   RemovalPhase = "pending"
	PhaseStandard  RemovalPhase = "phase_a"
	PhaseGuidedUI  RemovalPhase = "phase_b"
	PhaseForced    RemovalPhase = "phase_c"
	PhaseCompleted RemovalPhase = "completed"
)

// RemovalStatus enumerates per-item outcomes of a removal attempt.
type RemovalStatus string

const (
	StatusSuccess        RemovalStatus = "success"
	StatusFailure        RemovalStatus = "failure"
	StatusStillExists    RemovalStatus = "still_exists"
	StatusManualRequired RemovalStatus = "manual_required"
	StatusUIOpened       RemovalStatus = "ui_opened"
)

// RemovalRecord tracks one item's progress through the removal phases.
type RemovalRecord struct {
	Name       string        `json:"name"`
	MaskedName string        `json:"masked_name"`
	Phase      RemovalPhase  `json:"phase"`
	Status     RemovalStatus `json:"status"`
	Message    string        `json:"message,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ExecutionResult is the agent's response to one execution command.
type ExecutionResult struct {
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	CleanedEntries int    `json:"cleaned_entries_count,omitempty"`
}
