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

// Package analyzer iterates a device inventory against the threat
// knowledge base and produces ranked, deduplicated findings.
package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bloathound/bloathound/internal/core/masking"
	"github.com/bloathound/bloathound/internal/core/matcher"
	"github.com/bloathound/bloathound/internal/core/protection"
	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/models"
)

const defaultReason = "Included in known bloatware/grayware list."

// candidate is one inventory entry flattened for matching. Installed
// programs and running processes are checked with the same logic; a
// program may appear as both and each occurrence is checked
// independently, deduplicated by name.
type candidate struct {
	name        string
	publisher   string
	path        string
	pid         int
	programType models.ProgramType
}

// Analyze compares every inventory entry against the threat knowledge
// base and returns the findings at or above the risk threshold, sorted by
// risk score descending (stable for ties). The ignore list is matched
// case-insensitively against exact observed names.
func Analyze(profile *models.SystemProfile, threatDB []models.ThreatRecord, ignoreList []string, riskThreshold int) []models.ThreatFinding {
	ignoreSet := make(map[string]struct{}, len(ignoreList))
	for _, item := range ignoreList {
		ignoreSet[strings.ToLower(item)] = struct{}{}
	}

	candidates := make([]candidate, 0, len(profile.InstalledPrograms)+len(profile.RunningProcesses))
	for _, p := range profile.InstalledPrograms {
		candidates = append(candidates, candidate{
			name:        p.Name,
			publisher:   p.Publisher,
			path:        p.InstallLocation,
			programType: models.ProgramTypeInstalled,
		})
	}
	for _, p := range profile.RunningProcesses {
		candidates = append(candidates, candidate{
			name:        p.Name,
			path:        p.Path,
			pid:         p.PID,
			programType: models.ProgramTypeProcess,
		})
	}

	alreadyIdentified := make(map[string]struct{})
	var findings []models.ThreatFinding

	for _, c := range candidates {
		nameLower := strings.ToLower(c.name)
		if nameLower == "" {
			continue
		}
		if _, done := alreadyIdentified[nameLower]; done {
			continue
		}
		if _, ignored := ignoreSet[nameLower]; ignored {
			continue
		}
		if protection.IsProtected(c.name, c.publisher) {
			continue
		}

		for i := range threatDB {
			record := &threatDB[i]
			ok, matchReason := matcher.Match(c.name, c.publisher, record)
			if !ok {
				continue
			}

			// First structural match wins, even when it falls below the
			// threshold; a higher-scoring record further down the list
			// does not get a second chance. A zero risk score marks an
			// explicitly protected record and never flags.
			if record.RiskScore > 0 && record.RiskScore >= riskThreshold {
				findings = append(findings, buildFinding(c, record, matchReason))
				alreadyIdentified[nameLower] = struct{}{}
			}
			break
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].RiskScore > findings[j].RiskScore
	})

	logger.L.WithField("count", len(findings)).Info("Threat analysis completed")
	return findings
}

func buildFinding(c candidate, record *models.ThreatRecord, matchReason string) models.ThreatFinding {
	reason := record.Reason
	if reason == "" {
		reason = defaultReason
	}
	if !strings.EqualFold(c.name, record.ProgramName) {
		reason = fmt.Sprintf("Detected as a variant of '%s' (%s)", masking.Mask(record.ProgramName), reason)
	}

	return models.ThreatFinding{
		Name:            c.name,
		MaskedName:      masking.MaskEnhanced(c.name, record.GenericName),
		Reason:          reason,
		RiskScore:       record.RiskScore,
		Path:            c.path,
		PID:             c.pid,
		DetectionMethod: matchReason,
		Context: &models.MatchContext{
			MatchedThreat: *record,
			ProgramType:   c.programType,
			Fields: models.MatchedFields{
				ObservedName:  c.name,
				DBName:        record.ProgramName,
				GenericName:   record.GenericName,
				ProcessNames:  record.SplitProcessNames(),
				BrandKeywords: record.BrandKeywords,
			},
		},
	}
}
