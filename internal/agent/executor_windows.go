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

//go:build windows

package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/bloathound/bloathound/internal/core/protection"
	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/models"
)

// removableRoots are the directory prefixes force removal is allowed to
// touch. Anything outside them is refused.
var removableRoots = []string{
	`C:\Program Files`,
	`C:\Program Files (x86)`,
	`C:\ProgramData`,
}

// RemovalExecutor runs uninstall commands and performs forced cleanup on
// the host. With DryRun set it logs every action and changes nothing.
type RemovalExecutor struct {
	DryRun bool
}

func NewRemovalExecutor(dryRun bool) *RemovalExecutor {
	return &RemovalExecutor{DryRun: dryRun}
}

// uninstallEntry is the registry information needed to remove a program.
type uninstallEntry struct {
	hive            uninstallHive
	keyName         string
	uninstallString string
	installLocation string
	publisher       string
}

// findUninstallEntry locates the registry uninstall entry whose DisplayName
// matches programName exactly, case-insensitively.
func findUninstallEntry(programName string) (*uninstallEntry, error) {
	target := strings.ToLower(strings.TrimSpace(programName))

	for _, hive := range uninstallHives {
		key, err := registry.OpenKey(hive.root, hive.path, registry.READ)
		if err != nil {
			continue
		}

		names, err := key.ReadSubKeyNames(-1)
		key.Close()
		if err != nil {
			continue
		}

		for _, name := range names {
			sub, err := registry.OpenKey(hive.root, hive.path+`\`+name, registry.READ)
			if err != nil {
				continue
			}
			displayName, _, _ := sub.GetStringValue("DisplayName")
			if strings.ToLower(strings.TrimSpace(displayName)) != target {
				sub.Close()
				continue
			}

			entry := &uninstallEntry{hive: hive, keyName: name}
			entry.uninstallString, _, _ = sub.GetStringValue("UninstallString")
			if quiet, _, err := sub.GetStringValue("QuietUninstallString"); err == nil && quiet != "" {
				entry.uninstallString = quiet
			}
			entry.installLocation, _, _ = sub.GetStringValue("InstallLocation")
			entry.publisher, _, _ = sub.GetStringValue("Publisher")
			sub.Close()
			return entry, nil
		}
	}
	return nil, models.ErrNoRemovalInfo
}

// StandardUninstall runs the registered uninstall command for the program.
func (e *RemovalExecutor) StandardUninstall(ctx context.Context, programName string) (models.ExecutionResult, error) {
	entry, err := findUninstallEntry(programName)
	if err != nil {
		return models.ExecutionResult{}, err
	}
	if entry.uninstallString == "" {
		return models.ExecutionResult{}, models.ErrNoRemovalInfo
	}

	cmd := buildUninstallCommand(entry.uninstallString)
	if e.DryRun {
		logger.L.WithField("command", cmd).Info("Dry run: standard uninstall skipped")
		return models.ExecutionResult{Status: string(models.StatusSuccess), Message: "dry run"}, nil
	}

	logger.L.WithField("program", programName).Info("Running standard uninstall")
	out, err := exec.CommandContext(ctx, "cmd", "/C", cmd).CombinedOutput()
	if err != nil {
		return models.ExecutionResult{
			Status:  string(models.StatusFailure),
			Message: fmt.Sprintf("uninstall command failed: %v: %s", err, truncate(string(out), 200)),
		}, nil
	}
	return models.ExecutionResult{Status: string(models.StatusSuccess)}, nil
}

// OpenGuidedUI opens the Windows apps settings page so the user can finish
// the uninstall interactively.
func (e *RemovalExecutor) OpenGuidedUI(ctx context.Context, programName string) (models.ExecutionResult, error) {
	if e.DryRun {
		logger.L.WithField("program", programName).Info("Dry run: guided UI not opened")
		return models.ExecutionResult{Status: string(models.StatusSuccess), Message: "dry run"}, nil
	}

	if err := exec.CommandContext(ctx, "cmd", "/C", "start", "ms-settings:appsfeatures").Run(); err != nil {
		return models.ExecutionResult{
			Status:  string(models.StatusFailure),
			Message: fmt.Sprintf("failed to open settings UI: %v", err),
		}, nil
	}
	return models.ExecutionResult{Status: string(models.StatusSuccess)}, nil
}

// ForceRemove deletes the program's install directory and its registry
// uninstall entry directly. Protected programs and paths outside the known
// install roots are refused.
func (e *RemovalExecutor) ForceRemove(ctx context.Context, programName, installPath, publisher string) (models.ExecutionResult, error) {
	if protection.IsProtected(programName, publisher) {
		return models.ExecutionResult{}, models.ErrProtectedTarget
	}

	entry, err := findUninstallEntry(programName)
	if err != nil && installPath == "" {
		return models.ExecutionResult{}, err
	}
	if entry != nil {
		if installPath == "" {
			installPath = entry.installLocation
		}
		if protection.IsProtected(programName, entry.publisher) {
			return models.ExecutionResult{}, models.ErrProtectedTarget
		}
	}

	cleaned := 0

	if installPath != "" {
		if !isRemovablePath(installPath) {
			return models.ExecutionResult{
				Status:  string(models.StatusFailure),
				Message: fmt.Sprintf("install path %q is outside the removable roots", installPath),
			}, nil
		}
		if e.DryRun {
			logger.L.WithField("path", installPath).Info("Dry run: directory not removed")
			cleaned++
		} else if err := os.RemoveAll(installPath); err != nil {
			logger.L.WithError(err).WithField("path", installPath).Warn("Failed to remove install directory")
		} else {
			cleaned++
		}
	}

	if entry != nil {
		if e.DryRun {
			logger.L.WithField("key", entry.keyName).Info("Dry run: registry entry not removed")
			cleaned++
		} else if err := registry.DeleteKey(entry.hive.root, entry.hive.path+`\`+entry.keyName); err != nil {
			logger.L.WithError(err).WithField("key", entry.keyName).Warn("Failed to remove registry entry")
		} else {
			cleaned++
		}
	}

	if cleaned == 0 {
		return models.ExecutionResult{
			Status:  string(models.StatusFailure),
			Message: "nothing could be removed",
		}, nil
	}
	return models.ExecutionResult{
		Status:         string(models.StatusSuccess),
		CleanedEntries: cleaned,
	}, nil
}

// isRemovablePath reports whether path lies under one of the removable
// roots. The root itself is never removable.
func isRemovablePath(path string) bool {
	clean := filepath.Clean(path)
	for _, root := range removableRoots {
		rel, err := filepath.Rel(root, clean)
		if err != nil {
			continue
		}
		if rel != "." && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// TerminateProcess kills the process with the given PID.
func (e *RemovalExecutor) TerminateProcess(ctx context.Context, pid int) (models.ExecutionResult, error) {
	if pid <= 0 {
		return models.ExecutionResult{
			Status:  string(models.StatusFailure),
			Message: fmt.Sprintf("invalid pid %d", pid),
		}, nil
	}
	if e.DryRun {
		logger.L.WithField("pid", pid).Info("Dry run: process not terminated")
		return models.ExecutionResult{Status: string(models.StatusSuccess), Message: "dry run"}, nil
	}

	out, err := exec.CommandContext(ctx, "taskkill", "/PID", fmt.Sprint(pid), "/T", "/F").CombinedOutput()
	if err != nil {
		return models.ExecutionResult{
			Status:  string(models.StatusFailure),
			Message: fmt.Sprintf("taskkill failed: %v: %s", err, truncate(string(out), 200)),
		}, nil
	}
	return models.ExecutionResult{Status: string(models.StatusSuccess)}, nil
}

