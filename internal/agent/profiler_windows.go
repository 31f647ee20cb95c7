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
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/models"
)

// uninstallHive identifies one registry location holding uninstall entries.
type uninstallHive struct {
	root registry.Key
	path string
}

// Both registry views are scanned so 32-bit programs on 64-bit Windows are
// not missed, plus the per-user hive for user-scoped installs.
var uninstallHives = []uninstallHive{
	{registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
	{registry.LOCAL_MACHINE, `SOFTWARE\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
	{registry.CURRENT_USER, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
}

// SystemProfiler collects the host inventory from the Windows registry and
// the process snapshot API.
type SystemProfiler struct{}

func NewSystemProfiler() *SystemProfiler {
	return &SystemProfiler{}
}

// Collect builds a fresh inventory snapshot.
func (p *SystemProfiler) Collect(ctx context.Context) (*models.SystemProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	programs := p.collectPrograms()
	processes, err := p.collectProcesses()
	if err != nil {
		return nil, fmt.Errorf("collect processes: %w", err)
	}

	logger.L.WithField("programs", len(programs)).WithField("processes", len(processes)).Debug("Inventory collected")
	return &models.SystemProfile{
		InstalledPrograms: programs,
		RunningProcesses:  processes,
	}, nil
}

func (p *SystemProfiler) collectPrograms() []models.InstalledProgram {
	var programs []models.InstalledProgram
	seen := make(map[string]bool)

	for _, hive := range uninstallHives {
		key, err := registry.OpenKey(hive.root, hive.path, registry.READ)
		if err != nil {
			// The Wow6432Node view does not exist on 32-bit hosts.
			continue
		}

		names, err := key.ReadSubKeyNames(-1)
		if err != nil {
			key.Close()
			continue
		}

		for _, name := range names {
			sub, err := registry.OpenKey(hive.root, hive.path+`\`+name, registry.READ)
			if err != nil {
				continue
			}

			displayName, _, err := sub.GetStringValue("DisplayName")
			if err != nil || strings.TrimSpace(displayName) == "" {
				sub.Close()
				continue
			}

			// System components are registry bookkeeping, not programs the
			// user can see or uninstall.
			if sysComponent, _, err := sub.GetIntegerValue("SystemComponent"); err == nil && sysComponent == 1 {
				sub.Close()
				continue
			}

			if seen[strings.ToLower(displayName)] {
				sub.Close()
				continue
			}
			seen[strings.ToLower(displayName)] = true

			version, _, _ := sub.GetStringValue("DisplayVersion")
			publisher, _, _ := sub.GetStringValue("Publisher")
			location, _, _ := sub.GetStringValue("InstallLocation")

			programs = append(programs, models.InstalledProgram{
				Name:            displayName,
				Version:         version,
				Publisher:       publisher,
				InstallLocation: location,
			})
			sub.Close()
		}
		key.Close()
	}
	return programs
}

func (p *SystemProfiler) collectProcesses() ([]models.RunningProcess, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("create process snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var processes []models.RunningProcess
	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, fmt.Errorf("read first process: %w", err)
	}

	for {
		name := windows.UTF16ToString(entry.ExeFile[:])
		if name != "" {
			processes = append(processes, models.RunningProcess{
				Name: name,
				PID:  int(entry.ProcessID),
			})
		}

		if err := windows.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}
	return processes, nil
}
