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

//go:build !windows

package agent

import (
	"context"
	"errors"

	"github.com/bloathound/bloathound/pkg/models"
)

var errUnsupportedPlatform = errors.New("host agent requires windows")

// SystemProfiler is a placeholder on non-Windows platforms; the inventory
// lives in the registry and the process snapshot API.
type SystemProfiler struct{}

func NewSystemProfiler() *SystemProfiler {
	return &SystemProfiler{}
}

func (p *SystemProfiler) Collect(ctx context.Context) (*models.SystemProfile, error) {
	return nil, errUnsupportedPlatform
}

// RemovalExecutor is a placeholder on non-Windows platforms.
type RemovalExecutor struct {
	DryRun bool
}

func NewRemovalExecutor(dryRun bool) *RemovalExecutor {
	return &RemovalExecutor{DryRun: dryRun}
}

func (e *RemovalExecutor) StandardUninstall(ctx context.Context, programName string) (models.ExecutionResult, error) {
	return models.ExecutionResult{}, errUnsupportedPlatform
}

func (e *RemovalExecutor) OpenGuidedUI(ctx context.Context, programName string) (models.ExecutionResult, error) {
	return models.ExecutionResult{}, errUnsupportedPlatform
}

func (e *RemovalExecutor) ForceRemove(ctx context.Context, programName, installPath, publisher string) (models.ExecutionResult, error) {
	return models.ExecutionResult{}, errUnsupportedPlatform
}

func (e *RemovalExecutor) TerminateProcess(ctx context.Context, pid int) (models.ExecutionResult, error) {
	return models.ExecutionResult{}, errUnsupportedPlatform
}
