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

// Package agentclient talks to the host agent over WebSocket. The agent
// runs on the target machine and performs the privileged work: inventory
// collection, process termination, uninstaller execution. The daemon only
// ever sees the agent through this client.
package agentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/models"
)

const defaultRequestTimeout = 2 * time.Minute

// Request is one command sent to the agent.
type Request struct {
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Response is the agent's reply to a single request.
type Response struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Client is a WebSocket client for the host agent. Each call dials a
// fresh connection; the command channel is low-frequency and a stateless
// round trip keeps failure handling simple.
type Client struct {
	address string
	timeout time.Duration
}

// NewClient creates a client from the agent configuration.
func NewClient(cfg models.AgentConfig) *Client {
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		address: cfg.Address,
		timeout: timeout,
	}
}

func (c *Client) roundTrip(ctx context.Context, action string, args interface{}, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.address, nil)
	if err != nil {
		logger.L.WithError(err).WithField("address", c.address).Warn("Agent dial failed")
		return fmt.Errorf("%w: %v", models.ErrAgentUnavailable, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	req := Request{Action: action}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode %s args: %w", action, err)
		}
		req.Args = raw
	}

	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%w: send %s: %v", models.ErrAgentUnavailable, action, err)
	}

	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("%w: read %s reply: %v", models.ErrAgentUnavailable, action, err)
	}

	if !resp.OK {
		return fmt.Errorf("agent %s failed: %s", action, resp.Error)
	}

	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", action, err)
		}
	}
	return nil
}

// GetInventory collects a fresh system profile from the agent.
func (c *Client) GetInventory(ctx context.Context) (*models.SystemProfile, error) {
	var profile models.SystemProfile
	if err := c.roundTrip(ctx, "get_inventory", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

type programArgs struct {
	ProgramName string `json:"program_name"`
	InstallPath string `json:"install_path,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
}

type pidArgs struct {
	PID int `json:"pid"`
}

// AttemptStandardUninstall runs the program's registered uninstall command.
func (c *Client) AttemptStandardUninstall(ctx context.Context, programName string) (models.ExecutionResult, error) {
	var result models.ExecutionResult
	err := c.roundTrip(ctx, "standard_uninstall", programArgs{ProgramName: programName}, &result)
	if err != nil {
		return models.ExecutionResult{}, translateExecError(err)
	}
	return result, nil
}

// OpenGuidedUI opens the host uninstall UI focused on the program.
func (c *Client) OpenGuidedUI(ctx context.Context, programName string) (models.ExecutionResult, error) {
	var result models.ExecutionResult
	if err := c.roundTrip(ctx, "open_guided_ui", programArgs{ProgramName: programName}, &result); err != nil {
		return models.ExecutionResult{}, err
	}
	return result, nil
}

// ForceRemove deletes the program's files and registration directly.
func (c *Client) ForceRemove(ctx context.Context, programName, installPath, publisher string) (models.ExecutionResult, error) {
	var result models.ExecutionResult
	args := programArgs{ProgramName: programName, InstallPath: installPath, Publisher: publisher}
	if err := c.roundTrip(ctx, "force_remove", args, &result); err != nil {
		return models.ExecutionResult{}, translateExecError(err)
	}
	return result, nil
}

// TerminateProcess kills the process with the given PID on the host.
func (c *Client) TerminateProcess(ctx context.Context, pid int) (models.ExecutionResult, error) {
	var result models.ExecutionResult
	if err := c.roundTrip(ctx, "terminate_process", pidArgs{PID: pid}, &result); err != nil {
		return models.ExecutionResult{}, err
	}
	return result, nil
}

// translateExecError maps agent-reported sentinel messages back onto the
// sentinel errors the removal orchestrator branches on.
func translateExecError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, models.ErrNoRemovalInfo.Error()):
		return models.ErrNoRemovalInfo
	case strings.Contains(msg, models.ErrProtectedTarget.Error()):
		return models.ErrProtectedTarget
	}
	return err
}
