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

// Package session keeps per-session match contexts alive between a scan
// and the follow-up cleanup or re-verification. Contexts are written once
// per scan, read during cleanup, and must be evicted when the session
// ends; long-lived sessions otherwise accumulate without bound.
package session

import (
	"strings"
	"sync"

	"github.com/bloathound/bloathound/pkg/models"
)

// Cache is a concurrency-safe store of match contexts keyed by session ID
// and lowercase program name.
type Cache struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*models.MatchContext
}

// NewCache creates an empty session cache.
func NewCache() *Cache {
	return &Cache{
		sessions: make(map[string]map[string]*models.MatchContext),
	}
}

// StoreScan replaces the session's cached contexts with the contexts of a
// fresh scan result.
func (c *Cache) StoreScan(sessionID string, findings []models.ThreatFinding) {
	contexts := make(map[string]*models.MatchContext, len(findings))
	for i := range findings {
		if findings[i].Context == nil {
			continue
		}
		contexts[strings.ToLower(findings[i].Name)] = findings[i].Context
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = contexts
}

// Lookup returns the cached context for a program within a session, or
// false when the session or program is unknown.
func (c *Cache) Lookup(sessionID, programName string) (*models.MatchContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	contexts, ok := c.sessions[sessionID]
	if !ok {
		return nil, false
	}
	ctx, ok := contexts[strings.ToLower(programName)]
	return ctx, ok
}

// Evict removes every context belonging to the session. Called when the
// session ends.
func (c *Cache) Evict(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

// Sessions returns the number of sessions currently cached.
func (c *Cache) Sessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
