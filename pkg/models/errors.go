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

package models

import "errors"

var (
	// ErrAgentUnavailable indicates the host agent is unreachable or timed
	// out. It aborts the whole request with no partial results.
	ErrAgentUnavailable = errors.New("host agent unavailable")

	// ErrMalformedRequest indicates an unparsable request payload. Nothing
	// is mutated.
	ErrMalformedRequest = errors.New("malformed request payload")

	// ErrNoRemovalInfo indicates no uninstall information exists for a
	// program. The item is routed to manual handling, not a hard failure.
	ErrNoRemovalInfo = errors.New("no removal information found")

	// ErrStillPresent indicates an action reported success but the program
	// survived the post-removal check.
	ErrStillPresent = errors.New("program still present after removal")

	// ErrProtectedTarget indicates the protection filter vetoed an action.
	// Never retried and never escalated to a more destructive phase.
	ErrProtectedTarget = errors.New("target is protected")

	// ErrContextMissing indicates re-verification was requested but the
	// cached match context has expired or was never stored.
	ErrContextMissing = errors.New("match context not found for session")
)
