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

package agent

import (
	"regexp"
	"strings"
)

// msiInstallRe matches msiexec install invocations so they can be rewritten
// into uninstall invocations.
var msiInstallRe = regexp.MustCompile(`(?i)msiexec(\.exe)?("?)\s+/i`)

// buildUninstallCommand rewrites the registered uninstall string into a
// silent invocation. msiexec install commands become uninstall commands and
// get the quiet flag; other commands run as registered.
func buildUninstallCommand(uninstallString string) string {
	cmd := strings.TrimSpace(uninstallString)
	if cmd == "" {
		return ""
	}

	if msiInstallRe.MatchString(cmd) {
		cmd = msiInstallRe.ReplaceAllString(cmd, `msiexec$1$2 /X`)
	}
	if strings.Contains(strings.ToLower(cmd), "msiexec") && !strings.Contains(strings.ToLower(cmd), "/qn") {
		cmd += " /qn /norestart"
	}
	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
