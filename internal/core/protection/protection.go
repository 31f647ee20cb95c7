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

// Package protection decides whether a program or process is a protected
// system component that must never be flagged or removed. The check runs
// before any matching and short-circuits everything downstream: protecting
// the OS outweighs catching a rare bloatware posing as a protected vendor.
package protection

import (
	"regexp"
	"strings"
)

// protectedPublishers is the fixed allowlist of major OS and hardware
// vendors. Matching is case-insensitive substring, so "Microsoft
// Corporation" and "Microsoft Corp." both hit the "microsoft" entry.
var protectedPublishers = []string{
	"microsoft",
	"nvidia",
	"intel corporation",
	"advanced micro devices",
	"amd",
	"google",
	"samsung",
	"apple",
	"realtek",
	"qualcomm",
}

// protectedNamePatterns covers core OS security tooling, common runtimes,
// redistributables and driver or graphics control panel components.
var protectedNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.net\s+(framework|runtime|desktop runtime)`),
	regexp.MustCompile(`(?i)visual\s+c\+\+.*redistributable`),
	regexp.MustCompile(`(?i)microsoft\s+(edge|defender|update|office|store)`),
	regexp.MustCompile(`(?i)windows\s+(defender|security|sdk|driver|update)`),
	regexp.MustCompile(`(?i)nvidia\s+(geforce|graphics|control panel|driver|physx|cuda)`),
	regexp.MustCompile(`(?i)intel(\(r\))?\s+(graphics|management engine|chipset|driver)`),
	regexp.MustCompile(`(?i)amd\s+(software|radeon|chipset|catalyst)`),
	regexp.MustCompile(`(?i)realtek\s+(audio|high definition|ethernet|driver)`),
	regexp.MustCompile(`(?i)\bjava\s+\d+\s+update\b`),
	regexp.MustCompile(`(?i)^(svchost|explorer|wininit|winlogon|lsass|services|smss|csrss)\.exe$`),
	regexp.MustCompile(`(?i)directx`),
	regexp.MustCompile(`(?i)vulkan\s+run\s*time`),
}

// protectedBrandWords are vendor brand tokens that may never contribute to
// a brand-keyword match, even when a poisoned knowledge-base record lists
// them. Exported for the matcher.
var protectedBrandWords = map[string]struct{}{
	"microsoft": {},
	"windows":   {},
	"nvidia":    {},
	"intel":     {},
	"amd":       {},
	"google":    {},
	"samsung":   {},
	"apple":     {},
	"realtek":   {},
}

// IsProtected reports whether the observed program must not be touched,
// either because its publisher is on the vendor allowlist or because its
// name matches a protected component pattern.
func IsProtected(name, publisher string) bool {
	pub := strings.ToLower(strings.TrimSpace(publisher))
	if pub != "" {
		for _, p := range protectedPublishers {
			if pub == p || strings.Contains(pub, p) {
				return true
			}
		}
	}

	for _, re := range protectedNamePatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// IsProtectedBrandWord reports whether a keyword is one of the vendor
// brand tokens excluded from brand-keyword matching.
func IsProtectedBrandWord(keyword string) bool {
	_, ok := protectedBrandWords[strings.ToLower(keyword)]
	return ok
}

// blockedSubmissionKeywords stops operator submissions that name core OS
// components from ever entering the knowledge base.
var blockedSubmissionKeywords = []string{
	"system32", "windows", "explorer.exe", "svchost.exe", "wininit.exe",
	"lsass.exe", "services.exe", "smss.exe", "csrss.exe", "winlogon.exe",
	"drivers", "config", "microsoft", "nvidia", "intel", "amd", "google",
	"system volume information", "$recycle.bin", "pagefile.sys", "hiberfil.sys",
}

// ContainsBlockedKeyword reports whether a submitted program name
// contains any keyword that bars it from being added to the knowledge
// base.
func ContainsBlockedKeyword(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range blockedSubmissionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
