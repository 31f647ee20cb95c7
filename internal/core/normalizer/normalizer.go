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

// Package normalizer canonicalizes raw program names for comparison.
// Vendors ship the same product as "Delfino-x64", "Delfino (32비트)" or
// "Delfino v2.1"; all of them normalize to "delfino".
package normalizer

import (
	"regexp"
	"strings"
)

var (
	// Trailing version tokens. The digits need a 'v' prefix or at least
	// one dot so that architecture digits like the 64 in "x64" survive
	// until the architecture pass.
	versionSuffix = regexp.MustCompile(`[\s\-_.]*\(?v\d+(\.\d+)*\)?\s*$`)
	dottedSuffix  = regexp.MustCompile(`[\s\-_]*\d+(\.\d+)+\s*$`)
	yearSuffix    = regexp.MustCompile(`\s+(19|20)\d{2}\s*$`)

	// Architecture and bitness markers, optionally parenthesized.
	// 비트 is the localized bit-width word in the Korean program names
	// the knowledge base targets.
	archMarker = regexp.MustCompile(`\(?\s*(x86|x64|32\s*bit|64\s*bit|32\s*비트|64\s*비트)\s*\)?`)

	// Generic suite and tier words that vary across editions of the same
	// product. Longer alternatives come first so they win at the same
	// position.
	suiteWord = regexp.MustCompile(`\b(internet security|professional|antivirus|security|suite|trial|lite|free|pro)\b`)

	parenthesized = regexp.MustCompile(`\([^)]*\)`)
	nonWord       = regexp.MustCompile(`[^\w\p{Hangul}]+`)
	spaces        = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes a raw program name: lowercases it, strips
// version, architecture, suite and parenthesized decorations, and
// collapses everything that is not a word character or a Hangul letter
// into single spaces. Every step is best effort; empty input yields
// empty output.
func Normalize(raw string) string {
	name := strings.ToLower(raw)

	name = versionSuffix.ReplaceAllString(name, "")
	name = dottedSuffix.ReplaceAllString(name, "")
	name = yearSuffix.ReplaceAllString(name, "")
	name = archMarker.ReplaceAllString(name, " ")
	name = suiteWord.ReplaceAllString(name, " ")
	name = parenthesized.ReplaceAllString(name, " ")
	name = nonWord.ReplaceAllString(name, " ")
	name = spaces.ReplaceAllString(name, " ")

	return strings.TrimSpace(name)
}
