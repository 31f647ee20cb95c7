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

// Package matcher implements the rule-based decision procedure that
// determines whether an observed program corresponds to a known-threat
// record.
//
// The rules run in a fixed priority order and the first hit wins. The
// length floors and ratio guards are not cosmetic: they are what keeps a
// short generic root like "go" or a single common keyword like "security"
// from flagging unrelated legitimate software. Loosening them measurably
// raises the false-positive rate.
package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bloathound/bloathound/internal/core/normalizer"
	"github.com/bloathound/bloathound/internal/core/protection"
	"github.com/bloathound/bloathound/pkg/models"
)

const (
	// minGenericLen is the floor below which a generic name is too short
	// for substring matching.
	minGenericLen = 5
	// substringRatio is the minimum share of the observed name a generic
	// root must cover for a non-prefix substring hit.
	substringRatio = 0.5
	// minKeywordLen is the floor for brand keywords.
	minKeywordLen = 4
	// minAltNameLen is the floor for alternative names.
	minAltNameLen = 5
	// minProcessCoreLen and processCoreRatio guard the partial
	// process-name rule.
	minProcessCoreLen = 5
	processCoreRatio  = 0.4
	// minPublisherLen guards the last-resort publisher-assisted rule.
	minPublisherLen = 4
)

// NoMatchReason is returned when no rule fires.
const NoMatchReason = "no match found"

// Match decides whether the observed program corresponds to the threat
// record, returning the verdict and a human-auditable reason naming the
// rule that fired. The caller must have already confirmed that the
// observed program is not protected.
func Match(observedName, observedPublisher string, record *models.ThreatRecord) (bool, string) {
	observed := observedName
	if strings.TrimSpace(observed) == "" {
		return false, NoMatchReason
	}
	observedLower := strings.ToLower(observed)
	genericLower := strings.ToLower(strings.TrimSpace(record.GenericName))

	// Rule 1: exact match against the canonical or generic name.
	if strings.EqualFold(observed, record.ProgramName) ||
		(genericLower != "" && observedLower == genericLower) {
		return true, "exact match"
	}

	// Rule 2: significant substring match on the generic root. A prefix
	// hit catches versioned and suffixed variants of the same root; a
	// mid-string hit additionally needs the root to cover at least half
	// of the observed name.
	if len(genericLower) >= minGenericLen {
		if strings.HasPrefix(observedLower, genericLower) {
			return true, "significant substring match"
		}
		if strings.Contains(observedLower, genericLower) &&
			float64(len(genericLower))/float64(len(observedLower)) >= substringRatio {
			return true, "significant substring match"
		}
	}

	// Rule 3: normalized exact match.
	normObserved := normalizer.Normalize(observed)
	if normObserved != "" && normObserved == normalizer.Normalize(record.ProgramName) {
		return true, "normalized exact match"
	}

	// Rule 4: brand-keyword match.
	if matched, total := countKeywordMatches(observed, record.BrandKeywords); matched > 0 {
		if matched >= 2 || (matched == 1 && total == 1) {
			return true, fmt.Sprintf("brand keyword match: %d keywords matched", matched)
		}
	}

	// Rule 5: alternative-name match.
	for _, alt := range record.AlternativeNames {
		alt = strings.TrimSpace(alt)
		if len(alt) < minAltNameLen {
			continue
		}
		if strings.EqualFold(observed, alt) {
			return true, "alternative name exact match"
		}
		if normObserved != "" && normObserved == normalizer.Normalize(alt) {
			return true, "alternative name exact match"
		}
	}

	// Rule 6: process-name match.
	for _, proc := range record.SplitProcessNames() {
		if observedLower == proc {
			return true, "process name exact/core match"
		}
		if len(proc) >= minProcessCoreLen && strings.Contains(observedLower, proc) &&
			float64(len(proc))/float64(len(observedLower)) >= processCoreRatio {
			return true, "process name exact/core match"
		}
	}

	// Rule 7: publisher-assisted match. Publisher names alone are far too
	// common, so the generic root must also be present.
	publisher := strings.TrimSpace(record.Publisher)
	if len(publisher) >= minPublisherLen && len(genericLower) >= minKeywordLen {
		if wordBoundaryMatch(observed, publisher) && strings.Contains(observedLower, genericLower) {
			return true, "publisher + generic name match"
		}
	}

	return false, NoMatchReason
}

// countKeywordMatches counts the record's valid brand keywords that occur
// as whole words in the observed name. A keyword is valid when it is at
// least minKeywordLen long and is not a protected vendor brand word; the
// latter exclusion is a data-hygiene safeguard against knowledge-base
// poisoning. Returns matched count and valid keyword total.
func countKeywordMatches(observed string, keywords []string) (matched, total int) {
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if len(kw) < minKeywordLen || protection.IsProtectedBrandWord(kw) {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		total++
		if wordBoundaryMatch(observed, kw) {
			matched++
		}
	}
	return matched, total
}

// wordBoundaryMatch reports a case-insensitive whole-word occurrence of
// needle in haystack. regexp's \b only knows ASCII word characters, which
// would make Hangul keywords unmatchable, so the boundary is spelled out
// as any non-letter, non-digit, non-underscore rune or the string edge.
func wordBoundaryMatch(haystack, needle string) bool {
	re, err := regexp.Compile(`(?i)(^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(needle) + `($|[^\p{L}\p{N}_])`)
	if err != nil {
		return false
	}
	return re.MatchString(haystack)
}
