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

package masking

import (
	"regexp"
	"strings"
)

// MaskReason masks every occurrence of the record's own program name and
// generic root inside its free-text reason, so knowledge-base listings do
// not spell out the software they describe. The underlying record is left
// untouched.
func MaskReason(reason, programName, genericName string) string {
	if reason == "" {
		return reason
	}

	if programName != "" {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(programName))
		if err == nil {
			reason = re.ReplaceAllStringFunc(reason, Mask)
		}
	}

	// The generic root is a bare word; mask it only as a whole word so a
	// fragment inside an unrelated longer word survives.
	if genericName != "" && !strings.EqualFold(genericName, programName) {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(genericName) + `\b`)
		if err == nil {
			reason = re.ReplaceAllStringFunc(reason, Mask)
		}
	}

	return reason
}
