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

// Package masking obfuscates program names for user-visible and logged
// output so shared logs do not leak exact software identities. Masking is
// display-only: it runs after all matching decisions and must never feed
// back into them.
package masking

import (
	"math/rand"
	"strings"
	"unicode"
)

const (
	// DefaultRatio is the fraction of a token's interior characters that
	// gets masked.
	DefaultRatio = 0.5
	// GuideRatio is the lighter ratio for step-by-step removal guides,
	// where the user must still recognize the program.
	GuideRatio = 0.35
	// CoreRatio is the heavier ratio applied to the generic root inside
	// a name when it is known.
	CoreRatio = 0.8
)

// Mask obfuscates a name at the default ratio.
func Mask(name string) string {
	return maskWithRatio(name, DefaultRatio)
}

// MaskForGuide obfuscates a name at the lighter guide ratio.
func MaskForGuide(name string) string {
	return maskWithRatio(name, GuideRatio)
}

// MaskEnhanced locates the generic root inside the name, masks the root
// heavily and the surrounding text at the default ratio. When the root is
// absent the whole name is masked at the default ratio.
func MaskEnhanced(name, genericName string) string {
	generic := strings.TrimSpace(genericName)
	if generic == "" {
		return Mask(name)
	}
	idx := strings.Index(strings.ToLower(name), strings.ToLower(generic))
	if idx < 0 {
		return Mask(name)
	}
	end := idx + len(generic)
	return maskWithRatio(name[:idx], DefaultRatio) +
		maskWithRatio(name[idx:end], CoreRatio) +
		maskWithRatio(name[end:], DefaultRatio)
}

func isDelimiter(r rune) bool {
	switch r {
	case ' ', '.', '(', ')', '-', '/':
		return true
	}
	return false
}

func isTokenRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// maskWithRatio splits the name on delimiters, preserving the delimiters
// verbatim, and masks each token's interior at the given ratio.
func maskWithRatio(name string, ratio float64) string {
	var out strings.Builder
	runes := []rune(name)
	i := 0
	for i < len(runes) {
		if isDelimiter(runes[i]) || !isTokenRune(runes[i]) {
			out.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isTokenRune(runes[j]) && !isDelimiter(runes[j]) {
			j++
		}
		out.WriteString(maskToken(runes[i:j], ratio))
		i = j
	}
	return out.String()
}

// maskToken masks a single token. Tokens of one rune collapse to "*",
// two-rune tokens mask exactly one of the two at random, longer tokens
// keep their first and last rune and mask a random subset of the
// interior.
func maskToken(token []rune, ratio float64) string {
	switch len(token) {
	case 0:
		return ""
	case 1:
		return "*"
	case 2:
		if rand.Intn(2) == 0 {
			return "*" + string(token[1])
		}
		return string(token[0]) + "*"
	}

	interior := len(token) - 2
	count := int(float64(interior) * ratio)
	if count == 0 {
		count = 1
	}

	masked := make([]rune, len(token))
	copy(masked, token)
	for _, pos := range rand.Perm(interior)[:count] {
		masked[pos+1] = '*'
	}
	return string(masked)
}
