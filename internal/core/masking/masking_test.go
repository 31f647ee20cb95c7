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
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMasking(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Masking Suite")
}

var _ = Describe("Mask", func() {
	It("should keep the first and last rune of longer tokens", func() {
		masked := Mask("Delfino")
		Expect(masked).To(HaveLen(7))
		Expect(masked[0]).To(Equal(byte('D')))
		Expect(masked[6]).To(Equal(byte('o')))
		Expect(masked).To(ContainSubstring("*"))
	})

	It("should always mask at least one interior rune", func() {
		for i := 0; i < 50; i++ {
			Expect(strings.Count(Mask("abcd"), "*")).To(BeNumerically(">=", 1))
		}
	})

	It("should collapse a single rune to an asterisk", func() {
		Expect(Mask("a")).To(Equal("*"))
	})

	It("should mask exactly one rune of a two-rune token", func() {
		for i := 0; i < 50; i++ {
			masked := Mask("AB")
			Expect(masked).To(HaveLen(2))
			Expect(strings.Count(masked, "*")).To(Equal(1))
		}
	})

	It("should preserve delimiters verbatim", func() {
		masked := Mask("nProtect Online Security(64bit)")
		Expect(strings.Count(masked, " ")).To(Equal(strings.Count("nProtect Online Security(64bit)", " ")))
		Expect(masked).To(ContainSubstring("("))
		Expect(masked).To(ContainSubstring(")"))
	})

	It("should never return the unmasked name for tokens of two or more runes", func() {
		for _, name := range []string{"ab", "abc", "Delfino", "TouchEn nxKey"} {
			Expect(Mask(name)).NotTo(Equal(name))
		}
	})
})

var _ = Describe("MaskForGuide", func() {
	It("should mask fewer interior runes than the default on long tokens", func() {
		name := "supercalifragilistic"
		interior := len(name) - 2
		guideCount := int(float64(interior) * GuideRatio)
		defaultCount := int(float64(interior) * DefaultRatio)
		Expect(strings.Count(MaskForGuide(name), "*")).To(Equal(guideCount))
		Expect(strings.Count(Mask(name), "*")).To(Equal(defaultCount))
	})
})

var _ = Describe("MaskEnhanced", func() {
	It("should mask the generic root more heavily than the rest", func() {
		masked := MaskEnhanced("Wizvera Delfino Handler", "delfino")
		Expect(masked).To(HaveLen(len("Wizvera Delfino Handler")))
		core := masked[8:15]
		Expect(strings.Count(core, "*")).To(BeNumerically(">=", 4))
	})

	It("should fall back to the default mask when the root is absent", func() {
		masked := MaskEnhanced("Unrelated Name", "delfino")
		Expect(masked).To(HaveLen(len("Unrelated Name")))
		Expect(masked).To(ContainSubstring("*"))
	})

	It("should fall back to the default mask for an empty root", func() {
		Expect(MaskEnhanced("Delfino", "")).To(ContainSubstring("*"))
	})
})

var _ = Describe("MaskReason", func() {
	It("should mask occurrences of the program name", func() {
		reason := MaskReason("Delfino is bundled with banking plugins", "Delfino", "")
		Expect(reason).NotTo(ContainSubstring("Delfino"))
		Expect(reason).To(ContainSubstring("bundled with banking plugins"))
	})

	It("should mask the generic root only as a whole word", func() {
		reason := MaskReason("The delfino module hides in delfinology texts", "Delfino Suite", "delfino")
		Expect(reason).To(ContainSubstring("delfinology"))
		Expect(reason).NotTo(ContainSubstring(" delfino "))
	})

	It("should leave empty reasons alone", func() {
		Expect(MaskReason("", "Delfino", "delfino")).To(Equal(""))
	})
})
