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

package normalizer

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestNormalizer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Normalizer Suite")
}

var _ = Describe("Normalize", func() {
	It("should lowercase plain names", func() {
		Expect(Normalize("Delfino")).To(Equal("delfino"))
	})

	It("should strip trailing version tokens", func() {
		Expect(Normalize("Delfino v2.1")).To(Equal("delfino"))
		Expect(Normalize("Delfino 3.0.1")).To(Equal("delfino"))
		Expect(Normalize("TouchEn nxKey 1.0.0.78")).To(Equal("touchen nxkey"))
	})

	It("should strip architecture markers", func() {
		Expect(Normalize("Delfino-x64")).To(Equal("delfino"))
		Expect(Normalize("Delfino (x86)")).To(Equal("delfino"))
		Expect(Normalize("Delfino (64bit)")).To(Equal("delfino"))
		Expect(Normalize("Delfino (32비트)")).To(Equal("delfino"))
	})

	It("should map all variants of the same product to one form", func() {
		variants := []string{
			"Delfino",
			"Delfino-x64",
			"Delfino (32비트)",
			"Delfino v2.1",
			"DELFINO 3.5.2",
		}
		for _, v := range variants {
			Expect(Normalize(v)).To(Equal("delfino"), "variant %q", v)
		}
	})

	It("should strip suite and edition words", func() {
		Expect(Normalize("AhnLab Safe Transaction Pro")).To(Equal("ahnlab safe transaction"))
		Expect(Normalize("V3 Internet Security Trial")).To(Equal("v3"))
	})

	It("should strip parenthesized decorations", func() {
		Expect(Normalize("INISAFE CrossWeb EX (remove only)")).To(Equal("inisafe crossweb ex"))
	})

	It("should strip trailing years", func() {
		Expect(Normalize("nProtect Netizen 2024")).To(Equal("nprotect netizen"))
	})

	It("should preserve Hangul letters", func() {
		Expect(Normalize("알약 v2.5")).To(Equal("알약"))
	})

	It("should collapse punctuation into single spaces", func() {
		Expect(Normalize("Touch-En_nxKey")).To(Equal("touch en_nxkey"))
	})

	It("should return empty for empty input", func() {
		Expect(Normalize("")).To(Equal(""))
		Expect(Normalize("   ")).To(Equal(""))
	})
})
