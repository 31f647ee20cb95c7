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

package protection

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestProtection(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Protection Suite")
}

var _ = Describe("IsProtected", func() {
	It("should protect by publisher regardless of name", func() {
		Expect(IsProtected("Anything At All", "Microsoft Corporation")).To(BeTrue())
		Expect(IsProtected("Some Tool", "NVIDIA Corporation")).To(BeTrue())
		Expect(IsProtected("Some Tool", "Intel Corporation")).To(BeTrue())
	})

	It("should match publishers case-insensitively", func() {
		Expect(IsProtected("Driver", "MICROSOFT")).To(BeTrue())
		Expect(IsProtected("Driver", "microsoft corporation")).To(BeTrue())
	})

	It("should protect core system software by name pattern", func() {
		Expect(IsProtected("Microsoft Visual C++ 2019 Redistributable (x64)", "")).To(BeTrue())
		Expect(IsProtected("Microsoft .NET Framework 4.8", "")).To(BeTrue())
		Expect(IsProtected("NVIDIA GeForce Experience", "")).To(BeTrue())
		Expect(IsProtected("Windows Defender", "")).To(BeTrue())
		Expect(IsProtected("Realtek Audio Driver", "")).To(BeTrue())
		Expect(IsProtected("svchost.exe", "")).To(BeTrue())
	})

	It("should not protect unrelated software", func() {
		Expect(IsProtected("Delfino", "Wizvera")).To(BeFalse())
		Expect(IsProtected("TotallyNotBloat", "Unknown Ltd")).To(BeFalse())
	})

	It("should not protect bloatware with an empty publisher", func() {
		Expect(IsProtected("nProtect Online Security", "")).To(BeFalse())
	})
})

var _ = Describe("IsProtectedBrandWord", func() {
	It("should flag widely shared brand words", func() {
		Expect(IsProtectedBrandWord("microsoft")).To(BeTrue())
		Expect(IsProtectedBrandWord("Windows")).To(BeTrue())
		Expect(IsProtectedBrandWord("nvidia")).To(BeTrue())
	})

	It("should pass distinctive keywords through", func() {
		Expect(IsProtectedBrandWord("delfino")).To(BeFalse())
		Expect(IsProtectedBrandWord("nprotect")).To(BeFalse())
	})
})

var _ = Describe("ContainsBlockedKeyword", func() {
	It("should block submissions naming system software", func() {
		Expect(ContainsBlockedKeyword("Microsoft Edge Update Helper")).To(BeTrue())
		Expect(ContainsBlockedKeyword("windows security center")).To(BeTrue())
	})

	It("should allow ordinary program names", func() {
		Expect(ContainsBlockedKeyword("Delfino")).To(BeFalse())
		Expect(ContainsBlockedKeyword("AhnLab Safe Transaction")).To(BeFalse())
	})
})
