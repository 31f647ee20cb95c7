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

package report

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bloathound/bloathound/pkg/models"
)

func TestReport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report Suite")
}

var _ = Describe("Summarize", func() {
	It("should group records by outcome using masked names", func() {
		records := []models.RemovalRecord{
			{Name: "A", MaskedName: "A*a", Status: models.StatusSuccess},
			{Name: "B", MaskedName: "B*b", Status: models.StatusManualRequired},
			{Name: "C", MaskedName: "C*c", Status: models.StatusFailure},
			{Name: "D", MaskedName: "D*d", Status: models.StatusStillExists},
		}

		s := Summarize(records)
		Expect(s.Removed).To(Equal([]string{"A*a"}))
		Expect(s.ManualRequired).To(Equal([]string{"B*b"}))
		Expect(s.Failed).To(ConsistOf("C*c", "D*d"))
	})
})

var _ = Describe("TemplateGenerator", func() {
	gen := NewTemplateGenerator()
	ctx := context.Background()

	It("should render the English template", func() {
		text, err := gen.Generate(ctx, Summary{Removed: []string{"A*a"}}, "en")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("Cleanup Report"))
		Expect(text).To(ContainSubstring("Removed (1): A*a"))
	})

	It("should render the Korean template", func() {
		text, err := gen.Generate(ctx, Summary{Removed: []string{"A*a"}}, "ko")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("정리 결과 보고서"))
	})

	It("should fall back to English for unknown languages", func() {
		text, err := gen.Generate(ctx, Summary{}, "xx")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("Cleanup Report"))
	})

	It("should report an empty cycle", func() {
		text, err := gen.Generate(ctx, Summary{}, "en")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("No suspicious programs were removed."))
	})
})

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, s Summary, lang string) (string, error) {
	return "", errors.New("service unavailable")
}

type fixedGenerator struct{}

func (fixedGenerator) Generate(ctx context.Context, s Summary, lang string) (string, error) {
	return "custom report", nil
}

var _ = Describe("Render", func() {
	ctx := context.Background()

	It("should prefer the configured generator", func() {
		Expect(Render(ctx, fixedGenerator{}, Summary{}, "en")).To(Equal("custom report"))
	})

	It("should fall back to templates when the generator fails", func() {
		text := Render(ctx, failingGenerator{}, Summary{}, "en")
		Expect(text).To(ContainSubstring("Cleanup Report"))
	})

	It("should use templates when no generator is configured", func() {
		text := Render(ctx, nil, Summary{}, "ja")
		Expect(text).To(ContainSubstring("クリーンアップレポート"))
	})
})
