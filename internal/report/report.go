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

// Package report turns a finished cleanup cycle into a user-facing
// summary.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/bloathound/bloathound/pkg/logger"
	"github.com/bloathound/bloathound/pkg/models"
)

// Summary is the structured outcome of one cleanup cycle.
type Summary struct {
	Removed        []string `json:"removed"`
	ManualRequired []string `json:"manual_required"`
	Failed         []string `json:"failed"`
	Ignored        []string `json:"ignored,omitempty"`
}

// Generator produces the final report text from a summary. Implementations
// may call out to an external service; Generate must honor the context.
type Generator interface {
	Generate(ctx context.Context, summary Summary, language string) (string, error)
}

// Summarize folds removal records into a summary, masked names only.
func Summarize(records []models.RemovalRecord) Summary {
	var s Summary
	for _, r := range records {
		switch r.Status {
		case models.StatusSuccess:
			s.Removed = append(s.Removed, r.MaskedName)
		case models.StatusManualRequired:
			s.ManualRequired = append(s.ManualRequired, r.MaskedName)
		default:
			s.Failed = append(s.Failed, r.MaskedName)
		}
	}
	return s
}

// templateSet holds the fixed report phrases for one language.
type templateSet struct {
	header  string
	removed string
	manual  string
	failed  string
	clean   string
}

var templates = map[string]templateSet{
	"en": {
		header:  "Cleanup Report",
		removed: "Removed (%d): %s",
		manual:  "Manual removal required (%d): %s",
		failed:  "Could not be removed (%d): %s",
		clean:   "No suspicious programs were removed.",
	},
	"ko": {
		header:  "정리 결과 보고서",
		removed: "제거 완료 (%d): %s",
		manual:  "수동 제거 필요 (%d): %s",
		failed:  "제거 실패 (%d): %s",
		clean:   "제거된 프로그램이 없습니다.",
	},
	"ja": {
		header:  "クリーンアップレポート",
		removed: "削除済み (%d): %s",
		manual:  "手動削除が必要 (%d): %s",
		failed:  "削除できませんでした (%d): %s",
		clean:   "削除されたプログラムはありません。",
	},
	"zh": {
		header:  "清理报告",
		removed: "已删除 (%d): %s",
		manual:  "需要手动删除 (%d): %s",
		failed:  "无法删除 (%d): %s",
		clean:   "没有删除任何程序。",
	},
}

// TemplateGenerator renders reports from the built-in templates. It is the
// fallback when no external generator is configured, and never fails.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Generate renders the summary in the requested language, falling back to
// English for unknown languages.
func (g *TemplateGenerator) Generate(ctx context.Context, summary Summary, language string) (string, error) {
	t, ok := templates[strings.ToLower(language)]
	if !ok {
		t = templates["en"]
	}

	var b strings.Builder
	b.WriteString(t.header)
	b.WriteString("\n")

	if len(summary.Removed) == 0 && len(summary.ManualRequired) == 0 && len(summary.Failed) == 0 {
		b.WriteString(t.clean)
		return b.String(), nil
	}

	if len(summary.Removed) > 0 {
		fmt.Fprintf(&b, t.removed, len(summary.Removed), strings.Join(summary.Removed, ", "))
		b.WriteString("\n")
	}
	if len(summary.ManualRequired) > 0 {
		fmt.Fprintf(&b, t.manual, len(summary.ManualRequired), strings.Join(summary.ManualRequired, ", "))
		b.WriteString("\n")
	}
	if len(summary.Failed) > 0 {
		fmt.Fprintf(&b, t.failed, len(summary.Failed), strings.Join(summary.Failed, ", "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Render runs the generator and falls back to the templates when it fails.
func Render(ctx context.Context, g Generator, summary Summary, language string) string {
	if g != nil {
		text, err := g.Generate(ctx, summary, language)
		if err == nil {
			return text
		}
		logger.L.WithError(err).Warn("Report generator failed, using template fallback")
	}
	text, _ := NewTemplateGenerator().Generate(ctx, summary, language)
	return text
}
