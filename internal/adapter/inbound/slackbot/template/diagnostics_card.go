package template

import (
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/switchyard/internal/domain/model"
)

const (
	ActionIDRunFix         = "switchyard_run_fix"
	ActionIDRunDiagnostics = "switchyard_run_diagnostics"
)

// scoreBar renders a 0..100 score as a ten cell bar.
func scoreBar(score float64) string {
	pct := int(score + 0.5)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct / 10
	return fmt.Sprintf("[%s%s] %d", strings.Repeat("█", filled), strings.Repeat("░", 10-filled), pct)
}

func scoreEmoji(score float64) string {
	switch {
	case score >= 90:
		return ":large_green_circle:"
	case score >= 60:
		return ":large_yellow_circle:"
	default:
		return ":red_circle:"
	}
}

// BuildDiagnosticsBlocks renders a diagnostics run with per-category scores,
// the problems found and a button that starts a repair pass.
func BuildDiagnosticsBlocks(r model.DiagnosticsResult) []slackapi.Block {
	header := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("%s *Diagnostics* overall score `%s`", scoreEmoji(r.OverallScore), scoreBar(r.OverallScore)), false, false),
		nil, nil,
	)

	categories := []model.CategoryResult{r.APIConnectivity, r.ConfigurationIssues, r.PerformanceMetrics, r.SecurityIssues}
	fields := make([]*slackapi.TextBlockObject, 0, len(categories))
	for _, c := range categories {
		fields = append(fields, slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("*%s*\n`%s`", categoryTitle(c.Category), scoreBar(c.Score)), false, false))
	}

	blocks := []slackapi.Block{header, slackapi.NewDividerBlock(), slackapi.NewSectionBlock(nil, fields, nil)}

	if len(r.Problems) == 0 {
		blocks = append(blocks, slackapi.NewContextBlock("",
			slackapi.NewTextBlockObject(slackapi.MarkdownType, ":white_check_mark: No problems found", false, false)))
		return blocks
	}

	lines := make([]string, 0, len(r.Problems))
	for i, p := range r.Problems {
		tag := ""
		if p.IsSynthetic() {
			tag = " _(synthetic)_"
		}
		lines = append(lines, fmt.Sprintf("%d. *%s* [%s]%s %s", i+1, p.Name, p.Severity, tag, p.Description))
	}
	blocks = append(blocks,
		slackapi.NewDividerBlock(),
		slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.MarkdownType, "*Problems*\n"+strings.Join(lines, "\n"), false, false),
			nil, nil,
		),
	)

	fixBtn := slackapi.NewButtonBlockElement(
		ActionIDRunFix,
		"fix:"+r.ID,
		slackapi.NewTextBlockObject(slackapi.PlainTextType, "Run auto-fix", false, false),
	)
	fixBtn.Style = slackapi.StylePrimary
	blocks = append(blocks, slackapi.NewActionBlock("", fixBtn))
	return blocks
}

func categoryTitle(t model.ProblemType) string {
	switch t {
	case model.ProblemAPIConnectivity:
		return "API connectivity"
	case model.ProblemConfiguration:
		return "Configuration"
	case model.ProblemPerformance:
		return "Performance"
	case model.ProblemSecurity:
		return "Security"
	}
	return string(t)
}
