package template

import (
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/switchyard/internal/domain/model"
)

func attemptEmoji(a model.FixAttempt) string {
	switch {
	case a.Status == model.ProblemFixed:
		return ":white_check_mark:"
	case a.TimedOut:
		return ":hourglass:"
	default:
		return ":x:"
	}
}

// BuildRepairSummaryBlocks renders the result of a repair pass.
func BuildRepairSummaryBlocks(s model.RepairSummary) []slackapi.Block {
	title := ":large_green_circle: *Repair pass completed*"
	if s.RolledBack {
		title = ":rewind: *Repair pass rolled back*"
	} else if s.FailedCount > 0 {
		title = ":large_yellow_circle: *Repair pass completed with failures*"
	}
	header := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType, title, false, false),
		nil, nil,
	)

	fields := []*slackapi.TextBlockObject{
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("*Fixed*\n%d", s.FixedCount), false, false),
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("*Failed*\n%d", s.FailedCount), false, false),
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("*Skipped*\n%d", s.SkippedCount), false, false),
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("*Failure rate*\n%.1f%%", s.FailureRate), false, false),
	}
	blocks := []slackapi.Block{header, slackapi.NewDividerBlock(), slackapi.NewSectionBlock(nil, fields, nil)}

	if len(s.Attempts) > 0 {
		lines := make([]string, len(s.Attempts))
		for i, a := range s.Attempts {
			line := fmt.Sprintf("%s *%s*", attemptEmoji(a), a.ProblemName)
			if a.Error != "" {
				line += " " + a.Error
			}
			lines[i] = line
		}
		blocks = append(blocks, slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.MarkdownType, strings.Join(lines, "\n"), false, false),
			nil, nil,
		))
	}

	if s.RolledBack {
		blocks = append(blocks, slackapi.NewContextBlock("",
			slackapi.NewTextBlockObject(slackapi.MarkdownType,
				fmt.Sprintf("Restored %d checkpoints", s.RestoredCheckpoints), false, false)))
	}

	rerun := slackapi.NewButtonBlockElement(
		ActionIDRunDiagnostics,
		"diagnose:"+s.PassID,
		slackapi.NewTextBlockObject(slackapi.PlainTextType, "Re-run diagnostics", false, false),
	)
	blocks = append(blocks, slackapi.NewActionBlock("", rerun), slackapi.NewContextBlock("",
		slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("Pass `%s`", s.PassID), false, false)))
	return blocks
}
