package template

import (
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/switchyard/internal/domain/model"
)

func levelEmoji(level model.NotificationLevel) string {
	switch level {
	case model.LevelError:
		return ":red_circle:"
	case model.LevelWarning:
		return ":large_yellow_circle:"
	case model.LevelSuccess:
		return ":large_green_circle:"
	default:
		return ":large_blue_circle:"
	}
}

// FallbackText is the plain-text summary shown in push notifications.
func FallbackText(n model.Notification) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Level)), n.Title)
}

// BuildNotificationBlocks renders a repair lifecycle notification.
func BuildNotificationBlocks(n model.Notification) []slackapi.Block {
	header := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType,
			fmt.Sprintf("%s *%s*", levelEmoji(n.Level), n.Title), false, false),
		nil, nil,
	)
	blocks := []slackapi.Block{header}

	if n.Message != "" {
		blocks = append(blocks, slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.MarkdownType, n.Message, false, false),
			nil, nil,
		))
	}

	var meta []string
	if n.Status != "" {
		meta = append(meta, fmt.Sprintf("Status: *%s*", n.Status))
	}
	if n.SourceComponent != "" {
		meta = append(meta, "Source: "+n.SourceComponent)
	}
	if n.RepairPassID != "" {
		meta = append(meta, fmt.Sprintf("Pass: `%s`", n.RepairPassID))
	}
	if len(n.AffectedComponents) > 0 {
		components := make([]string, len(n.AffectedComponents))
		for i, c := range n.AffectedComponents {
			components[i] = fmt.Sprintf("`%s`", c)
		}
		meta = append(meta, "Components: "+strings.Join(components, " "))
	}
	if len(meta) > 0 {
		blocks = append(blocks, slackapi.NewContextBlock("",
			slackapi.NewTextBlockObject(slackapi.MarkdownType, strings.Join(meta, "  |  "), false, false),
		))
	}
	return blocks
}
