package slackbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/jonny/switchyard/internal/adapter/inbound/slackbot/template"
	"github.com/jonny/switchyard/internal/domain/model"
)

type command string

const (
	cmdDiagnose command = "diagnose"
	cmdFix      command = "fix"
	cmdStatus   command = "status"
	cmdHelp     command = "help"
	cmdUnknown  command = ""
)

// parseCommand maps free text to a command. Aliases are accepted for the
// long-running operations.
func parseCommand(text string) command {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return cmdHelp
	}
	switch fields[0] {
	case "diagnose", "diagnostics", "check":
		return cmdDiagnose
	case "fix", "repair", "autofix":
		return cmdFix
	case "status":
		return cmdStatus
	case "help":
		return cmdHelp
	}
	return cmdUnknown
}

// reply is what the bot posts back for a command.
type reply struct {
	Text   string
	Blocks []slackapi.Block
}

// execute runs a command against the operations port.
func (b *Bot) execute(ctx context.Context, cmd command) reply {
	switch cmd {
	case cmdDiagnose:
		result, err := b.ops.RunDiagnostics(ctx)
		if err != nil {
			return errorReply("diagnostics", err)
		}
		return reply{
			Text:   fmt.Sprintf("Diagnostics finished: overall score %.0f, %d problems", result.OverallScore, len(result.Problems)),
			Blocks: template.BuildDiagnosticsBlocks(result),
		}
	case cmdFix:
		summary, err := b.ops.RunAutoFix(ctx, nil)
		if err != nil {
			return errorReply("auto-fix", err)
		}
		return reply{
			Text:   fmt.Sprintf("Repair pass %s: %s", summary.PassID, summary.Outcome),
			Blocks: template.BuildRepairSummaryBlocks(summary),
		}
	case cmdStatus:
		return reply{Text: b.statusText(ctx)}
	case cmdHelp:
		return reply{Text: buildHelpText(b.command)}
	}
	return reply{Text: fmt.Sprintf(":question: Unknown command. Try `%s help`.", b.command)}
}

func (b *Bot) statusText(ctx context.Context) string {
	lines := []string{fmt.Sprintf(":robot_face: *Switchyard* repair state: *%s*", b.ops.RepairState())}
	latest, err := b.ops.LatestDiagnostics(ctx)
	switch {
	case errors.Is(err, model.ErrNoDiagnostics):
		lines = append(lines, "No diagnostics run yet.")
	case err != nil:
		lines = append(lines, fmt.Sprintf(":warning: could not load diagnostics: %v", err))
	default:
		lines = append(lines, fmt.Sprintf("Last diagnostics `%s` at %s: score %.0f, %d problems",
			latest.ID, latest.FinishedAt.Format("2006-01-02 15:04:05 MST"), latest.OverallScore, len(latest.Problems)))
	}
	return strings.Join(lines, "\n")
}

func errorReply(op string, err error) reply {
	switch {
	case errors.Is(err, model.ErrRepairPassInProgress), errors.Is(err, model.ErrDiagnosticsInProgress):
		return reply{Text: fmt.Sprintf(":hourglass: %s is already running, try again shortly.", op)}
	case errors.Is(err, model.ErrInvalidStrategy):
		return reply{Text: fmt.Sprintf(":x: %s rejected: %v", op, err)}
	}
	return reply{Text: fmt.Sprintf(":x: %s failed: %v", op, err)}
}

func (b *Bot) post(ctx context.Context, channel, threadTS string, r reply) {
	opts := []slackapi.MsgOption{slackapi.MsgOptionText(r.Text, false)}
	if len(r.Blocks) > 0 {
		opts = append(opts, slackapi.MsgOptionBlocks(r.Blocks...))
	}
	if threadTS != "" {
		opts = append(opts, slackapi.MsgOptionTS(threadTS))
	}
	if _, _, err := b.client.PostMessageContext(ctx, channel, opts...); err != nil {
		b.logger.Error("post reply failed", "channel", channel, "error", err)
	}
}

// runAsync executes a long-running command and posts its result.
func (b *Bot) runAsync(ctx context.Context, cmd command, channel, threadTS string) {
	go func() {
		b.post(ctx, channel, threadTS, b.execute(ctx, cmd))
	}()
}

// handleEventsAPI processes Slack Events API payloads. Mentions of the bot
// are treated like slash commands.
func (b *Bot) handleEventsAPI(ctx context.Context, evt socketmode.Event) {
	b.socketMode.Ack(*evt.Request)

	eventsPayload, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	ev, ok := eventsPayload.InnerEvent.Data.(*slackevents.AppMentionEvent)
	if !ok || ev.BotID != "" {
		return
	}
	cmd := parseCommand(stripMention(ev.Text))
	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	b.logger.Info("slack mention", "user", ev.User, "command", string(cmd))
	b.runAsync(ctx, cmd, ev.Channel, threadTS)
}

// stripMention removes leading <@U123> user mentions.
func stripMention(text string) string {
	text = strings.TrimSpace(text)
	for strings.HasPrefix(text, "<@") {
		end := strings.Index(text, ">")
		if end < 0 {
			break
		}
		text = strings.TrimSpace(text[end+1:])
	}
	return text
}

// handleInteraction processes button clicks on diagnostics and repair cards.
func (b *Bot) handleInteraction(ctx context.Context, evt socketmode.Event) {
	b.socketMode.Ack(*evt.Request)

	callback, ok := evt.Data.(slackapi.InteractionCallback)
	if !ok {
		return
	}

	threadTS := callback.Message.ThreadTimestamp
	if threadTS == "" {
		threadTS = callback.Message.Timestamp
	}
	for _, action := range callback.ActionCallback.BlockActions {
		var cmd command
		switch action.ActionID {
		case template.ActionIDRunFix:
			cmd = cmdFix
		case template.ActionIDRunDiagnostics:
			cmd = cmdDiagnose
		default:
			continue
		}
		b.logger.Info("slack action", "user", callback.User.ID, "action", action.ActionID, "value", action.Value)
		b.post(ctx, callback.Channel.ID, threadTS, reply{
			Text: fmt.Sprintf(":arrow_forward: <@%s> started %s", callback.User.ID, cmd),
		})
		b.runAsync(ctx, cmd, callback.Channel.ID, threadTS)
	}
}

// handleSlashCommand acknowledges immediately. Long-running commands post
// their result to the channel once finished.
func (b *Bot) handleSlashCommand(ctx context.Context, evt socketmode.Event) {
	cmd, ok := evt.Data.(slackapi.SlashCommand)
	if !ok {
		b.socketMode.Ack(*evt.Request)
		return
	}

	parsed := parseCommand(cmd.Text)
	switch parsed {
	case cmdDiagnose, cmdFix:
		b.socketMode.Ack(*evt.Request, map[string]string{
			"text": fmt.Sprintf(":hourglass_flowing_sand: Running %s...", parsed),
		})
		b.runAsync(ctx, parsed, cmd.ChannelID, "")
	case cmdUnknown:
		sanitized := cmd.Text
		if len(sanitized) > 100 {
			sanitized = sanitized[:100]
		}
		sanitized = strings.ReplaceAll(sanitized, "`", "'")
		b.socketMode.Ack(*evt.Request, map[string]string{
			"text": fmt.Sprintf(":question: Unknown command `%s`. Try `%s help`.", sanitized, b.command),
		})
	default:
		b.socketMode.Ack(*evt.Request, map[string]string{
			"text": b.execute(ctx, parsed).Text,
		})
	}
}

func buildHelpText(slash string) string {
	return strings.Join([]string{
		":robot_face: *Switchyard Commands*",
		"",
		"*Slash Commands:*",
		fmt.Sprintf("• `%s diagnose` run a diagnostics pass", slash),
		fmt.Sprintf("• `%s fix` repair the problems of the latest diagnostics", slash),
		fmt.Sprintf("• `%s status` show repair state and last score", slash),
		fmt.Sprintf("• `%s help` show this message", slash),
		"",
		"*Buttons:*",
		"• Use Run auto-fix on a diagnostics card to start a repair pass",
	}, "\n")
}
