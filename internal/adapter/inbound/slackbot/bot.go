package slackbot

import (
	"context"
	"log/slog"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/jonny/switchyard/internal/domain/port/inbound"
)

// Config holds Slack bot configuration.
type Config struct {
	BotToken string
	AppToken string
	// Command is the slash command the bot answers, e.g. "/switchyard".
	Command string
}

// Bot handles incoming Slack events via Socket Mode.
type Bot struct {
	client     *slackapi.Client
	socketMode *socketmode.Client
	ops        inbound.OperationsPort
	command    string
	logger     *slog.Logger
}

// NewBot creates a new Bot with Socket Mode enabled.
func NewBot(cfg Config, ops inbound.OperationsPort, logger *slog.Logger) *Bot {
	client := slackapi.New(cfg.BotToken, slackapi.OptionAppLevelToken(cfg.AppToken))
	command := cfg.Command
	if command == "" {
		command = "/switchyard"
	}
	return &Bot{
		client:     client,
		socketMode: socketmode.New(client),
		ops:        ops,
		command:    command,
		logger:     logger,
	}
}

// Start begins processing Slack events. It blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	go b.handleEvents(ctx)
	return b.socketMode.RunContext(ctx)
}

func (b *Bot) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-b.socketMode.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnected:
				b.logger.Info("slack socket mode connected")
			case socketmode.EventTypeConnectionError:
				b.logger.Warn("slack socket mode connection error")
			case socketmode.EventTypeEventsAPI:
				b.handleEventsAPI(ctx, evt)
			case socketmode.EventTypeInteractive:
				b.handleInteraction(ctx, evt)
			case socketmode.EventTypeSlashCommand:
				b.handleSlashCommand(ctx, evt)
			default:
				if evt.Request != nil {
					b.socketMode.Ack(*evt.Request)
				}
			}
		}
	}
}
