package slack

import (
	"context"
	"fmt"
	"sync"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/switchyard/internal/adapter/inbound/slackbot/template"
	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

var (
	_ outbound.Notifier            = (*Notifier)(nil)
	_ outbound.DiagnosticsReporter = (*Notifier)(nil)
)

// Config holds Slack notifier configuration.
type Config struct {
	BotToken       string
	DefaultChannel string
	// APIURL overrides the Slack Web API base URL. It must end with a slash.
	APIURL string
}

// Notifier posts repair lifecycle events to Slack. Events of one repair pass
// are threaded under the first message of that pass.
type Notifier struct {
	client *slackapi.Client
	config Config

	mu      sync.Mutex
	threads map[string]string // repair pass ID -> thread ts
}

// NewNotifier creates a new Slack Notifier.
func NewNotifier(cfg Config) *Notifier {
	var opts []slackapi.Option
	if cfg.APIURL != "" {
		opts = append(opts, slackapi.OptionAPIURL(cfg.APIURL))
	}
	return &Notifier{
		client:  slackapi.New(cfg.BotToken, opts...),
		config:  cfg,
		threads: make(map[string]string),
	}
}

// Notify posts n, replying in the thread of its repair pass when one exists.
// The thread is forgotten once the pass reaches a terminal status.
func (n *Notifier) Notify(ctx context.Context, notification model.Notification) error {
	opts := []slackapi.MsgOption{
		slackapi.MsgOptionBlocks(template.BuildNotificationBlocks(notification)...),
		slackapi.MsgOptionText(template.FallbackText(notification), false),
	}
	threadTS := n.thread(notification.RepairPassID)
	if threadTS != "" {
		opts = append(opts, slackapi.MsgOptionTS(threadTS))
	}

	_, ts, err := n.client.PostMessageContext(ctx, n.config.DefaultChannel, opts...)
	if err != nil {
		return fmt.Errorf("slack Notify: %w", err)
	}

	passID := notification.RepairPassID
	if passID == "" {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	switch model.RepairState(notification.Status) {
	case model.RepairCompleted, model.RepairRolledBack:
		delete(n.threads, passID)
	default:
		if threadTS == "" {
			n.threads[passID] = ts
		}
	}
	return nil
}

// ReportDiagnostics posts a diagnostics result card to the default channel.
func (n *Notifier) ReportDiagnostics(ctx context.Context, result model.DiagnosticsResult) error {
	_, _, err := n.client.PostMessageContext(ctx, n.config.DefaultChannel,
		slackapi.MsgOptionBlocks(template.BuildDiagnosticsBlocks(result)...),
		slackapi.MsgOptionText(fmt.Sprintf("Diagnostics: overall score %.0f, %d problems", result.OverallScore, len(result.Problems)), false),
	)
	if err != nil {
		return fmt.Errorf("slack ReportDiagnostics: %w", err)
	}
	return nil
}

func (n *Notifier) thread(passID string) string {
	if passID == "" {
		return ""
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.threads[passID]
}
