package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackAlerter posts to a Slack incoming webhook.
type SlackAlerter struct {
	webhookURL string
	channel    string
}

func NewSlackAlerter(webhookURL, channel string) *SlackAlerter {
	return &SlackAlerter{webhookURL: webhookURL, channel: channel}
}

func (a *SlackAlerter) Alert(ctx context.Context, text string) error {
	msg := &slack.WebhookMessage{Text: text, Channel: a.channel}
	if err := slack.PostWebhookContext(ctx, a.webhookURL, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}
