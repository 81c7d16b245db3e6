// Package notify delivers best-effort outbound messages: email through
// SendGrid (or the console in development) and admin alerts through Slack.
package notify

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	To      []mail.Address
	ReplyTo *mail.Address
	Subject string
	Text    string
	HTML    string
}

// HasRecipients reports whether the message can be delivered.
func (m Message) HasRecipients() bool {
	return len(m.To) > 0
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Alerter posts short operational alerts to a chat channel.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// NewMailer picks the provider named in cfg, falling back to the console mailer
// when SendGrid is selected without an API key.
func NewMailer(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	if strings.EqualFold(cfg.Provider, "sendgrid") {
		if cfg.SendgridAPIKey != "" {
			return NewSendgridMailer(cfg.SendgridAPIKey, from)
		}
		logger.Warn("sendgrid selected without api key, using console mailer")
	}
	return NewConsoleMailer(from, logger)
}

// NewAlerter returns a Slack alerter, or a no-op one when no webhook is configured.
func NewAlerter(cfg config.SlackConfig) Alerter {
	if cfg.WebhookURL == "" {
		return NopAlerter{}
	}
	return NewSlackAlerter(cfg.WebhookURL, cfg.Channel)
}

// NopAlerter drops every alert.
type NopAlerter struct{}

func (NopAlerter) Alert(context.Context, string) error { return nil }
