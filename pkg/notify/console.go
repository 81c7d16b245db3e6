package notify

import (
	"context"
	"net/mail"

	"go.uber.org/zap"
)

// ConsoleMailer writes emails to the log instead of sending them.
type ConsoleMailer struct {
	from   mail.Address
	logger *zap.Logger
}

func NewConsoleMailer(from mail.Address, logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{from: from, logger: logger}
}

func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	if !msg.HasRecipients() {
		return nil
	}
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.String())
	}
	m.logger.Info("email",
		zap.String("from", m.from.String()),
		zap.Strings("to", to),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
