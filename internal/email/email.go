package email

import (
	"context"
	"log/slog"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers email to downstream providers. Delivery is best effort:
// callers log failures and never let them fail the primary operation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LoggerSender is a stub implementation that writes messages to the logger.
type LoggerSender struct {
	logger *slog.Logger
}

// NewLoggerSender constructs a logging email sender stub.
func NewLoggerSender(logger *slog.Logger) *LoggerSender {
	return &LoggerSender{logger: logger}
}

// Send writes the message to the structured logger.
func (s *LoggerSender) Send(_ context.Context, msg Message) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("email", "to", msg.To, "subject", msg.Subject)
	return nil
}
