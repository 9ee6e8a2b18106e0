package notification

import (
	"context"
	"log/slog"
)

const (
	// KindCreditTopUp indicates a settled credit purchase.
	KindCreditTopUp = "credit_top_up"
	// KindResourcePurchase indicates a granted resource access.
	KindResourcePurchase = "resource_purchase"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems. Delivery is
// at-least-once best effort: senders swallow and log failures so the
// triggering operation's outcome never depends on it.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
