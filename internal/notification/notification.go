package notification

import (
	"context"
	"log/slog"

	"github.com/skaet/ussd_bank/internal/logging"
)

const (
	// KindWelcome is sent once an account has been opened.
	KindWelcome = "welcome"
	// KindDepositInstructions carries the USSD dial code for a pending deposit.
	KindDepositInstructions = "deposit_instructions"
	// KindWithdrawalPending confirms a withdrawal request reached the gateway.
	KindWithdrawalPending = "withdrawal_pending"
	// KindSettlement is the receipt sent when a transaction becomes terminal.
	KindSettlement = "settlement"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
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
	n.logger.Info("notification", "kind", message.Kind, logging.Phone(message.Destination), "body", message.Body)
	return nil
}

// Deliver sends message and logs, rather than returns, any failure. Callers
// on the money path use it so delivery problems never change their outcome.
func Deliver(ctx context.Context, n Notifier, logger *slog.Logger, message Message) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, message); err != nil && logger != nil {
		logger.Warn("notification failed", "kind", message.Kind, logging.Phone(message.Destination), "error", err)
	}
}
