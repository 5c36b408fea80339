package engagement

import (
	"context"
	"log/slog"

	"github.com/arcana-app/arcana/internal/domain"
)

// LogNotifier writes reward notifications to the log. It stands in for the
// email sender.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger}
}

// Notify implements domain.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, msg domain.Notification) {
	n.log.InfoContext(ctx, "reward notification",
		"account_id", msg.AccountID,
		"kind", msg.Kind,
		"title", msg.Title,
		"credits", msg.Credits,
	)
}

// Notifiers fans a notification out to several notifiers in order.
type Notifiers []domain.Notifier

// Notify implements domain.Notifier.
func (ns Notifiers) Notify(ctx context.Context, msg domain.Notification) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, msg)
		}
	}
}
