// Package notify delivers user-facing cart messages.
package notify

import (
	"context"
	"log/slog"

	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/port"
)

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, notification domain.Notification) {
	n.logger.WarnContext(ctx, notification.Message,
		"kind", notification.Kind,
		"product_id", notification.ProductID,
	)
}

type fanout []port.Notifier

// Fanout delivers every notification to all notifiers in order.
func Fanout(notifiers ...port.Notifier) port.Notifier {
	return fanout(notifiers)
}

func (f fanout) Notify(ctx context.Context, notification domain.Notification) {
	for _, n := range f {
		n.Notify(ctx, notification)
	}
}
