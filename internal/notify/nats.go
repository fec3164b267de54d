package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nikolayk812/cartstore/internal/domain"
)

// Publisher is the part of jetstream.JetStream the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type event struct {
	domain.Notification
	OccurredAt time.Time `json:"occurred_at"`
}

// NATSNotifier publishes notifications to a JetStream subject. Delivery is best
// effort: publish errors are logged and dropped.
type NATSNotifier struct {
	js      Publisher
	subject string
	logger  *slog.Logger
	now     func() time.Time
}

func NewNATSNotifier(js Publisher, subject string, logger *slog.Logger) *NATSNotifier {
	return &NATSNotifier{
		js:      js,
		subject: subject,
		logger:  logger.With("component", "notify", "subject", subject),
		now:     time.Now,
	}
}

func (n *NATSNotifier) Notify(ctx context.Context, notification domain.Notification) {
	data, err := json.Marshal(event{Notification: notification, OccurredAt: n.now().UTC()})
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to encode notification", "error", err)
		return
	}

	if _, err := n.js.Publish(ctx, n.subject, data); err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish notification", "kind", notification.Kind, "error", err)
	}
}

func NewConn(url string, timeout time.Duration) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

func NewJetStream(nc *nats.Conn) (jetstream.JetStream, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return js, nil
}
