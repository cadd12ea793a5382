package notify

import (
	"context"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-cosmetics-orders/internal/kafka"
	"github.com/ariefcatur/go-cosmetics-orders/internal/metrics"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/ariefcatur/go-cosmetics-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Worker consumes notification.requested and calls the Notifier.
type Worker struct {
	notifier Notifier
	rdb      *redis.Client // dedup; nil disables it
	service  string
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewWorker(n Notifier, rdb *redis.Client, service string, m *metrics.Metrics, log *slog.Logger) *Worker {
	return &Worker{notifier: n, rdb: rdb, service: service, metrics: m, log: log}
}

// Handle only returns an error when the message has to be tried again (dedup
// store unavailable); the consumer retries it before moving past it.
// Undecodable messages and delivery failures are logged and committed.
func (w *Worker) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		w.log.ErrorContext(ctx, "dropping undecodable message", "offset", m.Offset, "error", err)
		return nil
	}
	if env.EventType != orders.EventNotificationRequested {
		return nil
	}

	if w.rdb != nil {
		first, err := redisx.MarkOnce(ctx, w.rdb, fmt.Sprintf(redisx.KeyDedup, w.service, env.EventID), redisx.TTLDedup)
		if err != nil {
			return fmt.Errorf("dedup %s: %w", env.EventID, err)
		}
		if !first {
			w.log.DebugContext(ctx, "duplicate notification skipped", "event_id", env.EventID)
			return nil
		}
	}

	n, err := kafkax.UnwrapPayload[Notification](env.Payload)
	if err != nil {
		w.log.ErrorContext(ctx, "dropping bad notification payload", "event_id", env.EventID, "error", err)
		return nil
	}

	if err := Deliver(ctx, w.notifier, n); err != nil {
		w.metrics.Notification(string(n.Channel), "failed")
		w.log.WarnContext(ctx, "NotificationDeliveryFailed",
			"order_id", n.OrderID, "channel", n.Channel, "event_id", env.EventID,
			"error", err)
		return nil
	}
	w.metrics.Notification(string(n.Channel), "sent")
	w.log.InfoContext(ctx, "notification delivered", "order_id", n.OrderID, "channel", n.Channel)
	return nil
}
