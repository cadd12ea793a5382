// Package notify delivers rendered email and push messages. Delivery never
// feeds back into order state: callers log failures and move on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkax "github.com/ariefcatur/go-cosmetics-orders/internal/kafka"
	"github.com/ariefcatur/go-cosmetics-orders/internal/metrics"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
)

type Notification = orders.NotificationPayload

type Notifier interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
	SendPush(ctx context.Context, endpoint, title, body string) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type PushSender interface {
	SendPush(ctx context.Context, endpoint, title, body string) error
}

var errChannelDisabled = errors.New("channel not configured")

// Multi joins an email and a push transport. Either half may be nil.
type Multi struct {
	Email EmailSender
	Push  PushSender
}

func (m Multi) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if m.Email == nil {
		return fmt.Errorf("email: %w", errChannelDisabled)
	}
	return m.Email.SendEmail(ctx, to, subject, htmlBody)
}

func (m Multi) SendPush(ctx context.Context, endpoint, title, body string) error {
	if m.Push == nil {
		return fmt.Errorf("push: %w", errChannelDisabled)
	}
	return m.Push.SendPush(ctx, endpoint, title, body)
}

// Deliver routes n to the matching Notifier method.
func Deliver(ctx context.Context, n Notifier, msg Notification) error {
	var err error
	switch msg.Channel {
	case orders.ChannelEmail:
		err = n.SendEmail(ctx, msg.To, msg.Subject, msg.Body)
	case orders.ChannelPush:
		err = n.SendPush(ctx, msg.To, msg.Subject, msg.Body)
	default:
		return fmt.Errorf("%w: unknown channel %q", orders.ErrNotificationDelivery, msg.Channel)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", orders.ErrNotificationDelivery, err)
	}
	return nil
}

// Dispatcher accepts a notification for delivery. A nil error means the
// message was accepted, not that it arrived.
type Dispatcher interface {
	Enqueue(ctx context.Context, n Notification) error
}

// KafkaDispatcher queues notifications for cmd/notifier.
type KafkaDispatcher struct {
	events  orders.EventPublisher
	service string
	now     func() time.Time
}

func NewKafkaDispatcher(events orders.EventPublisher, service string) *KafkaDispatcher {
	return &KafkaDispatcher{events: events, service: service, now: time.Now}
}

func (d *KafkaDispatcher) Enqueue(ctx context.Context, n Notification) error {
	env, err := kafkax.NewEnvelope(orders.EventNotificationRequested, d.service, n.OrderID, d.now(), n)
	if err != nil {
		return err
	}
	return d.events.PublishEvent(ctx, orders.TopicNotifications, env)
}

// DirectDispatcher delivers in the caller's goroutine. Used when kafka is
// disabled.
type DirectDispatcher struct {
	notifier Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewDirectDispatcher(n Notifier, m *metrics.Metrics, log *slog.Logger) *DirectDispatcher {
	return &DirectDispatcher{notifier: n, metrics: m, log: log}
}

func (d *DirectDispatcher) Enqueue(ctx context.Context, n Notification) error {
	if err := Deliver(ctx, d.notifier, n); err != nil {
		d.metrics.Notification(string(n.Channel), "failed")
		return err
	}
	d.metrics.Notification(string(n.Channel), "sent")
	return nil
}
