package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	kafkax "github.com/ariefcatur/go-cosmetics-orders/internal/kafka"
	"github.com/ariefcatur/go-cosmetics-orders/internal/logx"
	"github.com/ariefcatur/go-cosmetics-orders/internal/metrics"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/ariefcatur/go-cosmetics-orders/internal/redisx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	channel, to, subject, body string
}

type fakeNotifier struct {
	mu       sync.Mutex
	calls    []sent
	emailErr error
	pushErr  error
}

func (f *fakeNotifier) SendEmail(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emailErr != nil {
		return f.emailErr
	}
	f.calls = append(f.calls, sent{"email", to, subject, body})
	return nil
}

func (f *fakeNotifier) SendPush(_ context.Context, endpoint, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.calls = append(f.calls, sent{"push", endpoint, title, body})
	return nil
}

func sampleOrder(status orders.Status) orders.Order {
	return orders.Order{
		ID:     "ord-1",
		UserID: "alice",
		Email:  "alice@example.com",
		Items: []orders.OrderItem{
			{ProductID: "a", Name: "Rose <Lip> Tint", Qty: 2, UnitPrice: decimal.NewFromInt(100)},
			{ProductID: "b", Name: "Blush", Qty: 1, UnitPrice: decimal.NewFromInt(50)},
		},
		TotalAmount: decimal.NewFromInt(250),
		ShippingFee: decimal.NewFromInt(50),
		Status:      status,
	}
}

func TestStatusTemplatesCoverEveryStatus(t *testing.T) {
	t.Parallel()

	for _, s := range orders.AllStatuses {
		t.Run(string(s), func(t *testing.T) {
			o := sampleOrder(s)
			email, err := StatusEmail(o)
			require.NoError(t, err)
			assert.Equal(t, orders.ChannelEmail, email.Channel)
			assert.Equal(t, "alice@example.com", email.To)
			assert.NotEmpty(t, email.Subject)
			assert.Contains(t, email.Body, "ord-1")
			assert.Contains(t, email.Body, "₱250.00")
			assert.Contains(t, email.Body, "Rose &lt;Lip&gt; Tint")

			push, err := StatusPush(o, "https://push.example/a")
			require.NoError(t, err)
			assert.Equal(t, orders.ChannelPush, push.Channel)
			assert.Equal(t, "https://push.example/a", push.To)
			assert.Contains(t, push.Body, "ord-1")
			assert.Less(t, len(push.Body), len(email.Body))
		})
	}

	_, err := StatusEmail(sampleOrder("Lost"))
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)
}

func TestConfirmation(t *testing.T) {
	t.Parallel()

	n, err := Confirmation(sampleOrder(orders.StatusPlaced))
	require.NoError(t, err)
	assert.Equal(t, "Order confirmation #ord-1", n.Subject)
	assert.Contains(t, n.Body, "₱200.00")
	assert.Contains(t, n.Body, "shipping ₱50.00")
}

func TestDeliverRoutesByChannel(t *testing.T) {
	t.Parallel()
	f := &fakeNotifier{}
	ctx := context.Background()

	require.NoError(t, Deliver(ctx, f, Notification{Channel: orders.ChannelEmail, To: "a@x", Subject: "s", Body: "<p>b</p>"}))
	require.NoError(t, Deliver(ctx, f, Notification{Channel: orders.ChannelPush, To: "https://p", Subject: "t", Body: "b"}))
	assert.Equal(t, []sent{{"email", "a@x", "s", "<p>b</p>"}, {"push", "https://p", "t", "b"}}, f.calls)

	err := Deliver(ctx, f, Notification{Channel: "sms"})
	assert.ErrorIs(t, err, orders.ErrNotificationDelivery)

	f.emailErr = errors.New("550 mailbox unavailable")
	err = Deliver(ctx, f, Notification{Channel: orders.ChannelEmail})
	assert.ErrorIs(t, err, orders.ErrNotificationDelivery)
	assert.ErrorIs(t, err, f.emailErr)
}

func TestMultiWithMissingHalf(t *testing.T) {
	t.Parallel()
	f := &fakeNotifier{}
	m := Multi{Email: f}

	require.NoError(t, m.SendEmail(context.Background(), "a@x", "s", "b"))
	err := m.SendPush(context.Background(), "https://p", "t", "b")
	assert.ErrorIs(t, err, errChannelDisabled)
}

func TestDirectDispatcherCountsOutcomes(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	f := &fakeNotifier{pushErr: errors.New("gone")}
	d := NewDirectDispatcher(f, m, logx.Discard())

	require.NoError(t, d.Enqueue(context.Background(), Notification{Channel: orders.ChannelEmail, To: "a@x"}))
	require.Error(t, d.Enqueue(context.Background(), Notification{Channel: orders.ChannelPush, To: "https://p"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("email", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("push", "failed")))
}

type recordingEvents struct {
	topic string
	env   orders.Envelope
}

func (r *recordingEvents) PublishEvent(_ context.Context, topic string, env orders.Envelope) error {
	r.topic, r.env = topic, env
	return nil
}

func TestKafkaDispatcherWrapsNotification(t *testing.T) {
	t.Parallel()
	ev := &recordingEvents{}
	d := NewKafkaDispatcher(ev, "cosmetics-api")

	n := Notification{OrderID: "ord-1", Channel: orders.ChannelPush, To: "https://p", Subject: "t", Body: "b"}
	require.NoError(t, d.Enqueue(context.Background(), n))

	assert.Equal(t, orders.TopicNotifications, ev.topic)
	assert.Equal(t, orders.EventNotificationRequested, ev.env.EventType)
	assert.Equal(t, "ord-1", ev.env.CorrelationID)
	assert.Equal(t, "cosmetics-api", ev.env.Producer)
	got, err := kafkax.UnwrapPayload[Notification](ev.env.Payload)
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestWebPusher(t *testing.T) {
	t.Parallel()

	var got pushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		if strings.HasSuffix(r.URL.Path, "/gone") {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := NewWebPusher(time.Second)
	require.NoError(t, p.SendPush(context.Background(), srv.URL+"/sub/1", "Order shipped", "Order ord-1 is on its way."))
	assert.Equal(t, pushMessage{Title: "Order shipped", Body: "Order ord-1 is on its way."}, got)

	err := p.SendPush(context.Background(), srv.URL+"/gone", "t", "b")
	assert.ErrorContains(t, err, "410")
}

func TestSMTPMailerRejectsBadAddresses(t *testing.T) {
	t.Parallel()

	m, err := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 1025, From: "orders@cosmetics.local"})
	require.NoError(t, err)
	err = m.SendEmail(context.Background(), "not an address", "s", "<p>b</p>")
	assert.ErrorContains(t, err, "not an address")

	bad, err := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 1025, From: "nope"})
	require.NoError(t, err)
	assert.Error(t, bad.SendEmail(context.Background(), "a@example.com", "s", "b"))
}

func envelopeMessage(t *testing.T, eventID string, n Notification) kafkago.Message {
	t.Helper()
	env, err := kafkax.NewEnvelope(orders.EventNotificationRequested, "cosmetics-api", n.OrderID, time.Now(), n)
	require.NoError(t, err)
	env.EventID = eventID
	b, err := kafkax.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Topic: orders.TopicNotifications, Value: b}
}

func TestWorkerDeliversOnce(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	defer rdb.Close()
	f := &fakeNotifier{}
	m := metrics.New(prometheus.NewRegistry())
	w := NewWorker(f, rdb, "notifier", m, logx.Discard())

	msg := envelopeMessage(t, "evt-1", Notification{OrderID: "ord-1", Channel: orders.ChannelEmail, To: "a@x", Subject: "s", Body: "b"})
	require.NoError(t, w.Handle(context.Background(), msg))
	require.NoError(t, w.Handle(context.Background(), msg))

	assert.Len(t, f.calls, 1)
	assert.True(t, mr.Exists("dedup:notifier:evt-1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("email", "sent")))
}

func TestWorkerSwallowsDeliveryFailure(t *testing.T) {
	t.Parallel()
	f := &fakeNotifier{pushErr: errors.New("endpoint gone")}
	m := metrics.New(prometheus.NewRegistry())
	w := NewWorker(f, nil, "notifier", m, logx.Discard())

	msg := envelopeMessage(t, "evt-2", Notification{OrderID: "ord-1", Channel: orders.ChannelPush, To: "https://p"})
	assert.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("push", "failed")))
}

func TestWorkerSkipsGarbage(t *testing.T) {
	t.Parallel()
	f := &fakeNotifier{}
	w := NewWorker(f, nil, "notifier", nil, logx.Discard())

	assert.NoError(t, w.Handle(context.Background(), kafkago.Message{Value: []byte("{not json")}))

	other, err := kafkax.NewEnvelope(orders.EventOrderPlaced, "api", "ord-1", time.Now(), orders.OrderPlacedPayload{OrderID: "ord-1"})
	require.NoError(t, err)
	b, _ := kafkax.Marshal(other)
	assert.NoError(t, w.Handle(context.Background(), kafkago.Message{Value: b}))
	assert.Empty(t, f.calls)
}

func TestWorkerRetriesWhenDedupUnavailable(t *testing.T) {
	t.Parallel()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redisx.New(mr.Addr())
	defer rdb.Close()
	mr.Close()

	f := &fakeNotifier{}
	w := NewWorker(f, rdb, "notifier", nil, logx.Discard())
	msg := envelopeMessage(t, "evt-3", Notification{OrderID: "ord-1", Channel: orders.ChannelEmail, To: "a@x"})

	assert.Error(t, w.Handle(context.Background(), msg))
	assert.Empty(t, f.calls)
}
