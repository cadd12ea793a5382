// Package lifecycle moves orders through their statuses and carries out the
// side effects of each move.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-cosmetics-orders/internal/clock"
	kafkax "github.com/ariefcatur/go-cosmetics-orders/internal/kafka"
	"github.com/ariefcatur/go-cosmetics-orders/internal/notify"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/ariefcatur/go-cosmetics-orders/internal/redisx"
)

type Ledger interface {
	Release(ctx context.Context, productID string, qty int) error
}

type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// StatusCache is advisory; a miss or failure falls back to the store.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (string, bool)
	Set(ctx context.Context, orderID, status string, at time.Time) error
	Invalidate(ctx context.Context, orderID string) error
}

type Deps struct {
	Tx         orders.Transactor
	Orders     orders.OrderStore
	Ledger     Ledger
	Locker     Locker
	Push       orders.PushDirectory
	Dispatcher notify.Dispatcher
	Events     orders.EventPublisher // optional
	Cache      StatusCache           // optional
	Clock      clock.Clock
	Log        *slog.Logger
}

type Manager struct {
	Deps
	service string
}

func New(d Deps, service string) *Manager {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	return &Manager{Deps: d, service: service}
}

// UpdateStatus applies one transition. The status write, and the stock
// release for a cancellation, commit together; notifications follow the
// commit and cannot undo it.
func (m *Manager) UpdateStatus(ctx context.Context, orderID, raw string) (string, error) {
	next, err := orders.ParseStatus(raw)
	if err != nil {
		return "", err
	}

	release, err := m.Locker.Acquire(ctx, fmt.Sprintf(redisx.KeyOrderLock, orderID))
	if errors.Is(err, orders.ErrLockBusy) {
		return "", orders.ErrStatusConflict
	}
	if err != nil {
		return "", err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			m.Log.WarnContext(ctx, "order lock release failed", "order_id", orderID, "error", err)
		}
	}()

	var (
		prev     orders.Order
		released []orders.ItemQty
		at       = m.Clock.Now()
	)
	err = m.Tx.WithTx(ctx, func(ctx context.Context) error {
		o, err := m.Orders.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !orders.CanTransition(o.Status, next) {
			return fmt.Errorf("%w: order is %s", orders.ErrInvalidTransition, o.Status)
		}
		if next == orders.StatusCancelled {
			if released, err = m.releaseStock(ctx, o); err != nil {
				return err
			}
		}
		if err := m.Orders.SetStatus(ctx, o.ID, o.Status, next, at); err != nil {
			return err
		}
		prev = o
		return nil
	})
	if err != nil {
		return "", err
	}

	updated := prev
	updated.Status = next
	updated.UpdatedAt = at
	m.Log.InfoContext(ctx, "order status updated",
		"order_id", orderID, "from", prev.Status, "to", next, "stock_released", len(released) > 0)

	m.refreshCache(ctx, updated)
	m.publishChanged(ctx, prev.Status, updated, released)
	m.notify(ctx, updated)

	return fmt.Sprintf("Order %s status updated to %s", orderID, next), nil
}

// releaseStock returns every line's quantity to stock. Lines whose product
// has left the catalog have nowhere to go and are skipped.
func (m *Manager) releaseStock(ctx context.Context, o orders.Order) ([]orders.ItemQty, error) {
	var released []orders.ItemQty
	for _, it := range o.Quantities() {
		err := m.Ledger.Release(ctx, it.ProductID, it.Qty)
		if errors.Is(err, orders.ErrProductNotFound) {
			m.Log.WarnContext(ctx, "release skipped, product no longer in catalog",
				"order_id", o.ID, "product_id", it.ProductID, "qty", it.Qty)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("release stock: %w", err)
		}
		released = append(released, it)
	}
	return released, nil
}

func (m *Manager) Get(ctx context.Context, orderID string) (orders.Order, error) {
	return m.Orders.GetOrder(ctx, orderID)
}

func (m *Manager) ListForUser(ctx context.Context, userID string, p orders.Page) ([]orders.Order, error) {
	return m.Orders.ListOrdersByUser(ctx, userID, p)
}

func (m *Manager) ListAll(ctx context.Context, p orders.Page) ([]orders.Order, error) {
	return m.Orders.ListOrders(ctx, p)
}

// CachedStatus reads through the status cache. Transitions themselves never
// read it.
func (m *Manager) CachedStatus(ctx context.Context, orderID string) (orders.Status, error) {
	if m.Cache != nil {
		if s, ok := m.Cache.Get(ctx, orderID); ok {
			return orders.Status(s), nil
		}
	}
	o, err := m.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if m.Cache != nil {
		if err := m.Cache.Set(ctx, o.ID, string(o.Status), o.UpdatedAt); err != nil {
			m.Log.DebugContext(ctx, "status cache set failed", "order_id", o.ID, "error", err)
		}
	}
	return o.Status, nil
}

// refreshCache writes the new status through. Set refuses entries older than
// the cached one, so a read that raced the transition cannot bring the old
// status back.
func (m *Manager) refreshCache(ctx context.Context, o orders.Order) {
	if m.Cache == nil {
		return
	}
	err := m.Cache.Set(ctx, o.ID, string(o.Status), o.UpdatedAt)
	if err == nil {
		return
	}
	m.Log.WarnContext(ctx, "status cache set failed", "order_id", o.ID, "error", err)
	if err := m.Cache.Invalidate(ctx, o.ID); err != nil {
		m.Log.WarnContext(ctx, "status cache invalidate failed", "order_id", o.ID, "error", err)
	}
}

func (m *Manager) publishChanged(ctx context.Context, from orders.Status, o orders.Order, released []orders.ItemQty) {
	if m.Events == nil {
		return
	}
	env, err := kafkax.NewEnvelope(orders.EventOrderStatusChanged, m.service, o.ID, o.UpdatedAt, orders.OrderStatusChangedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		From:          from,
		To:            o.Status,
		StockReleased: released,
	})
	if err == nil {
		err = m.Events.PublishEvent(ctx, orders.TopicOrderStatusChanged, env)
	}
	if err != nil {
		m.Log.WarnContext(ctx, "publish status change failed", "order_id", o.ID, "error", err)
	}
}

// notify sends the email and the push independently; neither failure is
// returned.
func (m *Manager) notify(ctx context.Context, o orders.Order) {
	if n, err := notify.StatusEmail(o); err != nil {
		m.notifyFailed(ctx, o.ID, orders.ChannelEmail, err)
	} else if err := m.Dispatcher.Enqueue(ctx, n); err != nil {
		m.notifyFailed(ctx, o.ID, orders.ChannelEmail, err)
	}

	endpoint, err := m.pushEndpoint(ctx, o.UserID)
	if err != nil {
		m.notifyFailed(ctx, o.ID, orders.ChannelPush, err)
		return
	}
	if endpoint == "" {
		m.Log.WarnContext(ctx, "no push endpoint, push skipped", "order_id", o.ID, "user_id", o.UserID)
		return
	}
	if n, err := notify.StatusPush(o, endpoint); err != nil {
		m.notifyFailed(ctx, o.ID, orders.ChannelPush, err)
	} else if err := m.Dispatcher.Enqueue(ctx, n); err != nil {
		m.notifyFailed(ctx, o.ID, orders.ChannelPush, err)
	}
}

func (m *Manager) pushEndpoint(ctx context.Context, userID string) (string, error) {
	if m.Push == nil {
		return "", nil
	}
	return m.Push.PushEndpoint(ctx, userID)
}

func (m *Manager) notifyFailed(ctx context.Context, orderID string, ch orders.Channel, err error) {
	m.Log.WarnContext(ctx, "NotificationDeliveryFailed", "order_id", orderID, "channel", ch, "error", err)
}
