// Package checkout turns a user's cart into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-cosmetics-orders/internal/clock"
	kafkax "github.com/ariefcatur/go-cosmetics-orders/internal/kafka"
	"github.com/ariefcatur/go-cosmetics-orders/internal/metrics"
	"github.com/ariefcatur/go-cosmetics-orders/internal/notify"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/ariefcatur/go-cosmetics-orders/internal/redisx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Ledger interface {
	ReserveAll(ctx context.Context, items []orders.ItemQty) error
}

// Locker hands out non-blocking advisory locks; a held key returns
// orders.ErrLockBusy.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type Deps struct {
	Tx         orders.Transactor
	Carts      orders.CartStore
	Catalog    orders.Catalog
	Orders     orders.OrderStore
	Ledger     Ledger
	Locker     Locker
	Dispatcher notify.Dispatcher
	Events     orders.EventPublisher // optional
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Log        *slog.Logger
}

type Engine struct {
	Deps
	shippingFee decimal.Decimal
	service     string
}

func New(d Deps, shippingFee decimal.Decimal, service string) *Engine {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	return &Engine{Deps: d, shippingFee: shippingFee, service: service}
}

// Checkout reserves stock for every cart line, records the order and clears
// the cart as one unit. On any failure stock and cart are left as they were.
func (e *Engine) Checkout(ctx context.Context, c orders.Customer) (orders.Order, error) {
	release, err := e.Locker.Acquire(ctx, fmt.Sprintf(redisx.KeyCheckoutLock, c.UserID))
	if errors.Is(err, orders.ErrLockBusy) {
		e.Metrics.Checkout("busy")
		return orders.Order{}, orders.ErrCheckoutInProgress
	}
	if err != nil {
		e.Metrics.Checkout("error")
		return orders.Order{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			e.Log.WarnContext(ctx, "checkout lock release failed", "user_id", c.UserID, "error", err)
		}
	}()

	var order orders.Order
	err = e.Tx.WithTx(ctx, func(ctx context.Context) error {
		cart, err := e.Carts.GetCart(ctx, c.UserID)
		if err != nil {
			return err
		}
		if cart == nil || len(cart.Items) == 0 {
			return orders.ErrEmptyCart
		}

		items := make([]orders.OrderItem, 0, len(cart.Items))
		total := decimal.Zero
		for _, ci := range cart.Items {
			p, err := e.Catalog.GetProduct(ctx, ci.ProductID)
			if err != nil {
				return err
			}
			it := orders.OrderItem{ProductID: p.ID, Name: p.Name, Qty: ci.Qty, UnitPrice: p.Price}
			items = append(items, it)
			total = total.Add(it.Subtotal())
		}

		now := e.Clock.Now()
		order = orders.Order{
			ID:          uuid.NewString(),
			UserID:      c.UserID,
			Email:       c.Email,
			Items:       items,
			TotalAmount: total,
			ShippingFee: e.shippingFee,
			Status:      orders.StatusPlaced,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.Ledger.ReserveAll(ctx, order.Quantities()); err != nil {
			return err
		}
		if err := e.Orders.CreateOrder(ctx, order); err != nil {
			return err
		}
		return e.Carts.DeleteCart(ctx, c.UserID, cart.Version)
	})
	if err != nil {
		e.Metrics.Checkout(result(err))
		if result(err) == "error" {
			e.Log.ErrorContext(ctx, "checkout failed", "user_id", c.UserID, "error", err)
		}
		return orders.Order{}, err
	}
	e.Metrics.Checkout("placed")
	e.Log.InfoContext(ctx, "order placed", "order_id", order.ID, "user_id", c.UserID,
		"total", order.TotalAmount.StringFixed(2), "items", len(order.Items))

	e.publishPlaced(ctx, order)
	e.sendConfirmation(ctx, order)
	return order, nil
}

func result(err error) string {
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, orders.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, orders.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, orders.ErrCartConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (e *Engine) publishPlaced(ctx context.Context, o orders.Order) {
	if e.Events == nil {
		return
	}
	env, err := kafkax.NewEnvelope(orders.EventOrderPlaced, e.service, o.ID, e.Clock.Now(), orders.OrderPlacedPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
	})
	if err == nil {
		err = e.Events.PublishEvent(ctx, orders.TopicOrderPlaced, env)
	}
	if err != nil {
		e.Log.WarnContext(ctx, "publish order placed failed", "order_id", o.ID, "error", err)
	}
}

func (e *Engine) sendConfirmation(ctx context.Context, o orders.Order) {
	n, err := notify.Confirmation(o)
	if err == nil {
		err = e.Dispatcher.Enqueue(ctx, n)
	}
	if err != nil {
		e.Log.WarnContext(ctx, "order confirmation not sent",
			"order_id", o.ID, "channel", orders.ChannelEmail, "error", err)
	}
}
