// Package inventory is the stock ledger: the only writer of product stock.
package inventory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ariefcatur/go-cosmetics-orders/internal/metrics"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
)

type Ledger struct {
	store   orders.StockStore
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewLedger(store orders.StockStore, m *metrics.Metrics, log *slog.Logger) *Ledger {
	return &Ledger{store: store, metrics: m, log: log}
}

// Reserve atomically takes qty units or fails with *orders.InsufficientStockError.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return orders.ErrInvalidQuantity
	}
	err := l.store.DecrementStock(ctx, productID, qty)
	switch {
	case err == nil:
		l.metrics.Reservation("reserved")
	case errors.Is(err, orders.ErrInsufficientStock):
		l.metrics.Reservation("rejected")
	default:
		l.metrics.Reservation("error")
	}
	return err
}

// Release gives qty units back. There is no shelf capacity to check against.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return orders.ErrInvalidQuantity
	}
	return l.store.IncrementStock(ctx, productID, qty)
}

// Available is a point-in-time read; it may be stale by the time it is used.
func (l *Ledger) Available(ctx context.Context, productID string) (int, error) {
	return l.store.StockOf(ctx, productID)
}

// ReserveAll reserves every item or none. On the first failure the
// reservations already taken by this call are released again and that
// failure is returned.
func (l *Ledger) ReserveAll(ctx context.Context, items []orders.ItemQty) error {
	taken := make([]orders.ItemQty, 0, len(items))
	for _, it := range items {
		if err := l.Reserve(ctx, it.ProductID, it.Qty); err != nil {
			if rerr := l.ReleaseAll(ctx, taken); rerr != nil {
				l.log.ErrorContext(ctx, "compensating release failed",
					"product_id", it.ProductID, "error", rerr)
				return errors.Join(err, rerr)
			}
			return err
		}
		taken = append(taken, it)
	}
	return nil
}

// ReleaseAll keeps going past individual failures and reports all of them.
func (l *Ledger) ReleaseAll(ctx context.Context, items []orders.ItemQty) error {
	var errs []error
	for _, it := range items {
		if err := l.Release(ctx, it.ProductID, it.Qty); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
