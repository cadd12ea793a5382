package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-cosmetics-orders/internal/logx"
	"github.com/ariefcatur/go-cosmetics-orders/internal/memory"
	"github.com/ariefcatur/go-cosmetics-orders/internal/metrics"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T, stock map[string]int) (*Ledger, *memory.Store, *metrics.Metrics) {
	t.Helper()
	s := memory.New()
	for id, n := range stock {
		s.PutProduct(orders.Product{ID: id, Name: id, Price: decimal.NewFromInt(10), Stock: n})
	}
	m := metrics.New(prometheus.NewRegistry())
	return NewLedger(s, m, logx.Discard()), s, m
}

func stockOf(t *testing.T, s *memory.Store, id string) int {
	t.Helper()
	n, err := s.StockOf(context.Background(), id)
	require.NoError(t, err)
	return n
}

func TestReserve(t *testing.T) {
	t.Parallel()
	l, s, m := newLedger(t, map[string]int{"a": 3})
	ctx := context.Background()

	require.NoError(t, l.Reserve(ctx, "a", 2))
	assert.Equal(t, 1, stockOf(t, s, "a"))

	err := l.Reserve(ctx, "a", 2)
	var ise *orders.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, orders.InsufficientStockError{ProductID: "a", Requested: 2, Available: 1}, *ise)
	assert.Equal(t, 1, stockOf(t, s, "a"))

	assert.ErrorIs(t, l.Reserve(ctx, "a", 0), orders.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Reserve(ctx, "zz", 1), orders.ErrProductNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues("reserved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues("rejected")))
}

func TestReserveLastUnitOnlyOnce(t *testing.T) {
	t.Parallel()
	l, s, _ := newLedger(t, map[string]int{"a": 1})

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.Reserve(context.Background(), "a", 1)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, orders.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Zero(t, stockOf(t, s, "a"))
}

func TestReleaseHasNoUpperBound(t *testing.T) {
	t.Parallel()
	l, s, _ := newLedger(t, map[string]int{"a": 0})
	ctx := context.Background()

	require.NoError(t, l.Release(ctx, "a", 7))
	assert.Equal(t, 7, stockOf(t, s, "a"))
	assert.ErrorIs(t, l.Release(ctx, "a", -1), orders.ErrInvalidQuantity)

	n, err := l.Available(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestReserveAllIsAllOrNothing(t *testing.T) {
	t.Parallel()
	l, s, _ := newLedger(t, map[string]int{"a": 5, "b": 0, "c": 4})

	err := l.ReserveAll(context.Background(), []orders.ItemQty{
		{ProductID: "a", Qty: 2},
		{ProductID: "c", Qty: 1},
		{ProductID: "b", Qty: 1},
	})
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.Equal(t, "b", orders.ProductOf(err))

	assert.Equal(t, 5, stockOf(t, s, "a"))
	assert.Equal(t, 4, stockOf(t, s, "c"))
	assert.Zero(t, stockOf(t, s, "b"))
}

func TestReserveAllSuccess(t *testing.T) {
	t.Parallel()
	l, s, _ := newLedger(t, map[string]int{"a": 5, "b": 1})

	require.NoError(t, l.ReserveAll(context.Background(), []orders.ItemQty{
		{ProductID: "a", Qty: 2},
		{ProductID: "b", Qty: 1},
	}))
	assert.Equal(t, 3, stockOf(t, s, "a"))
	assert.Zero(t, stockOf(t, s, "b"))
}

type flakyStock struct {
	orders.StockStore
	failIncrement bool
}

func (f *flakyStock) IncrementStock(ctx context.Context, id string, qty int) error {
	if f.failIncrement {
		return errors.New("connection reset")
	}
	return f.StockStore.IncrementStock(ctx, id, qty)
}

func TestReserveAllReportsFailedCompensation(t *testing.T) {
	t.Parallel()
	s := memory.New()
	s.PutProduct(orders.Product{ID: "a", Stock: 5})
	s.PutProduct(orders.Product{ID: "b", Stock: 0})
	l := NewLedger(&flakyStock{StockStore: s, failIncrement: true}, nil, logx.Discard())

	err := l.ReserveAll(context.Background(), []orders.ItemQty{{ProductID: "a", Qty: 1}, {ProductID: "b", Qty: 1}})
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.ErrorContains(t, err, "connection reset")
}

func TestReleaseAllContinuesPastFailures(t *testing.T) {
	t.Parallel()
	l, s, _ := newLedger(t, map[string]int{"a": 0, "c": 0})

	err := l.ReleaseAll(context.Background(), []orders.ItemQty{
		{ProductID: "a", Qty: 1},
		{ProductID: "missing", Qty: 1},
		{ProductID: "c", Qty: 2},
	})
	require.ErrorIs(t, err, orders.ErrProductNotFound)
	assert.Equal(t, 1, stockOf(t, s, "a"))
	assert.Equal(t, 2, stockOf(t, s, "c"))
}
