// Package cart keeps one mutable cart per user. Quantities are checked
// against a stock snapshot only; nothing is reserved until checkout.
package cart

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/shopspring/decimal"
)

// StockReader is the read side of the ledger.
type StockReader interface {
	Available(ctx context.Context, productID string) (int, error)
}

// a concurrent writer bumped the version: re-read and re-apply
const maxAttempts = 3

type Store struct {
	carts   orders.CartStore
	catalog orders.Catalog
	stock   StockReader
	log     *slog.Logger
}

func NewStore(carts orders.CartStore, catalog orders.Catalog, stock StockReader, log *slog.Logger) *Store {
	return &Store{carts: carts, catalog: catalog, stock: stock, log: log}
}

// AddItem appends a new line. Adding a product that is already in the cart
// is rejected; callers change quantities with UpdateItem.
func (s *Store) AddItem(ctx context.Context, userID, productID string, qty int) (orders.CartView, error) {
	if qty <= 0 {
		return orders.CartView{}, orders.ErrInvalidQuantity
	}
	if err := s.checkStock(ctx, productID, qty); err != nil {
		return orders.CartView{}, err
	}
	return s.mutate(ctx, userID, true, func(c *orders.Cart) error {
		if c.Find(productID) >= 0 {
			return &orders.ProductError{ProductID: productID, Err: orders.ErrDuplicateItem}
		}
		c.Items = append(c.Items, orders.CartItem{ProductID: productID, Qty: qty})
		return nil
	})
}

// UpdateItem replaces the quantity of an existing line.
func (s *Store) UpdateItem(ctx context.Context, userID, productID string, qty int) (orders.CartView, error) {
	if qty <= 0 {
		return orders.CartView{}, orders.ErrInvalidQuantity
	}
	return s.mutate(ctx, userID, false, func(c *orders.Cart) error {
		i := c.Find(productID)
		if i < 0 {
			return &orders.ProductError{ProductID: productID, Err: orders.ErrItemNotFound}
		}
		if err := s.checkStock(ctx, productID, qty); err != nil {
			return err
		}
		c.Items[i].Qty = qty
		return nil
	})
}

// RemoveItem is idempotent: removing an absent product returns the cart as is.
func (s *Store) RemoveItem(ctx context.Context, userID, productID string) (orders.CartView, error) {
	v, err := s.mutate(ctx, userID, false, func(c *orders.Cart) error {
		i := c.Find(productID)
		if i < 0 {
			return errUnchanged
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	})
	if errors.Is(err, orders.ErrItemNotFound) {
		// no cart at all
		return orders.EmptyCart(userID), nil
	}
	return v, err
}

// Get resolves the cart against the current catalog. Lines whose product has
// been removed from the catalog are left out of the view.
func (s *Store) Get(ctx context.Context, userID string) (orders.CartView, error) {
	c, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return orders.CartView{}, err
	}
	if c == nil {
		return orders.EmptyCart(userID), nil
	}
	return s.resolve(ctx, *c)
}

var errUnchanged = errors.New("cart unchanged")

// mutate runs a read-modify-write under the cart version. apply must not
// have side effects; it may run more than once. The cart is only created
// when create is set and apply succeeds.
func (s *Store) mutate(ctx context.Context, userID string, create bool, apply func(*orders.Cart) error) (orders.CartView, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cur, err := s.carts.GetCart(ctx, userID)
		if err != nil {
			return orders.CartView{}, err
		}

		var (
			c        orders.Cart
			expected int64
		)
		switch {
		case cur != nil:
			c, expected = *cur, cur.Version
		case create:
			c = orders.Cart{UserID: userID}
		default:
			return orders.CartView{}, orders.ErrItemNotFound
		}

		if err := apply(&c); err != nil {
			if errors.Is(err, errUnchanged) {
				return s.resolve(ctx, c)
			}
			return orders.CartView{}, err
		}

		saved, err := s.carts.SaveCart(ctx, c, expected)
		if errors.Is(err, orders.ErrCartConflict) {
			s.log.DebugContext(ctx, "cart version conflict, retrying", "user_id", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return orders.CartView{}, err
		}
		return s.resolve(ctx, saved)
	}
	return orders.CartView{}, orders.ErrCartConflict
}

func (s *Store) checkStock(ctx context.Context, productID string, qty int) error {
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return err
	}
	available, err := s.stock.Available(ctx, productID)
	if err != nil {
		return err
	}
	if qty > available {
		return &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}
	return nil
}

func (s *Store) resolve(ctx context.Context, c orders.Cart) (orders.CartView, error) {
	v := orders.EmptyCart(c.UserID)
	for _, it := range c.Items {
		p, err := s.catalog.GetProduct(ctx, it.ProductID)
		if errors.Is(err, orders.ErrProductNotFound) {
			s.log.WarnContext(ctx, "cart references missing product", "user_id", c.UserID, "product_id", it.ProductID)
			continue
		}
		if err != nil {
			return orders.CartView{}, err
		}
		sub := p.Price.Mul(decimal.NewFromInt(int64(it.Qty)))
		v.Lines = append(v.Lines, orders.CartLine{Product: p, Qty: it.Qty, Subtotal: sub})
		v.Total = v.Total.Add(sub)
	}
	return v, nil
}
