// Package memory is an in-process implementation of the order store
// interfaces. A single mutex serializes every call; WithTx holds it for the
// whole callback and restores a snapshot if the callback fails.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
)

type Store struct {
	mu       sync.Mutex
	products map[string]orders.Product
	carts    map[string]orders.Cart
	orders   map[string]orders.Order
	now      func() time.Time
}

func New() *Store {
	return &Store{
		products: map[string]orders.Product{},
		carts:    map[string]orders.Cart{},
		orders:   map[string]orders.Order{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type txKey struct{ s *Store }

func (s *Store) inTx(ctx context.Context) bool {
	return ctx.Value(txKey{s}) != nil
}

func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{s}, true)); err != nil {
		s.products, s.carts, s.orders = snap.products, snap.carts, snap.orders
		return err
	}
	return nil
}

type state struct {
	products map[string]orders.Product
	carts    map[string]orders.Cart
	orders   map[string]orders.Order
}

func (s *Store) snapshot() state {
	st := state{
		products: make(map[string]orders.Product, len(s.products)),
		carts:    make(map[string]orders.Cart, len(s.carts)),
		orders:   make(map[string]orders.Order, len(s.orders)),
	}
	for k, v := range s.products {
		st.products[k] = v
	}
	for k, v := range s.carts {
		v.Items = append([]orders.CartItem(nil), v.Items...)
		st.carts[k] = v
	}
	for k, v := range s.orders {
		st.orders[k] = v
	}
	return st
}

// PutProduct seeds or replaces a catalog entry.
func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if old, ok := s.products[p.ID]; ok {
		p.CreatedAt = old.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.products[p.ID] = p
}

func (s *Store) DeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

// ---- orders.Catalog ----

func (s *Store) GetProduct(ctx context.Context, id string) (orders.Product, error) {
	defer s.lock(ctx)()
	p, ok := s.products[id]
	if !ok {
		return orders.Product{}, &orders.ProductError{ProductID: id, Err: orders.ErrProductNotFound}
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	defer s.lock(ctx)()
	out := make([]orders.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- orders.StockStore ----

func (s *Store) DecrementStock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return orders.ErrInvalidQuantity
	}
	defer s.lock(ctx)()
	p, ok := s.products[productID]
	if !ok {
		return &orders.ProductError{ProductID: productID, Err: orders.ErrProductNotFound}
	}
	if p.Stock < qty {
		return &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	p.UpdatedAt = s.now()
	s.products[productID] = p
	return nil
}

func (s *Store) IncrementStock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return orders.ErrInvalidQuantity
	}
	defer s.lock(ctx)()
	p, ok := s.products[productID]
	if !ok {
		return &orders.ProductError{ProductID: productID, Err: orders.ErrProductNotFound}
	}
	p.Stock += qty
	p.UpdatedAt = s.now()
	s.products[productID] = p
	return nil
}

func (s *Store) StockOf(ctx context.Context, productID string) (int, error) {
	defer s.lock(ctx)()
	p, ok := s.products[productID]
	if !ok {
		return 0, &orders.ProductError{ProductID: productID, Err: orders.ErrProductNotFound}
	}
	return p.Stock, nil
}

// ---- orders.CartStore ----

func (s *Store) GetCart(ctx context.Context, userID string) (*orders.Cart, error) {
	defer s.lock(ctx)()
	c, ok := s.carts[userID]
	if !ok {
		return nil, nil
	}
	c.Items = append([]orders.CartItem{}, c.Items...)
	return &c, nil
}

func (s *Store) SaveCart(ctx context.Context, cart orders.Cart, expected int64) (orders.Cart, error) {
	defer s.lock(ctx)()
	cur, ok := s.carts[cart.UserID]
	switch {
	case expected == 0 && ok:
		return orders.Cart{}, orders.ErrCartConflict
	case expected != 0 && (!ok || cur.Version != expected):
		return orders.Cart{}, orders.ErrCartConflict
	}
	cart.Version = expected + 1
	cart.UpdatedAt = s.now()
	cart.Items = append([]orders.CartItem{}, cart.Items...)
	s.carts[cart.UserID] = cart
	return cart, nil
}

func (s *Store) DeleteCart(ctx context.Context, userID string, expected int64) error {
	defer s.lock(ctx)()
	cur, ok := s.carts[userID]
	if !ok || cur.Version != expected {
		return orders.ErrCartConflict
	}
	delete(s.carts, userID)
	return nil
}

// ---- orders.OrderStore ----

func (s *Store) CreateOrder(ctx context.Context, o orders.Order) error {
	defer s.lock(ctx)()
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	s.orders[o.ID] = o
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	defer s.lock(ctx)()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string, p orders.Page) ([]orders.Order, error) {
	return s.list(ctx, p, func(o orders.Order) bool { return o.UserID == userID })
}

func (s *Store) ListOrders(ctx context.Context, p orders.Page) ([]orders.Order, error) {
	return s.list(ctx, p, func(orders.Order) bool { return true })
}

func (s *Store) SetStatus(ctx context.Context, id string, from, to orders.Status, at time.Time) error {
	defer s.lock(ctx)()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if o.Status != from {
		return orders.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = at
	s.orders[id] = o
	return nil
}

func (s *Store) list(ctx context.Context, p orders.Page, keep func(orders.Order) bool) ([]orders.Order, error) {
	defer s.lock(ctx)()
	p = p.Normalize()
	all := make([]orders.Order, 0)
	for _, o := range s.orders {
		if keep(o) {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if p.Offset >= len(all) {
		return []orders.Order{}, nil
	}
	end := p.Offset + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[p.Offset:end], nil
}
