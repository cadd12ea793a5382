package orders

import (
	"context"
	"time"
)

// Transactor runs fn atomically. Stores join a transaction already carried by
// ctx instead of opening a new one.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// StockStore holds the authoritative per-product counters. DecrementStock
// must be a single conditional update: it never leaves stock negative.
type StockStore interface {
	DecrementStock(ctx context.Context, productID string, qty int) error
	IncrementStock(ctx context.Context, productID string, qty int) error
	StockOf(ctx context.Context, productID string) (int, error)
}

type CartStore interface {
	// GetCart returns nil, nil when the user has no cart.
	GetCart(ctx context.Context, userID string) (*Cart, error)
	// SaveCart writes cart if the stored version still equals expected
	// (0 = must not exist yet) and returns it with the new version.
	SaveCart(ctx context.Context, cart Cart, expected int64) (Cart, error)
	DeleteCart(ctx context.Context, userID string, expected int64) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrdersByUser(ctx context.Context, userID string, p Page) ([]Order, error)
	ListOrders(ctx context.Context, p Page) ([]Order, error)
	// SetStatus is a compare-and-set on the current status; at becomes the
	// order's updated_at.
	SetStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}

// PushDirectory remembers the last push endpoint each user presented, so
// status changes made by someone else can still reach them.
type PushDirectory interface {
	PushEndpoint(ctx context.Context, userID string) (string, error)
	SetPushEndpoint(ctx context.Context, userID, endpoint string) error
}

// EventPublisher hands an envelope to the event bus. Implementations must
// not block on the broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, env Envelope) error
}
