package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Customer is the identity forwarded by the gateway for the current request.
type Customer struct {
	UserID       string
	Email        string
	PushEndpoint string // kosong = belum daftar push
	Role         string
}

func (c Customer) IsAdmin() bool { return c.Role == RoleAdmin }

const RoleAdmin = "admin"

type CartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"quantity"`
}

// Cart is the stored form. Version is bumped on every write and is used as
// the optimistic concurrency token.
type Cart struct {
	UserID    string
	Items     []CartItem
	Version   int64
	UpdatedAt time.Time
}

func (c *Cart) Find(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

type CartLine struct {
	Product  Product         `json:"product"`
	Qty      int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CartView is a cart resolved against the current catalog. A user with no
// cart gets a view with no lines and a zero total.
type CartView struct {
	UserID string          `json:"user_id"`
	Lines  []CartLine      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

func EmptyCart(userID string) CartView {
	return CartView{UserID: userID, Lines: []CartLine{}, Total: decimal.Zero}
}

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderItem snapshots name and unit price at checkout so later catalog price
// changes do not alter historical orders.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty)))
}

// Quantities flattens order lines into ledger inputs.
func (o Order) Quantities() []ItemQty {
	out := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	return out
}

type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps paging to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
