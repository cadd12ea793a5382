package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-cosmetics-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo serves the catalog reads and the orders tables.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgres.WithTx(ctx, r.DB, fn)
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	var (
		p     Product
		price string
	)
	err := postgres.Q(ctx, r.DB).QueryRow(ctx, `
		SELECT id, name, price::text, stock, created_at, updated_at
		FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, &ProductError{ProductID: id, Err: ErrProductNotFound}
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return Product{}, fmt.Errorf("product %s price: %w", id, err)
	}
	return p, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := postgres.Q(ctx, r.DB).Query(ctx, `
		SELECT id, name, price::text, stock, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var (
			p     Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s price: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateOrder inserts the order header and its lines. Callers run it inside
// WithTx together with the stock reservation.
func (r *Repo) CreateOrder(ctx context.Context, o Order) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		q := postgres.Q(ctx, r.DB)
		if _, err := q.Exec(ctx, `
			INSERT INTO orders (id, user_id, email, status, total_amount, shipping_fee, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)`,
			o.ID, o.UserID, o.Email, string(o.Status), o.TotalAmount.String(), o.ShippingFee.String(), o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, it := range o.Items {
			if _, err := q.Exec(ctx, `
				INSERT INTO order_items (order_id, position, product_id, name, qty, unit_price)
				VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
				o.ID, i, it.ProductID, it.Name, it.Qty, it.UnitPrice.String(),
			); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
}

const orderColumns = `id::text, user_id, email, status, total_amount::text, shipping_fee::text, created_at, updated_at`

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	q := postgres.Q(ctx, r.DB)
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) || postgres.IsInvalidText(err) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if o.Items, err = r.items(ctx, q, id); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) ListOrdersByUser(ctx context.Context, userID string, p Page) ([]Order, error) {
	p = p.Normalize()
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, p.Limit, p.Offset)
}

func (r *Repo) ListOrders(ctx context.Context, p Page) ([]Order, error) {
	p = p.Normalize()
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, p.Limit, p.Offset)
}

// SetStatus only writes when the row still has the status the caller read.
func (r *Repo) SetStatus(ctx context.Context, id string, from, to Status, at time.Time) error {
	ct, err := postgres.Q(ctx, r.DB).Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`, id, string(from), string(to), at)
	if postgres.IsInvalidText(err) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetOrder(ctx, id); err != nil {
		return err
	}
	return ErrStatusConflict
}

func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	q := postgres.Q(ctx, r.DB)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Items, err = r.items(ctx, q, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repo) items(ctx context.Context, q postgres.Querier, orderID string) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, name, qty, unit_price::text
		FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	defer rows.Close()

	out := []OrderItem{}
	for rows.Next() {
		var (
			it    OrderItem
			price string
		)
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Qty, &price); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o               Order
		status          string
		total, shipping string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Email, &status, &total, &shipping, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	var err error
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return Order{}, err
	}
	if o.ShippingFee, err = decimal.NewFromString(shipping); err != nil {
		return Order{}, err
	}
	return o, nil
}
