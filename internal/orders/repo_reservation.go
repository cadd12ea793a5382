package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-cosmetics-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockRepo keeps stock in products.stock and only touches it through
// conditional increments/decrements.
type StockRepo struct{ DB *pgxpool.Pool }

func (r *StockRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgres.WithTx(ctx, r.DB, fn)
}

// DecrementStock: single UPDATE guarded by stock >= qty, so concurrent
// decrements cannot both pass the check.
func (r *StockRepo) DecrementStock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	q := postgres.Q(ctx, r.DB)
	ct, err := q.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// nothing updated: either the product is gone or there is not enough
	stock, err := r.StockOf(ctx, productID)
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Requested: qty, Available: stock}
}

func (r *StockRepo) IncrementStock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ct, err := postgres.Q(ctx, r.DB).Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return &ProductError{ProductID: productID, Err: ErrProductNotFound}
	}
	return nil
}

func (r *StockRepo) StockOf(ctx context.Context, productID string) (int, error) {
	var stock int
	err := postgres.Q(ctx, r.DB).QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &ProductError{ProductID: productID, Err: ErrProductNotFound}
	}
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return stock, nil
}
