package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-cosmetics-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CartRepo struct{ DB *pgxpool.Pool }

func (r *CartRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgres.WithTx(ctx, r.DB, fn)
}

func (r *CartRepo) GetCart(ctx context.Context, userID string) (*Cart, error) {
	q := postgres.Q(ctx, r.DB)
	c := Cart{UserID: userID}
	err := q.QueryRow(ctx, `SELECT version, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&c.Version, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT product_id, qty FROM cart_items
		WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("cart items: %w", err)
	}
	defer rows.Close()
	c.Items = []CartItem{}
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

func (r *CartRepo) SaveCart(ctx context.Context, cart Cart, expected int64) (Cart, error) {
	err := r.WithTx(ctx, func(ctx context.Context) error {
		q := postgres.Q(ctx, r.DB)
		if expected == 0 {
			if _, err := q.Exec(ctx, `INSERT INTO carts (user_id, version, updated_at) VALUES ($1, 1, NOW())`, cart.UserID); err != nil {
				if postgres.IsUniqueViolation(err) {
					return ErrCartConflict
				}
				return fmt.Errorf("insert cart: %w", err)
			}
			cart.Version = 1
		} else {
			err := q.QueryRow(ctx, `
				UPDATE carts SET version = version + 1, updated_at = NOW()
				WHERE user_id = $1 AND version = $2
				RETURNING version`, cart.UserID, expected).Scan(&cart.Version)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCartConflict
			}
			if err != nil {
				return fmt.Errorf("bump cart version: %w", err)
			}
		}

		if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, cart.UserID); err != nil {
			return fmt.Errorf("clear cart items: %w", err)
		}
		for i, it := range cart.Items {
			if _, err := q.Exec(ctx, `
				INSERT INTO cart_items (user_id, product_id, qty, position)
				VALUES ($1, $2, $3, $4)`, cart.UserID, it.ProductID, it.Qty, i); err != nil {
				return fmt.Errorf("insert cart item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (r *CartRepo) DeleteCart(ctx context.Context, userID string, expected int64) error {
	ct, err := postgres.Q(ctx, r.DB).Exec(ctx, `DELETE FROM carts WHERE user_id = $1 AND version = $2`, userID, expected)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrCartConflict
	}
	return nil
}
