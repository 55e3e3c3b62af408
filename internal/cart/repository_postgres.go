package cart

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wichananm65/storefront-checkout/internal/database"
	"github.com/wichananm65/storefront-checkout/internal/product"
)

type PostgresRepository struct {
	db *sqlx.DB
}

const (
	listCartQuery = `SELECT id, user_id, product_id, quantity, selected_options, updated_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY id`
	upsertCartQuery = `INSERT INTO cart_items (user_id, product_id, quantity, selected_options)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
			selected_options = EXCLUDED.selected_options,
			updated_at = now()`
	dropEmptiedLineQuery = `DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND quantity + $3 <= 0`
	decrementLineQuery = `UPDATE cart_items SET quantity = quantity + $3, updated_at = now()
		WHERE user_id = $1 AND product_id = $2`
	removeCartProductsQuery = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2::int[])`
	clearCartQuery          = `DELETE FROM cart_items WHERE user_id = $1`
)

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID int) ([]CartItem, error) {
	out := make([]CartItem, 0)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out, listCartQuery, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// Add applies qty to the user's line in one transaction. A decrement that
// would reach zero deletes the line instead.
func (r *PostgresRepository) Add(ctx context.Context, userID, productID, qty int, opts product.Options) ([]CartItem, error) {
	var items []CartItem
	err := database.NewTransactor(r.db).Transact(ctx, func(ctx context.Context) error {
		q := database.Conn(ctx, r.db)
		if qty > 0 {
			if _, err := q.ExecContext(ctx, upsertCartQuery, userID, productID, qty, opts); err != nil {
				return err
			}
		} else {
			if _, err := q.ExecContext(ctx, dropEmptiedLineQuery, userID, productID, qty); err != nil {
				return err
			}
			if _, err := q.ExecContext(ctx, decrementLineQuery, userID, productID, qty); err != nil {
				return err
			}
		}
		var err error
		items, err = r.List(ctx, userID)
		return err
	})
	return items, err
}

func (r *PostgresRepository) RemoveProducts(ctx context.Context, userID int, productIDs []int) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, removeCartProductsQuery, userID, pq.Array(productIDs))
	return err
}

func (r *PostgresRepository) Clear(ctx context.Context, userID int) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, clearCartQuery, userID)
	return err
}
