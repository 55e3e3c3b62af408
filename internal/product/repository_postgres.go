package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wichananm65/storefront-checkout/internal/database"
)

type PostgresRepository struct {
	db *sqlx.DB
}

const (
	productColumns = `id, name, price, original_price, image, stock, is_active, created_at, updated_at`

	listProductsQuery = `SELECT ` + productColumns + `
		FROM products
		WHERE is_active
		ORDER BY id`
	getProductByIDQuery = `SELECT ` + productColumns + `
		FROM products
		WHERE id = $1`
	listProductsByIDsQuery = `SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1::int[])
		ORDER BY array_position($1::int[], id)`
	// conditional decrement: zero rows affected means not enough stock
	decrementStockQuery = `UPDATE products
		SET stock = stock - $1, updated_at = now()
		WHERE id = $2 AND stock >= $1`
	incrementStockQuery = `UPDATE products
		SET stock = stock + $1, updated_at = now()
		WHERE id = $2`
)

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	out := make([]Product, 0)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out, listProductsQuery); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Product, error) {
	var p Product
	if err := database.Conn(ctx, r.db).GetContext(ctx, &p, getProductByIDQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// ListByIDs returns products matching ids in the order the ids were given.
// An empty slice leads to an immediate empty result.
func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []int) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	out := make([]Product, 0, len(ids))
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out, listProductsByIDsQuery, pq.Array(ids)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) DecrementStock(ctx context.Context, id, qty int) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, decrementStockQuery, qty, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *PostgresRepository) IncrementStock(ctx context.Context, id, qty int) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, incrementStockQuery, qty, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
