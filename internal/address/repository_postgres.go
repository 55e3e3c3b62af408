package address

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/wichananm65/storefront-checkout/internal/database"
)

type PostgresRepository struct {
	db *sqlx.DB
}

const (
	addressColumns = `id, user_id, name, recipient, phone, zip_code, address_line1, address_line2, created_at, updated_at`

	listAddressesQuery = `SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = $1
		ORDER BY id`
	getAddressForUserQuery = `SELECT ` + addressColumns + `
		FROM addresses
		WHERE id = $1 AND user_id = $2`
	insertAddressQuery = `INSERT INTO addresses (user_id, name, recipient, phone, zip_code, address_line1, address_line2)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING ` + addressColumns
)

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID int) ([]Address, error) {
	out := make([]Address, 0)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out, listAddressesQuery, userID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) GetForUser(ctx context.Context, userID, addressID int) (Address, error) {
	var a Address
	err := database.Conn(ctx, r.db).GetContext(ctx, &a, getAddressForUserQuery, addressID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return a, err
}

func (r *PostgresRepository) Create(ctx context.Context, a Address) (Address, error) {
	var out Address
	err := database.Conn(ctx, r.db).GetContext(ctx, &out, insertAddressQuery,
		a.UserID, a.Name, a.Recipient, a.Phone, a.ZipCode, a.AddressLine1, a.AddressLine2)
	return out, err
}
