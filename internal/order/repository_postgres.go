package order

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
	orderColumns = `id, order_number, user_id, address_id, total_amount, shipping_fee, tax_amount,
		notes, status, tracking_number, created_at, updated_at`

	insertOrderQuery = `INSERT INTO orders
		(order_number, user_id, address_id, total_amount, shipping_fee, tax_amount, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	insertItemQuery = `INSERT INTO order_items
		(order_id, product_id, product_name, price, original_price, image, quantity, selected_options)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	insertHistoryQuery = `INSERT INTO order_status_history (order_id, status, note)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	getOrderByIDQuery     = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByNumberQuery = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	listOrdersByUserQuery = `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	listItemsQuery = `SELECT id, order_id, product_id, product_name, price, original_price, image,
			quantity, selected_options
		FROM order_items
		WHERE order_id = ANY($1::int[])
		ORDER BY order_id, id`
	listHistoryQuery = `SELECT id, order_id, status, note, created_at
		FROM order_status_history
		WHERE order_id = ANY($1::int[])
		ORDER BY order_id, created_at, id`

	// compare-and-set on the current status
	updateStatusQuery = `UPDATE orders
		SET status = $1, tracking_number = COALESCE($2, tracking_number), updated_at = now()
		WHERE id = $3 AND status = $4`
	orderExistsQuery = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create expects to run inside a transaction so the order, its items and the
// first history row land together.
func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	q := database.Conn(ctx, r.db)
	if err := q.QueryRowxContext(ctx, insertOrderQuery,
		o.OrderNumber, o.UserID, o.AddressID, o.TotalAmount, o.ShippingFee, o.TaxAmount, o.Notes, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := q.QueryRowxContext(ctx, insertItemQuery,
			o.ID, it.ProductID, it.ProductName, it.Price, it.OriginalPrice, it.Image, it.Quantity, it.SelectedOptions,
		).Scan(&it.ID); err != nil {
			return err
		}
	}
	for i := range o.History {
		o.History[i].OrderID = o.ID
		if err := r.AppendHistory(ctx, &o.History[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Order, error) {
	return r.getOne(ctx, getOrderByIDQuery, id)
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return r.getOne(ctx, getOrderByNumberQuery, orderNumber)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (Order, error) {
	var o Order
	if err := database.Conn(ctx, r.db).GetContext(ctx, &o, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	orders := []Order{o}
	if err := r.loadChildren(ctx, orders); err != nil {
		return Order{}, err
	}
	return orders[0], nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	out := make([]Order, 0)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out, listOrdersByUserQuery, userID); err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadChildren fills items and history with one query each.
func (r *PostgresRepository) loadChildren(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int, len(orders))
	index := make(map[int]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = make([]Item, 0)
		orders[i].History = make([]StatusHistory, 0)
	}

	q := database.Conn(ctx, r.db)
	var items []Item
	if err := q.SelectContext(ctx, &items, listItemsQuery, pq.Array(ids)); err != nil {
		return err
	}
	for _, it := range items {
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}

	var history []StatusHistory
	if err := q.SelectContext(ctx, &history, listHistoryQuery, pq.Array(ids)); err != nil {
		return err
	}
	for _, h := range history {
		i := index[h.OrderID]
		orders[i].History = append(orders[i].History, h)
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int, from, to Status, trackingNumber *string) error {
	q := database.Conn(ctx, r.db)
	res, err := q.ExecContext(ctx, updateStatusQuery, to, trackingNumber, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := q.QueryRowxContext(ctx, orderExistsQuery, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusChanged
}

func (r *PostgresRepository) AppendHistory(ctx context.Context, h *StatusHistory) error {
	return database.Conn(ctx, r.db).QueryRowxContext(ctx, insertHistoryQuery, h.OrderID, h.Status, h.Note).
		Scan(&h.ID, &h.CreatedAt)
}
