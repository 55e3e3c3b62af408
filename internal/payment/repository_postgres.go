package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/wichananm65/storefront-checkout/internal/database"
)

type PostgresRepository struct {
	db *sqlx.DB
}

const (
	paymentColumns = `id, order_id, payment_key, transaction_id, order_name, amount, customer_key, status,
		method, requested_at, approved_at, fail_reason, refund_amount, raw_response, confirm_key,
		created_at, updated_at`

	getByOrderIDQuery    = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`
	getByPaymentKeyQuery = `SELECT ` + paymentColumns + ` FROM payments WHERE payment_key = $1`
	listByOrderIDsQuery  = `SELECT ` + paymentColumns + `
		FROM payments
		WHERE order_id = ANY($1::int[])
		ORDER BY created_at DESC, id DESC`

	// a row that is paid, refunded or mid-confirmation is never reset
	upsertSessionQuery = `INSERT INTO payments (order_id, order_name, amount, customer_key, status, requested_at)
		VALUES ($1, $2, $3, $4, 'PENDING', $5)
		ON CONFLICT (order_id) DO UPDATE SET
			order_name = EXCLUDED.order_name,
			amount = EXCLUDED.amount,
			customer_key = EXCLUDED.customer_key,
			status = 'PENDING',
			requested_at = EXCLUDED.requested_at,
			payment_key = NULL,
			transaction_id = NULL,
			method = NULL,
			approved_at = NULL,
			fail_reason = NULL,
			refund_amount = 0,
			raw_response = NULL,
			confirm_key = NULL,
			updated_at = now()
		WHERE payments.status IN ('PENDING', 'FAILED') AND payments.confirm_key IS NULL
		RETURNING id, created_at, updated_at`

	claimQuery = `UPDATE payments
		SET confirm_key = $1, updated_at = now()
		WHERE id = $2 AND status = 'PENDING' AND confirm_key IS NULL`
	markPaidQuery = `UPDATE payments
		SET status = 'PAID', payment_key = $1, transaction_id = NULLIF($2, ''), method = $3,
			approved_at = $4, raw_response = $5, fail_reason = NULL, updated_at = now()
		WHERE id = $6 AND status = 'PENDING' AND confirm_key IS NOT NULL`
	markFailedQuery = `UPDATE payments
		SET status = 'FAILED', fail_reason = $1, confirm_key = NULL, updated_at = now()
		WHERE id = $2 AND status = 'PENDING'`
	applyRefundQuery = `UPDATE payments
		SET refund_amount = refund_amount + $1, status = $2,
			raw_response = COALESCE($3, raw_response), updated_at = now()
		WHERE id = $4 AND status IN ('PAID', 'PARTIALLY_REFUNDED') AND refund_amount + $1 <= amount`
)

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByOrderID(ctx context.Context, orderID int) (Payment, error) {
	return r.getOne(ctx, getByOrderIDQuery, orderID)
}

func (r *PostgresRepository) GetByPaymentKey(ctx context.Context, paymentKey string) (Payment, error) {
	return r.getOne(ctx, getByPaymentKeyQuery, paymentKey)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (Payment, error) {
	var p Payment
	if err := database.Conn(ctx, r.db).GetContext(ctx, &p, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

func (r *PostgresRepository) ListByOrderIDs(ctx context.Context, orderIDs []int) ([]Payment, error) {
	out := make([]Payment, 0)
	if len(orderIDs) == 0 {
		return out, nil
	}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out, listByOrderIDsQuery, pq.Array(orderIDs)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *Payment) error {
	err := database.Conn(ctx, r.db).QueryRowxContext(ctx, upsertSessionQuery,
		p.OrderID, p.OrderName, p.Amount, p.CustomerKey, p.RequestedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStatusChanged
	}
	if err != nil {
		return err
	}
	p.Status = StatusPending
	p.PaymentKey, p.TransactionID, p.Method, p.ApprovedAt = nil, nil, nil, nil
	p.FailReason, p.ConfirmKey = nil, nil
	p.RefundAmount = 0
	p.RawResponse = types.NullJSONText{}
	return nil
}

func (r *PostgresRepository) ClaimConfirmation(ctx context.Context, id int, confirmKey string) error {
	return r.execOne(ctx, ErrClaimLost, claimQuery, confirmKey, id)
}

func (r *PostgresRepository) MarkPaid(ctx context.Context, id int, u paidUpdate) error {
	return r.execOne(ctx, ErrStatusChanged, markPaidQuery,
		u.PaymentKey, u.TransactionID, u.Method, u.ApprovedAt, u.Raw, id)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id int, reason string) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, markFailedQuery, reason, id)
	return err
}

func (r *PostgresRepository) ApplyRefund(ctx context.Context, id int, amount int64, next Status, raw []byte) error {
	var rawArg any
	if raw != nil {
		rawArg = types.JSONText(raw)
	}
	return r.execOne(ctx, ErrStatusChanged, applyRefundQuery, amount, next, rawArg, id)
}

// execOne runs a conditional update and returns miss when no row matched.
func (r *PostgresRepository) execOne(ctx context.Context, miss error, query string, args ...any) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return miss
	}
	return nil
}
