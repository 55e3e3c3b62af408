package payment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/types"
)

var (
	ErrNotFound = errors.New("payment not found")
	// ErrClaimLost means the payment is no longer PENDING or another
	// confirmation already holds it.
	ErrClaimLost = errors.New("payment confirmation already claimed")
	// ErrStatusChanged means a conditional update found the row in an
	// unexpected state.
	ErrStatusChanged = errors.New("payment status changed concurrently")
)

type Repository interface {
	GetByOrderID(ctx context.Context, orderID int) (Payment, error)
	GetByPaymentKey(ctx context.Context, paymentKey string) (Payment, error)
	// ListByOrderIDs returns payments newest first.
	ListByOrderIDs(ctx context.Context, orderIDs []int) ([]Payment, error)
	// Upsert creates the order's payment or resets an unclaimed PENDING or
	// FAILED one to a fresh PENDING session. Anything else yields
	// ErrStatusChanged.
	Upsert(ctx context.Context, p *Payment) error
	ClaimConfirmation(ctx context.Context, id int, confirmKey string) error
	MarkPaid(ctx context.Context, id int, u paidUpdate) error
	// MarkFailed records the failure and releases the claim. A payment that
	// is not PENDING is left alone.
	MarkFailed(ctx context.Context, id int, reason string) error
	// ApplyRefund adds amount to the refunded total as long as it does not
	// exceed the captured amount.
	ApplyRefund(ctx context.Context, id int, amount int64, next Status, raw []byte) error
}

// InMemoryRepository is a simple in-memory implementation useful for tests.
type InMemoryRepository struct {
	mu     sync.Mutex
	byID   map[int]Payment
	nextID int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byID: make(map[int]Payment), nextID: 1}
}

func (r *InMemoryRepository) GetByOrderID(ctx context.Context, orderID int) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return Payment{}, ErrNotFound
}

func (r *InMemoryRepository) GetByPaymentKey(ctx context.Context, paymentKey string) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.PaymentKey != nil && *p.PaymentKey == paymentKey {
			return p, nil
		}
	}
	return Payment{}, ErrNotFound
}

func (r *InMemoryRepository) ListByOrderIDs(ctx context.Context, orderIDs []int) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[int]bool, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = true
	}
	out := make([]Payment, 0)
	for _, p := range r.byID {
		if want[p.OrderID] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Upsert(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for id, cur := range r.byID {
		if cur.OrderID != p.OrderID {
			continue
		}
		if (cur.Status != StatusPending && cur.Status != StatusFailed) || cur.ConfirmKey != nil {
			return ErrStatusChanged
		}
		p.ID, p.CreatedAt, p.UpdatedAt = id, cur.CreatedAt, now
		p.Status = StatusPending
		p.PaymentKey, p.TransactionID, p.Method, p.ApprovedAt = nil, nil, nil, nil
		p.FailReason, p.ConfirmKey = nil, nil
		p.RefundAmount = 0
		p.RawResponse.Valid = false
		r.byID[id] = *p
		return nil
	}
	p.ID = r.nextID
	r.nextID++
	p.Status = StatusPending
	p.CreatedAt, p.UpdatedAt = now, now
	r.byID[p.ID] = *p
	return nil
}

func (r *InMemoryRepository) ClaimConfirmation(ctx context.Context, id int, confirmKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != StatusPending || p.ConfirmKey != nil {
		return ErrClaimLost
	}
	p.ConfirmKey = &confirmKey
	p.UpdatedAt = time.Now().UTC()
	r.byID[id] = p
	return nil
}

func (r *InMemoryRepository) MarkPaid(ctx context.Context, id int, u paidUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != StatusPending || p.ConfirmKey == nil {
		return ErrStatusChanged
	}
	key, tx, method, approved := u.PaymentKey, u.TransactionID, u.Method, u.ApprovedAt
	p.Status = StatusPaid
	p.PaymentKey = &key
	if tx != "" {
		p.TransactionID = &tx
	}
	p.Method = &method
	p.ApprovedAt = &approved
	p.RawResponse = u.Raw
	p.FailReason = nil
	p.UpdatedAt = time.Now().UTC()
	r.byID[id] = p
	return nil
}

func (r *InMemoryRepository) MarkFailed(ctx context.Context, id int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != StatusPending {
		return nil
	}
	p.Status = StatusFailed
	p.FailReason = &reason
	p.ConfirmKey = nil
	p.UpdatedAt = time.Now().UTC()
	r.byID[id] = p
	return nil
}

func (r *InMemoryRepository) ApplyRefund(ctx context.Context, id int, amount int64, next Status, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !p.Status.Refundable() || p.RefundAmount+amount > p.Amount {
		return ErrStatusChanged
	}
	p.RefundAmount += amount
	p.Status = next
	if raw != nil {
		p.RawResponse = types.NullJSONText{JSONText: append(types.JSONText(nil), raw...), Valid: true}
	}
	p.UpdatedAt = time.Now().UTC()
	r.byID[id] = p
	return nil
}
