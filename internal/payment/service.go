package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/database"
	"github.com/wichananm65/storefront-checkout/internal/logger"
	"github.com/wichananm65/storefront-checkout/internal/order"
	"github.com/wichananm65/storefront-checkout/internal/toss"
)

// Orders is the part of the order service payments depend on.
type Orders interface {
	Get(ctx context.Context, orderID, userID int) (order.Order, error)
	GetAny(ctx context.Context, orderID int) (order.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (order.Order, error)
	ListByUser(ctx context.Context, userID int) ([]order.Order, error)
	Transition(ctx context.Context, orderID int, next order.Status, note string) (order.Order, error)
}

// Gateway is the payment provider.
type Gateway interface {
	Confirm(ctx context.Context, req toss.ConfirmRequest) (*toss.Payment, error)
	Cancel(ctx context.Context, paymentKey string, req toss.CancelRequest) (*toss.Payment, error)
}

// ErrAmountMismatch is returned when the amount reported by the client differs
// from the stored payment amount.
var ErrAmountMismatch = apperr.BadRequest("payment amount mismatch")

const (
	defaultSuccessURL = "/checkout/success"
	defaultFailURL    = "/checkout/fail"
)

type Service struct {
	repo    Repository
	orders  Orders
	gateway Gateway
	tx      database.Transactor
	now     func() time.Time
}

func NewService(repo Repository, orders Orders, gateway Gateway, tx database.Transactor) *Service {
	if tx == nil {
		tx = database.NopTransactor{}
	}
	return &Service{repo: repo, orders: orders, gateway: gateway, tx: tx, now: time.Now}
}

// CreateSession prepares (or re-prepares) the payment for an unpaid order.
func (s *Service) CreateSession(ctx context.Context, userID int, in SessionInput) (Session, error) {
	ord, err := s.orders.Get(ctx, in.OrderID, userID)
	if err != nil {
		return Session{}, err
	}

	existing, err := s.repo.GetByOrderID(ctx, ord.ID)
	switch {
	case err == nil && existing.Status.Settled():
		return Session{}, apperr.Conflict("order already paid")
	case err != nil && !errors.Is(err, ErrNotFound):
		return Session{}, apperr.Internal("could not load payment", err)
	}
	if ord.Status != order.StatusPending {
		return Session{}, apperr.BadRequest("order is not awaiting payment (status %s)", ord.Status)
	}

	p := Payment{
		OrderID:     ord.ID,
		OrderName:   OrderName(ord.Items),
		Amount:      ord.PayableAmount(),
		CustomerKey: customerKey(in.CustomerKey, userID),
		Status:      StatusPending,
		RequestedAt: s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, &p); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return Session{}, apperr.Conflict("payment confirmation already in progress")
		}
		return Session{}, apperr.Internal("could not create payment session", err)
	}

	session := Session{
		PaymentID:   p.ID,
		OrderID:     ord.OrderNumber,
		OrderName:   p.OrderName,
		Amount:      p.Amount,
		CustomerKey: p.CustomerKey,
		SuccessURL:  orDefault(in.SuccessURL, defaultSuccessURL),
		FailURL:     orDefault(in.FailURL, defaultFailURL),
	}
	logger.InfoContext(ctx, "payment session created",
		"orderId", ord.ID, "orderNumber", ord.OrderNumber, "amount", p.Amount)
	return session, nil
}

// OrderName is the single item's name, or "<first> 외 N건" for more lines.
func OrderName(items []order.Item) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0].ProductName
	}
	return fmt.Sprintf("%s 외 %d건", items[0].ProductName, len(items)-1)
}

func customerKey(explicit string, userID int) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if userID > 0 {
		return fmt.Sprintf("user-%d", userID)
	}
	return "ANONYMOUS"
}

// ConfirmKey is the idempotency key stored for a provider payment key.
func ConfirmKey(paymentKey string) string {
	sum := sha256.Sum256([]byte(paymentKey))
	return hex.EncodeToString(sum[:])
}

// Confirm approves the payment with the provider after the customer returns
// from the payment window. Replaying a confirmed paymentKey returns the stored
// result without calling the provider again.
func (s *Service) Confirm(ctx context.Context, userID int, in ConfirmInput) (Detail, error) {
	if in.PaymentKey == "" || in.OrderID == "" {
		return Detail{}, apperr.BadRequest("paymentKey and orderId are required")
	}
	ord, err := s.orders.GetByNumber(ctx, in.OrderID)
	if err != nil {
		return Detail{}, err
	}
	if ord.UserID != userID {
		return Detail{}, apperr.NotFound("order not found")
	}
	p, err := s.repo.GetByOrderID(ctx, ord.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Detail{}, apperr.NotFound("payment not found")
		}
		return Detail{}, apperr.Internal("could not load payment", err)
	}
	if in.Amount != p.Amount {
		logger.WarnContext(ctx, "payment amount mismatch",
			"orderId", ord.ID, "expected", p.Amount, "received", in.Amount)
		return Detail{}, ErrAmountMismatch
	}

	key := ConfirmKey(in.PaymentKey)
	if p.Status.Settled() {
		if p.ConfirmKey != nil && *p.ConfirmKey == key {
			return Detail{Payment: p, Order: ord}, nil
		}
		return Detail{}, apperr.Conflict("order already paid")
	}
	if p.Status == StatusFailed {
		return Detail{}, apperr.BadRequest("payment failed, create a new payment session to retry")
	}
	if ord.Status != order.StatusPending {
		return Detail{}, apperr.BadRequest("order is not awaiting payment (status %s)", ord.Status)
	}
	if err := s.repo.ClaimConfirmation(ctx, p.ID, key); err != nil {
		if errors.Is(err, ErrClaimLost) {
			return Detail{}, apperr.Conflict("payment confirmation already in progress")
		}
		return Detail{}, apperr.Internal("could not claim payment", err)
	}

	tp, err := s.gateway.Confirm(ctx, toss.ConfirmRequest{PaymentKey: in.PaymentKey, OrderID: ord.OrderNumber, Amount: p.Amount})
	if err != nil {
		return Detail{}, s.fail(ctx, p, ord, err)
	}

	method, ok := MethodFromProvider(tp.Method, easyPayProvider(tp))
	if !ok {
		logger.WarnContext(ctx, "unknown payment method, recording as card",
			"method", tp.Method, "easyPayProvider", easyPayProvider(tp), "paymentKey", in.PaymentKey)
	}
	approvedAt := s.now().UTC()
	if tp.ApprovedAt != nil {
		approvedAt = tp.ApprovedAt.UTC()
	}
	update := paidUpdate{
		PaymentKey:    in.PaymentKey,
		TransactionID: tp.TxKey(),
		Method:        method,
		ApprovedAt:    approvedAt,
		Raw:           types.NullJSONText{JSONText: types.JSONText(tp.Raw), Valid: len(tp.Raw) > 0},
	}

	var confirmed order.Order
	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if err := s.repo.MarkPaid(ctx, p.ID, update); err != nil {
			return err
		}
		o, err := s.orders.Transition(ctx, ord.ID, order.StatusConfirmed, "결제 완료")
		if err != nil {
			return err
		}
		confirmed = o
		return nil
	})
	if err != nil {
		// the provider has captured the money at this point
		logger.ErrorContext(ctx, "payment approved but not recorded",
			"orderId", ord.ID, "paymentKey", in.PaymentKey, "error", err)
		return Detail{}, s.fail(ctx, p, ord, err)
	}

	stored, err := s.repo.GetByOrderID(ctx, ord.ID)
	if err != nil {
		return Detail{}, apperr.Internal("could not load payment", err)
	}
	logger.InfoContext(ctx, "payment confirmed",
		"orderId", ord.ID, "paymentKey", in.PaymentKey, "amount", p.Amount, "method", method)
	return Detail{Payment: stored, Order: confirmed}, nil
}

// fail marks the payment FAILED, releases the claim and hides the cause.
func (s *Service) fail(ctx context.Context, p Payment, ord order.Order, cause error) error {
	reason := cause.Error()
	var apiErr *toss.APIError
	if errors.As(cause, &apiErr) {
		reason = fmt.Sprintf("[%s] %s", apiErr.Code, apiErr.Message)
	}
	if err := s.repo.MarkFailed(context.WithoutCancel(ctx), p.ID, reason); err != nil {
		logger.ErrorContext(ctx, "could not mark payment failed", "paymentId", p.ID, "error", err)
	}
	logger.ErrorContext(ctx, "payment confirmation failed",
		"orderId", ord.ID, "paymentId", p.ID, "reason", reason)
	return apperr.Internal("payment confirmation failed", cause)
}

func easyPayProvider(tp *toss.Payment) string {
	if tp.EasyPay == nil {
		return ""
	}
	return tp.EasyPay.Provider
}

// CancelForUser cancels a payment on an order the user owns.
func (s *Service) CancelForUser(ctx context.Context, userID int, in CancelInput) (Detail, error) {
	if in.PaymentKey == "" {
		return Detail{}, apperr.BadRequest("paymentKey is required")
	}
	p, err := s.byPaymentKey(ctx, in.PaymentKey)
	if err != nil {
		return Detail{}, err
	}
	if _, err := s.orders.Get(ctx, p.OrderID, userID); err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return Detail{}, apperr.NotFound("payment not found")
		}
		return Detail{}, err
	}
	return s.Cancel(ctx, in)
}

// Cancel refunds the whole remaining amount, or CancelAmount of it. A full
// refund also moves the order to REFUNDED.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (Detail, error) {
	reason := strings.TrimSpace(in.CancelReason)
	if in.PaymentKey == "" || reason == "" {
		return Detail{}, apperr.BadRequest("paymentKey and cancelReason are required")
	}
	p, err := s.byPaymentKey(ctx, in.PaymentKey)
	if err != nil {
		return Detail{}, err
	}
	if !p.Status.Refundable() {
		return Detail{}, apperr.BadRequest("payment cannot be cancelled in status %s", p.Status)
	}

	remaining := p.Remaining()
	amount := remaining
	if in.CancelAmount != nil {
		if *in.CancelAmount <= 0 || *in.CancelAmount > remaining {
			return Detail{}, apperr.BadRequest("cancelAmount must be between 1 and %d", remaining)
		}
		amount = *in.CancelAmount
	}
	next := StatusRefunded
	if amount < remaining {
		next = StatusPartiallyRefunded
	}

	ord, err := s.orders.GetAny(ctx, p.OrderID)
	if err != nil {
		return Detail{}, err
	}
	// partial refunds follow the same rule so the last won stays refundable
	if ord.Status != order.StatusCancelled && !order.CanTransition(ord.Status, order.StatusRefunded) {
		return Detail{}, apperr.BadRequest("order in status %s cannot be refunded", ord.Status)
	}
	moveOrder := next == StatusRefunded && ord.Status != order.StatusCancelled

	tp, err := s.gateway.Cancel(ctx, in.PaymentKey, toss.CancelRequest{CancelReason: reason, CancelAmount: in.CancelAmount})
	if err != nil {
		logger.ErrorContext(ctx, "payment cancellation failed",
			"paymentId", p.ID, "amount", amount, "error", err)
		var apiErr *toss.APIError
		if errors.As(err, &apiErr) {
			return Detail{}, apperr.BadRequest("%s", apiErr.Message)
		}
		return Detail{}, apperr.Internal("payment cancellation failed", err)
	}

	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if err := s.repo.ApplyRefund(ctx, p.ID, amount, next, tp.Raw); err != nil {
			return err
		}
		if !moveOrder {
			return nil
		}
		o, err := s.orders.Transition(ctx, ord.ID, order.StatusRefunded, "결제 취소: "+reason)
		if err != nil {
			return err
		}
		ord = o
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "payment refunded but not recorded",
			"paymentId", p.ID, "paymentKey", in.PaymentKey, "amount", amount, "error", err)
		if errors.Is(err, ErrStatusChanged) {
			return Detail{}, apperr.Conflict("payment changed during cancellation")
		}
		return Detail{}, apperr.Internal("could not record payment cancellation", err)
	}

	stored, err := s.repo.GetByOrderID(ctx, p.OrderID)
	if err != nil {
		return Detail{}, apperr.Internal("could not load payment", err)
	}
	logger.InfoContext(ctx, "payment cancelled",
		"paymentId", p.ID, "amount", amount, "status", next)
	return Detail{Payment: stored, Order: ord}, nil
}

func (s *Service) byPaymentKey(ctx context.Context, paymentKey string) (Payment, error) {
	p, err := s.repo.GetByPaymentKey(ctx, paymentKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Payment{}, apperr.NotFound("payment not found")
		}
		return Payment{}, apperr.Internal("could not load payment", err)
	}
	return p, nil
}

// Get returns the payment of an order the user owns.
func (s *Service) Get(ctx context.Context, orderID, userID int) (Detail, error) {
	ord, err := s.orders.Get(ctx, orderID, userID)
	if err != nil {
		return Detail{}, err
	}
	p, err := s.repo.GetByOrderID(ctx, ord.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Detail{}, apperr.NotFound("payment not found")
		}
		return Detail{}, apperr.Internal("could not load payment", err)
	}
	return Detail{Payment: p, Order: ord}, nil
}

// ListByUser returns the user's payments, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int) ([]Detail, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]order.Order, len(orders))
	ids := make([]int, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	payments, err := s.repo.ListByOrderIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("could not load payments", err)
	}
	out := make([]Detail, 0, len(payments))
	for _, p := range payments {
		out = append(out, Detail{Payment: p, Order: byID[p.OrderID]})
	}
	return out, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
