package payment

import (
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/wichananm65/storefront-checkout/internal/order"
)

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusPaid              Status = "PAID"
	StatusFailed            Status = "FAILED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
	StatusRefunded          Status = "REFUNDED"
)

// Settled reports whether money has been captured for the payment at some
// point, refunded or not.
func (s Status) Settled() bool {
	return s == StatusPaid || s == StatusPartiallyRefunded || s == StatusRefunded
}

// Refundable reports whether part of the captured amount may still be returned.
func (s Status) Refundable() bool {
	return s == StatusPaid || s == StatusPartiallyRefunded
}

// Payment is one order's payment attempt. There is at most one per order.
type Payment struct {
	ID            int                `json:"paymentID" db:"id"`
	OrderID       int                `json:"orderID" db:"order_id"`
	PaymentKey    *string            `json:"paymentKey,omitempty" db:"payment_key"`
	TransactionID *string            `json:"transactionId,omitempty" db:"transaction_id"`
	OrderName     string             `json:"orderName" db:"order_name"`
	Amount        int64              `json:"amount" db:"amount"`
	CustomerKey   string             `json:"customerKey" db:"customer_key"`
	Status        Status             `json:"status" db:"status"`
	Method        *Method            `json:"method,omitempty" db:"method"`
	RequestedAt   time.Time          `json:"requestedAt" db:"requested_at"`
	ApprovedAt    *time.Time         `json:"approvedAt,omitempty" db:"approved_at"`
	FailReason    *string            `json:"failReason,omitempty" db:"fail_reason"`
	RefundAmount  int64              `json:"refundAmount" db:"refund_amount"`
	RawResponse   types.NullJSONText `json:"-" db:"raw_response"`
	ConfirmKey    *string            `json:"-" db:"confirm_key"`
	CreatedAt     time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" db:"updated_at"`
}

// Remaining is the amount that can still be refunded.
func (p Payment) Remaining() int64 {
	return p.Amount - p.RefundAmount
}

// Detail pairs a payment with its order.
type Detail struct {
	Payment Payment     `json:"payment"`
	Order   order.Order `json:"order"`
}

type SessionInput struct {
	OrderID     int    `json:"orderId"`
	CustomerKey string `json:"customerKey,omitempty"`
	SuccessURL  string `json:"successUrl,omitempty"`
	FailURL     string `json:"failUrl,omitempty"`
}

// Session holds what the client needs to open the provider's payment window.
// OrderID is the public order number, which is the provider's orderId.
type Session struct {
	PaymentID   int    `json:"paymentId"`
	OrderID     string `json:"orderId"`
	OrderName   string `json:"orderName"`
	Amount      int64  `json:"amount"`
	CustomerKey string `json:"customerKey"`
	SuccessURL  string `json:"successUrl"`
	FailURL     string `json:"failUrl"`
}

type ConfirmInput struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type CancelInput struct {
	PaymentKey   string `json:"paymentKey"`
	CancelReason string `json:"cancelReason"`
	CancelAmount *int64 `json:"cancelAmount,omitempty"`
}

// paidUpdate is what a successful confirmation records.
type paidUpdate struct {
	PaymentKey    string
	TransactionID string
	Method        Method
	ApprovedAt    time.Time
	Raw           types.NullJSONText
}
