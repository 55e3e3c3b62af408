package toss

import (
	"encoding/json"
	"time"
)

// Payment is the provider's payment object as returned by confirm and cancel.
// Only the fields this service reads are mapped; Raw keeps the full body.
type Payment struct {
	PaymentKey         string          `json:"paymentKey"`
	OrderID            string          `json:"orderId"`
	OrderName          string          `json:"orderName"`
	Status             string          `json:"status"`
	Method             string          `json:"method"`
	TotalAmount        int64           `json:"totalAmount"`
	BalanceAmount      int64           `json:"balanceAmount"`
	RequestedAt        *time.Time      `json:"requestedAt"`
	ApprovedAt         *time.Time      `json:"approvedAt"`
	TransactionKey     string          `json:"transactionKey"`
	LastTransactionKey string          `json:"lastTransactionKey"`
	EasyPay            *EasyPay        `json:"easyPay"`
	Card               *Card           `json:"card"`
	VirtualAccount     *VirtualAccount `json:"virtualAccount"`
	Receipt            *Receipt        `json:"receipt"`
	Cancels            []Cancel        `json:"cancels"`

	Raw json.RawMessage `json:"-"`
}

type EasyPay struct {
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
}

type Card struct {
	IssuerCode            string `json:"issuerCode"`
	AcquirerCode          string `json:"acquirerCode"`
	Number                string `json:"number"`
	InstallmentPlanMonths int    `json:"installmentPlanMonths"`
	ApproveNo             string `json:"approveNo"`
	CardType              string `json:"cardType"`
	OwnerType             string `json:"ownerType"`
	Amount                int64  `json:"amount"`
}

type VirtualAccount struct {
	AccountNumber string     `json:"accountNumber"`
	BankCode      string     `json:"bankCode"`
	CustomerName  string     `json:"customerName"`
	DueDate       *time.Time `json:"dueDate"`
}

type Receipt struct {
	URL string `json:"url"`
}

type Cancel struct {
	CancelAmount   int64      `json:"cancelAmount"`
	CancelReason   string     `json:"cancelReason"`
	CanceledAt     *time.Time `json:"canceledAt"`
	TransactionKey string     `json:"transactionKey"`
}

// TxKey returns the provider transaction id of the latest transaction.
func (p *Payment) TxKey() string {
	if p.TransactionKey != "" {
		return p.TransactionKey
	}
	return p.LastTransactionKey
}

type ConfirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

// CancelRequest cancels the whole remaining balance when CancelAmount is nil.
type CancelRequest struct {
	CancelReason string `json:"cancelReason"`
	CancelAmount *int64 `json:"cancelAmount,omitempty"`
}
