package order

import (
	"time"

	"github.com/wichananm65/storefront-checkout/internal/address"
	"github.com/wichananm65/storefront-checkout/internal/product"
)

// Order represents a purchase made by a user.
type Order struct {
	ID             int              `json:"orderID" db:"id"`
	OrderNumber    string           `json:"orderNumber" db:"order_number"`
	UserID         int              `json:"userID" db:"user_id"`
	AddressID      int              `json:"addressID" db:"address_id"`
	TotalAmount    int64            `json:"totalAmount" db:"total_amount"`
	ShippingFee    int64            `json:"shippingFee" db:"shipping_fee"`
	TaxAmount      int64            `json:"taxAmount" db:"tax_amount"`
	Notes          *string          `json:"notes,omitempty" db:"notes"`
	Status         Status           `json:"status" db:"status"`
	TrackingNumber *string          `json:"trackingNumber,omitempty" db:"tracking_number"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time        `json:"updatedAt" db:"updated_at"`
	Items          []Item           `json:"items" db:"-"`
	History        []StatusHistory  `json:"statusHistory" db:"-"`
	Address        *address.Address `json:"address,omitempty" db:"-"`
}

// PayableAmount is what the customer is charged.
func (o Order) PayableAmount() int64 {
	return o.TotalAmount + o.ShippingFee
}

// Item is a snapshot of the product at order time. It does not follow later
// product edits.
type Item struct {
	ID              int             `json:"id" db:"id"`
	OrderID         int             `json:"orderID" db:"order_id"`
	ProductID       int             `json:"productID" db:"product_id"`
	ProductName     string          `json:"productName" db:"product_name"`
	Price           int64           `json:"price" db:"price"`
	OriginalPrice   *int64          `json:"originalPrice,omitempty" db:"original_price"`
	Image           *string         `json:"image,omitempty" db:"image"`
	Quantity        int             `json:"quantity" db:"quantity"`
	SelectedOptions product.Options `json:"selectedOptions" db:"selected_options"`
}

// StatusHistory is one append-only audit row.
type StatusHistory struct {
	ID        int       `json:"id" db:"id"`
	OrderID   int       `json:"orderID" db:"order_id"`
	Status    Status    `json:"status" db:"status"`
	Note      *string   `json:"note,omitempty" db:"note"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// LineInput is one requested cart line.
type LineInput struct {
	ProductID       int             `json:"productId"`
	Quantity        int             `json:"quantity"`
	SelectedOptions product.Options `json:"selectedOptions,omitempty"`
}

type CreateInput struct {
	AddressID int         `json:"addressId"`
	Items     []LineInput `json:"items"`
	Notes     *string     `json:"notes,omitempty"`
}

type UpdateStatusInput struct {
	Status         Status  `json:"status"`
	Notes          *string `json:"notes,omitempty"`
	TrackingNumber *string `json:"trackingNumber,omitempty"`
}
