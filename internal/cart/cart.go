package cart

import (
	"time"

	"github.com/wichananm65/storefront-checkout/internal/product"
)

// CartItem is one product line in a user's cart.
type CartItem struct {
	ID              int             `json:"cartItemId" db:"id"`
	UserID          int             `json:"userId" db:"user_id"`
	ProductID       int             `json:"productID" db:"product_id"`
	Quantity        int             `json:"quantity" db:"quantity"`
	SelectedOptions product.Options `json:"selectedOptions" db:"selected_options"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}
