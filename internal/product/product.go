package product

import "time"

// Product is a catalog entry together with its live stock count.
// JSON tags follow the camelCase convention used by the storefront client.
type Product struct {
	ID            int       `json:"productId" db:"id"`
	Name          string    `json:"productName" db:"name"`
	Price         int64     `json:"productPrice" db:"price"`
	OriginalPrice *int64    `json:"originalPrice,omitempty" db:"original_price"`
	Image         *string   `json:"productImg,omitempty" db:"image"`
	Stock         int       `json:"stock" db:"stock"`
	IsActive      bool      `json:"isActive" db:"is_active"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}
