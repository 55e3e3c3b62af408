package address

import "time"

// Address is a shipping destination owned by one user.
type Address struct {
	ID           int       `json:"addressId" db:"id"`
	UserID       int       `json:"userId" db:"user_id"`
	Name         string    `json:"addressName" db:"name"`
	Recipient    string    `json:"recipient" db:"recipient"`
	Phone        string    `json:"phone" db:"phone"`
	ZipCode      string    `json:"zipCode" db:"zip_code"`
	AddressLine1 string    `json:"addressLine1" db:"address_line1"`
	AddressLine2 string    `json:"addressLine2" db:"address_line2"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
