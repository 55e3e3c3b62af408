package order

const (
	FreeShippingThreshold int64 = 50000
	FlatShippingFee       int64 = 3000
)

// ShippingFeeFor returns the fee charged on top of an order total.
func ShippingFeeFor(total int64) int64 {
	if total >= FreeShippingThreshold {
		return 0
	}
	return FlatShippingFee
}

// TaxIncluded is the 10% VAT share contained in a VAT-inclusive total.
func TaxIncluded(total int64) int64 {
	return total / 11
}
