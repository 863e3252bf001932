package domain

// Product is the slice of a catalog item the replenishment engine needs.
type Product struct {
	ID                string  `json:"id" db:"id"`
	OwnerID           string  `json:"owner_id" db:"owner_id"`
	Name              string  `json:"name" db:"name"`
	CurrentStock      float64 `json:"current_stock" db:"current_stock"`
	LowStockThreshold float64 `json:"low_stock_threshold" db:"low_stock_threshold"`
}

// IsLowStock reports whether the product is at or below its low stock threshold.
func (p Product) IsLowStock() bool {
	return p.CurrentStock <= p.LowStockThreshold
}
