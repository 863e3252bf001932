package domain

import "time"

// SalesDataPoint is the number of units sold on one calendar day.
type SalesDataPoint struct {
	Date     time.Time `json:"date" db:"sale_date"`
	Quantity float64   `json:"quantity" db:"quantity"`
}

// SalesHistory is a chronologically ordered daily sales series for a single
// product. Missing dates are days without sales.
type SalesHistory []SalesDataPoint

// Quantities returns the quantities in series order, with negatives clamped to 0.
func (h SalesHistory) Quantities() []float64 {
	out := make([]float64, len(h))
	for i, p := range h {
		if p.Quantity > 0 {
			out[i] = p.Quantity
		}
	}
	return out
}

// SalesRollup is one aggregated (product, day) row written by the sales import.
type SalesRollup struct {
	ProductID string    `json:"product_id" db:"product_id"`
	SaleDate  time.Time `json:"sale_date" db:"sale_date"`
	Quantity  float64   `json:"quantity" db:"quantity"`
}
