package domain

import (
	"math"
	"time"
)

const (
	DefaultLeadTimeDays    = 7
	DefaultSafetyStockDays = 3
	DefaultSafetyStock     = 0

	// safetyStockUnitsPerDay converts the stored safety stock quantity into
	// buffer days for the forecast.
	safetyStockUnitsPerDay = 10
)

// ReorderRule is the user-owned replenishment policy for one product.
type ReorderRule struct {
	OwnerID             string    `json:"owner_id" db:"owner_id"`
	ProductID           string    `json:"product_id" db:"product_id"`
	AutoReorder         bool      `json:"auto_reorder" db:"auto_reorder"`
	ReorderPoint        int       `json:"reorder_point" db:"reorder_point"`
	ReorderQuantity     int       `json:"reorder_quantity" db:"reorder_quantity"`
	PreferredSupplierID *string   `json:"preferred_supplier_id,omitempty" db:"preferred_supplier_id"`
	LeadTimeDays        int       `json:"lead_time_days" db:"lead_time_days"`
	SafetyStock         int       `json:"safety_stock" db:"safety_stock"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// SafetyStockDays derives buffer days from the stored safety stock units.
func (r ReorderRule) SafetyStockDays() int {
	if r.SafetyStock <= 0 {
		return 0
	}
	return int(math.Ceil(float64(r.SafetyStock) / safetyStockUnitsPerDay))
}

// ReorderRuleInput is a partial rule. Nil fields are left untouched on update
// and take their defaults on create.
type ReorderRuleInput struct {
	AutoReorder         *bool   `json:"auto_reorder"`
	ReorderPoint        *int    `json:"reorder_point"`
	ReorderQuantity     *int    `json:"reorder_quantity"`
	PreferredSupplierID *string `json:"preferred_supplier_id"`
	LeadTimeDays        *int    `json:"lead_time_days"`
	SafetyStock         *int    `json:"safety_stock"`
}
