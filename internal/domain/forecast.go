package domain

import "time"

// Trend is the direction of recent sales compared to the earlier half of the window.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// ForecastResult is the raw output of the forecast engine for one series.
type ForecastResult struct {
	PredictedRunoutDate      time.Time `json:"predicted_runout_date"`
	DaysUntilStockout        float64   `json:"days_until_stockout"`
	SuggestedReorderQuantity int       `json:"suggested_reorder_quantity"`
	Confidence               float64   `json:"confidence"`
	DailyAverageSales        float64   `json:"daily_average_sales"`
	SeasonalFactor           float64   `json:"seasonal_factor"`
	Trend                    Trend     `json:"trend"`
}

// StockForecast is the per-product replenishment recommendation.
type StockForecast struct {
	ProductID                string    `json:"product_id"`
	ProductName              string    `json:"product_name"`
	CurrentStock             float64   `json:"current_stock"`
	PredictedRunoutDate      time.Time `json:"predicted_runout_date"`
	DaysUntilRunout          int       `json:"days_until_runout"`
	SuggestedReorderQuantity int       `json:"suggested_reorder_quantity"`
	Confidence               float64   `json:"confidence"`
	Urgency                  Urgency   `json:"urgency"`
	ShouldReorder            bool      `json:"should_reorder"`
	DailyAverageSales        float64   `json:"daily_average_sales"`
	SeasonalFactor           float64   `json:"seasonal_factor"`
	Trend                    Trend     `json:"trend"`
	LeadTimeDays             int       `json:"lead_time_days"`
	AutoReorder              bool      `json:"auto_reorder"`
	PreferredSupplierID      *string   `json:"preferred_supplier_id,omitempty"`
}

// RecommendationOptions narrows a catalog-wide recommendation run.
type RecommendationOptions struct {
	Horizon      Horizon `json:"horizon"`
	MinUrgency   Urgency `json:"min_urgency,omitempty"`
	Limit        int     `json:"limit,omitempty"`
	LowStockOnly bool    `json:"low_stock_only"`
}

// Recommendations is the ranked outcome of a recommendation run.
type Recommendations struct {
	Forecasts   []StockForecast `json:"forecasts"`
	Evaluated   int             `json:"evaluated"`
	Skipped     int             `json:"skipped"`
	GeneratedAt time.Time       `json:"generated_at"`
}
