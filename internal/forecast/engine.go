package forecast

import (
	"math"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
)

const (
	// DefaultWindow is the number of most recent days averaged for the base rate.
	DefaultWindow = 7

	// NoRunoutDays stands in for "never" when nothing is selling.
	NoRunoutDays = 9999

	// MinReorderQuantity is the floor applied to every suggested reorder.
	MinReorderQuantity = 10

	minSeasonalPoints = 14
	minTrendPoints    = 7

	trendThreshold         = 0.15
	increasingMultiplier   = 1.15
	decreasingMultiplier   = 0.85
	minConfidence          = 0.1
	sparseConfidence       = 0.4
	partialConfidence      = 0.6
	maxConfidence          = 0.95
	variationConfidenceCut = 0.35
)

// Engine turns a daily sales series and a stock level into a runout prediction.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	window int
}

// NewEngine creates an engine averaging the last window days (DefaultWindow when window <= 0).
func NewEngine(window int) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{window: window}
}

// Predict computes the forecast for series given the current stock level.
// today anchors both the weekday used for seasonality and the runout date.
func (e *Engine) Predict(series domain.SalesHistory, currentStock float64, leadTimeDays, safetyStockDays int, today time.Time) domain.ForecastResult {
	seasonal := SeasonalFactor(series, today)
	trend := DetectTrend(series)

	// 1. Adjusted daily rate = moving average x weekday factor x trend multiplier
	rate := MovingAverage(series, e.window) * seasonal * TrendMultiplier(trend)
	if !isFinite(rate) || rate < 0 {
		rate = 0
	}

	// 2. Days until stock runs out at that rate
	days := float64(NoRunoutDays)
	if rate > 0 {
		days = math.Max(0, currentStock) / rate
	}
	if !isFinite(days) || days > NoRunoutDays {
		days = NoRunoutDays
	}

	// 3. Runout date lands on whole days from today
	runout := today.AddDate(0, 0, int(math.Floor(days)))

	// 4. Cover lead time plus safety buffer, never below the minimum order
	coverDays := math.Max(0, float64(leadTimeDays)) + math.Max(0, float64(safetyStockDays))
	qty := int(math.Ceil(rate * coverDays))
	if qty < MinReorderQuantity {
		qty = MinReorderQuantity
	}

	return domain.ForecastResult{
		PredictedRunoutDate:      runout,
		DaysUntilStockout:        days,
		SuggestedReorderQuantity: qty,
		Confidence:               Confidence(series),
		DailyAverageSales:        rate,
		SeasonalFactor:           seasonal,
		Trend:                    trend,
	}
}

// MovingAverage is the mean quantity of the last window points; 0 for an empty series.
func MovingAverage(series domain.SalesHistory, window int) float64 {
	if len(series) == 0 {
		return 0
	}
	if window <= 0 {
		window = DefaultWindow
	}
	q := series.Quantities()
	if len(q) > window {
		q = q[len(q)-window:]
	}
	return mean(q)
}

// SeasonalFactor compares today's weekday mean against the mean of all weekday
// means. Series shorter than two weeks, or without signal for today's weekday,
// get a neutral 1.0.
func SeasonalFactor(series domain.SalesHistory, today time.Time) float64 {
	if len(series) < minSeasonalPoints {
		return 1.0
	}

	var sums, counts [7]float64
	for _, p := range series {
		wd := p.Date.Weekday()
		if p.Quantity > 0 {
			sums[wd] += p.Quantity
		}
		counts[wd]++
	}

	// A weekday without rows had no sales; it still counts toward the overall mean.
	var total float64
	var weekdayMeans [7]float64
	for wd := range weekdayMeans {
		if counts[wd] > 0 {
			weekdayMeans[wd] = sums[wd] / counts[wd]
		}
		total += weekdayMeans[wd]
	}

	overall := total / 7
	if overall == 0 {
		return 1.0
	}

	factor := weekdayMeans[today.Weekday()] / overall
	if factor <= 0 || !isFinite(factor) {
		return 1.0
	}
	return factor
}

// Confidence scores how much the forecast can be trusted, in [0.1, 0.95].
// Fewer than 30 days are tiered by sample size; longer series are scored by
// their coefficient of variation.
func Confidence(series domain.SalesHistory) float64 {
	n := len(series)
	switch {
	case n < 1:
		return minConfidence
	case n < 7:
		return sparseConfidence
	case n < 30:
		return partialConfidence
	}

	q := series.Quantities()
	m := mean(q)
	cv := 1.0
	if m > 0 {
		cv = stddev(q, m) / m
	}

	return clamp(maxConfidence-cv*variationConfidenceCut, partialConfidence, maxConfidence)
}

// DetectTrend compares the mean of the second half of the series to the first.
func DetectTrend(series domain.SalesHistory) domain.Trend {
	if len(series) < minTrendPoints {
		return domain.TrendStable
	}

	q := series.Quantities()
	half := len(q) / 2
	first, second := mean(q[:half]), mean(q[half:])

	if first == 0 {
		if second > 0 {
			return domain.TrendIncreasing
		}
		return domain.TrendStable
	}

	change := (second - first) / first
	switch {
	case change > trendThreshold:
		return domain.TrendIncreasing
	case change < -trendThreshold:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// TrendMultiplier maps a trend onto the rate adjustment applied by Predict.
func TrendMultiplier(t domain.Trend) float64 {
	switch t {
	case domain.TrendIncreasing:
		return increasingMultiplier
	case domain.TrendDecreasing:
		return decreasingMultiplier
	default:
		return 1.0
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
