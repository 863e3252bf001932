package replenish

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/forecast"
	"github.com/andresuchdata/restock/internal/repository"
)

// Urgency thresholds in days until runout, inclusive.
const (
	criticalWithinDays = 3
	highWithinDays     = 7
	mediumWithinDays   = 14
)

// Planner applies per-product reorder policy on top of the forecast engine.
type Planner struct {
	engine       *forecast.Engine
	catalog      repository.ProductCatalog
	history      repository.SalesHistoryProvider
	rules        repository.ReorderRuleStore
	lookbackDays int
}

func NewPlanner(
	engine *forecast.Engine,
	catalog repository.ProductCatalog,
	history repository.SalesHistoryProvider,
	rules repository.ReorderRuleStore,
	lookbackDays int,
) *Planner {
	if engine == nil {
		engine = forecast.NewEngine(forecast.DefaultWindow)
	}
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Planner{
		engine:       engine,
		catalog:      catalog,
		history:      history,
		rules:        rules,
		lookbackDays: lookbackDays,
	}
}

// PlanProduct loads a product with its rule and history and forecasts it.
func (p *Planner) PlanProduct(ctx context.Context, ownerID, productID string, now time.Time) (*domain.StockForecast, error) {
	product, err := p.catalog.GetProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	return p.PlanFor(ctx, ownerID, *product, now)
}

// PlanFor forecasts an already loaded product.
func (p *Planner) PlanFor(ctx context.Context, ownerID string, product domain.Product, now time.Time) (*domain.StockForecast, error) {
	rule, found, err := p.rules.GetRule(ctx, ownerID, product.ID)
	if err != nil {
		return nil, fmt.Errorf("load reorder rule for %s: %w", product.ID, err)
	}
	if !found {
		rule = nil
	}

	history, err := p.history.GetSalesHistory(ctx, ownerID, product.ID, p.lookbackDays, now)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("sales history for %s: %w: %v", product.ID, domain.ErrDataUnavailable, err)
	}

	sf := p.Plan(product, history, rule, now)
	return &sf, nil
}

// Plan is the pure part of planning: no I/O, deterministic for a fixed now.
// A nil rule uses the default lead time and safety days.
func (p *Planner) Plan(product domain.Product, history domain.SalesHistory, rule *domain.ReorderRule, now time.Time) domain.StockForecast {
	now = now.UTC()

	leadTime := domain.DefaultLeadTimeDays
	safetyDays := domain.DefaultSafetyStockDays
	if rule != nil {
		leadTime = max(0, rule.LeadTimeDays)
		safetyDays = rule.SafetyStockDays()
	}

	res := p.engine.Predict(history, product.CurrentStock, leadTime, safetyDays, now)

	days := int(math.Floor(res.PredictedRunoutDate.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}

	sf := domain.StockForecast{
		ProductID:                product.ID,
		ProductName:              product.Name,
		CurrentStock:             product.CurrentStock,
		PredictedRunoutDate:      res.PredictedRunoutDate,
		DaysUntilRunout:          days,
		SuggestedReorderQuantity: res.SuggestedReorderQuantity,
		Confidence:               res.Confidence,
		Urgency:                  ClassifyUrgency(days),
		ShouldReorder:            days <= leadTime,
		DailyAverageSales:        res.DailyAverageSales,
		SeasonalFactor:           res.SeasonalFactor,
		Trend:                    res.Trend,
		LeadTimeDays:             leadTime,
	}
	if rule != nil {
		sf.AutoReorder = rule.AutoReorder
		sf.PreferredSupplierID = rule.PreferredSupplierID
	}
	return sf
}

// ClassifyUrgency maps days until runout onto an urgency tier.
func ClassifyUrgency(daysUntilRunout int) domain.Urgency {
	switch {
	case daysUntilRunout <= criticalWithinDays:
		return domain.UrgencyCritical
	case daysUntilRunout <= highWithinDays:
		return domain.UrgencyHigh
	case daysUntilRunout <= mediumWithinDays:
		return domain.UrgencyMedium
	default:
		return domain.UrgencyLow
	}
}
