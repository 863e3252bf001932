// Package recommend ranks replenishment forecasts across an owner's catalog.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/andresuchdata/restock/internal/recommend"

// ProductPlanner forecasts a single, already loaded product. Implementations
// should return once ctx is done; a call that outlives the per-item timeout is
// abandoned and its result discarded.
type ProductPlanner interface {
	PlanFor(ctx context.Context, ownerID string, product domain.Product, now time.Time) (*domain.StockForecast, error)
}

type Aggregator struct {
	planner     ProductPlanner
	catalog     repository.ProductCatalog
	workers     int
	itemTimeout time.Duration

	tracer    trace.Tracer
	evaluated metric.Int64Counter
	skipped   metric.Int64Counter
}

func NewAggregator(planner ProductPlanner, catalog repository.ProductCatalog, workers int, itemTimeout time.Duration) *Aggregator {
	if workers < 1 {
		workers = 1
	}

	meter := otel.Meter(instrumentationName)
	evaluated, err := meter.Int64Counter("restock.recommend.items_evaluated",
		metric.WithDescription("Products forecast during recommendation runs"))
	if err != nil {
		log.Warn().Err(err).Msg("failed to create evaluated counter")
	}
	skipped, err := meter.Int64Counter("restock.recommend.items_skipped",
		metric.WithDescription("Products skipped after a forecast error or timeout"))
	if err != nil {
		log.Warn().Err(err).Msg("failed to create skipped counter")
	}

	return &Aggregator{
		planner:     planner,
		catalog:     catalog,
		workers:     workers,
		itemTimeout: itemTimeout,
		tracer:      otel.Tracer(instrumentationName),
		evaluated:   evaluated,
		skipped:     skipped,
	}
}

// Recommend forecasts every catalog product and returns the ranked list.
// A failing or slow product is logged and skipped; only a catalog failure or
// a cancelled ctx fails the whole run.
func (a *Aggregator) Recommend(ctx context.Context, ownerID string, opts domain.RecommendationOptions, now time.Time) (*domain.Recommendations, error) {
	ctx, span := a.tracer.Start(ctx, "recommend.Recommend", trace.WithAttributes(
		attribute.String("owner_id", ownerID),
		attribute.String("horizon", string(opts.Horizon)),
		attribute.Bool("low_stock_only", opts.LowStockOnly),
	))
	defer span.End()

	products, err := a.catalog.ListProducts(ctx, ownerID, opts.LowStockOnly)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list products: %w", err)
	}

	results := make([]*domain.StockForecast, len(products))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, product := range products {
		g.Go(func() error {
			results[i] = a.planOne(ctx, ownerID, product, now)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	horizonDays := opts.Horizon.Days()
	forecasts := make([]domain.StockForecast, 0, len(results))
	skipped := 0
	for _, sf := range results {
		if sf == nil {
			skipped++
			continue
		}
		if sf.DaysUntilRunout <= horizonDays || sf.ShouldReorder {
			forecasts = append(forecasts, *sf)
		}
	}

	Rank(forecasts)
	forecasts = Filter(forecasts, opts.MinUrgency, opts.Limit)

	a.count(ctx, a.evaluated, len(products)-skipped)
	a.count(ctx, a.skipped, skipped)
	span.SetAttributes(
		attribute.Int("products", len(products)),
		attribute.Int("skipped", skipped),
		attribute.Int("returned", len(forecasts)),
	)

	return &domain.Recommendations{
		Forecasts:   forecasts,
		Evaluated:   len(products) - skipped,
		Skipped:     skipped,
		GeneratedAt: now.UTC(),
	}, nil
}

func (a *Aggregator) planOne(ctx context.Context, ownerID string, product domain.Product, now time.Time) *domain.StockForecast {
	itemCtx := ctx
	if a.itemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, a.itemTimeout)
		defer cancel()
	}

	sf, err := a.planWithin(itemCtx, ownerID, product, now)
	if err == nil && itemCtx.Err() != nil {
		err = fmt.Errorf("%w: %v", domain.ErrDataUnavailable, itemCtx.Err())
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("owner_id", ownerID).
			Str("product_id", product.ID).
			Msg("skipping product in recommendations")
		return nil
	}
	return sf
}

type planResult struct {
	forecast *domain.StockForecast
	err      error
}

// planWithin returns when PlanFor does or when ctx is done, whichever is first.
func (a *Aggregator) planWithin(ctx context.Context, ownerID string, product domain.Product, now time.Time) (*domain.StockForecast, error) {
	done := make(chan planResult, 1)
	go func() {
		sf, err := a.planner.PlanFor(ctx, ownerID, product, now)
		done <- planResult{forecast: sf, err: err}
	}()

	select {
	case res := <-done:
		return res.forecast, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Aggregator) count(ctx context.Context, c metric.Int64Counter, n int) {
	if c == nil || n == 0 {
		return
	}
	c.Add(ctx, int64(n))
}

// Rank sorts forecasts by urgency, most urgent first, then by days until
// runout. Equal items keep their relative order.
func Rank(forecasts []domain.StockForecast) {
	sort.SliceStable(forecasts, func(i, j int) bool {
		ri, rj := forecasts[i].Urgency.Rank(), forecasts[j].Urgency.Rank()
		if ri != rj {
			return ri < rj
		}
		return forecasts[i].DaysUntilRunout < forecasts[j].DaysUntilRunout
	})
}

// Filter drops forecasts less urgent than minUrgency and truncates to limit.
// An empty minUrgency or a non-positive limit disables that step.
func Filter(forecasts []domain.StockForecast, minUrgency domain.Urgency, limit int) []domain.StockForecast {
	if minUrgency != "" {
		kept := forecasts[:0]
		for _, sf := range forecasts {
			if sf.Urgency.AtLeast(minUrgency) {
				kept = append(kept, sf)
			}
		}
		forecasts = kept
	}
	if limit > 0 && len(forecasts) > limit {
		forecasts = forecasts[:limit]
	}
	return forecasts
}
