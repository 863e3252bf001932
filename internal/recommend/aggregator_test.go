package recommend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/forecast"
	"github.com/andresuchdata/restock/internal/replenish"
	"github.com/andresuchdata/restock/internal/repository/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

type stubPlanner struct {
	forecasts map[string]domain.StockForecast
	failures  map[string]error
	slow      map[string]bool
	stuck     map[string]time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *stubPlanner) PlanFor(ctx context.Context, ownerID string, product domain.Product, now time.Time) (*domain.StockForecast, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		prev := s.maxInFlight.Load()
		if cur <= prev || s.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	if d, ok := s.stuck[product.ID]; ok {
		time.Sleep(d)
	}
	if s.slow[product.ID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := s.failures[product.ID]; ok {
		return nil, err
	}
	sf := s.forecasts[product.ID]
	return &sf, nil
}

func forecastFor(id string, days int, urgency domain.Urgency, reorder bool) domain.StockForecast {
	return domain.StockForecast{ProductID: id, DaysUntilRunout: days, Urgency: urgency, ShouldReorder: reorder}
}

func products(ids ...string) []domain.Product {
	out := make([]domain.Product, len(ids))
	for i, id := range ids {
		out[i] = domain.Product{ID: id, Name: id}
	}
	return out
}

func ids(forecasts []domain.StockForecast) []string {
	out := make([]string, len(forecasts))
	for i, sf := range forecasts {
		out[i] = sf.ProductID
	}
	return out
}

func TestRecommendSkipsFailingProducts(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	catalog.On("ListProducts", mock.Anything, "owner-1", false).Return(products("a", "b", "c"), nil)
	planner := &stubPlanner{
		forecasts: map[string]domain.StockForecast{
			"a": forecastFor("a", 2, domain.UrgencyCritical, true),
			"c": forecastFor("c", 10, domain.UrgencyMedium, false),
		},
		failures: map[string]error{"b": domain.ErrDataUnavailable},
	}

	agg := NewAggregator(planner, catalog, 2, time.Second)
	res, err := agg.Recommend(context.Background(), "owner-1", domain.RecommendationOptions{Horizon: domain.HorizonMonth}, now)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(res.Forecasts))
	assert.Equal(t, 2, res.Evaluated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, now, res.GeneratedAt)
}

func TestRecommendRanksByUrgencyThenDays(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	catalog.On("ListProducts", mock.Anything, "owner-1", false).
		Return(products("low", "high-6", "crit-3", "high-4", "crit-0"), nil)
	planner := &stubPlanner{forecasts: map[string]domain.StockForecast{
		"low":    forecastFor("low", 20, domain.UrgencyLow, false),
		"high-6": forecastFor("high-6", 6, domain.UrgencyHigh, true),
		"crit-3": forecastFor("crit-3", 3, domain.UrgencyCritical, true),
		"high-4": forecastFor("high-4", 4, domain.UrgencyHigh, true),
		"crit-0": forecastFor("crit-0", 0, domain.UrgencyCritical, true),
	}}

	agg := NewAggregator(planner, catalog, 3, time.Second)
	res, err := agg.Recommend(context.Background(), "owner-1", domain.RecommendationOptions{Horizon: domain.HorizonMonth}, now)

	require.NoError(t, err)
	assert.Equal(t, []string{"crit-0", "crit-3", "high-4", "high-6", "low"}, ids(res.Forecasts))
}

func TestRecommendHorizonKeepsReorderCandidates(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	catalog.On("ListProducts", mock.Anything, "owner-1", false).Return(products("soon", "far", "far-reorder"), nil)
	planner := &stubPlanner{forecasts: map[string]domain.StockForecast{
		"soon":        forecastFor("soon", 6, domain.UrgencyHigh, false),
		"far":         forecastFor("far", 12, domain.UrgencyMedium, false),
		"far-reorder": forecastFor("far-reorder", 12, domain.UrgencyMedium, true),
	}}

	agg := NewAggregator(planner, catalog, 1, time.Second)
	res, err := agg.Recommend(context.Background(), "owner-1", domain.RecommendationOptions{Horizon: domain.HorizonWeek}, now)

	require.NoError(t, err)
	assert.Equal(t, []string{"soon", "far-reorder"}, ids(res.Forecasts))
	assert.Equal(t, 3, res.Evaluated)
}

func TestRecommendMinUrgencyAndLimit(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	catalog.On("ListProducts", mock.Anything, "owner-1", true).Return(products("a", "b", "c", "d"), nil)
	planner := &stubPlanner{forecasts: map[string]domain.StockForecast{
		"a": forecastFor("a", 1, domain.UrgencyCritical, true),
		"b": forecastFor("b", 5, domain.UrgencyHigh, true),
		"c": forecastFor("c", 6, domain.UrgencyHigh, true),
		"d": forecastFor("d", 10, domain.UrgencyMedium, false),
	}}

	agg := NewAggregator(planner, catalog, 4, time.Second)
	res, err := agg.Recommend(context.Background(), "owner-1", domain.RecommendationOptions{
		Horizon:      domain.HorizonMonth,
		MinUrgency:   domain.UrgencyHigh,
		Limit:        2,
		LowStockOnly: true,
	}, now)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(res.Forecasts))
	catalog.AssertExpectations(t)
}

func TestRecommendSkipsTimedOutProducts(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	catalog.On("ListProducts", mock.Anything, "owner-1", false).Return(products("slow", "fast"), nil)
	planner := &stubPlanner{
		forecasts: map[string]domain.StockForecast{"fast": forecastFor("fast", 1, domain.UrgencyCritical, true)},
		slow:      map[string]bool{"slow": true},
	}

	agg := NewAggregator(planner, catalog, 2, 20*time.Millisecond)
	res, err := agg.Recommend(context.Background(), "owner-1", domain.RecommendationOptions{}, now)

	require.NoError(t, err)
	assert.Equal(t, []string{"fast"}, ids(res.Forecasts))
	assert.Equal(t, 1, res.Skipped)
}

func TestRecommendAbandonsPlannerIgnoringContext(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	catalog.On("ListProducts", mock.Anything, "owner-1", false).Return(products("stuck", "fast"), nil)
	planner := &stubPlanner{
		forecasts: map[string]domain.StockForecast{
			"stuck": forecastFor("stuck", 0, domain.UrgencyCritical, true),
			"fast":  forecastFor("fast", 2, domain.UrgencyCritical, true),
		},
		stuck: map[string]time.Duration{"stuck": 2 * time.Second},
	}

	agg := NewAggregator(planner, catalog, 2, 20*time.Millisecond)
	start := time.Now()
	res, err := agg.Recommend(context.Background(), "owner-1", domain.RecommendationOptions{}, now)

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"fast"}, ids(res.Forecasts))
	assert.Equal(t, 1, res.Skipped)
}

func TestRecommendBoundsConcurrency(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	list := products("p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8")
	catalog.On("ListProducts", mock.Anything, "owner-1", false).Return(list, nil)
	planner := &stubPlanner{forecasts: map[string]domain.StockForecast{}}

	agg := NewAggregator(planner, catalog, 2, time.Second)
	_, err := agg.Recommend(context.Background(), "owner-1", domain.RecommendationOptions{}, now)

	require.NoError(t, err)
	assert.LessOrEqual(t, planner.maxInFlight.Load(), int32(2))
}

func TestRecommendCatalogFailure(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	catalog.On("ListProducts", mock.Anything, "owner-1", false).Return(nil, errors.New("db down"))

	agg := NewAggregator(&stubPlanner{}, catalog, 2, time.Second)
	_, err := agg.Recommend(context.Background(), "owner-1", domain.RecommendationOptions{}, now)

	assert.ErrorContains(t, err, "db down")
}

func TestRecommendCancelledContext(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	catalog.On("ListProducts", mock.Anything, "owner-1", false).Return(products("a"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := NewAggregator(&stubPlanner{forecasts: map[string]domain.StockForecast{}}, catalog, 1, time.Second)
	_, err := agg.Recommend(ctx, "owner-1", domain.RecommendationOptions{}, now)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecommendWithPlanner(t *testing.T) {
	catalog := &mocks.ProductCatalog{}
	history := &mocks.SalesHistoryProvider{}
	rules := &mocks.ReorderRuleStore{}

	catalog.On("ListProducts", mock.Anything, "owner-1", false).Return([]domain.Product{
		{ID: "rice", Name: "Rice", CurrentStock: 50},
		{ID: "oil", Name: "Oil", CurrentStock: 10},
		{ID: "salt", Name: "Salt", CurrentStock: 5},
	}, nil)
	rules.On("GetRule", mock.Anything, "owner-1", mock.Anything).Return(nil, false, nil)

	series := make(domain.SalesHistory, 30)
	for i := range series {
		series[i] = domain.SalesDataPoint{Date: now.AddDate(0, 0, i-30), Quantity: 10}
	}
	history.On("GetSalesHistory", mock.Anything, "owner-1", "rice", 30, now).Return(series, nil)
	history.On("GetSalesHistory", mock.Anything, "owner-1", "oil", 30, now).Return(series, nil)
	history.On("GetSalesHistory", mock.Anything, "owner-1", "salt", 30, now).Return(nil, errors.New("timeout"))

	planner := replenish.NewPlanner(forecast.NewEngine(forecast.DefaultWindow), catalog, history, rules, 30)
	agg := NewAggregator(planner, catalog, 2, time.Second)

	res, err := agg.Recommend(context.Background(), "owner-1", domain.RecommendationOptions{Horizon: domain.HorizonWeek}, now)

	require.NoError(t, err)
	require.Len(t, res.Forecasts, 2)
	assert.Equal(t, "oil", res.Forecasts[0].ProductID)
	assert.Equal(t, domain.UrgencyCritical, res.Forecasts[0].Urgency)
	assert.Equal(t, "rice", res.Forecasts[1].ProductID)
	assert.Equal(t, domain.UrgencyHigh, res.Forecasts[1].Urgency)
	assert.Equal(t, 1, res.Skipped)
}

func TestFilterWithoutOptionsKeepsAll(t *testing.T) {
	in := []domain.StockForecast{
		forecastFor("a", 1, domain.UrgencyCritical, true),
		forecastFor("b", 30, domain.UrgencyLow, false),
	}
	assert.Len(t, Filter(in, "", 0), 2)
}

func TestRankIsStableForTies(t *testing.T) {
	in := []domain.StockForecast{
		forecastFor("first", 5, domain.UrgencyHigh, true),
		forecastFor("second", 5, domain.UrgencyHigh, true),
	}
	Rank(in)
	assert.Equal(t, []string{"first", "second"}, ids(in))
}
