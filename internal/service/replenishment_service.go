package service

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/restock/internal/cache"
	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository"
	"github.com/andresuchdata/restock/internal/storage"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/andresuchdata/restock/internal/service"

// ProductPlanner forecasts a single product by id.
type ProductPlanner interface {
	PlanProduct(ctx context.Context, ownerID, productID string, now time.Time) (*domain.StockForecast, error)
}

// Recommender produces the ranked catalog-wide list.
type Recommender interface {
	Recommend(ctx context.Context, ownerID string, opts domain.RecommendationOptions, now time.Time) (*domain.Recommendations, error)
}

type ReplenishmentService struct {
	planner      ProductPlanner
	recommender  Recommender
	rules        repository.ReorderRuleStore
	cache        cache.RecommendationCache
	store        storage.ObjectStorage
	defaultLimit int

	now    func() time.Time
	tracer trace.Tracer
}

// NewReplenishmentService wires the service. A nil cache disables caching and
// a nil store disables exports.
func NewReplenishmentService(
	planner ProductPlanner,
	recommender Recommender,
	rules repository.ReorderRuleStore,
	cacheImpl cache.RecommendationCache,
	store storage.ObjectStorage,
	defaultLimit int,
) *ReplenishmentService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopRecommendationCache()
	}
	return &ReplenishmentService{
		planner:      planner,
		recommender:  recommender,
		rules:        rules,
		cache:        cacheImpl,
		store:        store,
		defaultLimit: defaultLimit,
		now:          time.Now,
		tracer:       otel.Tracer(tracerName),
	}
}

func (s *ReplenishmentService) GetForecast(ctx context.Context, ownerID, productID string) (*domain.StockForecast, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetForecast", trace.WithAttributes(
		attribute.String("owner_id", ownerID),
		attribute.String("product_id", productID),
	))
	defer span.End()

	sf, err := s.planner.PlanProduct(ctx, ownerID, productID, s.now().UTC())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return sf, nil
}

// GetRecommendations returns the ranked list for the owner, served from cache
// when the same options were computed earlier the same day.
func (s *ReplenishmentService) GetRecommendations(ctx context.Context, ownerID string, opts domain.RecommendationOptions) (*domain.Recommendations, error) {
	opts = s.normalizeOptions(opts)
	now := s.now().UTC()

	if recs, ok, err := s.cache.Get(ctx, ownerID, opts, now); err == nil && ok {
		return recs, nil
	} else if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("recommendations: cache get failed")
	}

	ctx, span := s.tracer.Start(ctx, "service.GetRecommendations", trace.WithAttributes(
		attribute.String("owner_id", ownerID),
	))
	defer span.End()

	recs, err := s.recommender.Recommend(ctx, ownerID, opts, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.cache.Set(ctx, ownerID, opts, now, recs); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("recommendations: cache set failed")
	}

	return recs, nil
}

func (s *ReplenishmentService) normalizeOptions(opts domain.RecommendationOptions) domain.RecommendationOptions {
	if opts.Horizon == "" {
		opts.Horizon = domain.HorizonMonth
	}
	if opts.Limit <= 0 {
		opts.Limit = s.defaultLimit
	}
	return opts
}

func (s *ReplenishmentService) GetReorderRule(ctx context.Context, ownerID, productID string) (*domain.ReorderRule, error) {
	rule, found, err := s.rules.GetRule(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("reorder rule for %s: %w", productID, domain.ErrNotFound)
	}
	return rule, nil
}

// SetReorderRule creates or partially updates the owner's rule for a product
// and drops the owner's cached recommendations.
func (s *ReplenishmentService) SetReorderRule(ctx context.Context, ownerID, productID string, input domain.ReorderRuleInput) (*domain.ReorderRule, error) {
	if err := ValidateRuleInput(input); err != nil {
		return nil, err
	}

	if err := s.rules.UpsertRule(ctx, ownerID, productID, input); err != nil {
		return nil, fmt.Errorf("upsert reorder rule: %w", err)
	}

	if err := s.cache.InvalidateOwner(ctx, ownerID); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("recommendations: cache invalidation failed")
	}

	log.Info().Str("owner_id", ownerID).Str("product_id", productID).Msg("reorder rule saved")

	return s.GetReorderRule(ctx, ownerID, productID)
}

// ValidateRuleInput requires reorder point and quantity and rejects negative
// values on every supplied numeric field.
func ValidateRuleInput(input domain.ReorderRuleInput) error {
	if input.ReorderPoint == nil {
		return fmt.Errorf("%w: reorder_point is required", domain.ErrInvalidRule)
	}
	if input.ReorderQuantity == nil {
		return fmt.Errorf("%w: reorder_quantity is required", domain.ErrInvalidRule)
	}

	fields := []struct {
		name  string
		value *int
	}{
		{"reorder_point", input.ReorderPoint},
		{"reorder_quantity", input.ReorderQuantity},
		{"lead_time_days", input.LeadTimeDays},
		{"safety_stock", input.SafetyStock},
	}
	for _, f := range fields {
		if f.value != nil && *f.value < 0 {
			return fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidRule, f.name)
		}
	}
	return nil
}
