package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andresuchdata/restock/internal/cache"
	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository/mocks"
	"github.com/andresuchdata/restock/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2025, time.March, 31, 9, 30, 0, 0, time.UTC)

type mockPlanner struct{ mock.Mock }

func (m *mockPlanner) PlanProduct(ctx context.Context, ownerID, productID string, now time.Time) (*domain.StockForecast, error) {
	args := m.Called(ctx, ownerID, productID, now)
	sf, _ := args.Get(0).(*domain.StockForecast)
	return sf, args.Error(1)
}

type mockRecommender struct{ mock.Mock }

func (m *mockRecommender) Recommend(ctx context.Context, ownerID string, opts domain.RecommendationOptions, now time.Time) (*domain.Recommendations, error) {
	args := m.Called(ctx, ownerID, opts, now)
	recs, _ := args.Get(0).(*domain.Recommendations)
	return recs, args.Error(1)
}

type mockStorage struct{ mock.Mock }

func (m *mockStorage) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	objects, _ := args.Get(0).([]storage.ObjectInfo)
	return objects, args.Error(1)
}

func (m *mockStorage) UploadObject(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func intPtr(v int) *int { return &v }

func newTestService(t *testing.T, cacheImpl cache.RecommendationCache, store storage.ObjectStorage) (*ReplenishmentService, *mockPlanner, *mockRecommender, *mocks.ReorderRuleStore) {
	t.Helper()
	planner := &mockPlanner{}
	recommender := &mockRecommender{}
	rules := &mocks.ReorderRuleStore{}
	svc := NewReplenishmentService(planner, recommender, rules, cacheImpl, store, 50)
	svc.now = func() time.Time { return fixedNow }
	return svc, planner, recommender, rules
}

func sampleRecommendations() *domain.Recommendations {
	supplier := "sup-1"
	return &domain.Recommendations{
		Forecasts: []domain.StockForecast{
			{
				ProductID:                "sku-1",
				ProductName:              "Rice, 5kg",
				CurrentStock:             12,
				DailyAverageSales:        4,
				DaysUntilRunout:          3,
				PredictedRunoutDate:      fixedNow.AddDate(0, 0, 3),
				Urgency:                  domain.UrgencyCritical,
				ShouldReorder:            true,
				SuggestedReorderQuantity: 40,
				LeadTimeDays:             7,
				Confidence:               0.8,
				Trend:                    domain.TrendStable,
				SeasonalFactor:           1,
				PreferredSupplierID:      &supplier,
			},
		},
		Evaluated:   1,
		GeneratedAt: fixedNow,
	}
}

func TestGetForecastPassesUTCNow(t *testing.T) {
	svc, planner, _, _ := newTestService(t, nil, nil)
	want := &domain.StockForecast{ProductID: "sku-1"}
	planner.On("PlanProduct", mock.Anything, "owner-1", "sku-1", fixedNow).Return(want, nil)

	got, err := svc.GetForecast(context.Background(), "owner-1", "sku-1")

	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestGetForecastSurfacesNotFound(t *testing.T) {
	svc, planner, _, _ := newTestService(t, nil, nil)
	planner.On("PlanProduct", mock.Anything, "owner-1", "ghost", fixedNow).Return(nil, domain.ErrNotFound)

	_, err := svc.GetForecast(context.Background(), "owner-1", "ghost")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetRecommendationsAppliesDefaults(t *testing.T) {
	svc, _, recommender, _ := newTestService(t, nil, nil)
	expected := domain.RecommendationOptions{Horizon: domain.HorizonMonth, Limit: 50}
	recommender.On("Recommend", mock.Anything, "owner-1", expected, fixedNow).Return(sampleRecommendations(), nil)

	recs, err := svc.GetRecommendations(context.Background(), "owner-1", domain.RecommendationOptions{})

	require.NoError(t, err)
	assert.Len(t, recs.Forecasts, 1)
	recommender.AssertExpectations(t)
}

func TestGetRecommendationsUsesCacheUntilRuleChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc, _, recommender, rules := newTestService(t, cache.NewRedisRecommendationCache(client, time.Minute), nil)

	opts := domain.RecommendationOptions{Horizon: domain.HorizonWeek, Limit: 10}
	recommender.On("Recommend", mock.Anything, "owner-1", opts, fixedNow).Return(sampleRecommendations(), nil)

	_, err := svc.GetRecommendations(context.Background(), "owner-1", opts)
	require.NoError(t, err)
	cached, err := svc.GetRecommendations(context.Background(), "owner-1", opts)
	require.NoError(t, err)
	assert.Equal(t, "sku-1", cached.Forecasts[0].ProductID)
	recommender.AssertNumberOfCalls(t, "Recommend", 1)

	input := domain.ReorderRuleInput{ReorderPoint: intPtr(5), ReorderQuantity: intPtr(20)}
	rules.On("UpsertRule", mock.Anything, "owner-1", "sku-1", input).Return(nil)
	rules.On("GetRule", mock.Anything, "owner-1", "sku-1").
		Return(&domain.ReorderRule{OwnerID: "owner-1", ProductID: "sku-1", ReorderPoint: 5, ReorderQuantity: 20, LeadTimeDays: 7}, true, nil)

	_, err = svc.SetReorderRule(context.Background(), "owner-1", "sku-1", input)
	require.NoError(t, err)

	_, err = svc.GetRecommendations(context.Background(), "owner-1", opts)
	require.NoError(t, err)
	recommender.AssertNumberOfCalls(t, "Recommend", 2)
}

func TestGetRecommendationsPropagatesErrors(t *testing.T) {
	svc, _, recommender, _ := newTestService(t, nil, nil)
	recommender.On("Recommend", mock.Anything, "owner-1", mock.Anything, fixedNow).Return(nil, errors.New("catalog offline"))

	_, err := svc.GetRecommendations(context.Background(), "owner-1", domain.RecommendationOptions{})

	assert.ErrorContains(t, err, "catalog offline")
}

func TestGetReorderRuleNotFound(t *testing.T) {
	svc, _, _, rules := newTestService(t, nil, nil)
	rules.On("GetRule", mock.Anything, "owner-1", "sku-9").Return(nil, false, nil)

	_, err := svc.GetReorderRule(context.Background(), "owner-1", "sku-9")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetReorderRuleRejectsInvalidInput(t *testing.T) {
	svc, _, _, rules := newTestService(t, nil, nil)

	tests := []struct {
		name  string
		input domain.ReorderRuleInput
	}{
		{"missing reorder point", domain.ReorderRuleInput{ReorderQuantity: intPtr(10)}},
		{"missing reorder quantity", domain.ReorderRuleInput{ReorderPoint: intPtr(10)}},
		{"negative lead time", domain.ReorderRuleInput{ReorderPoint: intPtr(1), ReorderQuantity: intPtr(1), LeadTimeDays: intPtr(-1)}},
		{"negative quantity", domain.ReorderRuleInput{ReorderPoint: intPtr(1), ReorderQuantity: intPtr(-5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetReorderRule(context.Background(), "owner-1", "sku-1", tt.input)
			assert.ErrorIs(t, err, domain.ErrInvalidRule)
		})
	}
	rules.AssertNotCalled(t, "UpsertRule", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidateRuleInputAllowsZero(t *testing.T) {
	err := ValidateRuleInput(domain.ReorderRuleInput{
		ReorderPoint:    intPtr(0),
		ReorderQuantity: intPtr(0),
		LeadTimeDays:    intPtr(0),
		SafetyStock:     intPtr(0),
	})
	assert.NoError(t, err)
}

func TestExportRecommendationsUploadsCSV(t *testing.T) {
	store := &mockStorage{}
	svc, _, recommender, _ := newTestService(t, nil, store)
	recommender.On("Recommend", mock.Anything, "owner-1", mock.Anything, fixedNow).Return(sampleRecommendations(), nil)

	var uploaded []byte
	store.On("UploadObject", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "exports/owner-1/2025-03-31-") && strings.HasSuffix(key, ".csv")
	}), mock.Anything, "text/csv").
		Run(func(args mock.Arguments) { uploaded = args.Get(2).([]byte) }).
		Return(nil)

	res, err := svc.ExportRecommendations(context.Background(), "owner-1", domain.RecommendationOptions{}, ExportCSV)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, int64(len(uploaded)), res.Size)

	records, err := csv.NewReader(bytes.NewReader(uploaded)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, "Rice, 5kg", records[1][1])
	assert.Equal(t, "critical", records[1][6])
	assert.Equal(t, "sup-1", records[1][14])
}

func TestExportRecommendationsWithoutStorage(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil, nil)

	_, err := svc.ExportRecommendations(context.Background(), "owner-1", domain.RecommendationOptions{}, ExportCSV)

	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}

func TestEncodeXLSX(t *testing.T) {
	data, err := EncodeXLSX(sampleRecommendations().Forecasts)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "product_id", rows[0][0])
	assert.Equal(t, "sku-1", rows[1][0])
}

func TestListExports(t *testing.T) {
	store := &mockStorage{}
	svc, _, _, _ := newTestService(t, nil, store)
	store.On("ListObjects", mock.Anything, "exports/owner-1/").
		Return([]storage.ObjectInfo{{Key: "exports/owner-1/a.csv", Size: 10}}, nil)

	objects, err := svc.ListExports(context.Background(), "owner-1")

	require.NoError(t, err)
	assert.Len(t, objects, 1)
}

func TestParseExportFormat(t *testing.T) {
	f, ok := ParseExportFormat("")
	assert.True(t, ok)
	assert.Equal(t, ExportCSV, f)

	f, ok = ParseExportFormat("XLSX")
	assert.True(t, ok)
	assert.Equal(t, ExportXLSX, f)

	_, ok = ParseExportFormat("pdf")
	assert.False(t, ok)
}
