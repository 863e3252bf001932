// Package mocks holds testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository"
	"github.com/stretchr/testify/mock"
)

type ProductCatalog struct {
	mock.Mock
}

func (m *ProductCatalog) GetProduct(ctx context.Context, ownerID, productID string) (*domain.Product, error) {
	args := m.Called(ctx, ownerID, productID)
	p, _ := args.Get(0).(*domain.Product)
	return p, args.Error(1)
}

func (m *ProductCatalog) ListProducts(ctx context.Context, ownerID string, lowStockOnly bool) ([]domain.Product, error) {
	args := m.Called(ctx, ownerID, lowStockOnly)
	products, _ := args.Get(0).([]domain.Product)
	return products, args.Error(1)
}

type SalesHistoryProvider struct {
	mock.Mock
}

func (m *SalesHistoryProvider) GetSalesHistory(ctx context.Context, ownerID, productID string, lookbackDays int, now time.Time) (domain.SalesHistory, error) {
	args := m.Called(ctx, ownerID, productID, lookbackDays, now)
	history, _ := args.Get(0).(domain.SalesHistory)
	return history, args.Error(1)
}

type ReorderRuleStore struct {
	mock.Mock
}

func (m *ReorderRuleStore) GetRule(ctx context.Context, ownerID, productID string) (*domain.ReorderRule, bool, error) {
	args := m.Called(ctx, ownerID, productID)
	rule, _ := args.Get(0).(*domain.ReorderRule)
	return rule, args.Bool(1), args.Error(2)
}

func (m *ReorderRuleStore) UpsertRule(ctx context.Context, ownerID, productID string, input domain.ReorderRuleInput) error {
	args := m.Called(ctx, ownerID, productID, input)
	return args.Error(0)
}

type SalesRollupWriter struct {
	mock.Mock
}

func (m *SalesRollupWriter) UpsertDailyRollups(ctx context.Context, ownerID string, rows []domain.SalesRollup) (int, error) {
	args := m.Called(ctx, ownerID, rows)
	return args.Int(0), args.Error(1)
}

var (
	_ repository.ProductCatalog       = (*ProductCatalog)(nil)
	_ repository.SalesHistoryProvider = (*SalesHistoryProvider)(nil)
	_ repository.ReorderRuleStore     = (*ReorderRuleStore)(nil)
	_ repository.SalesRollupWriter    = (*SalesRollupWriter)(nil)
)
