package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
)

// SalesHistoryProvider supplies the daily sales series for a product.
type SalesHistoryProvider interface {
	// GetSalesHistory returns up to lookbackDays of daily sales before now,
	// oldest first.
	GetSalesHistory(ctx context.Context, ownerID, productID string, lookbackDays int, now time.Time) (domain.SalesHistory, error)
}

// ProductCatalog reads the owner's products.
type ProductCatalog interface {
	GetProduct(ctx context.Context, ownerID, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context, ownerID string, lowStockOnly bool) ([]domain.Product, error)
}

// ReorderRuleStore persists per-product replenishment policy.
type ReorderRuleStore interface {
	GetRule(ctx context.Context, ownerID, productID string) (*domain.ReorderRule, bool, error)
	UpsertRule(ctx context.Context, ownerID, productID string, input domain.ReorderRuleInput) error
}

// SalesRollupWriter stores pre-aggregated daily sales.
type SalesRollupWriter interface {
	UpsertDailyRollups(ctx context.Context, ownerID string, rows []domain.SalesRollup) (int, error)
}
