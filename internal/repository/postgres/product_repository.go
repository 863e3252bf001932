package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository"
)

type productRepository struct {
	db *DB
}

func NewProductRepository(db *DB) repository.ProductCatalog {
	return &productRepository{db: db}
}

func (r *productRepository) GetProduct(ctx context.Context, ownerID, productID string) (*domain.Product, error) {
	query := `
		SELECT id, owner_id, name,
		       current_stock::float8 AS current_stock,
		       low_stock_threshold::float8 AS low_stock_threshold
		FROM products
		WHERE owner_id = $1 AND id = $2
	`

	var p domain.Product
	if err := r.db.GetContext(ctx, &p, query, ownerID, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return &p, nil
}

func (r *productRepository) ListProducts(ctx context.Context, ownerID string, lowStockOnly bool) ([]domain.Product, error) {
	query := `
		SELECT id, owner_id, name,
		       current_stock::float8 AS current_stock,
		       low_stock_threshold::float8 AS low_stock_threshold
		FROM products
		WHERE owner_id = $1
	`
	if lowStockOnly {
		query += " AND current_stock <= low_stock_threshold"
	}
	query += " ORDER BY name"

	var products []domain.Product
	if err := r.db.SelectContext(ctx, &products, query, ownerID); err != nil {
		return nil, fmt.Errorf("error listing products: %w", err)
	}

	return products, nil
}
