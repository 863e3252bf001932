package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository"
	"github.com/jmoiron/sqlx"
)

type salesRollupRepository struct {
	db *DB
}

func NewSalesRollupRepository(db *DB) repository.SalesRollupWriter {
	return &salesRollupRepository{db: db}
}

// UpsertDailyRollups replaces the quantity of each (product, day) row in one
// transaction and returns the number of rows written.
func (r *salesRollupRepository) UpsertDailyRollups(ctx context.Context, ownerID string, rows []domain.SalesRollup) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO sales_daily_rollups (owner_id, product_id, sale_date, quantity, updated_at)
		VALUES ($1, $2, $3::date, $4, NOW())
		ON CONFLICT (owner_id, product_id, sale_date)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
	`

	written := 0
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare rollup upsert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, ownerID, row.ProductID, row.SaleDate, row.Quantity); err != nil {
				return fmt.Errorf("failed to upsert rollup for %s on %s: %w",
					row.ProductID, row.SaleDate.Format("2006-01-02"), err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}
