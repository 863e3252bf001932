package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository"
	"github.com/rs/zerolog/log"
)

type salesHistoryRepository struct {
	db *DB
}

func NewSalesHistoryRepository(db *DB) repository.SalesHistoryProvider {
	return &salesHistoryRepository{db: db}
}

// GetSalesHistory reads daily rollups and, when a product has none in the
// window, sums paid and partially paid sale lines per calendar day instead.
func (r *salesHistoryRepository) GetSalesHistory(ctx context.Context, ownerID, productID string, lookbackDays int, now time.Time) (domain.SalesHistory, error) {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	to := truncateDay(now)
	from := to.AddDate(0, 0, -lookbackDays)

	rollupQuery := `
		SELECT sale_date, quantity::float8 AS quantity
		FROM sales_daily_rollups
		WHERE owner_id = $1
		  AND product_id = $2
		  AND sale_date >= $3::date
		  AND sale_date < $4::date
		ORDER BY sale_date
	`

	var history domain.SalesHistory
	if err := r.db.SelectContext(ctx, &history, rollupQuery, ownerID, productID, from, to); err != nil {
		return nil, fmt.Errorf("error getting sales rollups: %w", err)
	}
	if len(history) > 0 {
		return history, nil
	}

	log.Debug().
		Str("owner_id", ownerID).
		Str("product_id", productID).
		Msg("no sales rollups in window, summing sale lines")

	linesQuery := `
		SELECT
			date_trunc('day', i.invoice_date)::date AS sale_date,
			SUM(sl.quantity)::float8 AS quantity
		FROM sale_lines sl
		JOIN invoices i ON i.id = sl.invoice_id
		WHERE i.owner_id = $1
		  AND sl.product_id = $2
		  AND i.status IN ('paid', 'partial')
		  AND i.invoice_date >= $3
		  AND i.invoice_date < $4
		GROUP BY date_trunc('day', i.invoice_date)
		ORDER BY sale_date
	`

	if err := r.db.SelectContext(ctx, &history, linesQuery, ownerID, productID, from, to); err != nil {
		return nil, fmt.Errorf("error summing sale lines: %w", err)
	}

	return history, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
