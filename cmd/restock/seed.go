package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var productColumns = []string{"id", "name", "current_stock", "low_stock_threshold"}

func runSeedProducts(c *cli.Context) error {
	application, err := appFrom(c)
	if err != nil {
		return err
	}

	file, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", c.String("file"), err)
	}
	defer file.Close()

	products, err := readProducts(file, c.String("owner"))
	if err != nil {
		return err
	}

	if err := seedProducts(c.Context, application.DB, products); err != nil {
		return err
	}

	log.Info().Int("products", len(products)).Str("owner_id", c.String("owner")).Msg("product catalog seeded")
	return nil
}

// readProducts parses a catalog CSV with columns id,name,current_stock,low_stock_threshold.
func readProducts(r io.Reader, ownerID string) ([]domain.Product, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range productColumns {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	var products []domain.Product
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		get := func(col string) string { return strings.TrimSpace(record[colMap[col]]) }

		stock, err := parseNumber(get("current_stock"))
		if err != nil {
			return nil, fmt.Errorf("line %d: current_stock: %w", line, err)
		}
		threshold, err := parseNumber(get("low_stock_threshold"))
		if err != nil {
			return nil, fmt.Errorf("line %d: low_stock_threshold: %w", line, err)
		}
		if get("id") == "" {
			return nil, fmt.Errorf("line %d: empty id", line)
		}

		products = append(products, domain.Product{
			ID:                get("id"),
			OwnerID:           ownerID,
			Name:              get("name"),
			CurrentStock:      stock,
			LowStockThreshold: threshold,
		})
	}
	return products, nil
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func seedProducts(ctx context.Context, db *postgres.DB, products []domain.Product) error {
	query := `
		INSERT INTO products (id, owner_id, name, current_stock, low_stock_threshold)
		VALUES (:id, :owner_id, :name, :current_stock, :low_stock_threshold)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			current_stock = EXCLUDED.current_stock,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			updated_at = NOW()
	`

	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, p := range products {
			if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
				return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
			}
		}
		return nil
	})
}
