package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository"
)

type reorderRuleRepository struct {
	db *DB
}

func NewReorderRuleRepository(db *DB) repository.ReorderRuleStore {
	return &reorderRuleRepository{db: db}
}

func (r *reorderRuleRepository) GetRule(ctx context.Context, ownerID, productID string) (*domain.ReorderRule, bool, error) {
	query := `
		SELECT owner_id, product_id, auto_reorder, reorder_point, reorder_quantity,
		       preferred_supplier_id, lead_time_days, safety_stock, created_at, updated_at
		FROM reorder_rules
		WHERE owner_id = $1 AND product_id = $2
	`

	var rule domain.ReorderRule
	if err := r.db.GetContext(ctx, &rule, query, ownerID, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error getting reorder rule: %w", err)
	}

	return &rule, true, nil
}

// UpsertRule creates the rule with defaults for omitted fields, or overwrites
// only the supplied fields of an existing rule.
func (r *reorderRuleRepository) UpsertRule(ctx context.Context, ownerID, productID string, input domain.ReorderRuleInput) error {
	query := `
		INSERT INTO reorder_rules (
			owner_id, product_id, auto_reorder, reorder_point, reorder_quantity,
			preferred_supplier_id, lead_time_days, safety_stock, created_at, updated_at
		)
		VALUES (
			$1, $2,
			COALESCE($3::boolean, false),
			COALESCE($4::int, 0),
			COALESCE($5::int, 0),
			$6::text,
			COALESCE($7::int, $9::int),
			COALESCE($8::int, $10::int),
			NOW(), NOW()
		)
		ON CONFLICT (owner_id, product_id)
		DO UPDATE SET
			auto_reorder = COALESCE($3::boolean, reorder_rules.auto_reorder),
			reorder_point = COALESCE($4::int, reorder_rules.reorder_point),
			reorder_quantity = COALESCE($5::int, reorder_rules.reorder_quantity),
			preferred_supplier_id = COALESCE($6::text, reorder_rules.preferred_supplier_id),
			lead_time_days = COALESCE($7::int, reorder_rules.lead_time_days),
			safety_stock = COALESCE($8::int, reorder_rules.safety_stock),
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		ownerID,
		productID,
		input.AutoReorder,
		input.ReorderPoint,
		input.ReorderQuantity,
		input.PreferredSupplierID,
		input.LeadTimeDays,
		input.SafetyStock,
		domain.DefaultLeadTimeDays,
		domain.DefaultSafetyStock,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reorder rule: %w", err)
	}
	return nil
}
