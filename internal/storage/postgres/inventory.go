package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/stockledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

const inventoryColumns = `variant_id, location_id, on_hand, reserved, available, updated_at`

// Column references on the right of SET see the pre-update row.
const conditionalUpdateSQL = `
UPDATE inventory
SET on_hand = on_hand + $3,
	reserved = reserved + $4,
	available = (on_hand + $3) - (reserved + $4),
	updated_at = $5
WHERE variant_id = $1 AND location_id = $2
	AND on_hand - reserved >= $6
	AND on_hand >= $7
	AND reserved >= $8
RETURNING ` + inventoryColumns

func (s *Store) ConditionalUpdate(ctx context.Context, key domain.InventoryKey, m domain.Mutation, c domain.Condition) (domain.InventoryRecord, error) {
	row := s.queryRow(ctx, conditionalUpdateSQL,
		key.VariantID,
		key.LocationID,
		m.OnHandDelta,
		m.ReservedDelta,
		m.At,
		c.MinAvailable,
		c.MinOnHand,
		c.MinReserved,
	)
	rec, err := scanInventory(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.InventoryRecord{}, fmt.Errorf("update inventory %s: %w", key, err)
	}

	// Nothing matched: tell a missing record apart from a failed guard.
	exists, err := s.inventoryExists(ctx, key)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	if !exists {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return domain.InventoryRecord{}, domain.ErrInsufficientStock
}

func (s *Store) inventoryExists(ctx context.Context, key domain.InventoryKey) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM inventory WHERE variant_id = $1 AND location_id = $2)`
	var exists bool
	if err := s.queryRow(ctx, query, key.VariantID, key.LocationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check inventory %s: %w", key, err)
	}
	return exists, nil
}

// SeedInventory inserts rec unless the key is already stocked.
func (s *Store) SeedInventory(ctx context.Context, rec domain.InventoryRecord) (bool, error) {
	const stmt = `
INSERT INTO inventory (variant_id, location_id, on_hand, reserved, available, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (variant_id, location_id) DO NOTHING`

	tag, err := s.exec(ctx, stmt,
		rec.VariantID,
		rec.LocationID,
		rec.OnHand,
		rec.Reserved,
		rec.OnHand-rec.Reserved,
		rec.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("seed inventory %s: %w", rec.Key(), err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetInventory(ctx context.Context, key domain.InventoryKey) (domain.InventoryRecord, error) {
	const query = `SELECT ` + inventoryColumns + ` FROM inventory WHERE variant_id = $1 AND location_id = $2`

	rec, err := scanInventory(s.queryRow(ctx, query, key.VariantID, key.LocationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("get inventory %s: %w", key, err)
	}
	return rec, nil
}

func (s *Store) ListInventoryByLocation(ctx context.Context, locationID string) ([]domain.InventoryRecord, error) {
	const query = `
SELECT ` + inventoryColumns + `
FROM inventory
WHERE location_id = $1
ORDER BY variant_id ASC`
	return s.listInventory(ctx, query, locationID)
}

func (s *Store) ListInventoryByVariant(ctx context.Context, variantID string) ([]domain.InventoryRecord, error) {
	const query = `
SELECT ` + inventoryColumns + `
FROM inventory
WHERE variant_id = $1
ORDER BY location_id ASC`
	return s.listInventory(ctx, query, variantID)
}

func (s *Store) listInventory(ctx context.Context, query, arg string) ([]domain.InventoryRecord, error) {
	rows, err := s.query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0)
	for rows.Next() {
		rec, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate inventory: %w", rows.Err())
	}
	return records, nil
}

func scanInventory(row pgx.Row) (domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := row.Scan(&rec.VariantID, &rec.LocationID, &rec.OnHand, &rec.Reserved, &rec.Available, &rec.UpdatedAt)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}
