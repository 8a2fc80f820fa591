package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cimillas/stockledger/internal/domain"
)

const inventoryColumns = `variant_id, location_id, on_hand, reserved, available, updated_at`

const conditionalUpdateSQL = `
UPDATE inventory
SET on_hand = on_hand + ?3,
    reserved = reserved + ?4,
    available = (on_hand + ?3) - (reserved + ?4),
    updated_at = ?5
WHERE variant_id = ?1 AND location_id = ?2
    AND on_hand - reserved >= ?6
    AND on_hand >= ?7
    AND reserved >= ?8
RETURNING ` + inventoryColumns

func (s *Store) ConditionalUpdate(ctx context.Context, key domain.InventoryKey, m domain.Mutation, c domain.Condition) (domain.InventoryRecord, error) {
	return conditionalUpdate(ctx, s.db, key, m, c)
}

func conditionalUpdate(ctx context.Context, q querier, key domain.InventoryKey, m domain.Mutation, c domain.Condition) (domain.InventoryRecord, error) {
	row := q.QueryRowContext(ctx, conditionalUpdateSQL,
		key.VariantID,
		key.LocationID,
		m.OnHandDelta,
		m.ReservedDelta,
		formatTime(m.At),
		c.MinAvailable,
		c.MinOnHand,
		c.MinReserved,
	)
	rec, err := scanInventory(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryRecord{}, fmt.Errorf("update inventory %s: %w", key, err)
	}

	var exists bool
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM inventory WHERE variant_id = ? AND location_id = ?)`
	if err := q.QueryRowContext(ctx, existsQuery, key.VariantID, key.LocationID).Scan(&exists); err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("check inventory %s: %w", key, err)
	}
	if !exists {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return domain.InventoryRecord{}, domain.ErrInsufficientStock
}

func (s *Store) SeedInventory(ctx context.Context, rec domain.InventoryRecord) (bool, error) {
	const stmt = `
INSERT INTO inventory (variant_id, location_id, on_hand, reserved, available, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (variant_id, location_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, stmt,
		rec.VariantID,
		rec.LocationID,
		rec.OnHand,
		rec.Reserved,
		rec.OnHand-rec.Reserved,
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("seed inventory %s: %w", rec.Key(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("seed inventory %s: %w", rec.Key(), err)
	}
	return n == 1, nil
}

func (s *Store) GetInventory(ctx context.Context, key domain.InventoryKey) (domain.InventoryRecord, error) {
	const query = `SELECT ` + inventoryColumns + ` FROM inventory WHERE variant_id = ? AND location_id = ?`

	rec, err := scanInventory(s.db.QueryRowContext(ctx, query, key.VariantID, key.LocationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("get inventory %s: %w", key, err)
	}
	return rec, nil
}

func (s *Store) ListInventoryByLocation(ctx context.Context, locationID string) ([]domain.InventoryRecord, error) {
	const query = `SELECT ` + inventoryColumns + ` FROM inventory WHERE location_id = ? ORDER BY variant_id`
	return s.listInventory(ctx, query, locationID)
}

func (s *Store) ListInventoryByVariant(ctx context.Context, variantID string) ([]domain.InventoryRecord, error) {
	const query = `SELECT ` + inventoryColumns + ` FROM inventory WHERE variant_id = ? ORDER BY location_id`
	return s.listInventory(ctx, query, variantID)
}

func (s *Store) listInventory(ctx context.Context, query, arg string) ([]domain.InventoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInventory(row scanner) (domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	var updatedAt string
	if err := row.Scan(&rec.VariantID, &rec.LocationID, &rec.OnHand, &rec.Reserved, &rec.Available, &updatedAt); err != nil {
		return domain.InventoryRecord{}, err
	}
	at, err := parseTime(updatedAt)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	rec.UpdatedAt = at
	return rec, nil
}
