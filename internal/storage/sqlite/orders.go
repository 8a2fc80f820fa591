package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cimillas/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

// AtomicTransaction applies ops in order inside one IMMEDIATE transaction.
func (s *Store) AtomicTransaction(ctx context.Context, ops []domain.TxOp) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, op := range ops {
		if err := applyOp(ctx, tx, i, op); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func applyOp(ctx context.Context, tx *sql.Tx, i int, op domain.TxOp) error {
	switch op.Kind {
	case domain.TxCreateOrder:
		const stmt = `
INSERT INTO orders (id, status, location_id, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`
		res, err := tx.ExecContext(ctx, stmt, op.Order.ID, string(op.Order.Status), op.Order.LocationID, formatTime(op.Order.CreatedAt))
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("create order: %w", err)
		} else if n == 0 {
			return &domain.TxAbortedError{Op: i, Kind: op.Kind, Err: domain.ErrOrderAlreadyExists}
		}
	case domain.TxCreateOrderLine:
		const stmt = `INSERT INTO order_lines (order_id, seq, variant_id, qty, price) VALUES (?, ?, ?, ?, ?)`
		l := op.Line
		if _, err := tx.ExecContext(ctx, stmt, l.OrderID, l.SeqKey(), l.VariantID, l.Qty, l.Price.String()); err != nil {
			if isConstraintViolation(err) {
				return &domain.TxAbortedError{Op: i, Kind: op.Kind, Err: domain.ErrOrderLineExists}
			}
			return fmt.Errorf("create order line: %w", err)
		}
	case domain.TxUpdateInventory:
		if _, err := conditionalUpdate(ctx, tx, op.Key, op.Mutation, op.Condition); err != nil {
			if errors.Is(err, domain.ErrInventoryNotFound) || errors.Is(err, domain.ErrInsufficientStock) {
				return &domain.TxAbortedError{Op: i, Kind: op.Kind, Key: op.Key, Err: err}
			}
			return err
		}
	default:
		return fmt.Errorf("op %d: unsupported kind %s", i, op.Kind)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	const orderQuery = `SELECT id, status, location_id, created_at FROM orders WHERE id = ?`

	var o domain.Order
	var status, createdAt string
	err := s.db.QueryRowContext(ctx, orderQuery, orderID).Scan(&o.ID, &status, &o.LocationID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Order{}, err
	}

	const linesQuery = `
SELECT seq, variant_id, qty, price
FROM order_lines
WHERE order_id = ?
ORDER BY seq, variant_id`
	rows, err := s.db.QueryContext(ctx, linesQuery, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	o.Lines = make([]domain.OrderLine, 0)
	for rows.Next() {
		var seqKey, price string
		line := domain.OrderLine{OrderID: orderID}
		if err := rows.Scan(&seqKey, &line.VariantID, &line.Qty, &price); err != nil {
			return domain.Order{}, fmt.Errorf("scan order line: %w", err)
		}
		if line.Seq, err = domain.ParseSeq(seqKey); err != nil {
			return domain.Order{}, err
		}
		if line.Price, err = decimal.NewFromString(price); err != nil {
			return domain.Order{}, fmt.Errorf("parse price %q: %w", price, err)
		}
		o.Lines = append(o.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("iterate order lines: %w", err)
	}
	return o, nil
}
