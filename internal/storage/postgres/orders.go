package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cimillas/stockledger/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AtomicTransaction runs ops in one database transaction. Creates run in the
// given order; inventory updates follow in key order so concurrent commits
// lock rows in the same sequence. The failing op keeps its original index.
func (s *Store) AtomicTransaction(ctx context.Context, ops []domain.TxOp) error {
	err := withTx(ctx, s.pool, ledgerTxOptions, func(txCtx context.Context) error {
		for _, i := range executionOrder(ops) {
			if err := s.applyOp(txCtx, i, ops[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTransactionAborted) {
		return err
	}
	return fmt.Errorf("atomic transaction: %w", err)
}

func executionOrder(ops []domain.TxOp) []int {
	idx := make([]int, len(ops))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		opA, opB := ops[idx[a]], ops[idx[b]]
		updA, updB := opA.Kind == domain.TxUpdateInventory, opB.Kind == domain.TxUpdateInventory
		if updA != updB {
			return updB
		}
		if updA {
			return opA.Key.Less(opB.Key)
		}
		return false
	})
	return idx
}

func (s *Store) applyOp(ctx context.Context, i int, op domain.TxOp) error {
	switch op.Kind {
	case domain.TxCreateOrder:
		created, err := s.createOrder(ctx, op.Order)
		if err != nil {
			return err
		}
		if !created {
			return &domain.TxAbortedError{Op: i, Kind: op.Kind, Err: domain.ErrOrderAlreadyExists}
		}
	case domain.TxCreateOrderLine:
		if err := s.createOrderLine(ctx, op.Line); err != nil {
			if errors.Is(err, domain.ErrOrderLineExists) {
				return &domain.TxAbortedError{Op: i, Kind: op.Kind, Err: err}
			}
			return err
		}
	case domain.TxUpdateInventory:
		if _, err := s.ConditionalUpdate(ctx, op.Key, op.Mutation, op.Condition); err != nil {
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

func (s *Store) createOrder(ctx context.Context, order domain.Order) (bool, error) {
	const stmt = `
INSERT INTO orders (id, status, location_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`

	tag, err := s.exec(ctx, stmt, order.ID, string(order.Status), order.LocationID, order.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("create order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) createOrderLine(ctx context.Context, line domain.OrderLine) error {
	const stmt = `
INSERT INTO order_lines (order_id, seq, variant_id, qty, price)
VALUES ($1, $2, $3, $4, $5::numeric)`

	_, err := s.exec(ctx, stmt, line.OrderID, line.SeqKey(), line.VariantID, line.Qty, line.Price.String())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderLineExists
		}
		return fmt.Errorf("create order line: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	const orderQuery = `SELECT id, status, location_id, created_at FROM orders WHERE id = $1`

	var o domain.Order
	var status string
	err := s.queryRow(ctx, orderQuery, orderID).Scan(&o.ID, &status, &o.LocationID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()

	const linesQuery = `
SELECT seq, variant_id, qty, price::text
FROM order_lines
WHERE order_id = $1
ORDER BY seq ASC, variant_id ASC`
	rows, err := s.query(ctx, linesQuery, orderID)
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
	if rows.Err() != nil {
		return domain.Order{}, fmt.Errorf("iterate order lines: %w", rows.Err())
	}
	return o, nil
}
