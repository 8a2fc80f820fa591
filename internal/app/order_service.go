package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/stockledger/internal/clock"
	"github.com/cimillas/stockledger/internal/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type OrderService struct {
	store  ConditionalStore
	reader LedgerReader
	clock  clock.Clock
	deps
}

func NewOrderService(store ConditionalStore, reader LedgerReader, clk clock.Clock, opts ...Option) *OrderService {
	svc := &OrderService{
		store:  store,
		reader: reader,
		clock:  clk,
		deps:   defaultDeps(),
	}
	for _, opt := range opts {
		opt(&svc.deps)
	}
	return svc
}

type OrderLineInput struct {
	VariantID string
	Qty       int
	Price     decimal.Decimal
}

type CommitOrderInput struct {
	OrderID    string
	LocationID string
	Lines      []OrderLineInput
}

func (in CommitOrderInput) validate() error {
	if in.OrderID == "" {
		return domain.ErrOrderIDRequired
	}
	if in.LocationID == "" {
		return domain.ErrLocationRequired
	}
	if len(in.Lines) == 0 {
		return domain.ErrLinesRequired
	}
	if len(in.Lines) > domain.MaxOrderLines {
		return domain.ErrTooManyLines
	}
	seen := make(map[string]struct{}, len(in.Lines))
	for i, line := range in.Lines {
		if line.VariantID == "" {
			return fmt.Errorf("line %d: %w", i, domain.ErrVariantRequired)
		}
		if line.Qty <= 0 {
			return fmt.Errorf("line %d: %w", i, domain.ErrInvalidQuantity)
		}
		if line.Price.IsNegative() {
			return fmt.Errorf("line %d: %w", i, domain.ErrInvalidPrice)
		}
		if _, dup := seen[line.VariantID]; dup {
			return fmt.Errorf("line %d: %w", i, domain.ErrDuplicateLine)
		}
		seen[line.VariantID] = struct{}{}
	}
	return nil
}

// LineConflictError names the order line whose inventory guard aborted a commit.
type LineConflictError struct {
	Line      int
	VariantID string
	Err       error
}

func (e *LineConflictError) Error() string {
	return fmt.Sprintf("line %d (%s): %v", e.Line, e.VariantID, e.Err)
}

func (e *LineConflictError) Unwrap() error {
	return e.Err
}

// CommitOrder writes the order, its lines and the inventory decrements for
// every line as one transaction. Replaying an order id fails with
// domain.ErrOrderAlreadyExists and changes nothing.
func (s *OrderService) CommitOrder(ctx context.Context, in CommitOrderInput) (domain.Order, error) {
	if err := in.validate(); err != nil {
		return domain.Order{}, err
	}
	if err := s.checkCatalog("", in.LocationID); err != nil {
		return domain.Order{}, err
	}
	for i, line := range in.Lines {
		if err := s.checkCatalog(line.VariantID, in.LocationID); err != nil {
			return domain.Order{}, fmt.Errorf("line %d: %w", i, err)
		}
	}

	ctx, span := tracer.Start(ctx, "ledger.commit_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", in.OrderID),
		attribute.String("order.location_id", in.LocationID),
		attribute.Int("order.lines", len(in.Lines)),
	)

	now := s.clock.Now()
	order := domain.Order{
		ID:         in.OrderID,
		Status:     domain.OrderStatusPaid,
		LocationID: in.LocationID,
		CreatedAt:  now,
		Lines:      make([]domain.OrderLine, 0, len(in.Lines)),
	}

	// Layout: [order, line_0..line_n-1, update_0..update_n-1].
	n := len(in.Lines)
	ops := make([]domain.TxOp, 0, 1+2*n)
	ops = append(ops, domain.CreateOrderOp(order))
	for i, li := range in.Lines {
		line := domain.OrderLine{
			OrderID:   order.ID,
			Seq:       i,
			VariantID: li.VariantID,
			Qty:       li.Qty,
			Price:     li.Price,
		}
		order.Lines = append(order.Lines, line)
		ops = append(ops, domain.CreateOrderLineOp(line))
	}
	for _, line := range order.Lines {
		m, c := domain.CommitMutation(line.Qty, now)
		key := domain.InventoryKey{VariantID: line.VariantID, LocationID: order.LocationID}
		ops = append(ops, domain.UpdateInventoryOp(key, m, c))
	}

	if err := s.store.AtomicTransaction(ctx, ops); err != nil {
		err = lineConflict(err, order.Lines)
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}

	s.logger.Info("order committed",
		zap.String("order_id", order.ID),
		zap.String("location_id", order.LocationID),
		zap.Int("lines", len(order.Lines)),
	)

	s.publish(ctx, domain.LedgerEvent{
		ID:         newEventID(),
		Type:       domain.EventOrderCommitted,
		OccurredAt: now,
		Key:        order.ID,
		Order:      &order,
	})
	return order, nil
}

func lineConflict(err error, lines []domain.OrderLine) error {
	var aborted *domain.TxAbortedError
	if !errors.As(err, &aborted) {
		return err
	}
	n := len(lines)
	var idx int
	switch {
	case aborted.Op >= 1 && aborted.Op <= n:
		idx = aborted.Op - 1
	case aborted.Op > n && aborted.Op <= 2*n:
		idx = aborted.Op - 1 - n
	default:
		return err
	}
	return &LineConflictError{Line: idx, VariantID: lines[idx].VariantID, Err: err}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	return s.reader.GetOrder(ctx, orderID)
}
