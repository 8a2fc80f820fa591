package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cimillas/stockledger/internal/clock"
	"github.com/cimillas/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

func TestOrderService_CommitOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

	t.Run("builds order, lines and guarded decrements", func(t *testing.T) {
		store := newFakeStore()
		svc := NewOrderService(store, store, clock.NewFixed(now))

		order, err := svc.CommitOrder(context.Background(), CommitOrderInput{
			OrderID:    "O1",
			LocationID: "L1",
			Lines: []OrderLineInput{
				{VariantID: "V1", Qty: 7, Price: decimal.NewFromInt(100)},
				{VariantID: "V2", Qty: 1, Price: decimal.RequireFromString("19.99")},
			},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if order.Status != domain.OrderStatusPaid || !order.CreatedAt.Equal(now) {
			t.Fatalf("unexpected order header %+v", order)
		}
		if len(order.Lines) != 2 || order.Lines[1].Seq != 1 || order.Lines[1].OrderID != "O1" {
			t.Fatalf("unexpected lines %+v", order.Lines)
		}

		if len(store.txs) != 1 {
			t.Fatalf("expected one transaction, got %d", len(store.txs))
		}
		ops := store.txs[0]
		if len(ops) != 5 {
			t.Fatalf("expected 5 ops, got %d", len(ops))
		}
		wantKinds := []domain.TxOpKind{
			domain.TxCreateOrder,
			domain.TxCreateOrderLine,
			domain.TxCreateOrderLine,
			domain.TxUpdateInventory,
			domain.TxUpdateInventory,
		}
		for i, kind := range wantKinds {
			if ops[i].Kind != kind {
				t.Fatalf("op %d: expected %s, got %s", i, kind, ops[i].Kind)
			}
		}
		upd := ops[3]
		if upd.Key != (domain.InventoryKey{VariantID: "V1", LocationID: "L1"}) {
			t.Fatalf("unexpected key %v", upd.Key)
		}
		if upd.Mutation.OnHandDelta != -7 || upd.Mutation.ReservedDelta != -7 {
			t.Fatalf("unexpected mutation %+v", upd.Mutation)
		}
		if upd.Condition.MinOnHand != 7 || upd.Condition.MinReserved != 7 {
			t.Fatalf("unexpected condition %+v", upd.Condition)
		}
		if !ops[2].Line.Price.Equal(decimal.RequireFromString("19.99")) {
			t.Fatalf("expected price 19.99, got %s", ops[2].Line.Price)
		}
	})

	t.Run("replayed order id conflicts", func(t *testing.T) {
		store := newFakeStore()
		svc := NewOrderService(store, store, clock.NewFixed(now))
		in := CommitOrderInput{
			OrderID:    "O1",
			LocationID: "L1",
			Lines:      []OrderLineInput{{VariantID: "V1", Qty: 1, Price: decimal.NewFromInt(5)}},
		}

		if _, err := svc.CommitOrder(context.Background(), in); err != nil {
			t.Fatalf("expected first commit to succeed, got %v", err)
		}
		_, err := svc.CommitOrder(context.Background(), in)
		if !errors.Is(err, domain.ErrOrderAlreadyExists) {
			t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
		}
		if !errors.Is(err, domain.ErrTransactionAborted) {
			t.Fatalf("expected ErrTransactionAborted, got %v", err)
		}
		var lc *LineConflictError
		if errors.As(err, &lc) {
			t.Fatalf("order guard must not map to a line, got %+v", lc)
		}
	})

	t.Run("failed inventory guard names the line", func(t *testing.T) {
		store := newFakeStore()
		store.txErr = &domain.TxAbortedError{
			Op:   4,
			Kind: domain.TxUpdateInventory,
			Key:  domain.InventoryKey{VariantID: "V2", LocationID: "L1"},
			Err:  domain.ErrInsufficientStock,
		}
		svc := NewOrderService(store, store, clock.NewFixed(now))

		_, err := svc.CommitOrder(context.Background(), CommitOrderInput{
			OrderID:    "O2",
			LocationID: "L1",
			Lines: []OrderLineInput{
				{VariantID: "V1", Qty: 1, Price: decimal.NewFromInt(1)},
				{VariantID: "V2", Qty: 9, Price: decimal.NewFromInt(1)},
			},
		})
		var lc *LineConflictError
		if !errors.As(err, &lc) {
			t.Fatalf("expected LineConflictError, got %v", err)
		}
		if lc.Line != 1 || lc.VariantID != "V2" {
			t.Fatalf("expected line 1 (V2), got %d (%s)", lc.Line, lc.VariantID)
		}
		if !errors.Is(err, domain.ErrInsufficientStock) || !domain.IsConflict(err) {
			t.Fatalf("expected insufficient stock conflict, got %v", err)
		}
	})

	t.Run("line create collision names the line", func(t *testing.T) {
		store := newFakeStore()
		store.txErr = &domain.TxAbortedError{Op: 1, Kind: domain.TxCreateOrderLine, Err: domain.ErrOrderLineExists}
		svc := NewOrderService(store, store, clock.NewFixed(now))

		_, err := svc.CommitOrder(context.Background(), CommitOrderInput{
			OrderID:    "O3",
			LocationID: "L1",
			Lines:      []OrderLineInput{{VariantID: "V1", Qty: 1, Price: decimal.Zero}},
		})
		var lc *LineConflictError
		if !errors.As(err, &lc) || lc.Line != 0 {
			t.Fatalf("expected conflict on line 0, got %v", err)
		}
	})

	t.Run("non transactional errors pass through", func(t *testing.T) {
		store := newFakeStore()
		boom := errors.New("connection refused")
		store.txErr = boom
		svc := NewOrderService(store, store, clock.NewFixed(now))

		_, err := svc.CommitOrder(context.Background(), CommitOrderInput{
			OrderID:    "O4",
			LocationID: "L1",
			Lines:      []OrderLineInput{{VariantID: "V1", Qty: 1, Price: decimal.Zero}},
		})
		if !errors.Is(err, boom) || domain.IsConflict(err) {
			t.Fatalf("expected raw store error, got %v", err)
		}
	})
}

func TestOrderService_Validation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	line := OrderLineInput{VariantID: "V1", Qty: 1, Price: decimal.NewFromInt(10)}

	tests := []struct {
		name    string
		input   CommitOrderInput
		wantErr error
	}{
		{name: "missing order id", input: CommitOrderInput{LocationID: "L1", Lines: []OrderLineInput{line}}, wantErr: domain.ErrOrderIDRequired},
		{name: "missing location", input: CommitOrderInput{OrderID: "O1", Lines: []OrderLineInput{line}}, wantErr: domain.ErrLocationRequired},
		{name: "no lines", input: CommitOrderInput{OrderID: "O1", LocationID: "L1"}, wantErr: domain.ErrLinesRequired},
		{
			name:    "line without variant",
			input:   CommitOrderInput{OrderID: "O1", LocationID: "L1", Lines: []OrderLineInput{{Qty: 1}}},
			wantErr: domain.ErrVariantRequired,
		},
		{
			name:    "zero qty line",
			input:   CommitOrderInput{OrderID: "O1", LocationID: "L1", Lines: []OrderLineInput{{VariantID: "V1"}}},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name: "negative price",
			input: CommitOrderInput{OrderID: "O1", LocationID: "L1", Lines: []OrderLineInput{
				{VariantID: "V1", Qty: 1, Price: decimal.NewFromInt(-1)},
			}},
			wantErr: domain.ErrInvalidPrice,
		},
		{
			name:    "more lines than the sequence key holds",
			input:   CommitOrderInput{OrderID: "O1", LocationID: "L1", Lines: manyLines(domain.MaxOrderLines + 1)},
			wantErr: domain.ErrTooManyLines,
		},
		{
			name:    "duplicate variant",
			input:   CommitOrderInput{OrderID: "O1", LocationID: "L1", Lines: []OrderLineInput{line, line}},
			wantErr: domain.ErrDuplicateLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewOrderService(store, store, clock.NewFixed(now))

			_, err := svc.CommitOrder(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(store.txs) != 0 {
				t.Fatalf("expected no transaction on invalid input")
			}
		})
	}
}

func TestOrderService_CatalogAndEvents(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	catalog := fakeCatalog{
		variants:  map[string]bool{"V1": true},
		locations: map[string]bool{"L1": true},
	}

	t.Run("unknown variant names the line", func(t *testing.T) {
		store := newFakeStore()
		svc := NewOrderService(store, store, clock.NewFixed(now), WithCatalog(catalog))

		_, err := svc.CommitOrder(context.Background(), CommitOrderInput{
			OrderID:    "O1",
			LocationID: "L1",
			Lines: []OrderLineInput{
				{VariantID: "V1", Qty: 1, Price: decimal.Zero},
				{VariantID: "V7", Qty: 1, Price: decimal.Zero},
			},
		})
		if !errors.Is(err, domain.ErrUnknownVariant) {
			t.Fatalf("expected ErrUnknownVariant, got %v", err)
		}
		if err.Error() != "line 1: unknown variant" {
			t.Fatalf("unexpected message %q", err.Error())
		}
	})

	t.Run("unknown location", func(t *testing.T) {
		store := newFakeStore()
		svc := NewOrderService(store, store, clock.NewFixed(now), WithCatalog(catalog))

		_, err := svc.CommitOrder(context.Background(), CommitOrderInput{
			OrderID:    "O1",
			LocationID: "L9",
			Lines:      []OrderLineInput{{VariantID: "V1", Qty: 1, Price: decimal.Zero}},
		})
		if !errors.Is(err, domain.ErrUnknownLocation) {
			t.Fatalf("expected ErrUnknownLocation, got %v", err)
		}
	})

	t.Run("emits committed event keyed by order id", func(t *testing.T) {
		store := newFakeStore()
		pub := &fakePublisher{}
		svc := NewOrderService(store, store, clock.NewFixed(now), WithPublisher(pub))

		_, err := svc.CommitOrder(context.Background(), CommitOrderInput{
			OrderID:    "O1",
			LocationID: "L1",
			Lines:      []OrderLineInput{{VariantID: "V1", Qty: 2, Price: decimal.NewFromInt(3)}},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(pub.events) != 1 {
			t.Fatalf("expected one event, got %d", len(pub.events))
		}
		ev := pub.events[0]
		if ev.Type != domain.EventOrderCommitted || ev.Key != "O1" {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Order == nil || len(ev.Order.Lines) != 1 {
			t.Fatalf("expected order snapshot with one line")
		}
	})
}

func TestOrderService_GetOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.orders["O1"] = domain.Order{ID: "O1", Status: domain.OrderStatusPaid, LocationID: "L1", CreatedAt: now}
	svc := NewOrderService(store, store, clock.NewFixed(now))

	order, err := svc.GetOrder(context.Background(), "O1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if order.LocationID != "L1" {
		t.Fatalf("expected location L1, got %s", order.LocationID)
	}

	if _, err := svc.GetOrder(context.Background(), "O2"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := svc.GetOrder(context.Background(), ""); !errors.Is(err, domain.ErrOrderIDRequired) {
		t.Fatalf("expected ErrOrderIDRequired, got %v", err)
	}
}

func manyLines(n int) []OrderLineInput {
	lines := make([]OrderLineInput, n)
	for i := range lines {
		lines[i] = OrderLineInput{VariantID: fmt.Sprintf("V%05d", i), Qty: 1, Price: decimal.NewFromInt(1)}
	}
	return lines
}
