package domain

import (
	"errors"
	"testing"
	"time"
)

func TestReserveMutation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := NewInventoryRecord("V1", "L1", 10, 0, now.Add(-time.Hour))

	m, c := ReserveMutation(7, now)
	if !c.Holds(rec) {
		t.Fatalf("expected condition to hold for %+v", rec)
	}
	rec = m.Apply(rec)
	if rec.Reserved != 7 || rec.Available != 3 || rec.OnHand != 10 {
		t.Fatalf("unexpected record after reserve: %+v", rec)
	}
	if !rec.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at %v, got %v", now, rec.UpdatedAt)
	}
	if err := rec.Check(); err != nil {
		t.Fatalf("invariant: %v", err)
	}

	_, c = ReserveMutation(5, now)
	if c.Holds(rec) {
		t.Fatalf("expected condition to fail with available=%d", rec.Available)
	}
}

func TestCommitMutation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		rec      InventoryRecord
		qty      int
		holds    bool
		onHand   int
		reserved int
	}{
		{name: "covered by reservation", rec: NewInventoryRecord("V1", "L1", 10, 7, now), qty: 7, holds: true, onHand: 3, reserved: 0},
		{name: "partial reservation", rec: NewInventoryRecord("V1", "L1", 10, 4, now), qty: 3, holds: true, onHand: 7, reserved: 1},
		{name: "not reserved", rec: NewInventoryRecord("V1", "L1", 10, 0, now), qty: 1, holds: false},
		{name: "reserved short", rec: NewInventoryRecord("V1", "L1", 10, 2, now), qty: 3, holds: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, c := CommitMutation(tt.qty, now)
			if got := c.Holds(tt.rec); got != tt.holds {
				t.Fatalf("expected holds=%v, got %v", tt.holds, got)
			}
			if !tt.holds {
				return
			}
			after := m.Apply(tt.rec)
			if after.OnHand != tt.onHand || after.Reserved != tt.reserved {
				t.Fatalf("unexpected record: %+v", after)
			}
			if err := after.Check(); err != nil {
				t.Fatalf("invariant: %v", err)
			}
		})
	}
}

func TestInventoryRecordCheck(t *testing.T) {
	t.Parallel()

	bad := []InventoryRecord{
		{VariantID: "V", LocationID: "L", OnHand: 5, Reserved: 6, Available: -1},
		{VariantID: "V", LocationID: "L", OnHand: 5, Reserved: -1, Available: 6},
		{VariantID: "V", LocationID: "L", OnHand: 5, Reserved: 1, Available: 5},
	}
	for _, rec := range bad {
		if err := rec.Check(); err == nil {
			t.Fatalf("expected invariant violation for %+v", rec)
		}
	}
}

func TestTxAbortedErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := error(&TxAbortedError{Op: 3, Kind: TxUpdateInventory, Key: InventoryKey{VariantID: "V1", LocationID: "L1"}, Err: ErrInsufficientStock})
	if !errors.Is(err, ErrTransactionAborted) {
		t.Fatalf("expected ErrTransactionAborted in chain")
	}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock in chain")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict classification")
	}
	if IsValidation(err) {
		t.Fatalf("did not expect validation classification")
	}
}

func TestLineKey(t *testing.T) {
	t.Parallel()

	if got := LineKey("O1", 2, "V9"); got != "O1#0002#V9" {
		t.Fatalf("unexpected line key %q", got)
	}
}

func TestFormatSeq_OrdersUpToMaxLines(t *testing.T) {
	t.Parallel()

	last := FormatSeq(MaxOrderLines - 1)
	if len(last) != 4 {
		t.Fatalf("expected four-digit key for the last line, got %q", last)
	}
	if !(FormatSeq(9) < FormatSeq(10) && FormatSeq(MaxOrderLines-2) < last) {
		t.Fatalf("expected text order to follow numeric order")
	}
}
