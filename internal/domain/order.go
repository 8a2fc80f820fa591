package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// OrderStatusPaid is the only state written; orders are immutable after commit.
const OrderStatusPaid OrderStatus = "PAID"

// Order is a committed sale fulfilled from a single location.
type Order struct {
	ID         string
	Status     OrderStatus
	LocationID string
	CreatedAt  time.Time
	Lines      []OrderLine
}

// OrderLine is keyed by (OrderID, Seq, VariantID); Seq preserves submission order.
type OrderLine struct {
	OrderID   string
	Seq       int
	VariantID string
	Qty       int
	Price     decimal.Decimal
}

// SeqKey is the zero-padded sequence used for ordered retrieval.
func (l OrderLine) SeqKey() string {
	return FormatSeq(l.Seq)
}

// MaxOrderLines keeps every Seq within the four-digit key width.
const MaxOrderLines = 9999

func FormatSeq(seq int) string {
	return fmt.Sprintf("%04d", seq)
}

// ParseSeq reverses FormatSeq.
func ParseSeq(key string) (int, error) {
	seq, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("parse line seq %q: %w", key, err)
	}
	return seq, nil
}

// LineKey is the full storage key of an order line.
func LineKey(orderID string, seq int, variantID string) string {
	return orderID + "#" + FormatSeq(seq) + "#" + variantID
}
