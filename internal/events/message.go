package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cimillas/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

type message struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurredAt"`
	Inventory  *inventoryPayload `json:"inventory,omitempty"`
	Order      *orderPayload     `json:"order,omitempty"`
}

type inventoryPayload struct {
	VariantID  string    `json:"variantId"`
	LocationID string    `json:"locationId"`
	OnHand     int       `json:"onHand"`
	Reserved   int       `json:"reserved"`
	Available  int       `json:"available"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type orderPayload struct {
	OrderID    string        `json:"orderId"`
	Status     string        `json:"status"`
	LocationID string        `json:"locationId"`
	CreatedAt  time.Time     `json:"createdAt"`
	Lines      []linePayload `json:"lines"`
}

type linePayload struct {
	Seq       string          `json:"seq"`
	VariantID string          `json:"variantId"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

// Encode renders the wire form of a ledger event.
func Encode(ev domain.LedgerEvent) ([]byte, error) {
	msg := message{
		ID:         ev.ID,
		Type:       string(ev.Type),
		OccurredAt: ev.OccurredAt.UTC(),
	}
	if rec := ev.Inventory; rec != nil {
		msg.Inventory = &inventoryPayload{
			VariantID:  rec.VariantID,
			LocationID: rec.LocationID,
			OnHand:     rec.OnHand,
			Reserved:   rec.Reserved,
			Available:  rec.Available,
			UpdatedAt:  rec.UpdatedAt.UTC(),
		}
	}
	if o := ev.Order; o != nil {
		msg.Order = &orderPayload{
			OrderID:    o.ID,
			Status:     string(o.Status),
			LocationID: o.LocationID,
			CreatedAt:  o.CreatedAt.UTC(),
			Lines:      make([]linePayload, 0, len(o.Lines)),
		}
		for _, l := range o.Lines {
			msg.Order.Lines = append(msg.Order.Lines, linePayload{
				Seq:       l.SeqKey(),
				VariantID: l.VariantID,
				Qty:       l.Qty,
				Price:     l.Price,
			})
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return payload, nil
}
