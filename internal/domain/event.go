package domain

import "time"

type EventType string

const (
	EventInventoryReserved EventType = "inventory.reserved"
	EventOrderCommitted    EventType = "order.committed"
)

// LedgerEvent is emitted after a mutation has been committed to the store.
type LedgerEvent struct {
	ID         string
	Type       EventType
	OccurredAt time.Time
	// Key is the partitioning key: the inventory key for reservations, the order id for commits.
	Key       string
	Inventory *InventoryRecord
	Order     *Order
}
