package domain

import (
	"fmt"
	"time"
)

// InventoryKey identifies one ledger row: a product variant stocked at a location.
type InventoryKey struct {
	VariantID  string
	LocationID string
}

func (k InventoryKey) String() string {
	return k.VariantID + "@" + k.LocationID
}

// Less orders keys by variant, then location.
func (k InventoryKey) Less(other InventoryKey) bool {
	if k.VariantID != other.VariantID {
		return k.VariantID < other.VariantID
	}
	return k.LocationID < other.LocationID
}

// InventoryRecord is the stock position of a variant at a location.
// Available is stored for reads but always equals OnHand - Reserved.
type InventoryRecord struct {
	VariantID  string
	LocationID string
	OnHand     int
	Reserved   int
	Available  int
	UpdatedAt  time.Time
}

func (r InventoryRecord) Key() InventoryKey {
	return InventoryKey{VariantID: r.VariantID, LocationID: r.LocationID}
}

// Check verifies 0 <= reserved <= onHand and available = onHand - reserved.
func (r InventoryRecord) Check() error {
	if r.Reserved < 0 || r.Reserved > r.OnHand {
		return fmt.Errorf("inventory %s: reserved %d outside [0, %d]", r.Key(), r.Reserved, r.OnHand)
	}
	if r.Available != r.OnHand-r.Reserved {
		return fmt.Errorf("inventory %s: available %d != %d - %d", r.Key(), r.Available, r.OnHand, r.Reserved)
	}
	return nil
}

// NewInventoryRecord builds a seeded record with a consistent available count.
func NewInventoryRecord(variantID, locationID string, onHand, reserved int, at time.Time) InventoryRecord {
	return InventoryRecord{
		VariantID:  variantID,
		LocationID: locationID,
		OnHand:     onHand,
		Reserved:   reserved,
		Available:  onHand - reserved,
		UpdatedAt:  at,
	}
}
