package app

import (
	"context"

	"github.com/cimillas/stockledger/internal/domain"
)

// InventoryService is the read side of the ledger. It never mutates.
type InventoryService struct {
	reader LedgerReader
}

func NewInventoryService(reader LedgerReader) *InventoryService {
	return &InventoryService{reader: reader}
}

func (s *InventoryService) Get(ctx context.Context, variantID, locationID string) (domain.InventoryRecord, error) {
	if variantID == "" {
		return domain.InventoryRecord{}, domain.ErrVariantRequired
	}
	if locationID == "" {
		return domain.InventoryRecord{}, domain.ErrLocationRequired
	}
	return s.reader.GetInventory(ctx, domain.InventoryKey{VariantID: variantID, LocationID: locationID})
}

func (s *InventoryService) ListByLocation(ctx context.Context, locationID string) ([]domain.InventoryRecord, error) {
	if locationID == "" {
		return nil, domain.ErrLocationRequired
	}
	return s.reader.ListInventoryByLocation(ctx, locationID)
}

func (s *InventoryService) ListByVariant(ctx context.Context, variantID string) ([]domain.InventoryRecord, error) {
	if variantID == "" {
		return nil, domain.ErrVariantRequired
	}
	return s.reader.ListInventoryByVariant(ctx, variantID)
}
