package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/stockledger/internal/domain"
)

// InventoryReader is the minimal interface needed for inventory reads.
type InventoryReader interface {
	Get(ctx context.Context, variantID, locationID string) (domain.InventoryRecord, error)
	ListByLocation(ctx context.Context, locationID string) ([]domain.InventoryRecord, error)
	ListByVariant(ctx context.Context, variantID string) ([]domain.InventoryRecord, error)
}

// HandleGetInventory serves GET /api/inventory/{variantId}/{locationId}.
func HandleGetInventory(svc InventoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.Get(r.Context(), r.PathValue("variantId"), r.PathValue("locationId"))
		if err != nil {
			writeReadError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toInventoryResponse(rec))
	}
}

// HandleListByLocation serves GET /api/inventory/location/{locationId}.
func HandleListByLocation(svc InventoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := svc.ListByLocation(r.Context(), r.PathValue("locationId"))
		if err != nil {
			writeReadError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toInventoryList(recs))
	}
}

// HandleListByVariant serves GET /api/inventory/variant/{variantId}.
func HandleListByVariant(svc InventoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := svc.ListByVariant(r.Context(), r.PathValue("variantId"))
		if err != nil {
			writeReadError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toInventoryList(recs))
	}
}

type inventoryResponse struct {
	VariantID  string    `json:"variantId"`
	LocationID string    `json:"locationId"`
	OnHand     int       `json:"onHand"`
	Reserved   int       `json:"reserved"`
	Available  int       `json:"available"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toInventoryResponse(rec domain.InventoryRecord) inventoryResponse {
	return inventoryResponse{
		VariantID:  rec.VariantID,
		LocationID: rec.LocationID,
		OnHand:     rec.OnHand,
		Reserved:   rec.Reserved,
		Available:  rec.Available,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func toInventoryList(recs []domain.InventoryRecord) []inventoryResponse {
	out := make([]inventoryResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toInventoryResponse(rec))
	}
	return out
}
