package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/stockledger/internal/app"
	"github.com/cimillas/stockledger/internal/domain"
)

// Reserver is the minimal interface needed to reserve stock.
type Reserver interface {
	Reserve(ctx context.Context, in app.ReserveInput) (domain.InventoryRecord, error)
}

// HandleReserve returns an HTTP handler for stock reservations.
func HandleReserve(svc Reserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req reserveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		rec, err := svc.Reserve(r.Context(), app.ReserveInput{
			VariantID:  req.VariantID,
			LocationID: req.LocationID,
			Qty:        req.Qty,
		})
		if err != nil {
			if writeValidationError(w, err) {
				return
			}
			switch {
			case errors.Is(err, domain.ErrInsufficientStock):
				writeError(w, http.StatusConflict, codeInsufficientStock, domain.ErrInsufficientStock.Error())
			case errors.Is(err, domain.ErrInventoryNotFound):
				writeError(w, http.StatusNotFound, codeInventoryNotFound, domain.ErrInventoryNotFound.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, reserveResponse{OK: true, Inventory: toInventoryResponse(rec)})
	}
}

type reserveRequest struct {
	VariantID  string `json:"variantId"`
	LocationID string `json:"locationId"`
	Qty        int    `json:"qty"`
}

type reserveResponse struct {
	OK        bool              `json:"ok"`
	Inventory inventoryResponse `json:"inventory"`
}
