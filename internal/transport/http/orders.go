package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cimillas/stockledger/internal/app"
	"github.com/cimillas/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

// OrderCommitter is the minimal interface needed to commit an order.
type OrderCommitter interface {
	CommitOrder(ctx context.Context, in app.CommitOrderInput) (domain.Order, error)
}

// OrderReader is the minimal interface needed to read a committed order.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// HandleCommitOrder returns an HTTP handler that commits an order and its
// inventory decrements atomically.
func HandleCommitOrder(svc OrderCommitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req commitOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		in := app.CommitOrderInput{
			OrderID:    req.OrderID,
			LocationID: req.LocationID,
			Lines:      make([]app.OrderLineInput, 0, len(req.Lines)),
		}
		for _, l := range req.Lines {
			in.Lines = append(in.Lines, app.OrderLineInput{
				VariantID: l.VariantID,
				Qty:       l.Qty,
				Price:     l.Price,
			})
		}

		order, err := svc.CommitOrder(r.Context(), in)
		if err != nil {
			if writeValidationError(w, err) {
				return
			}
			if domain.IsConflict(err) {
				writeCommitConflict(w, err)
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, commitOrderResponse{OK: true, OrderID: order.ID})
	}
}

// HandleGetOrder serves GET /api/orders/{orderId}.
func HandleGetOrder(svc OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetOrder(r.Context(), r.PathValue("orderId"))
		if err != nil {
			writeReadError(w, err)
			return
		}

		resp := orderResponse{
			OrderID:    order.ID,
			Status:     string(order.Status),
			LocationID: order.LocationID,
			CreatedAt:  order.CreatedAt,
			Lines:      make([]orderLineResponse, 0, len(order.Lines)),
		}
		for _, l := range order.Lines {
			resp.Lines = append(resp.Lines, orderLineResponse{
				Seq:       l.Seq,
				VariantID: l.VariantID,
				Qty:       l.Qty,
				Price:     l.Price,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type commitOrderRequest struct {
	OrderID    string             `json:"orderId"`
	LocationID string             `json:"locationId"`
	Lines      []orderLineRequest `json:"lines"`
}

type orderLineRequest struct {
	VariantID string          `json:"variantId"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type commitOrderResponse struct {
	OK      bool   `json:"ok"`
	OrderID string `json:"orderId"`
}

type orderResponse struct {
	OrderID    string              `json:"orderId"`
	Status     string              `json:"status"`
	LocationID string              `json:"locationId"`
	CreatedAt  time.Time           `json:"createdAt"`
	Lines      []orderLineResponse `json:"lines"`
}

type orderLineResponse struct {
	Seq       int             `json:"seq"`
	VariantID string          `json:"variantId"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}
