package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/stockledger/internal/app"
	"github.com/cimillas/stockledger/internal/domain"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeVariantRequired    = "variant_required"
	codeLocationRequired   = "location_required"
	codeOrderIDRequired    = "order_id_required"
	codeLinesRequired      = "lines_required"
	codeTooManyLines       = "too_many_lines"
	codeInvalidQuantity    = "invalid_quantity"
	codeInvalidPrice       = "invalid_price"
	codeDuplicateLine      = "duplicate_line"
	codeUnknownVariant     = "unknown_variant"
	codeUnknownLocation    = "unknown_location"
	codeInventoryNotFound  = "inventory_not_found"
	codeOrderNotFound      = "order_not_found"
	codeInsufficientStock  = "insufficient_stock"
	codeOrderExists        = "order_already_exists"
	codeTransactionAborted = "transaction_aborted"
	codeStoreUnavailable   = "store_unavailable"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

const msgStockChanged = "stock changed; refresh"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Line  *int   `json:"line,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

var validationCodes = []struct {
	err  error
	code string
}{
	{domain.ErrVariantRequired, codeVariantRequired},
	{domain.ErrLocationRequired, codeLocationRequired},
	{domain.ErrOrderIDRequired, codeOrderIDRequired},
	{domain.ErrLinesRequired, codeLinesRequired},
	{domain.ErrTooManyLines, codeTooManyLines},
	{domain.ErrInvalidQuantity, codeInvalidQuantity},
	{domain.ErrInvalidPrice, codeInvalidPrice},
	{domain.ErrDuplicateLine, codeDuplicateLine},
	{domain.ErrUnknownVariant, codeUnknownVariant},
	{domain.ErrUnknownLocation, codeUnknownLocation},
}

// writeValidationError reports whether err was a validation error it wrote.
func writeValidationError(w http.ResponseWriter, err error) bool {
	for _, vc := range validationCodes {
		if errors.Is(err, vc.err) {
			writeError(w, http.StatusBadRequest, vc.code, err.Error())
			return true
		}
	}
	return false
}

// writeReadError maps errors of the read-only endpoints.
func writeReadError(w http.ResponseWriter, err error) {
	if writeValidationError(w, err) {
		return
	}
	switch {
	case errors.Is(err, domain.ErrInventoryNotFound):
		writeError(w, http.StatusNotFound, codeInventoryNotFound, domain.ErrInventoryNotFound.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, domain.ErrOrderNotFound.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

// writeCommitConflict renders a failed commit transaction. Every abort is
// reported as a stale view of stock; the code and line say which guard fired.
func writeCommitConflict(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: msgStockChanged, Code: codeTransactionAborted}
	switch {
	case errors.Is(err, domain.ErrOrderAlreadyExists):
		resp.Code = codeOrderExists
	case errors.Is(err, domain.ErrInsufficientStock):
		resp.Code = codeInsufficientStock
	case errors.Is(err, domain.ErrInventoryNotFound):
		resp.Code = codeInventoryNotFound
	}
	var lc *app.LineConflictError
	if errors.As(err, &lc) {
		line := lc.Line
		resp.Line = &line
	}
	writeErrorResponse(w, http.StatusConflict, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
