package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
)

const (
	codeInvalidRequestBody = "invalid_request_body"
	codeMissingField       = "missing_required_field"
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeProductNotFound    = "product_not_found"
	codeItemNotFound       = "item_not_found"
	codeOrderNotFound      = "order_not_found"
	codeInsufficientStock  = "insufficient_stock"
	codeInvalidQuantity    = "invalid_quantity"
	codeDuplicateItem      = "duplicate_item"
	codeEmptyCart          = "empty_cart"
	codeCartConflict       = "cart_conflict"
	codeCheckoutInProgress = "checkout_in_progress"
	codeInvalidStatus      = "invalid_status"
	codeInvalidTransition  = "invalid_transition"
	codeStatusConflict     = "status_conflict"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ProductID string `json:"product_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{orders.ErrProductNotFound, http.StatusNotFound, codeProductNotFound},
	{orders.ErrItemNotFound, http.StatusNotFound, codeItemNotFound},
	{orders.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
	{orders.ErrInsufficientStock, http.StatusConflict, codeInsufficientStock},
	{orders.ErrDuplicateItem, http.StatusConflict, codeDuplicateItem},
	{orders.ErrCartConflict, http.StatusConflict, codeCartConflict},
	{orders.ErrCheckoutInProgress, http.StatusConflict, codeCheckoutInProgress},
	{orders.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition},
	{orders.ErrStatusConflict, http.StatusConflict, codeStatusConflict},
	{orders.ErrEmptyCart, http.StatusBadRequest, codeEmptyCart},
	{orders.ErrInvalidStatus, http.StatusBadRequest, codeInvalidStatus},
	{orders.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
}

// writeServiceError maps domain errors to responses. Anything unknown is a
// 500 whose detail stays in the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			writeJSON(w, e.status, errorResponse{Error: err.Error(), Code: e.code, ProductID: orders.ProductOf(err)})
			return
		}
	}
	log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
