package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type cartItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func decodeCartReq(w http.ResponseWriter, r *http.Request, needQty bool) (cartItemReq, bool) {
	var req cartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid json")
		return req, false
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, codeMissingField, "product_id is required")
		return req, false
	}
	if needQty && req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, "quantity must be positive")
		return req, false
	}
	return req, true
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, _ := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	v, err := h.Cart.Get(ctx, c.UserID)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCartReq(w, r, true)
	if !ok {
		return
	}
	c, _ := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	v, err := h.Cart.AddItem(ctx, c.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCartReq(w, r, true)
	if !ok {
		return
	}
	c, _ := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	v, err := h.Cart.UpdateItem(ctx, c.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCartReq(w, r, false)
	if !ok {
		return
	}
	c, _ := customerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	v, err := h.Cart.RemoveItem(ctx, c.UserID, req.ProductID)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
