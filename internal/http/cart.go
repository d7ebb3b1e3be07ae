package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/money"
)

type cartResponse struct {
	Items []cartLineResponse `json:"items"`
	Total string             `json:"total"`
}

type cartLineResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Available   int    `json:"available"`
	Subtotal    string `json:"subtotal"`
}

func toCartResponse(c cart.Cart) cartResponse {
	resp := cartResponse{Items: make([]cartLineResponse, 0, len(c.Lines)), Total: money.Format(c.Total())}
	for _, l := range c.Lines {
		resp.Items = append(resp.Items, cartLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   money.Format(l.UnitPrice),
			Quantity:    l.Quantity,
			Available:   l.Available,
			Subtotal:    money.Format(l.Subtotal()),
		})
	}
	return resp
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	c, err := h.carts.Get(r.Context(), id.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "load cart", "user_id", id.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product_id")
		return
	}

	if err := h.carts.Add(r.Context(), id.UserID, req.ProductID, req.Quantity); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.GetCart(w, r)
}

func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || productID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.carts.SetQuantity(r.Context(), id.UserID, productID, req.Quantity); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.GetCart(w, r)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || productID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.carts.Remove(r.Context(), id.UserID, productID); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.GetCart(w, r)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	if err := h.carts.Clear(r.Context(), id.UserID); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckoutCart places an order from the stored cart. Once the order is
// committed the ordered quantities are taken out of the cart.
func (h *Handler) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	c, err := h.carts.Get(r.Context(), id.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "load cart", "user_id", id.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}

	lines := make([]checkout.CartLine, 0, len(c.Lines))
	ordered := make(map[int64]int, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, checkout.CartLine{ProductID: l.ProductID, Quantity: l.Quantity})
		ordered[l.ProductID] += l.Quantity
	}

	h.placeOrder(w, r, lines, func(ctx context.Context, orderID int64) {
		if err := h.carts.Consume(ctx, id.UserID, ordered); err != nil {
			h.logger.WarnContext(ctx, "remove ordered lines from cart", "order_id", orderID, "err", err)
		}
	})
}

func (h *Handler) writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "cart request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
