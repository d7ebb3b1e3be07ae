package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/idempotency"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	lines := make([]checkout.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, checkout.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	h.placeOrder(w, r, lines, nil)
}

// placeOrder runs checkout for the caller, honouring an Idempotency-Key
// header when a store is configured. onPlaced runs only for newly placed
// orders, not for replays.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request, lines []checkout.CartLine, onPlaced func(ctx context.Context, orderID int64)) {
	id, _ := identityFrom(r.Context())

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		writeError(w, http.StatusBadRequest, "idempotency key too long")
		return
	}
	if h.idem == nil {
		key = ""
	}

	if key != "" {
		orderID, found, err := h.idem.Claim(r.Context(), id.UserID, key)
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			writeError(w, http.StatusConflict, "a request with this idempotency key is already in progress")
			return
		case err != nil:
			// Redis is only a shortcut; fall through and place the order.
			h.logger.WarnContext(r.Context(), "idempotency unavailable", "err", err)
			key = ""
		case found:
			writeJSON(w, http.StatusOK, placeOrderResponse{OrderID: orderID, Replayed: true})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.checkoutTimeout)
	defer cancel()

	orderID, err := h.checkout.PlaceOrder(ctx, id.UserID, lines)
	if err != nil {
		if key != "" {
			if rerr := h.idem.Release(r.Context(), id.UserID, key); rerr != nil {
				h.logger.WarnContext(r.Context(), "release idempotency key", "err", rerr)
			}
		}
		h.writeCheckoutError(w, r, err)
		return
	}

	if key != "" {
		if cerr := h.idem.Complete(r.Context(), id.UserID, key, orderID); cerr != nil {
			h.logger.WarnContext(r.Context(), "complete idempotency key", "order_id", orderID, "err", cerr)
		}
	}
	if onPlaced != nil {
		onPlaced(r.Context(), orderID)
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{OrderID: orderID})
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		lineErr  *checkout.InvalidLineError
		nfErr    *checkout.ProductNotFoundError
		stockErr *checkout.InsufficientStockError
	)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.As(err, &lineErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "invalid cart line",
			"index":      lineErr.Index,
			"product_id": lineErr.ProductID,
			"quantity":   lineErr.Quantity,
		})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "product not found",
			"product_id": nfErr.ProductID,
		})
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":        "insufficient stock",
			"product_id":   stockErr.ProductID,
			"product_name": stockErr.ProductName,
			"available":    stockErr.Available,
			"requested":    stockErr.Requested,
		})
	default:
		h.logger.ErrorContext(r.Context(), "place order", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to place order")
	}
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var (
		orders []order.Order
		err    error
	)
	if id.Admin {
		orders, err = h.orders.List(r.Context())
	} else {
		orders, err = h.orders.ListByUser(r.Context(), id.UserID)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list orders", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	o, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get order", "order_id", orderID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Other users' orders are reported as missing rather than forbidden.
	if !id.Admin && o.UserID != id.UserID {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
