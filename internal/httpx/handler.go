package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rahulrai17/shoply-checkout/internal/cart"
	"github.com/rahulrai17/shoply-checkout/internal/catalog"
	"github.com/rahulrai17/shoply-checkout/internal/catalog/events"
	"github.com/rahulrai17/shoply-checkout/internal/checkout"
	"github.com/rahulrai17/shoply-checkout/internal/httpx/middlewares"
	"github.com/rahulrai17/shoply-checkout/internal/inventory"
	"github.com/rahulrai17/shoply-checkout/internal/order"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

// Handler exposes the cart and checkout operations over HTTP. The identity
// in the X-User-ID header is supplied by the auth collaborator and trusted
// as-is.
type Handler struct {
	carts    *cart.Store
	checkout *checkout.Coordinator
	orders   *order.Repository
	catalog  *events.Listener // may be nil: catalog event routes answer 503
}

func NewHandler(carts *cart.Store, co *checkout.Coordinator, orders *order.Repository, catalogEvents *events.Listener) *Handler {
	return &Handler{carts: carts, checkout: co, orders: orders, catalog: catalogEvents}
}

// AddToCart puts a product into the caller's cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: err.Error()})
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "product_id is required"})
		return
	}

	c, err := h.carts.AddItem(r.Context(), middlewares.UserID(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapCartToResponse(c))
}

// UpdateCartQuantity applies a signed delta to one line item.
func (h *Handler) UpdateCartQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: err.Error()})
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "delta must be non-zero"})
		return
	}

	c, err := h.carts.UpdateItemQuantity(r.Context(), middlewares.UserID(r.Context()), productID, req.Delta)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCartToResponse(c))
}

// RemoveFromCart deletes one line item from the given cart.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")
	productID := chi.URLParam(r, "productID")

	if err := h.carts.RemoveItem(r.Context(), cartID, productID); err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusMessage{Message: "item removed"})
}

// GetCart returns the caller's cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetCart(r.Context(), middlewares.UserID(r.Context()))
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCartToResponse(c))
}

// ListCarts is the admin projection over all carts.
func (h *Handler) ListCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.carts.ListAll(r.Context())
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	out := make([]CartResponse, 0, len(carts))
	for _, c := range carts {
		out = append(out, mapCartToResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// PlaceOrder converts the caller's cart into an order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: err.Error()})
		return
	}
	if req.AddressID == "" || req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "address_id and payment_method are required"})
		return
	}

	o, err := h.checkout.PlaceOrder(r.Context(), middlewares.UserID(r.Context()), req.AddressID, req.PaymentMethod, req.PaymentDetails)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrderToResponse(o))
}

// GetOrder returns one of the caller's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	// Orders are scoped to their owner; leak nothing about other users' ids.
	if o.UserID != middlewares.UserID(r.Context()) {
		h.writeMappedError(w, r, order.NotFoundError{ID: id})
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(o))
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListByUser(r.Context(), middlewares.UserID(r.Context()))
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	out := make([]OrderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, mapOrderToResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

// Restock receives a catalog restock notification.
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, ErrorResponse{Error: "not_configured", Message: "catalog event routing is not configured"})
		return
	}
	productID := chi.URLParam(r, "productID")

	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: err.Error()})
		return
	}

	if err := h.catalog.HandleRestock(r.Context(), productID, req.Delta); err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusMessage{Message: "stock adjusted"})
}

// PriceChange receives a catalog price-change notification.
func (h *Handler) PriceChange(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, ErrorResponse{Error: "not_configured", Message: "catalog event routing is not configured"})
		return
	}
	productID := chi.URLParam(r, "productID")

	var req PriceChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: err.Error()})
		return
	}

	if err := h.catalog.HandlePriceChange(r.Context(), productID, req.Price, req.Discount); err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusMessage{Message: "price updated"})
}

// UpdateOrderStatus applies a fulfillment transition.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: err.Error()})
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), id, order.Status(req.Status)); err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusMessage{Message: "status updated"})
}

// writeMappedError translates domain errors into HTTP responses. Business
// failures are expected outcomes: they are logged at info and carry typed
// detail; only unclassified errors become 500s.
func (h *Handler) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient inventory.InsufficientStockError
	var unavailable cart.UnavailableError
	var duplicate cart.DuplicateItemError
	var invalidQty cart.InvalidQuantityError
	var emptyCart checkout.EmptyCartError
	var cartNotFound cart.NotFoundError
	var productNotFound catalog.NotFoundError
	var orderNotFound order.NotFoundError
	var badTransition order.InvalidTransitionError

	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusConflict, ErrorResponse{
			Error:     "insufficient_stock",
			Message:   insufficient.Error(),
			ProductID: insufficient.ProductID,
			Requested: insufficient.Requested,
			Available: insufficient.Available,
		})
	case errors.As(err, &unavailable):
		writeError(w, http.StatusConflict, ErrorResponse{
			Error:     "unavailable",
			Message:   unavailable.Error(),
			ProductID: unavailable.ProductID,
			Requested: unavailable.Requested,
			Available: unavailable.Available,
		})
	case errors.As(err, &duplicate):
		writeError(w, http.StatusConflict, ErrorResponse{
			Error: "duplicate_item", Message: duplicate.Error(), ProductID: duplicate.ProductID,
		})
	case errors.As(err, &invalidQty):
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_quantity", Message: invalidQty.Error()})
	case errors.As(err, &emptyCart):
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "empty_cart", Message: emptyCart.Error()})
	case errors.As(err, &cartNotFound), errors.As(err, &productNotFound), errors.As(err, &orderNotFound):
		writeError(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.As(err, &badTransition):
		writeError(w, http.StatusConflict, ErrorResponse{Error: "invalid_transition", Message: badTransition.Error()})
	case store.IsBusy(err):
		writeError(w, http.StatusServiceUnavailable, ErrorResponse{Error: "busy", Message: "store is busy, try again"})
	default:
		slog.ErrorContext(r.Context(), "unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	writeJSON(w, status, body)
}
