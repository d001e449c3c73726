package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rahulrai17/shoply-checkout/internal/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// User-facing surface: identity comes from the auth collaborator.
	r.Group(func(r chi.Router) {
		r.Use(middlewares.AttachIdentity)

		r.Post("/cart/items", handler.AddToCart)
		r.Put("/cart/items/{productID}", handler.UpdateCartQuantity)
		r.Delete("/carts/{cartID}/items/{productID}", handler.RemoveFromCart)
		r.Get("/cart", handler.GetCart)
		r.Get("/carts", handler.ListCarts)

		r.Post("/orders", handler.PlaceOrder)
		r.Get("/orders", handler.ListOrders)
		r.Get("/orders/{id}", handler.GetOrder)
	})

	// Collaborator surface: catalog notifications and fulfillment
	// transitions. Expected to be reachable only from inside the platform.
	r.Route("/internal", func(r chi.Router) {
		r.Post("/catalog/{productID}/restock", handler.Restock)
		r.Post("/catalog/{productID}/price", handler.PriceChange)
		r.Post("/orders/{id}/status", handler.UpdateOrderStatus)
	})

	return r
}
