package httpx

import (
	"context"
	"log/slog"

	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	AddItem(ctx context.Context, userID, productID string, qty int) (orders.CartView, error)
	UpdateItem(ctx context.Context, userID, productID string, qty int) (orders.CartView, error)
	RemoveItem(ctx context.Context, userID, productID string) (orders.CartView, error)
	Get(ctx context.Context, userID string) (orders.CartView, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, c orders.Customer) (orders.Order, error)
}

type OrderService interface {
	UpdateStatus(ctx context.Context, orderID, status string) (string, error)
	Get(ctx context.Context, orderID string) (orders.Order, error)
	ListForUser(ctx context.Context, userID string, p orders.Page) ([]orders.Order, error)
	ListAll(ctx context.Context, p orders.Page) ([]orders.Order, error)
	CachedStatus(ctx context.Context, orderID string) (orders.Status, error)
}

type Handler struct {
	Cart     CartService
	Checkout CheckoutService
	Orders   OrderService
	Catalog  orders.Catalog
	Push     orders.PushDirectory
	Log      *slog.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)

	r.Group(func(r chi.Router) {
		r.Use(requireUser(h.Push, h.Log))

		r.Get("/cart", h.getCart)
		r.Post("/cart", h.addCartItem)
		r.Put("/cart", h.updateCartItem)
		r.Delete("/cart", h.removeCartItem)

		r.Post("/checkout", h.checkout)

		r.Get("/orders", h.listMyOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/status", h.getOrderStatus)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/admin/orders", h.listAllOrders)
			r.Put("/orders/status", h.updateOrderStatus)
		})
	})
}
