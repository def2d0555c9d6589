package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Router assembles the HTTP routes around the handler.
func Router(h *Handler, ws http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if ws != nil {
		r.Get("/ws", ws)
	}

	// Public endpoints
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Get("/orders", h.GetActiveOrders)
	r.Get("/orders/{id}/trades", h.GetOrderTrades)
	r.Get("/market/overview", h.GetOverview)
	r.Get("/market/series", h.GetTradeSeries)

	// Protected endpoints
	r.Group(func(r chi.Router) {
		r.Use(h.TokenAuth)
		r.Post("/auth/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Put("/me/name", h.ChangeName)
		r.Put("/me/password", h.ChangePassword)
		r.Post("/me/profile", h.BindProfile)

		r.Post("/orders", h.PublishOrder)
		r.Get("/me/orders", h.GetMyOrders)
		r.Get("/me/trades", h.GetMyTrades)
		r.Put("/orders/{id}/price", h.ChangeOrderPrice)
		r.Put("/orders/{id}/traded", h.ChangeTradedAmount)
		r.Post("/orders/{id}/finish", h.SetAllTraded)
		r.Delete("/orders/{id}", h.DeleteOrder)
	})

	return r
}
