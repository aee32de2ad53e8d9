package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/restaurant-marketplace/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware маркетплейса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.GzipMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)
		r.Get("/dishes", h.GetDishes)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			if h.limiter != nil {
				r.Use(h.limiter.Middleware)
			}

			r.Get("/user", h.Me)
			r.Get("/user/transactions", h.GetTransactions)
			r.Post("/user/deposit", h.Deposit)
			r.Post("/user/withdraw", h.Withdraw)

			r.Post("/dishes", h.CreateDish)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.PlaceOrder)
				r.Get("/", h.GetOrders)
				r.Get("/open", h.GetOpenOrders)
				r.Post("/{orderID}/bids", h.PlaceBid)
				r.Get("/{orderID}/bids", h.GetBids)
				r.Post("/{orderID}/assign", h.AssignDelivery)
				r.Post("/{orderID}/delivered", h.MarkDelivered)
				r.Post("/{orderID}/ratings", h.SubmitRating)
			})
			r.Get("/delivery/{accountID}/rating", h.GetDeliveryRating)

			r.Route("/complaints", func(r chi.Router) {
				r.Post("/", h.FileComplaint)
				r.Get("/", h.GetComplaints)
				r.Post("/{complaintID}/dispute", h.DisputeComplaint)
				r.Post("/{complaintID}/resolve", h.ResolveComplaint)
			})

			r.Route("/manager", func(r chi.Router) {
				r.Post("/employees", h.Hire)
				r.Get("/notifications", h.GetNotifications)
				r.Post("/notifications/{notificationID}/read", h.MarkNotificationRead)
				r.Post("/sweep", h.Sweep)
			})
			r.Get("/audit", h.GetAuditLogs)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
