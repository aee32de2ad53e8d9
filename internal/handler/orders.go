package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/restaurant-marketplace/internal/ledger"
	"github.com/mmeshcher/restaurant-marketplace/internal/service"
)

type dishRequest struct {
	Name  string `json:"name" validate:"notblank,max=200"`
	Price int64  `json:"price" validate:"gt=0,lte=10000000"`
}

type orderLine struct {
	DishID   int64 `json:"dish_id" validate:"gt=0"`
	Quantity int   `json:"quantity" validate:"gte=1,lte=100"`
}

type orderRequest struct {
	Items   []orderLine `json:"items" validate:"required,min=1,dive"`
	Address string      `json:"address" validate:"notblank,max=500"`
}

type bidRequest struct {
	Amount           int64 `json:"amount" validate:"gt=0"`
	EstimatedMinutes int   `json:"estimated_minutes" validate:"gte=1,lte=1440"`
}

type assignRequest struct {
	DeliveryPersonID int64  `json:"delivery_person_id" validate:"gt=0"`
	Memo             string `json:"memo,omitempty" validate:"max=1000"`
}

type ratingRequest struct {
	TargetID int64 `json:"target_id" validate:"gt=0"`
	Score    int   `json:"score" validate:"gte=1,lte=5"`
	OnTime   *bool `json:"on_time,omitempty"`
}

// CreateDish добавляет блюдо от имени текущего повара.
func (h *Handler) CreateDish(w http.ResponseWriter, r *http.Request) {
	chefID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	var req dishRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "create dish", err)
		return
	}

	d, err := h.service.CreateDish(r.Context(), chefID, req.Name, req.Price)
	if err != nil {
		h.writeError(w, r, "create dish", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDish(*d))
}

// GetDishes возвращает меню.
func (h *Handler) GetDishes(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.service.ListDishes(r.Context())
	if err != nil {
		h.writeError(w, r, "list dishes", err)
		return
	}
	resp := make([]dishResponse, 0, len(dishes))
	for _, d := range dishes {
		resp = append(resp, toDish(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// PlaceOrder оформляет и оплачивает заказ текущего покупателя.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "place order", err)
		return
	}

	lines := make([]ledger.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, ledger.Line{DishID: it.DishID, Quantity: it.Quantity})
	}
	o, err := h.service.PlaceOrder(r.Context(), customerID, lines, req.Address)
	if err != nil {
		h.writeError(w, r, "place order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrder(o))
}

// GetOrders возвращает заказы текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}
	orders, err := h.service.ListOrders(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "list orders", err)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

// GetOpenOrders возвращает заказы, принимающие ставки.
func (h *Handler) GetOpenOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}
	orders, err := h.service.ListOpenOrders(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "list open orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

// PlaceBid принимает ставку текущего курьера.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	courierID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	orderID, ok := h.pathID(w, r, chi.URLParam(r, "orderID"))
	if !ok {
		return
	}
	var req bidRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "place bid", err)
		return
	}

	b, err := h.service.PlaceBid(r.Context(), courierID, orderID, req.Amount, req.EstimatedMinutes)
	if err != nil {
		h.writeError(w, r, "place bid", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBid(*b, false))
}

// GetBids возвращает ставки по заказу с отметкой минимальной.
func (h *Handler) GetBids(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}
	orderID, ok := h.pathID(w, r, chi.URLParam(r, "orderID"))
	if !ok {
		return
	}

	views, err := h.service.ListBids(r.Context(), id, orderID)
	if err != nil {
		h.writeError(w, r, "list bids", err)
		return
	}
	writeJSON(w, http.StatusOK, toBids(views))
}

// AssignDelivery назначает курьера по его ставке.
func (h *Handler) AssignDelivery(w http.ResponseWriter, r *http.Request) {
	managerID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	orderID, ok := h.pathID(w, r, chi.URLParam(r, "orderID"))
	if !ok {
		return
	}
	var req assignRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "assign delivery", err)
		return
	}

	o, err := h.service.AssignDelivery(r.Context(), managerID, orderID, req.DeliveryPersonID, req.Memo)
	if err != nil {
		h.writeError(w, r, "assign delivery", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

// MarkDelivered завершает доставку текущим курьером.
func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	courierID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	orderID, ok := h.pathID(w, r, chi.URLParam(r, "orderID"))
	if !ok {
		return
	}

	o, err := h.service.MarkDelivered(r.Context(), courierID, orderID)
	if err != nil {
		h.writeError(w, r, "mark delivered", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

// SubmitRating принимает оценку повара или курьера по заказу.
func (h *Handler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	raterID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	orderID, ok := h.pathID(w, r, chi.URLParam(r, "orderID"))
	if !ok {
		return
	}
	var req ratingRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "submit rating", err)
		return
	}

	rt, err := h.service.SubmitRating(r.Context(), service.RatingInput{
		RaterID:  raterID,
		TargetID: req.TargetID,
		OrderID:  orderID,
		Score:    req.Score,
		OnTime:   req.OnTime,
	})
	if err != nil {
		h.writeError(w, r, "submit rating", err)
		return
	}
	writeJSON(w, http.StatusCreated, ratingResponse{
		ID:       rt.ID,
		OrderID:  rt.OrderID,
		TargetID: rt.TargetID,
		Score:    rt.Score,
		OnTime:   rt.OnTime,
	})
}

// GetDeliveryRating возвращает агрегат по курьеру.
func (h *Handler) GetDeliveryRating(w http.ResponseWriter, r *http.Request) {
	courierID, ok := h.pathID(w, r, chi.URLParam(r, "accountID"))
	if !ok {
		return
	}
	rating, err := h.service.GetDeliveryRating(r.Context(), courierID)
	if err != nil {
		h.writeError(w, r, "get delivery rating", err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}
