// Package handler содержит HTTP-обработчики API сервиса маркетплейса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/restaurant-marketplace/internal/ledger"
	"github.com/mmeshcher/restaurant-marketplace/internal/middleware"
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/service"
	"github.com/mmeshcher/restaurant-marketplace/internal/validation"
	"github.com/mmeshcher/restaurant-marketplace/internal/worker"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, in service.AccountInput) (*model.Account, error)
	Login(ctx context.Context, email, password string) (*model.Account, error)
	Hire(ctx context.Context, managerID int64, in service.AccountInput) (*model.Account, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)

	Deposit(ctx context.Context, accountID, amount int64) (*model.Transaction, error)
	Withdraw(ctx context.Context, accountID, amount int64) (*model.Transaction, error)
	ListTransactions(ctx context.Context, accountID int64) ([]model.Transaction, error)

	CreateDish(ctx context.Context, chefID int64, name string, price int64) (*model.Dish, error)
	ListDishes(ctx context.Context) ([]model.Dish, error)
	PlaceOrder(ctx context.Context, customerID int64, lines []ledger.Line, address string) (*model.Order, error)
	ListOrders(ctx context.Context, accountID int64) ([]model.Order, error)
	ListOpenOrders(ctx context.Context, actorID int64) ([]model.Order, error)

	PlaceBid(ctx context.Context, deliveryPersonID, orderID, amount int64, estimatedMinutes int) (*model.Bid, error)
	ListBids(ctx context.Context, actorID, orderID int64) ([]service.BidView, error)
	AssignDelivery(ctx context.Context, managerID, orderID, deliveryPersonID int64, memo string) (*model.Order, error)
	MarkDelivered(ctx context.Context, deliveryPersonID, orderID int64) (*model.Order, error)
	GetDeliveryRating(ctx context.Context, deliveryPersonID int64) (model.DeliveryRating, error)
	SubmitRating(ctx context.Context, in service.RatingInput) (*model.Rating, error)

	FileComplaint(ctx context.Context, in service.ComplaintInput) (*model.Complaint, error)
	DisputeComplaint(ctx context.Context, targetID, complaintID int64, reason string) (*model.Complaint, error)
	ResolveComplaint(ctx context.Context, managerID, complaintID int64, resolution model.Resolution, notes string) (*model.Complaint, error)
	ListComplaints(ctx context.Context, actorID int64, status model.ComplaintStatus) ([]model.Complaint, error)

	ListNotifications(ctx context.Context, managerID int64, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, managerID, notificationID int64) error
	ListAuditLogs(ctx context.Context, actorID int64, targetID *int64, limit int) ([]model.AuditLog, error)
}

// Sweeper запускает внеочередной обход учётных записей.
type Sweeper interface {
	SweepOnce(ctx context.Context) (worker.Report, error)
}

// Handler реализует HTTP-обработчики API сервиса маркетплейса.
type Handler struct {
	service        Service
	sweeper        Sweeper
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	limiter        *middleware.RateLimiter
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. limiter может быть nil.
func NewHandler(s Service, sweeper Sweeper, logger *zap.Logger, auth *middleware.AuthMiddleware, limiter *middleware.RateLimiter) *Handler {
	return &Handler{
		service:        s,
		sweeper:        sweeper,
		logger:         logger,
		authMiddleware: auth,
		limiter:        limiter,
	}
}

type errorResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Shortfall  int64  `json:"shortfall,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

var statusByKind = map[model.ErrorKind]int{
	model.KindValidation:        http.StatusBadRequest,
	model.KindConflict:          http.StatusConflict,
	model.KindInsufficientFunds: http.StatusPaymentRequired,
	model.KindState:             http.StatusConflict,
	model.KindNotFound:          http.StatusNotFound,
	model.KindForbidden:         http.StatusForbidden,
	model.KindThrottled:         http.StatusTooManyRequests,
}

// writeError переводит ошибку сервиса в HTTP-ответ. Ошибки инфраструктуры пишутся в
// журнал и возвращаются клиенту без подробностей.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Reason: err.Error()})
		return
	}

	var merr *model.Error
	if errors.As(err, &merr) {
		status, ok := statusByKind[merr.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		resp := errorResponse{Error: string(merr.Kind), Reason: merr.Reason, Shortfall: merr.Shortfall}
		if merr.Kind == model.KindThrottled {
			secs := int(math.Ceil(merr.RetryAfter.Seconds()))
			resp.RetryAfter = secs
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		writeJSON(w, status, resp)
		return
	}

	if errors.Is(err, context.Canceled) {
		return
	}
	h.logger.Error(op+" error", zap.Error(err), zap.String("uri", r.RequestURI))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode читает JSON-тело запроса и проверяет его по тегам validate.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.Validationf("malformed request body: %v", err)
	}
	return validation.Struct(v)
}

func (h *Handler) currentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return id, ok
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, value string) (int64, bool) {
	id, err := validation.ID(value)
	if err != nil {
		h.writeError(w, r, "parse id", err)
		return 0, false
	}
	return id, true
}
