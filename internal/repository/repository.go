// Package repository содержит реализации хранилища маркетплейса: PostgreSQL для
// эксплуатации и хранилище в памяти для разработки и тестов.
package repository

import (
	"context"
	"time"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// Tx описывает операции, доступные внутри одной транзакции. Методы Lock* блокируют строку
// до конца транзакции. Нарушение уникальности возвращается как model.ErrConflict,
// отсутствие строки как model.ErrNotFound.
type Tx interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	LockAccount(ctx context.Context, id int64) (*model.Account, error)
	SaveAccount(ctx context.Context, a *model.Account) error
	UpdateBalance(ctx context.Context, accountID int64, balance int64) error
	ListSweepCandidates(ctx context.Context) ([]int64, error)
	MarkSwept(ctx context.Context, accountID int64, version int64) error

	CreateDish(ctx context.Context, d *model.Dish) error
	ListDishes(ctx context.Context) ([]model.Dish, error)
	GetDishes(ctx context.Context, ids []int64) (map[int64]model.Dish, error)

	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	LockOrder(ctx context.Context, id int64) (*model.Order, error)
	UpdateOrder(ctx context.Context, o *model.Order) error
	ListOrders(ctx context.Context, accountID int64) ([]model.Order, error)
	ListOpenOrders(ctx context.Context) ([]model.Order, error)
	ListOrderParticipants(ctx context.Context, accountID int64) ([]model.OrderParticipants, error)

	CreateBid(ctx context.Context, b *model.Bid) error
	GetBid(ctx context.Context, id int64) (*model.Bid, error)
	ListBids(ctx context.Context, orderID int64) ([]model.Bid, error)
	LastBidAt(ctx context.Context, deliveryPersonID int64) (*time.Time, error)

	CreateComplaint(ctx context.Context, c *model.Complaint) error
	GetComplaint(ctx context.Context, id int64) (*model.Complaint, error)
	LockComplaint(ctx context.Context, id int64) (*model.Complaint, error)
	UpdateComplaint(ctx context.Context, c *model.Complaint) error
	LockOldestPendingComplaint(ctx context.Context, targetID int64) (*model.Complaint, error)
	CountUnresolvedFiled(ctx context.Context, filerID int64) (int, error)
	ListComplaints(ctx context.Context, status model.ComplaintStatus) ([]model.Complaint, error)

	InsertTransaction(ctx context.Context, t *model.Transaction) error
	ListTransactions(ctx context.Context, accountID int64) ([]model.Transaction, error)

	CreateRating(ctx context.Context, r *model.Rating) error
	CreateDeliveryReview(ctx context.Context, r *model.DeliveryReview) error
	SetDeliveryReviewRating(ctx context.Context, orderID int64, score int) error
	ListDeliveryReviews(ctx context.Context, deliveryPersonID int64) ([]model.DeliveryReview, error)

	InsertAuditLog(ctx context.Context, l *model.AuditLog) error
	ListAuditLogs(ctx context.Context, targetID *int64, limit int) ([]model.AuditLog, error)
	InsertNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	InsertBlacklist(ctx context.Context, b *model.Blacklist) error
}
